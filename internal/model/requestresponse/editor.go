package requestresponse

// EditorURLResponse : ссылка на редактор для встраивания в iframe
type EditorURLResponse struct {
	Response struct {
		URL            string `json:"url" example:"https://office.example.com/browser/dist/cool.html?WOPISrc=..."`
		AccessToken    string `json:"access_token" example:"k3J9..."`
		AccessTokenTTL int64  `json:"access_token_ttl" example:"1760000000000"`
		Permission     string `json:"permission" example:"edit"`
	} `json:"response"`
}
