package model

// AccessToken : содержимое WOPI access token, нигде не хранится
type AccessToken struct {
	FileUUID   string     `json:"f"`
	UserUUID   string     `json:"u"`
	Permission Permission `json:"p"`
	IssuedAtMs int64      `json:"iat"`
	Nonce      string     `json:"n"`
}

// SessionToken : JWT сессии приложения
// swagger:model
type SessionToken struct {
	// Access токен (JWT)
	// example: eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9...
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}
