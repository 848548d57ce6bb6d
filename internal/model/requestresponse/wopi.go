package requestresponse

// CheckFileInfoResponse : ответ WOPI CheckFileInfo. Имена полей задаёт протокол
type CheckFileInfoResponse struct {
	BaseFileName     string `json:"BaseFileName"`
	OwnerId          string `json:"OwnerId"`
	Size             int64  `json:"Size"`
	UserId           string `json:"UserId"`
	UserFriendlyName string `json:"UserFriendlyName"`
	Version          string `json:"Version"`
	LastModifiedTime string `json:"LastModifiedTime"`
	LockValue        string `json:"LockValue,omitempty"`

	UserCanWrite            bool `json:"UserCanWrite"`
	UserCanRename           bool `json:"UserCanRename"`
	UserCanNotWriteRelative bool `json:"UserCanNotWriteRelative"`
	ReadOnly                bool `json:"ReadOnly"`

	SupportsLocks              bool `json:"SupportsLocks"`
	SupportsGetLock            bool `json:"SupportsGetLock"`
	SupportsExtendedLockLength bool `json:"SupportsExtendedLockLength"`
	SupportsUpdate             bool `json:"SupportsUpdate"`
	SupportsRename             bool `json:"SupportsRename"`
	SupportsDeleteFile         bool `json:"SupportsDeleteFile"`

	DisablePrint     bool `json:"DisablePrint"`
	DisableExport    bool `json:"DisableExport"`
	HidePrintOption  bool `json:"HidePrintOption"`
	HideExportOption bool `json:"HideExportOption"`
}

// PutRelativeResponse : ответ WOPI PutRelativeFile
type PutRelativeResponse struct {
	Name        string `json:"Name"`
	Url         string `json:"Url"`
	HostEditUrl string `json:"HostEditUrl,omitempty"`
	HostViewUrl string `json:"HostViewUrl,omitempty"`
}

// RenameFileResponse : ответ WOPI RenameFile
type RenameFileResponse struct {
	Name string `json:"Name"`
}
