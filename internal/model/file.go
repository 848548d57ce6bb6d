package model

import "time"

// File : метаданные файла, которыми владеет хранилище
type File struct {
	UUID        string     `db:"uuid" json:"uuid"`
	OwnerUUID   string     `db:"owner_uuid" json:"owner_uuid"`
	FolderUUID  *string    `db:"folder_uuid" json:"folder_uuid,omitempty"`
	Name        string     `db:"name" json:"name"`
	SizeBytes   int64      `db:"size_bytes" json:"size_bytes"`
	MimeType    string     `db:"mime_type" json:"mime_type"`
	StoragePath string     `db:"storage_path" json:"storage_path"`
	Version     int64      `db:"version" json:"version"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt   *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// SameFolder : лежат ли файлы в одной папке (nil = корень)
func (f *File) SameFolder(folderUUID *string) bool {
	if f.FolderUUID == nil || folderUUID == nil {
		return f.FolderUUID == nil && folderUUID == nil
	}
	return *f.FolderUUID == *folderUUID
}

// FileLock : WOPI блокировка. Живая, пока now < ExpiresAt
type FileLock struct {
	FileUUID  string    `db:"file_uuid" json:"file_uuid"`
	LockValue string    `db:"lock_value" json:"lock_value"`
	LockedBy  string    `db:"locked_by" json:"locked_by"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
}

// IsLive : проверка при каждом чтении, кэшированному флагу не доверяем
func (l *FileLock) IsLive(now time.Time) bool {
	return l != nil && now.Before(l.ExpiresAt)
}

// FileVersion : неизменяемый снимок содержимого перед перезаписью
type FileVersion struct {
	FileUUID      string    `db:"file_uuid" json:"file_uuid"`
	VersionNumber int64     `db:"version_number" json:"version_number"`
	SizeBytes     int64     `db:"size_bytes" json:"size_bytes"`
	ContentRef    string    `db:"content_ref" json:"content_ref"`
	CreatedBy     string    `db:"created_by" json:"created_by"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
