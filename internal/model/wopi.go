package model

import (
	"io"
	"time"
)

// FileInfo : данные для CheckFileInfo
type FileInfo struct {
	File             *File
	UserUUID         string
	UserFriendlyName string
	Permission       Permission
	IsOwner          bool
	// LockValue : пусто, если живой блокировки нет
	LockValue string
}

// FileContent : содержимое файла для GetFile, Body закрывает вызывающий
type FileContent struct {
	Body    io.ReadCloser
	Size    int64
	Name    string
	Version int64
}

type PutFileResult struct {
	Version int64
}

// LockResult : актуальное значение блокировки после операции
type LockResult struct {
	LockValue string
	Version   int64
}

// PutRelativeRequest : заголовки PUT_RELATIVE
type PutRelativeRequest struct {
	SuggestedTarget string
	RelativeTarget  string
	Overwrite       bool
	Size            int64
}

type PutRelativeResult struct {
	File        *File
	Name        string
	URL         string
	AccessToken string
}

// EditorSession : всё, что нужно приложению для iframe редактора
type EditorSession struct {
	URL         string
	AccessToken string
	ExpiresAt   time.Time
	Permission  Permission
}

// LoginResult : итог моста идентификации
type LoginResult struct {
	User      *User
	Principal *Principal
	Session   *SessionToken
}
