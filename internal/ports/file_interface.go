package ports

import (
	"context"
	"io"
	"wopi-gateway/internal/model"

	"github.com/jmoiron/sqlx"
)

// FileRepository : SQL слой файлов
type FileRepository interface {
	BeginTX(ctx context.Context) (sqlx.ExtContext, func() error, func() error, error)
	GetByUUID(ctx context.Context, exec sqlx.ExtContext, fileUUID string) (*model.File, error)
	GetForUpdate(ctx context.Context, exec sqlx.ExtContext, fileUUID string) (*model.File, error)
	FindByName(ctx context.Context, exec sqlx.ExtContext, ownerUUID string, folderUUID *string, name string) (*model.File, error)
	Create(ctx context.Context, exec sqlx.ExtContext, file *model.File) error
	UpdateContent(ctx context.Context, exec sqlx.ExtContext, fileUUID, storagePath string, size, version int64) error
	Rename(ctx context.Context, exec sqlx.ExtContext, fileUUID, name string) error
	MarkDeleted(ctx context.Context, exec sqlx.ExtContext, fileUUID string) error
}

type LockRepository interface {
	Get(ctx context.Context, exec sqlx.ExtContext, fileUUID string) (*model.FileLock, error)
	Upsert(ctx context.Context, exec sqlx.ExtContext, lock *model.FileLock) error
	Delete(ctx context.Context, exec sqlx.ExtContext, fileUUID string) error
}

type VersionRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, version *model.FileVersion) error
	ListByFile(ctx context.Context, exec sqlx.ExtContext, fileUUID string) ([]model.FileVersion, error)
}

type ShareRepository interface {
	PermissionFor(ctx context.Context, exec sqlx.ExtContext, fileUUID, userUUID string) (model.Permission, error)
}

type AuditRepository interface {
	Append(ctx context.Context, exec sqlx.ExtContext, record *model.AuditRecord) error
}

// WOPIService : операции, которые вызывает движок редактора
type WOPIService interface {
	CheckFileInfo(ctx context.Context, token *model.AccessToken) (*model.FileInfo, error)
	GetFile(ctx context.Context, token *model.AccessToken) (*model.FileContent, error)
	PutFile(ctx context.Context, token *model.AccessToken, lockValue string, body io.Reader) (*model.PutFileResult, error)
	Lock(ctx context.Context, token *model.AccessToken, lockValue, oldLockValue string) (*model.LockResult, error)
	GetLock(ctx context.Context, token *model.AccessToken) (*model.LockResult, error)
	RefreshLock(ctx context.Context, token *model.AccessToken, lockValue string) (*model.LockResult, error)
	Unlock(ctx context.Context, token *model.AccessToken, lockValue string) (*model.LockResult, error)
	PutRelative(ctx context.Context, token *model.AccessToken, req *model.PutRelativeRequest, body io.Reader) (*model.PutRelativeResult, error)
	RenameFile(ctx context.Context, token *model.AccessToken, lockValue, requestedName string) (string, error)
	DeleteFile(ctx context.Context, token *model.AccessToken) error
}

// EditorService : ссылка на редактор для приложения
type EditorService interface {
	OpenEditor(ctx context.Context, userUUID, fileUUID string) (*model.EditorSession, error)
	ClearDiscoveryCache(ctx context.Context) error
}
