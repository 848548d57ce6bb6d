package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"wopi-gateway/config"
	"wopi-gateway/internal/errs"
	"wopi-gateway/internal/model"
	"wopi-gateway/internal/util"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// uniqueViolation : код Postgres для нарушения уникального индекса
const uniqueViolation = "23505"

const fileColumns = `uuid, owner_uuid, folder_uuid, name, size_bytes, mime_type, storage_path,
		       version, created_at, updated_at, deleted_at`

type FileRepository struct {
	*config.Database
}

func NewFileRepository(database *config.Database) *FileRepository {
	return &FileRepository{database}
}

// BeginTX : exec транзакции, rollback (безопасен после commit) и commit
func (r *FileRepository) BeginTX(ctx context.Context) (sqlx.ExtContext, func() error, func() error, error) {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, nil, err
	}
	rollback := func() error {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			return err
		}
		return nil
	}
	return tx, rollback, tx.Commit, nil
}

// GetByUUID : файл без пометки удаления
func (r *FileRepository) GetByUUID(ctx context.Context, exec sqlx.ExtContext, fileUUID string) (*model.File, error) {
	query := `
		SELECT ` + fileColumns + `
		FROM files
		WHERE uuid = $1 AND deleted_at IS NULL
	`
	return r.getOne(ctx, exec, query, fileUUID)
}

// GetForUpdate : то же, с блокировкой строки до конца транзакции
func (r *FileRepository) GetForUpdate(ctx context.Context, exec sqlx.ExtContext, fileUUID string) (*model.File, error) {
	query := `
		SELECT ` + fileColumns + `
		FROM files
		WHERE uuid = $1 AND deleted_at IS NULL
		FOR UPDATE
	`
	return r.getOne(ctx, exec, query, fileUUID)
}

// FindByName : файл с таким именем в папке владельца, nil если нет
func (r *FileRepository) FindByName(ctx context.Context, exec sqlx.ExtContext, ownerUUID string, folderUUID *string, name string) (*model.File, error) {
	query := `
		SELECT ` + fileColumns + `
		FROM files
		WHERE owner_uuid = $1
		  AND folder_uuid IS NOT DISTINCT FROM $2
		  AND name = $3
		  AND deleted_at IS NULL
		LIMIT 1
	`
	var file model.File
	err := sqlx.GetContext(ctx, exec, &file, query, ownerUUID, folderUUID, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, util.LogError("[FileRepo] ошибка поиска файла по имени", err)
	}
	return &file, nil
}

// Create : сохраняем новый файл
func (r *FileRepository) Create(ctx context.Context, exec sqlx.ExtContext, file *model.File) error {
	query := `
		INSERT INTO files (uuid, owner_uuid, folder_uuid, name, size_bytes, mime_type, storage_path, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := exec.ExecContext(ctx, query,
		file.UUID,
		file.OwnerUUID,
		file.FolderUUID,
		file.Name,
		file.SizeBytes,
		file.MimeType,
		file.StoragePath,
		file.Version,
	)
	if nameTaken(err) {
		return fmt.Errorf("[FileRepo] файл %s: %w", file.Name, &errs.NameConflictError{})
	}
	if err != nil {
		return util.LogError("[FileRepo] ошибка вставки файла", err)
	}
	return nil
}

// UpdateContent : новый объект, размер и версия после записи содержимого
func (r *FileRepository) UpdateContent(ctx context.Context, exec sqlx.ExtContext, fileUUID, storagePath string, size, version int64) error {
	query := `
		UPDATE files
		SET storage_path = $2, size_bytes = $3, version = $4, updated_at = NOW()
		WHERE uuid = $1 AND deleted_at IS NULL
	`
	result, err := exec.ExecContext(ctx, query, fileUUID, storagePath, size, version)
	if err != nil {
		return util.LogError("[FileRepo] не удалось обновить содержимое файла", err)
	}
	return requireAffected(result, fileUUID)
}

func (r *FileRepository) Rename(ctx context.Context, exec sqlx.ExtContext, fileUUID, name string) error {
	query := `UPDATE files SET name = $2, updated_at = NOW() WHERE uuid = $1 AND deleted_at IS NULL`
	result, err := exec.ExecContext(ctx, query, fileUUID, name)
	if nameTaken(err) {
		return fmt.Errorf("[FileRepo] файл %s: %w", name, &errs.NameConflictError{})
	}
	if err != nil {
		return util.LogError("[FileRepo] не удалось переименовать файл", err)
	}
	return requireAffected(result, fileUUID)
}

// MarkDeleted : логическое удаление, объект в хранилище остаётся
func (r *FileRepository) MarkDeleted(ctx context.Context, exec sqlx.ExtContext, fileUUID string) error {
	query := `UPDATE files SET deleted_at = NOW() WHERE uuid = $1 AND deleted_at IS NULL`
	result, err := exec.ExecContext(ctx, query, fileUUID)
	if err != nil {
		return util.LogError("[FileRepo] не удалось удалить файл", err)
	}
	return requireAffected(result, fileUUID)
}

func (r *FileRepository) getOne(ctx context.Context, exec sqlx.ExtContext, query, fileUUID string) (*model.File, error) {
	var file model.File
	err := sqlx.GetContext(ctx, exec, &file, query, fileUUID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("файл %s: %w", fileUUID, errs.ErrNotFound)
	}
	if err != nil {
		return nil, util.LogError("[FileRepo] ошибка чтения файла", err)
	}
	return &file, nil
}

func requireAffected(result sql.Result, fileUUID string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return util.LogError("[FileRepo] не удалось проверить число изменённых строк", err)
	}
	if rows == 0 {
		return fmt.Errorf("файл %s: %w", fileUUID, errs.ErrNotFound)
	}
	return nil
}

// nameTaken : сработал уникальный индекс имени среди неудалённых файлов папки владельца
func nameTaken(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
