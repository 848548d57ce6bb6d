package repository

import (
	"context"
	"database/sql"
	"errors"
	"wopi-gateway/config"
	"wopi-gateway/internal/model"
	"wopi-gateway/internal/util"

	"github.com/jmoiron/sqlx"
)

// LockRepository : строки file_locks. Живость блокировки проверяет сервис, здесь только хранение
type LockRepository struct {
	*config.Database
}

func NewLockRepository(database *config.Database) *LockRepository {
	return &LockRepository{database}
}

// Get : блокировка файла (возможно просроченная), nil если строки нет
func (r *LockRepository) Get(ctx context.Context, exec sqlx.ExtContext, fileUUID string) (*model.FileLock, error) {
	query := `SELECT file_uuid, lock_value, locked_by, expires_at FROM file_locks WHERE file_uuid = $1`
	var lock model.FileLock
	err := sqlx.GetContext(ctx, exec, &lock, query, fileUUID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, util.LogError("[LockRepo] ошибка чтения блокировки", err)
	}
	return &lock, nil
}

// Upsert : одна строка на файл, просроченная блокировка просто перезаписывается
func (r *LockRepository) Upsert(ctx context.Context, exec sqlx.ExtContext, lock *model.FileLock) error {
	query := `
		INSERT INTO file_locks (file_uuid, lock_value, locked_by, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (file_uuid) DO UPDATE
		SET lock_value = EXCLUDED.lock_value,
		    locked_by = EXCLUDED.locked_by,
		    expires_at = EXCLUDED.expires_at
	`
	_, err := exec.ExecContext(ctx, query, lock.FileUUID, lock.LockValue, lock.LockedBy, lock.ExpiresAt)
	if err != nil {
		return util.LogError("[LockRepo] не удалось сохранить блокировку", err)
	}
	return nil
}

func (r *LockRepository) Delete(ctx context.Context, exec sqlx.ExtContext, fileUUID string) error {
	_, err := exec.ExecContext(ctx, `DELETE FROM file_locks WHERE file_uuid = $1`, fileUUID)
	if err != nil {
		return util.LogError("[LockRepo] не удалось снять блокировку", err)
	}
	return nil
}
