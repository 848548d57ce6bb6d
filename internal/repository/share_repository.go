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

type ShareRepository struct {
	database *config.Database
}

func NewShareRepository(database *config.Database) *ShareRepository {
	return &ShareRepository{database: database}
}

// PermissionFor : владелец получает edit, иначе право из file_shares.
// Пустое значение, если доступа нет
func (r *ShareRepository) PermissionFor(ctx context.Context, exec sqlx.ExtContext, fileUUID, userUUID string) (model.Permission, error) {
	query := `
		SELECT CASE WHEN f.owner_uuid = $2 THEN 'edit' ELSE s.permission END
		FROM files AS f
		LEFT JOIN file_shares AS s
		  ON f.uuid = s.file_uuid AND s.target_user_uuid = $2
		WHERE f.uuid = $1
		  AND f.deleted_at IS NULL
		  AND (f.owner_uuid = $2 OR s.target_user_uuid IS NOT NULL)
	`
	var permission sql.NullString
	err := sqlx.GetContext(ctx, exec, &permission, query, fileUUID, userUUID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", util.LogError("ошибка проверки доступа", err)
	}

	p := model.Permission(permission.String)
	if !p.Valid() {
		return "", nil
	}
	return p, nil
}
