package repository

import (
	"context"
	"wopi-gateway/config"
	"wopi-gateway/internal/model"
	"wopi-gateway/internal/util"

	"github.com/jmoiron/sqlx"
)

type VersionRepository struct {
	*config.Database
}

func NewVersionRepository(database *config.Database) *VersionRepository {
	return &VersionRepository{database}
}

// Create : снимок пишется один раз, уникальность (file_uuid, version_number) держит БД
func (r *VersionRepository) Create(ctx context.Context, exec sqlx.ExtContext, version *model.FileVersion) error {
	query := `
		INSERT INTO file_versions (file_uuid, version_number, size_bytes, content_ref, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`
	_, err := exec.ExecContext(ctx, query,
		version.FileUUID,
		version.VersionNumber,
		version.SizeBytes,
		version.ContentRef,
		version.CreatedBy,
	)
	if err != nil {
		return util.LogError("[VersionRepo] не удалось сохранить версию", err)
	}
	return nil
}

// ListByFile : версии от новых к старым
func (r *VersionRepository) ListByFile(ctx context.Context, exec sqlx.ExtContext, fileUUID string) ([]model.FileVersion, error) {
	query := `
		SELECT file_uuid, version_number, size_bytes, content_ref, created_by, created_at
		FROM file_versions
		WHERE file_uuid = $1
		ORDER BY version_number DESC
	`
	versions := []model.FileVersion{}
	if err := sqlx.SelectContext(ctx, exec, &versions, query, fileUUID); err != nil {
		return nil, util.LogError("[VersionRepo] не удалось получить список версий", err)
	}
	return versions, nil
}
