package repository

import (
	"context"
	"wopi-gateway/config"
	"wopi-gateway/internal/model"
	"wopi-gateway/internal/util"

	"github.com/jmoiron/sqlx"
)

type AuditRepository struct {
	*config.Database
}

func NewAuditRepository(database *config.Database) *AuditRepository {
	return &AuditRepository{database}
}

// Append : журнал только дополняется
func (r *AuditRepository) Append(ctx context.Context, exec sqlx.ExtContext, record *model.AuditRecord) error {
	query := `
		INSERT INTO audit_log (uuid, file_uuid, user_uuid, action, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`
	_, err := exec.ExecContext(ctx, query, record.UUID, record.FileUUID, record.UserUUID, record.Action, record.Detail)
	if err != nil {
		return util.LogError("[AuditRepo] не удалось записать журнал", err)
	}
	return nil
}
