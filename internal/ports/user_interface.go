package ports

import (
	"context"
	"wopi-gateway/internal/model"

	"github.com/jmoiron/sqlx"
)

type UserRepository interface {
	FindByUUID(ctx context.Context, exec sqlx.ExtContext, uuid string) (*model.User, error)
	FindByLogin(ctx context.Context, exec sqlx.ExtContext, login string) (*model.User, error)
	EnsureExternalUser(ctx context.Context, exec sqlx.ExtContext, principal *model.Principal) (*model.User, error)
	AdjustStorageUsed(ctx context.Context, exec sqlx.ExtContext, uuid string, delta int64) error
}
