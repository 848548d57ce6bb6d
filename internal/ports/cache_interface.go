package ports

import (
	"context"
	"time"
	"wopi-gateway/internal/model"
)

// CacheRepository : Redis слой
type CacheRepository interface {
	SetFile(ctx context.Context, file *model.File) error
	GetFile(ctx context.Context, uuid string) (*model.File, error)
	DeleteFile(ctx context.Context, uuid string) error

	GetDiscovery(ctx context.Context) ([]byte, time.Time, error)
	SetDiscovery(ctx context.Context, raw []byte, fetchedAt time.Time, ttl time.Duration) error
	DeleteDiscovery(ctx context.Context) error
}
