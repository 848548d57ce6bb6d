package ports

import (
	"context"
	"io"
)

// BlobStorage : содержимое файлов по непрозрачному ключу
type BlobStorage interface {
	GetObject(ctx context.Context, key string) (io.ReadCloser, int64, error)
	PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	DeleteObject(ctx context.Context, key string) error
}
