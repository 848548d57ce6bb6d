package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"wopi-gateway/config"
	"wopi-gateway/internal/errs"
	"wopi-gateway/internal/model"
	"wopi-gateway/internal/util"

	"github.com/redis/go-redis/v9"
)

const discoveryKey = "discovery:xml"

type CacheRepository struct {
	client *config.RedisClient
	ttl    time.Duration
}

func NewCacheRepository(rdb *config.RedisClient, ttl time.Duration) *CacheRepository {
	return &CacheRepository{rdb, ttl}
}

func (r *CacheRepository) SetFile(ctx context.Context, file *model.File) error {
	data, err := json.Marshal(file)
	if err != nil {
		return util.LogError("ошибка сериализации файла", err)
	}

	cmd := r.client.Client.Set(ctx, r.key(file.UUID), data, r.ttl)
	if err = cmd.Err(); err != nil {
		return util.LogError("ошибка сохранения в Redis", err)
	}
	if cmd.Val() != "OK" {
		return fmt.Errorf("неожиданный ответ Redis: %s", cmd.Val())
	}

	return nil
}

func (r *CacheRepository) GetFile(ctx context.Context, uuid string) (*model.File, error) {
	val, err := r.client.Client.Get(ctx, r.key(uuid)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil // нет в кэше
	} else if err != nil {
		return nil, util.LogError("ошибка получения файла из Redis", err)
	}

	var file model.File
	if err := json.Unmarshal([]byte(val), &file); err != nil {
		return nil, util.LogError("ошибка десериализации файла из кэша", err)
	}
	return &file, nil
}

func (r *CacheRepository) DeleteFile(ctx context.Context, uuid string) error {
	if err := r.client.Client.Del(ctx, r.key(uuid)).Err(); err != nil {
		return util.LogError("ошибка удаления файла из Redis", err)
	}
	return nil
}

// GetDiscovery : сырой XML discovery и время его загрузки, errs.ErrNotFound если нет
func (r *CacheRepository) GetDiscovery(ctx context.Context) ([]byte, time.Time, error) {
	values, err := r.client.Client.HGetAll(ctx, discoveryKey).Result()
	if err != nil {
		return nil, time.Time{}, util.LogError("ошибка чтения discovery из Redis", err)
	}

	raw, ok := values["xml"]
	if !ok || raw == "" {
		return nil, time.Time{}, errs.ErrNotFound
	}
	fetchedAt, err := time.Parse(time.RFC3339Nano, values["fetched_at"])
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("discovery в Redis без времени загрузки: %w", errs.ErrNotFound)
	}

	return []byte(raw), fetchedAt, nil
}

func (r *CacheRepository) SetDiscovery(ctx context.Context, raw []byte, fetchedAt time.Time, ttl time.Duration) error {
	pipe := r.client.Client.TxPipeline()
	pipe.HSet(ctx, discoveryKey, "xml", raw, "fetched_at", fetchedAt.UTC().Format(time.RFC3339Nano))
	pipe.Expire(ctx, discoveryKey, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return util.LogError("ошибка сохранения discovery в Redis", err)
	}
	return nil
}

func (r *CacheRepository) DeleteDiscovery(ctx context.Context) error {
	if err := r.client.Client.Del(ctx, discoveryKey).Err(); err != nil {
		return util.LogError("ошибка удаления discovery из Redis", err)
	}
	return nil
}

func (r *CacheRepository) key(uuid string) string {
	return fmt.Sprintf("file:%s", uuid)
}
