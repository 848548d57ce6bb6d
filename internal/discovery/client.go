package discovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
	"wopi-gateway/config"
	"wopi-gateway/internal/errs"
	"wopi-gateway/internal/metrics"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	defaultTTL        = time.Hour
	defaultTimeout    = 10 * time.Second
	maxDocumentSize   = 4 << 20
	sharedStaleFactor = 24
	refreshKey        = "discovery"
)

// Cache : последний успешно загруженный документ
type Cache struct {
	RawXML    []byte
	Actions   *ActionTable
	FetchedAt time.Time
}

// SharedCache : общий для инстансов кеш сырого XML (Redis)
type SharedCache interface {
	GetDiscovery(ctx context.Context) ([]byte, time.Time, error)
	SetDiscovery(ctx context.Context, raw []byte, fetchedAt time.Time, ttl time.Duration) error
	DeleteDiscovery(ctx context.Context) error
}

type Client struct {
	cfg         config.DiscoveryConfig
	wopiBaseURL string
	httpClient  *http.Client
	shared      SharedCache
	metrics     *metrics.Metrics

	mu    sync.RWMutex
	cache *Cache
	group singleflight.Group

	retryInterval time.Duration
	log           *zap.Logger
	now           func() time.Time
}

// NewClient : shared и m могут быть nil
func NewClient(cfg config.DiscoveryConfig, wopiBaseURL string, shared SharedCache, m *metrics.Metrics, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	return &Client{
		cfg:           cfg,
		wopiBaseURL:   wopiBaseURL,
		httpClient:    &http.Client{},
		shared:        shared,
		metrics:       m,
		retryInterval: 500 * time.Millisecond,
		log:           log.Named("discovery"),
		now:           time.Now,
	}
}

func (c *Client) WithClock(now func() time.Time) *Client {
	c.now = now
	return c
}

func (c *Client) WithHTTPClient(client *http.Client) *Client {
	c.httpClient = client
	return c
}

// Fetch : свежий кеш из памяти, иначе одно обновление на всех конкурентных вызывающих.
// При неудаче отдаётся устаревший кеш, nil только если документа не было ни разу
func (c *Client) Fetch(ctx context.Context) (*Cache, error) {
	if cached := c.cached(); cached != nil && c.now().Sub(cached.FetchedAt) < c.cfg.TTL {
		c.metrics.SetDiscoveryCacheAge(c.now().Sub(cached.FetchedAt))
		return cached, nil
	}

	v, err, _ := c.group.Do(refreshKey, func() (interface{}, error) {
		return c.refresh(ctx)
	})
	if err == nil {
		return v.(*Cache), nil
	}

	c.metrics.DiscoveryFetchFailed()
	if stale := c.cached(); stale != nil {
		age := c.now().Sub(stale.FetchedAt)
		c.metrics.SetDiscoveryCacheAge(age)
		c.log.Warn("discovery недоступен, используется устаревший кеш", zap.Duration("age", age), zap.Error(err))
		return stale, nil
	}

	if stale := c.loadShared(ctx, true); stale != nil {
		c.log.Warn("discovery недоступен, используется устаревший общий кеш", zap.Error(err))
		return stale, nil
	}

	c.log.Error("discovery недоступен, кеша нет", zap.String("url", c.cfg.URL), zap.Error(err))
	return nil, err
}

// ClearCache : сброс кеша оператором, например после перезапуска движка
func (c *Client) ClearCache(ctx context.Context) error {
	c.mu.Lock()
	c.cache = nil
	c.mu.Unlock()
	c.group.Forget(refreshKey)

	if c.shared != nil {
		if err := c.shared.DeleteDiscovery(ctx); err != nil {
			return fmt.Errorf("ошибка очистки общего кеша discovery: %w", err)
		}
	}
	c.log.Info("кеш discovery очищен")
	return nil
}

// CacheAge : возраст документа в памяти, ok=false если кеша нет
func (c *Client) CacheAge() (time.Duration, bool) {
	cached := c.cached()
	if cached == nil {
		return 0, false
	}
	return c.now().Sub(cached.FetchedAt), true
}

func (c *Client) cached() *Cache {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cache
}

func (c *Client) store(cache *Cache) {
	c.mu.Lock()
	c.cache = cache
	c.mu.Unlock()
	c.metrics.SetDiscoveryCacheAge(c.now().Sub(cache.FetchedAt))
}

func (c *Client) refresh(ctx context.Context) (*Cache, error) {
	if fresh := c.loadShared(ctx, false); fresh != nil {
		return fresh, nil
	}

	raw, err := c.download(ctx)
	if err != nil {
		return nil, err
	}

	table, err := ParseActions(raw)
	if err != nil {
		return nil, err
	}

	cache := &Cache{RawXML: raw, Actions: table, FetchedAt: c.now()}
	c.store(cache)
	c.metrics.DiscoveryFetched()
	c.log.Info("discovery загружен", zap.Int("bytes", len(raw)), zap.Any("actions", table.Actions()))

	if c.shared != nil {
		if err := c.shared.SetDiscovery(ctx, raw, cache.FetchedAt, c.cfg.TTL*sharedStaleFactor); err != nil {
			c.log.Warn("не удалось сохранить discovery в общий кеш", zap.Error(err))
		}
	}
	return cache, nil
}

// loadShared : документ из общего кеша; allowStale разрешает документ старше TTL
func (c *Client) loadShared(ctx context.Context, allowStale bool) *Cache {
	if c.shared == nil {
		return nil
	}

	raw, fetchedAt, err := c.shared.GetDiscovery(ctx)
	if err != nil {
		if !errors.Is(err, errs.ErrNotFound) {
			c.log.Warn("ошибка чтения общего кеша discovery", zap.Error(err))
		}
		return nil
	}
	if !allowStale && c.now().Sub(fetchedAt) >= c.cfg.TTL {
		return nil
	}

	table, err := ParseActions(raw)
	if err != nil {
		c.log.Warn("в общем кеше испорченный discovery", zap.Error(err))
		return nil
	}

	cache := &Cache{RawXML: raw, Actions: table, FetchedAt: fetchedAt}
	c.store(cache)
	return cache
}

func (c *Client) download(ctx context.Context) ([]byte, error) {
	if c.cfg.URL == "" {
		return nil, fmt.Errorf("адрес discovery не настроен: %w", errs.ErrUpstreamUnavailable)
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = c.retryInterval
	expBackoff.MaxInterval = 10 * c.retryInterval

	attempt := 0
	operation := func() ([]byte, error) {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, c.cfg.URL, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			statusErr := fmt.Errorf("discovery ответил %d", resp.StatusCode)
			if resp.StatusCode >= http.StatusInternalServerError {
				return nil, statusErr
			}
			return nil, backoff.Permanent(statusErr)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
		if err != nil {
			return nil, err
		}
		return body, nil
	}

	raw, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(c.cfg.MaxRetries+1),
		backoff.WithNotify(func(err error, d time.Duration) {
			c.log.Debug("повтор загрузки discovery", zap.Int("attempt", attempt), zap.Duration("delay", d), zap.Error(err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("загрузка discovery (%d попыток): %w: %v", attempt, errs.ErrUpstreamUnavailable, err)
	}
	return raw, nil
}
