package security

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
	"wopi-gateway/internal/model"

	"go.uber.org/zap"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	AccessTokenContextKey contextKey = "wopi_access_token"

	// DefaultAccessTokenTTL : срок жизни access token с момента выдачи
	DefaultAccessTokenTTL = 24 * time.Hour

	// допустимое расхождение часов между узлами
	clockSkew = time.Minute
)

// AccessTokenCodec : выпуск и проверка непрозрачных WOPI access token.
// Полезная нагрузка шифруется XChaCha20-Poly1305, ключ = SHA-256 от общего секрета.
type AccessTokenCodec struct {
	aead cipher.AEAD
	ttl  time.Duration
	now  func() time.Time
}

func NewAccessTokenCodec(secret string, ttl time.Duration) (*AccessTokenCodec, error) {
	if secret == "" {
		return nil, errors.New("секрет access token не задан")
	}
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}

	key := sha256.Sum256([]byte(secret))
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации шифра access token: %w", err)
	}

	return &AccessTokenCodec{aead: aead, ttl: ttl, now: time.Now}, nil
}

// WithClock : подменяет источник времени (для тестов)
func (c *AccessTokenCodec) WithClock(now func() time.Time) *AccessTokenCodec {
	c.now = now
	return c
}

func (c *AccessTokenCodec) TTL() time.Duration { return c.ttl }

// Mint : выпускает токен на тройку файл/пользователь/право
func (c *AccessTokenCodec) Mint(fileUUID, userUUID string, permission model.Permission) (string, error) {
	if fileUUID == "" || userUUID == "" {
		return "", errors.New("fileUUID и userUUID обязательны")
	}
	if !permission.Valid() {
		return "", fmt.Errorf("неизвестное право %q", permission)
	}

	nonce := make([]byte, 8)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("ошибка генерации nonce: %w", err)
	}

	payload, err := json.Marshal(model.AccessToken{
		FileUUID:   fileUUID,
		UserUUID:   userUUID,
		Permission: permission,
		IssuedAtMs: c.now().UnixMilli(),
		Nonce:      hex.EncodeToString(nonce),
	})
	if err != nil {
		return "", fmt.Errorf("ошибка сериализации access token: %w", err)
	}

	aeadNonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(payload)+c.aead.Overhead())
	if _, err := rand.Read(aeadNonce); err != nil {
		return "", fmt.Errorf("ошибка генерации nonce: %w", err)
	}

	sealed := c.aead.Seal(aeadNonce, aeadNonce, payload, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Verify : nil при любой ошибке декодирования, расшифровки, разбора или истечении срока
func (c *AccessTokenCodec) Verify(token string) *model.AccessToken {
	if token == "" {
		return nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil
	}
	if len(raw) < c.aead.NonceSize()+c.aead.Overhead() {
		return nil
	}

	nonce, sealed := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	payload, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil
	}

	var accessToken model.AccessToken
	if err := json.Unmarshal(payload, &accessToken); err != nil {
		return nil
	}
	if accessToken.FileUUID == "" || accessToken.UserUUID == "" || !accessToken.Permission.Valid() {
		return nil
	}

	issuedAt := time.UnixMilli(accessToken.IssuedAtMs)
	now := c.now()
	if now.Sub(issuedAt) > c.ttl || issuedAt.After(now.Add(clockSkew)) {
		return nil
	}

	return &accessToken
}

// ExpiresAt : момент истечения токена
func (c *AccessTokenCodec) ExpiresAt(token *model.AccessToken) time.Time {
	return time.UnixMilli(token.IssuedAtMs).Add(c.ttl)
}

// AccessTokenMiddleware : проверяет access_token из query и кладёт его в контекст.
// Токен должен быть выпущен на тот же файл, что и в маршруте
func AccessTokenMiddleware(codec *AccessTokenCodec, fileIDFromRequest func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.URL.Query().Get("access_token")
			accessToken := codec.Verify(token)
			if accessToken == nil {
				zap.L().Debug("невалидный access token", zap.String("path", r.URL.Path))
				w.WriteHeader(http.StatusUnauthorized)
				return
			}

			if fileID := fileIDFromRequest(r); fileID != "" && fileID != accessToken.FileUUID {
				zap.L().Warn("access token выпущен на другой файл",
					zap.String("file_uuid", fileID),
					zap.String("token_file_uuid", accessToken.FileUUID))
				w.WriteHeader(http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithAccessToken(r.Context(), accessToken)))
		})
	}
}

// AccessTokenFromContext : токен, положенный AccessTokenMiddleware
func AccessTokenFromContext(ctx context.Context) (*model.AccessToken, error) {
	accessToken, ok := ctx.Value(AccessTokenContextKey).(*model.AccessToken)
	if !ok || accessToken == nil {
		return nil, fmt.Errorf("access token не найден в контексте")
	}
	return accessToken, nil
}

// ContextWithAccessToken : контекст с проверенным access token
func ContextWithAccessToken(ctx context.Context, accessToken *model.AccessToken) context.Context {
	return context.WithValue(ctx, AccessTokenContextKey, accessToken)
}
