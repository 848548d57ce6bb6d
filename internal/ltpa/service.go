package ltpa

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
	"wopi-gateway/config"
	"wopi-gateway/internal/errs"
	"wopi-gateway/internal/model"
	"wopi-gateway/internal/util"

	"go.uber.org/zap"
)

const defaultRealm = "defaultRealm"

// ErrDecrypt : ни один из шифров не дал правдоподобного содержимого
var ErrDecrypt = errors.New("не удалось расшифровать LTPA токен")

// ErrExpired : срок действия токена истёк
var ErrExpired = errors.New("срок действия LTPA токена истёк")

// Service : LTPA2 токены. Набор ключей хранится в atomic.Pointer и заменяется целиком,
// поэтому параллельные проверки не видят наполовину обновлённые ключи
type Service struct {
	keys atomic.Pointer[KeyMaterial]

	realm            string
	strategy         UsernameStrategy
	cipherOrder      []Cipher
	tokenTTL         time.Duration
	strictSignature  bool
	cookieName       string
	legacyCookieName string
	headerName       string

	log *zap.Logger
	now func() time.Time
}

func NewService(cfg config.LTPAConfig, log *zap.Logger) (*Service, error) {
	if log == nil {
		log = zap.NewNop()
	}

	strategy, err := ParseUsernameStrategy(cfg.UsernameStrategy)
	if err != nil {
		return nil, err
	}
	order, err := ParseCipherOrder(cfg.CipherOrder)
	if err != nil {
		return nil, err
	}

	realm := cfg.Realm
	if realm == "" {
		realm = defaultRealm
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}

	s := &Service{
		realm:            realm,
		strategy:         strategy,
		cipherOrder:      order,
		tokenTTL:         ttl,
		strictSignature:  cfg.StrictSignature,
		cookieName:       cfg.CookieName,
		legacyCookieName: cfg.LegacyCookieName,
		headerName:       cfg.HeaderName,
		log:              log.Named("ltpa"),
		now:              time.Now,
	}

	if err := s.UpdateSecret(cfg.Secret); err != nil {
		return nil, err
	}
	return s, nil
}

// WithClock : подменяет источник времени (для тестов)
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// UpdateSecret : пересчитывает ключи и атомарно подменяет весь набор
func (s *Service) UpdateSecret(secretB64 string) error {
	keys, err := DeriveKeys(secretB64)
	if err != nil {
		return err
	}
	s.keys.Store(keys)
	s.log.Info("ключи LTPA обновлены", zap.Bool("raw3des", keys.RawDESKey != nil))
	return nil
}

// Decrypt : перебирает шифры в настроенном порядке, первый правдоподобный результат выигрывает
func (s *Service) Decrypt(tokenB64 string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(tokenB64))
	if err != nil {
		return "", &errs.ParseError{What: "LTPA: base64", Err: err}
	}

	keys := s.keys.Load()
	for _, c := range s.cipherOrder {
		plain, err := keys.decrypt(c, data)
		if err != nil {
			s.log.Debug("шифр LTPA не подошёл", zap.String("cipher", string(c)), zap.Error(err))
			continue
		}
		content := string(plain)
		if err := looksLikeLTPA(content); err != nil {
			s.log.Debug("расшифровка LTPA не похожа на токен", zap.String("cipher", string(c)), zap.Error(err))
			continue
		}
		return content, nil
	}

	return "", ErrDecrypt
}

// Encrypt : каноничный формат для совместимости, 3DES-CBC
func (s *Service) Encrypt(content string) (string, error) {
	out, err := s.keys.Load().encrypt(Cipher3DES, []byte(content))
	if err != nil {
		return "", fmt.Errorf("ошибка шифрования LTPA: %w", err)
	}
	return base64.StdEncoding.EncodeToString(out), nil
}

// ValidateToken : расшифровка, разбор, проверка срока и подписи
func (s *Service) ValidateToken(tokenB64 string) (token *Token, err error) {
	defer func() {
		if r := recover(); r != nil {
			token, err = nil, fmt.Errorf("%w: %v", ErrDecrypt, r)
		}
	}()

	raw := strings.TrimSpace(tokenB64)
	if raw == "" {
		return nil, errs.ErrUnauthorized
	}
	if strings.Contains(raw, "%") {
		if unescaped, err := url.PathUnescape(raw); err == nil {
			raw = unescaped
		}
	}

	content, err := s.Decrypt(raw)
	if err != nil {
		return nil, err
	}

	token, err = Parse(content, s.strategy)
	if err != nil {
		return nil, err
	}

	if s.now().UnixMilli() > token.ExpireAtMs {
		return nil, ErrExpired
	}

	if token.Signature != "" && !s.signatureValid(token) {
		if s.strictSignature {
			return nil, fmt.Errorf("%w: подпись LTPA не совпадает", errs.ErrUnauthorized)
		}
		// некоторые серверы каталога подписывают несовместимым способом
		s.log.Warn("подпись LTPA не совпадает, токен принят", zap.String("username", token.Username))
	}

	return token, nil
}

// Validate : принципал или nil, ошибки наружу не выходят
func (s *Service) Validate(tokenB64 string) *model.Principal {
	token, err := s.ValidateToken(tokenB64)
	if err != nil {
		s.log.Info("LTPA токен отклонён", zap.String("token", util.Redact(tokenB64)), zap.Error(err))
		return nil
	}
	return s.principalFrom(token)
}

// Generate : "u:user:{realm}/{username}$k:v%{expiry}%{hmac}", зашифровано 3DES-CBC
func (s *Service) Generate(username string, attributes map[string]string) (string, error) {
	if strings.TrimSpace(username) == "" {
		return "", errors.New("имя пользователя обязательно")
	}

	userPart := buildUserPart(s.realm, username, attributes)
	expiry := strconv.FormatInt(s.now().Add(s.tokenTTL).UnixMilli(), 10)
	signed := userPart + "%" + expiry

	content := signed + "%" + s.sign(signed)
	return s.Encrypt(content)
}

func (s *Service) sign(content string) string {
	mac := hmac.New(sha1.New, s.keys.Load().HMACKey)
	mac.Write([]byte(content))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (s *Service) signatureValid(token *Token) bool {
	expected := s.sign(token.SignedContent)
	return hmac.Equal([]byte(expected), []byte(token.Signature))
}

func (s *Service) principalFrom(token *Token) *model.Principal {
	displayName := token.Attributes["displayName"]
	if displayName == "" {
		displayName = UsernameFromDN(token.DN, nil, StrategyCN)
	}
	email := firstNonEmpty(token.Attributes["mail"], token.Attributes["email"])
	if email == "" && s.strategy == StrategyEmail && strings.Contains(token.Username, "@") {
		email = token.Username
	}

	return &model.Principal{
		Username:    token.Username,
		Email:       email,
		DisplayName: displayName,
		Role:        model.RoleUser,
		AuthSource:  model.AuthSourceLTPA,
	}
}

// TokenFromRequest : основная cookie, затем устаревшая cookie, затем "Authorization: LTPA <token>",
// затем отдельный заголовок. Первый найденный выигрывает
func (s *Service) TokenFromRequest(r *http.Request) string {
	for _, name := range []string{s.cookieName, s.legacyCookieName} {
		if name == "" {
			continue
		}
		if cookie, err := r.Cookie(name); err == nil && cookie.Value != "" {
			return cookie.Value
		}
	}

	if auth := r.Header.Get("Authorization"); len(auth) > 5 && strings.EqualFold(auth[:5], "LTPA ") {
		return strings.TrimSpace(auth[5:])
	}

	if s.headerName != "" {
		return strings.TrimSpace(r.Header.Get(s.headerName))
	}
	return ""
}
