package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"
)

// Режимы аутентификации моста идентификации
const (
	AuthModeLocal    = "local"
	AuthModeLDAP     = "ldap"
	AuthModeLTPA     = "ltpa"
	AuthModeLDAPLTPA = "ldap_ltpa"
	AuthModeHybrid   = "hybrid"
)

// DefaultMaxBodySize : предел тела WOPI записи по умолчанию, 256 МиБ
const DefaultMaxBodySize int64 = 256 << 20

type AppConfig struct {
	Server         ServerConfig      `yaml:"server"`
	DatabaseConfig DatabaseConfig    `yaml:"databaseConfig"`
	RedisConfig    RedisConfig       `yaml:"redisConfig"`
	S3Config       S3Config          `yaml:"s3Config"`
	JWT            JWTConfig         `yaml:"jwt"`
	AccessToken    AccessTokenConfig `yaml:"accessToken"`
	WOPI           WOPIConfig        `yaml:"wopi"`
	Discovery      DiscoveryConfig   `yaml:"discovery"`
	Auth           AuthConfig        `yaml:"auth"`
	LDAP           LDAPConfig        `yaml:"ldap"`
	LTPA           LTPAConfig        `yaml:"ltpa"`
	Admin          AdminConfig       `yaml:"admin"`
	Log            LogConfig         `yaml:"log"`
}

func LoadConfig(path string) (*AppConfig, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg AppConfig
	if err := yaml.Unmarshal(file, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ApplyDefaults : заполняет незаданные значения
func (c *AppConfig) ApplyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 5 * time.Second
	}
	if c.Server.WOPIBaseURL == "" {
		c.Server.WOPIBaseURL = c.Server.PublicURL
	}
	if c.JWT.AccessTokenTTL == 0 {
		c.JWT.AccessTokenTTL = time.Hour
	}
	if c.AccessToken.TTL == 0 {
		c.AccessToken.TTL = 24 * time.Hour
	}
	if c.WOPI.LockTTL == 0 {
		c.WOPI.LockTTL = 30 * time.Minute
	}
	if c.WOPI.CacheTTL == 0 {
		c.WOPI.CacheTTL = 5 * time.Minute
	}
	if c.WOPI.MaxBodySize == 0 {
		c.WOPI.MaxBodySize = DefaultMaxBodySize
	}
	if c.Discovery.TTL == 0 {
		c.Discovery.TTL = time.Hour
	}
	if c.Discovery.Timeout == 0 {
		c.Discovery.Timeout = 10 * time.Second
	}
	if c.Discovery.MaxRetries == 0 {
		c.Discovery.MaxRetries = 3
	}
	if c.Discovery.FallbackPath == "" {
		c.Discovery.FallbackPath = "/browser/dist/cool.html"
	}
	if c.Auth.Mode == "" {
		c.Auth.Mode = AuthModeLocal
	}
	if c.LDAP.UserFilter == "" {
		c.LDAP.UserFilter = "(uid={{username}})"
	}
	if c.LDAP.Timeout == 0 {
		c.LDAP.Timeout = 10 * time.Second
	}
	if c.LTPA.CookieName == "" {
		c.LTPA.CookieName = "LtpaToken2"
	}
	if c.LTPA.LegacyCookieName == "" {
		c.LTPA.LegacyCookieName = "LtpaToken"
	}
	if c.LTPA.HeaderName == "" {
		c.LTPA.HeaderName = "X-LTPA-Token"
	}
	if c.LTPA.UsernameStrategy == "" {
		c.LTPA.UsernameStrategy = "cn"
	}
	if len(c.LTPA.CipherOrder) == 0 {
		c.LTPA.CipherOrder = []string{"3des", "aes", "raw3des"}
	}
	if c.LTPA.TokenTTL == 0 {
		c.LTPA.TokenTTL = 2 * time.Hour
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate : проверяет обязательные параметры для выбранного режима
func (c *AppConfig) Validate() error {
	var problems []string

	if c.JWT.SecretKey == "" {
		problems = append(problems, "jwt.secret_key не задан")
	}
	if c.AccessToken.Secret == "" {
		problems = append(problems, "accessToken.secret не задан")
	}
	if c.Server.PublicURL == "" {
		problems = append(problems, "server.public_url не задан")
	}

	switch c.Auth.Mode {
	case AuthModeLocal:
	case AuthModeLDAP, AuthModeLDAPLTPA, AuthModeLTPA, AuthModeHybrid:
		if c.Auth.Mode != AuthModeLTPA && c.LDAP.URL == "" {
			problems = append(problems, "ldap.url не задан для режима "+c.Auth.Mode)
		}
		if c.Auth.Mode != AuthModeLDAP && c.LTPA.Secret == "" {
			problems = append(problems, "ltpa.secret не задан для режима "+c.Auth.Mode)
		}
	default:
		problems = append(problems, fmt.Sprintf("неизвестный режим аутентификации %q", c.Auth.Mode))
	}

	if len(problems) > 0 {
		return errors.New("ошибка конфигурации: " + strings.Join(problems, "; "))
	}
	return nil
}

func SetupServer(serverAddress string) (*http.Server, *chi.Mux) {
	router := chi.NewRouter()
	server := &http.Server{
		Addr:              serverAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return server, router
}

func SetupDatabase(dsn string) (*Database, error) {
	return NewDatabaseConnection("postgres", dsn)
}

func SetupRedis(cfg *RedisConfig) (*RedisClient, error) {
	return NewRedisClient(cfg)
}
