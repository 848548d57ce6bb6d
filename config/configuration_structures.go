package config

import "time"

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// PublicURL : адрес шлюза для браузера
	PublicURL string `yaml:"public_url"`
	// WOPIBaseURL : адрес шлюза, по которому к нему ходит движок редактора
	WOPIBaseURL     string        `yaml:"wopi_base_url"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type S3Config struct {
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
	Local    bool   `yaml:"local"`
}

type JWTConfig struct {
	SecretKey      string        `yaml:"secret_key"`
	AccessTokenTTL time.Duration `yaml:"access_token_ttl"`
}

// AccessTokenConfig : параметры WOPI access token
type AccessTokenConfig struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

type WOPIConfig struct {
	LockTTL time.Duration `yaml:"lock_ttl"`
	// CacheTTL : время жизни метаданных файла в Redis
	CacheTTL time.Duration `yaml:"cache_ttl"`
	// MaxBodySize : предел тела PutFile и PutRelative в байтах
	MaxBodySize int64 `yaml:"max_body_size"`
}

type DiscoveryConfig struct {
	URL string `yaml:"url"`
	// PublicURL : внешний адрес движка редактора, подставляется вместо внутреннего
	PublicURL    string        `yaml:"public_url"`
	TTL          time.Duration `yaml:"ttl"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   uint          `yaml:"max_retries"`
	FallbackPath string        `yaml:"fallback_path"`
}

type AuthConfig struct {
	// Mode : local | ldap | ltpa | ldap_ltpa | hybrid
	Mode string `yaml:"mode"`
}

type LDAPConfig struct {
	URL                string        `yaml:"url"`
	BindDN             string        `yaml:"bind_dn"`
	BindPassword       string        `yaml:"bind_password"`
	BaseDN             string        `yaml:"base_dn"`
	UserFilter         string        `yaml:"user_filter"`
	AdminGroup         string        `yaml:"admin_group"`
	Timeout            time.Duration `yaml:"timeout"`
	StartTLS           bool          `yaml:"start_tls"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
}

type LTPAConfig struct {
	// Secret : общий секрет в base64, как его экспортирует сервер каталога
	Secret           string        `yaml:"secret"`
	Realm            string        `yaml:"realm"`
	CookieName       string        `yaml:"cookie_name"`
	LegacyCookieName string        `yaml:"legacy_cookie_name"`
	HeaderName       string        `yaml:"header_name"`
	UsernameStrategy string        `yaml:"username_strategy"`
	CipherOrder      []string      `yaml:"cipher_order"`
	TokenTTL         time.Duration `yaml:"token_ttl"`
	StrictSignature  bool          `yaml:"strict_signature"`
}

type AdminConfig struct {
	AdminToken string `yaml:"admin_token"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}
