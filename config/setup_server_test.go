package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	"wopi-gateway/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, `
server:
  public_url: https://files.example.com
jwt:
  secret_key: jwt-secret
accessToken:
  secret: token-secret
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "https://files.example.com", cfg.Server.WOPIBaseURL)
	assert.Equal(t, 24*time.Hour, cfg.AccessToken.TTL)
	assert.Equal(t, 30*time.Minute, cfg.WOPI.LockTTL)
	assert.Equal(t, config.DefaultMaxBodySize, cfg.WOPI.MaxBodySize)
	assert.Equal(t, time.Hour, cfg.Discovery.TTL)
	assert.Equal(t, config.AuthModeLocal, cfg.Auth.Mode)
	assert.Equal(t, 10*time.Second, cfg.LDAP.Timeout)
	assert.Equal(t, []string{"3des", "aes", "raw3des"}, cfg.LTPA.CipherOrder)
	assert.False(t, cfg.LTPA.StrictSignature)
}

func TestLoadConfig_DurationsAndModes(t *testing.T) {
	path := writeConfig(t, `
server:
  public_url: https://files.example.com
  wopi_base_url: http://gateway:8080
jwt:
  secret_key: jwt-secret
accessToken:
  secret: token-secret
  ttl: 12h
auth:
  mode: ldap_ltpa
ldap:
  url: ldaps://dc.example.com
  timeout: 15s
ltpa:
  secret: c2VjcmV0
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://gateway:8080", cfg.Server.WOPIBaseURL)
	assert.Equal(t, 12*time.Hour, cfg.AccessToken.TTL)
	assert.Equal(t, 15*time.Second, cfg.LDAP.Timeout)
}

func TestLoadConfig_ValidationErrors(t *testing.T) {
	path := writeConfig(t, `
server:
  public_url: https://files.example.com
jwt:
  secret_key: jwt-secret
accessToken:
  secret: token-secret
auth:
  mode: ldap
`)

	_, err := config.LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ldap.url")

	path = writeConfig(t, `
jwt:
  secret_key: jwt-secret
accessToken:
  secret: token-secret
auth:
  mode: kerberos
`)
	_, err = config.LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kerberos")
	assert.Contains(t, err.Error(), "server.public_url")
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
