package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "DEV")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "DEV", cfg.Environment)
	assert.Equal(t, DefaultAPIURL, cfg.APIURL)
	assert.Equal(t, DefaultPollInterval, cfg.PollInterval)
	assert.Equal(t, DefaultPollMaxAttempts, cfg.PollMaxAttempts)
	assert.Equal(t, "oauth2", cfg.TokenProvider)
	assert.Equal(t, "env", cfg.SecretsProvider)
	assert.Equal(t, DefaultTaskQueue, cfg.Temporal.TaskQueue)
	assert.Equal(t, 120*time.Minute, cfg.MaxPollWait())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("POWERBI_API_URL", "http://localhost:9999/v1.0/myorg/")
	t.Setenv("POWERBI_POLL_INTERVAL", "5s")
	t.Setenv("POWERBI_POLL_MAX_ATTEMPTS", "3")
	t.Setenv("SECRETS_PROVIDER", "vault")
	t.Setenv("POWERBI_TOKEN_PROVIDER", "azidentity")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9999/v1.0/myorg", cfg.APIURL)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 3, cfg.PollMaxAttempts)
	assert.Equal(t, "vault", cfg.SecretsProvider)
	assert.Equal(t, "azidentity", cfg.TokenProvider)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"POWERBI_POLL_INTERVAL":     "soon",
		"POWERBI_POLL_MAX_ATTEMPTS": "0",
		"SECRETS_PROVIDER":          "keychain",
		"POWERBI_TOKEN_PROVIDER":    "saml",
		"POWERBI_SECRET_KEY_FORMAT": "%s_client_token",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestSecretKey(t *testing.T) {
	cfg := &Config{SecretKeyFormat: DefaultSecretKeyFormat}
	assert.Equal(t, "powerbi_sp-bdmintpbi_dev_client_token", cfg.SecretKey("powerbi_sp-bdmintpbi", "DEV"))
}

func TestLoadSettingsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	body := `{"DEV":[{"authority":"https://login.microsoftonline.com/tenant/","scope":["https://analysis.windows.net/powerbi/api/.default"],"sa_name":"sp-dev","client_id":"cid"}]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	settings, err := LoadSettings(path)
	require.NoError(t, err)

	dev, err := settings.Lookup("DEV")
	require.NoError(t, err)
	assert.Equal(t, "cid", dev.ClientID)
	assert.Equal(t, "sp-dev", dev.SAName)
	assert.Equal(t, []string{"https://analysis.windows.net/powerbi/api/.default"}, []string(dev.Scope))
}

func TestLoadSettingsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	body := `
PRD:
  - authority: https://login.microsoftonline.com/tenant/
    scope: https://analysis.windows.net/powerbi/api/.default
    sa_name: sp-prd
    client_id: cid-prd
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	settings, err := LoadSettings(path)
	require.NoError(t, err)

	prd, err := settings.Lookup("PRD")
	require.NoError(t, err)
	assert.Equal(t, "cid-prd", prd.ClientID)
	assert.Len(t, prd.Scope, 1)
}

func TestLoadSettingsErrors(t *testing.T) {
	_, err := LoadSettings(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
	_, err = LoadSettings(path)
	assert.Error(t, err)
}
