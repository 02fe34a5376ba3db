package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultAPIURL          = "https://api.powerbi.com/v1.0/myorg"
	DefaultSettingsFile    = "powerbi_refresh_env_vars.json"
	DefaultSecretKeyFormat = "%s_%s_client_token"
	DefaultPollInterval    = 60 * time.Second
	DefaultPollMaxAttempts = 120
	DefaultHTTPTimeout     = 30 * time.Second
	DefaultTaskQueue       = "powerbi-refresh"
)

// Vault holds the parameters of the Vault secrets provider.
type Vault struct {
	Address    string
	MountPath  string
	SecretPath string
	CACertPath string
	Token      string
	RoleID     string
	SecretID   string
}

// Map renders the Vault parameters for SecretsProvider.Init.
func (v Vault) Map() map[string]string {
	return map[string]string{
		"address":     v.Address,
		"mount_path":  v.MountPath,
		"secret_path": v.SecretPath,
		"ca_cert":     v.CACertPath,
		"token":       v.Token,
		"role_id":     v.RoleID,
		"secret_id":   v.SecretID,
	}
}

type Temporal struct {
	HostPort  string
	Namespace string
	TaskQueue string
}

// Config is the process configuration. Everything is read once at start-up
// and passed down explicitly.
type Config struct {
	Environment     string
	SettingsFile    string
	APIURL          string
	TokenProvider   string
	SecretsProvider string
	SecretKeyFormat string
	PollInterval    time.Duration
	PollMaxAttempts int
	HTTPTimeout     time.Duration
	ListenAddr      string
	LogLevel        string

	Vault    Vault
	Temporal Temporal
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// A missing .env is fine; real deployments set variables directly.
	_ = godotenv.Load()

	cfg := &Config{
		Environment:     getEnv("ENV", ""),
		SettingsFile:    getEnv("POWERBI_SETTINGS_FILE", DefaultSettingsFile),
		APIURL:          strings.TrimSuffix(getEnv("POWERBI_API_URL", DefaultAPIURL), "/"),
		TokenProvider:   getEnv("POWERBI_TOKEN_PROVIDER", "oauth2"),
		SecretsProvider: getEnv("SECRETS_PROVIDER", "env"),
		SecretKeyFormat: getEnv("POWERBI_SECRET_KEY_FORMAT", DefaultSecretKeyFormat),
		ListenAddr:      getEnv("API_LISTEN_ADDR", ":8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		Vault: Vault{
			Address:    getEnv("VAULT_ADDR", "https://127.0.0.1:8200"),
			MountPath:  getEnv("VAULT_MOUNT_PATH", "secret"),
			SecretPath: getEnv("VAULT_SECRET_PATH", "powerbi"),
			CACertPath: getEnv("VAULT_CACERT", ""),
			Token:      getEnv("VAULT_TOKEN", ""),
			RoleID:     getEnv("ROLE_ID", ""),
			SecretID:   getEnv("SECRET_ID", ""),
		},
		Temporal: Temporal{
			HostPort:  getEnv("TEMPORAL_ADDRESS", "localhost:7233"),
			Namespace: getEnv("TEMPORAL_NAMESPACE", "default"),
			TaskQueue: getEnv("POWERBI_TASK_QUEUE", DefaultTaskQueue),
		},
	}

	var err error
	if cfg.PollInterval, err = getDuration("POWERBI_POLL_INTERVAL", DefaultPollInterval); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = getDuration("POWERBI_HTTP_TIMEOUT", DefaultHTTPTimeout); err != nil {
		return nil, err
	}
	if cfg.PollMaxAttempts, err = getInt("POWERBI_POLL_MAX_ATTEMPTS", DefaultPollMaxAttempts); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the enumerated and numeric settings.
func (c *Config) Validate() error {
	switch c.TokenProvider {
	case "oauth2", "azidentity":
	default:
		return fmt.Errorf("unsupported token provider %s", c.TokenProvider)
	}
	switch c.SecretsProvider {
	case "env", "vault":
	default:
		return fmt.Errorf("unsupported secrets provider %s", c.SecretsProvider)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	if c.PollMaxAttempts <= 0 {
		return fmt.Errorf("poll max attempts must be positive, got %d", c.PollMaxAttempts)
	}
	if strings.Count(c.SecretKeyFormat, "%s") != 2 {
		return fmt.Errorf("secret key format %q must contain exactly two %%s verbs", c.SecretKeyFormat)
	}
	return nil
}

// SecretKey names the client secret of a service account in an environment.
func (c *Config) SecretKey(saName, environment string) string {
	return fmt.Sprintf(c.SecretKeyFormat, saName, strings.ToLower(environment))
}

// MaxPollWait is the longest a single invocation may spend polling.
func (c *Config) MaxPollWait() time.Duration {
	return time.Duration(c.PollMaxAttempts) * c.PollInterval
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %w", key, err)
	}
	return n, nil
}
