package executors

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/surajsub/temporal-powerbi-refresh/providers"
)

// GetSecretsProvider builds and initialises the named secrets provider.
func GetSecretsProvider(providerType string, config map[string]string) (SecretsProvider, error) {
	var p SecretsProvider
	switch providerType {
	case "vault":
		p = &providers.VaultSecretsProvider{}
	case "env", "":
		p = &providers.EnvSecretsProvider{}
	default:
		return nil, fmt.Errorf("unsupported secrets provider %s", providerType)
	}
	if err := p.Init(config); err != nil {
		return nil, err
	}
	return p, nil
}

// NewLogger returns the JSON logrus logger executors log through.
func NewLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}
