package cli

import (
	"io"

	"github.com/sirupsen/logrus"
	"github.com/surajsub/temporal-powerbi-refresh/auth"
	"github.com/surajsub/temporal-powerbi-refresh/config"
	"github.com/surajsub/temporal-powerbi-refresh/executors"
	"github.com/surajsub/temporal-powerbi-refresh/models"
	"github.com/surajsub/temporal-powerbi-refresh/powerbi"
)

// buildDependencies turns the process configuration into executor
// dependencies. Logs go to logOut.
func buildDependencies(cfg *config.Config, logOut io.Writer) (executors.Dependencies, error) {
	logger := executors.NewLogger(cfg.LogLevel)
	logger.SetOutput(logOut)

	settings, err := config.LoadSettings(cfg.SettingsFile)
	if err != nil {
		return executors.Dependencies{}, err
	}

	secrets, err := executors.GetSecretsProvider(cfg.SecretsProvider, cfg.Vault.Map())
	if err != nil {
		return executors.Dependencies{}, err
	}

	return executors.Dependencies{
		AmbientEnvironment: cfg.Environment,
		Settings:           settings,
		Secrets:            secrets,
		SecretKey:          cfg.SecretKey,
		Tokens: func(cred models.Credential, logger *logrus.Logger) (auth.TokenProvider, error) {
			return auth.NewTokenProvider(cfg.TokenProvider, cred, logger)
		},
		APIURL:      cfg.APIURL,
		HTTPTimeout: cfg.HTTPTimeout,
		Poll: powerbi.PollOptions{
			Interval:    cfg.PollInterval,
			MaxAttempts: cfg.PollMaxAttempts,
		},
		Logger: logger,
	}, nil
}
