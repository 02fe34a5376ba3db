package executors

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/surajsub/temporal-powerbi-refresh/auth"
	"github.com/surajsub/temporal-powerbi-refresh/models"
	"github.com/surajsub/temporal-powerbi-refresh/powerbi"
)

type Executor interface {
	Execute(ctx context.Context, req models.RefreshRequest) (*models.RefreshResult, error)
	ValidateRequest(req models.RefreshRequest) (models.Action, error)
}

// TokenProviderFactory builds the token provider for one credential.
type TokenProviderFactory func(cred models.Credential, logger *logrus.Logger) (auth.TokenProvider, error)

// Dependencies is everything an executor needs from its host. Nothing is read
// from process-wide state.
type Dependencies struct {
	// AmbientEnvironment is the environment this process serves. Empty
	// disables the match check.
	AmbientEnvironment string
	Settings           models.EnvironmentSettings
	Secrets            SecretsProvider
	SecretKey          func(saName, environment string) string
	Tokens             TokenProviderFactory
	APIURL             string
	HTTPClient         *http.Client
	HTTPTimeout        time.Duration
	Poll               powerbi.PollOptions
	Logger             *logrus.Logger
}

type ExecutorBase struct {
	Environment string
	Action      string
	Workspace   string
	Object      string
	Logger      *logrus.Logger
}

func NewExecutorBase(req models.RefreshRequest, logger *logrus.Logger) *ExecutorBase {
	if logger == nil {
		logger = NewLogger("info")
	}
	return &ExecutorBase{
		Environment: req.Environment,
		Action:      req.Action,
		Workspace:   req.Workspace,
		Object:      req.Object,
		Logger:      logger,
	}
}

// Entry returns a log entry carrying the invocation parameters.
func (e *ExecutorBase) Entry() *logrus.Entry {
	return e.Logger.WithFields(logrus.Fields{
		"environment": e.Environment,
		"action":      e.Action,
		"workspace":   e.Workspace,
		"object":      e.Object,
	})
}
