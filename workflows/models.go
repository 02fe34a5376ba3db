package workflows

import (
	"time"

	"github.com/surajsub/temporal-powerbi-refresh/models"
)

// WorkflowInput is one refresh request plus the poll bounds the worker uses,
// from which the activity timeouts are derived.
type WorkflowInput struct {
	Request         models.RefreshRequest `json:"request" yaml:"request"`
	PollInterval    time.Duration         `json:"poll_interval,omitempty" yaml:"poll_interval,omitempty"`
	PollMaxAttempts int                   `json:"poll_max_attempts,omitempty" yaml:"poll_max_attempts,omitempty"`
}
