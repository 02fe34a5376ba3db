package workflows

import (
	"errors"
	"time"

	"github.com/surajsub/temporal-powerbi-refresh/activities"
	"github.com/surajsub/temporal-powerbi-refresh/models"
	"github.com/surajsub/temporal-powerbi-refresh/powerbi"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// StatusQuery returns the State of a running refresh workflow.
const StatusQuery = "refresh_status"

const (
	// activitySlack covers authentication, name resolution and the trigger.
	activitySlack  = 5 * time.Minute
	heartbeatSlack = time.Minute
)

// activityOptions sizes the activity timeouts to the poll bounds. Retries are
// disabled: a retried activity would trigger a second refresh.
func activityOptions(input WorkflowInput) workflow.ActivityOptions {
	interval := input.PollInterval
	if interval <= 0 {
		interval = powerbi.DefaultPollInterval
	}
	attempts := input.PollMaxAttempts
	if attempts <= 0 {
		attempts = powerbi.DefaultPollMaxAttempts
	}
	return workflow.ActivityOptions{
		StartToCloseTimeout: interval*time.Duration(attempts) + activitySlack,
		HeartbeatTimeout:    2*interval + heartbeatSlack,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	}
}

// RefreshWorkflow runs a single refresh request as one activity.
func RefreshWorkflow(ctx workflow.Context, input WorkflowInput) (*models.RefreshResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting RefreshWorkflow", "action", input.Request.Action, "environment", input.Request.Environment)

	state := models.StateIdle
	if err := workflow.SetQueryHandler(ctx, StatusQuery, func() (models.State, error) {
		return state, nil
	}); err != nil {
		return nil, err
	}

	ctx = workflow.WithActivityOptions(ctx, activityOptions(input))
	state = models.StateRunning

	var a *activities.Activities
	var result models.RefreshResult
	err := workflow.ExecuteActivity(ctx, a.RefreshActivity, input.Request).Get(ctx, &result)
	if err != nil {
		state = models.StateFailed
		var appErr *temporal.ApplicationError
		if errors.As(err, &appErr) && appErr.HasDetails() {
			if detailErr := appErr.Details(&result); detailErr == nil {
				logger.Error("Refresh failed", "type", appErr.Type(), "request_id", result.RequestID, "state", result.State)
			}
		} else {
			logger.Error("Refresh failed", "error", err)
		}
		return nil, err
	}

	state = result.State
	logger.Info("Workflow complete", "request_id", result.RequestID, "status", result.Status)
	return &result, nil
}
