package activities

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/surajsub/temporal-powerbi-refresh/executors"
	"github.com/surajsub/temporal-powerbi-refresh/models"
	"go.temporal.io/sdk/activity"
)

// Activities holds what the refresh activity needs from the worker process.
type Activities struct {
	Deps     executors.Dependencies
	Executor string
}

// RefreshActivity runs one refresh request through the registered executor,
// recording a heartbeat on every status read.
func (a *Activities) RefreshActivity(ctx context.Context, req models.RefreshRequest) (*models.RefreshResult, error) {
	logger := GetDSLActivityLogger(ctx)
	info := activity.GetInfo(ctx)
	entry := logger.WithFields(logrus.Fields{
		"workflow_id": info.WorkflowExecution.ID,
		"activity_id": info.ActivityID,
		"action":      req.Action,
	})
	entry.Info("Running refresh activity")

	activity.RecordHeartbeat(ctx, string(models.StateIdle))

	deps := a.Deps
	deps.Logger = logger
	deps.Poll.OnAttempt = func(attempt int, status string) {
		activity.RecordHeartbeat(ctx, attempt)
		entry.WithFields(logrus.Fields{"attempt": attempt, "status": status}).Debug("Refresh status read")
	}

	name := a.Executor
	if name == "" {
		name = executors.POWERBI
	}
	executor, err := executors.GetExecutor(name, deps)
	if err != nil {
		entry.WithError(err).Error("failed to initialize executor")
		return nil, err
	}

	result, err := executor.Execute(ctx, req)
	if err != nil {
		entry.WithError(err).Error("Refresh activity failed")
		return nil, toApplicationError(err, result)
	}
	entry.WithField("request_id", result.RequestID).Info("Refresh activity completed")
	return result, nil
}
