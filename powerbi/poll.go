package powerbi

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/surajsub/temporal-powerbi-refresh/models"
)

const (
	DefaultPollInterval    = 60 * time.Second
	DefaultPollMaxAttempts = 120
)

// PollOptions bound the wait for a refresh to leave the Unknown status.
type PollOptions struct {
	Interval    time.Duration
	MaxAttempts int

	// Sleep waits between attempts. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error

	// OnAttempt is called after every status read, e.g. to heartbeat.
	OnAttempt func(attempt int, status string)
}

func (o PollOptions) withDefaults() PollOptions {
	if o.Interval <= 0 {
		o.Interval = DefaultPollInterval
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultPollMaxAttempts
	}
	if o.Sleep == nil {
		o.Sleep = sleepContext
	}
	return o
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RefreshStatus reads the history of a dataset and returns the entry for
// requestID. A request that is not listed yet is reported as Unknown.
func (c *Client) RefreshStatus(ctx context.Context, requestID, workspaceID, datasetID string) (models.Refresh, error) {
	history, err := c.RefreshHistory(ctx, workspaceID, datasetID)
	if err != nil {
		return models.Refresh{}, err
	}
	for _, r := range history {
		if r.RequestID == requestID {
			if r.Status == "" {
				r.Status = models.StatusUnknown
			}
			return r, nil
		}
	}
	return models.Refresh{RequestID: requestID, Status: models.StatusUnknown}, nil
}

// WaitForRefresh polls until the refresh leaves Unknown or MaxAttempts reads
// have been made. It returns the terminal entry and the number of reads.
// A Failed refresh is returned together with a *models.RefreshFailedError.
func (c *Client) WaitForRefresh(ctx context.Context, requestID, workspaceID, datasetID string, opts PollOptions) (models.Refresh, int, error) {
	opts = opts.withDefaults()
	entry := c.logger.WithFields(logrus.Fields{"request_id": requestID, "workspace_id": workspaceID, "dataset_id": datasetID})
	entry.Info("Fetching refresh result to see whether it succeeded")

	var waited time.Duration
	for attempt := 1; ; attempt++ {
		refresh, err := c.RefreshStatus(ctx, requestID, workspaceID, datasetID)
		if err != nil {
			return models.Refresh{}, attempt, err
		}
		if opts.OnAttempt != nil {
			opts.OnAttempt(attempt, refresh.Status)
		}

		if refresh.Status != models.StatusUnknown {
			entry.WithFields(logrus.Fields{
				"status":     refresh.Status,
				"start_time": refresh.StartTime,
				"end_time":   refresh.EndTime,
				"attempts":   attempt,
			}).Info("Refresh finished")

			if refresh.Status == models.StatusFailed {
				code, ok := refresh.ErrorCode()
				if !ok {
					entry.WithField("service_exception_json", refresh.ServiceExceptionJSON).
						Warn("Failed refresh carries no readable error code")
				}
				return refresh, attempt, &models.RefreshFailedError{RequestID: requestID, Status: refresh.Status, ErrorCode: code}
			}
			return refresh, attempt, nil
		}

		if attempt >= opts.MaxAttempts {
			return refresh, attempt, &models.TimeoutError{RequestID: requestID, Attempts: attempt, Waited: waited}
		}

		entry.WithFields(logrus.Fields{"attempt": attempt, "retry_in": opts.Interval.String()}).
			Info("Refresh status still unknown, probably in progress")
		if err := opts.Sleep(ctx, opts.Interval); err != nil {
			return refresh, attempt, err
		}
		waited += opts.Interval
	}
}
