package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
)

const (
	reconnectDelay  = 5 * time.Second
	healthInterval  = 10 * time.Second
	healthCheckWait = 3 * time.Second
)

var (
	tClient client.Client
	mu      sync.RWMutex
)

// StartTemporalClient dials Temporal in the background and redials whenever
// the health check fails. It stops when ctx is done.
func StartTemporalClient(ctx context.Context, opts client.Options, logger *logrus.Logger) {
	go func() {
		for {
			c, err := client.Dial(opts)
			if err != nil {
				logger.WithError(err).Warnf("Temporal unavailable, retrying in %s", reconnectDelay)
				if !wait(ctx, reconnectDelay) {
					return
				}
				continue
			}
			replaceClient(c)
			logger.WithField("host_port", opts.HostPort).Info("Connected to Temporal")

			for {
				if !wait(ctx, healthInterval) {
					replaceClient(nil)
					return
				}
				if err := healthCheck(ctx, c); err != nil {
					logger.WithError(err).Warn("Temporal connection unhealthy, reconnecting")
					break
				}
			}
		}
	}()
}

func wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// GetClient returns the current Temporal client or nil
func GetClient() client.Client {
	mu.RLock()
	defer mu.RUnlock()
	return tClient
}

// replaceClient safely swaps the current Temporal client
func replaceClient(c client.Client) {
	mu.Lock()
	defer mu.Unlock()
	if tClient != nil {
		tClient.Close()
	}
	tClient = c
}

// healthCheck pings Temporal for connection health
func healthCheck(ctx context.Context, c client.Client) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckWait)
	defer cancel()
	_, err := c.WorkflowService().GetSystemInfo(ctx, &workflowservice.GetSystemInfoRequest{})
	return err
}
