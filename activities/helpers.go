package activities

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/surajsub/temporal-powerbi-refresh/models"
	"go.temporal.io/sdk/temporal"
)

type loggerKey struct{}

// WithLogger attaches the logger activities should log through. Workers pass
// the result as their BackgroundActivityContext.
func WithLogger(ctx context.Context, logger *logrus.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

func GetDSLActivityLogger(ctx context.Context) *logrus.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*logrus.Logger); ok && logger != nil {
		return logger
	}
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)
	logger.Warn("Using fallback logger as no logger was passed")
	return logger
}

// Application error types reported to the workflow.
const (
	ErrTypeUnknownAction  = "UnknownActionError"
	ErrTypeConfigMismatch = "ConfigMismatchError"
	ErrTypeAuth           = "AuthError"
	ErrTypeNotFound       = "NotFoundError"
	ErrTypeHTTP           = "HTTPError"
	ErrTypeRefreshFailed  = "RefreshFailedError"
	ErrTypeTimeout        = "TimeoutError"
	ErrTypeRefresh        = "RefreshError"
)

// errorType names the failure class of err.
func errorType(err error) string {
	var (
		unknown  *models.UnknownActionError
		mismatch *models.ConfigMismatchError
		authErr  *models.AuthError
		notFound *models.NotFoundError
		httpErr  *models.HTTPError
		failed   *models.RefreshFailedError
		timeout  *models.TimeoutError
	)
	switch {
	case errors.As(err, &unknown):
		return ErrTypeUnknownAction
	case errors.As(err, &mismatch):
		return ErrTypeConfigMismatch
	case errors.As(err, &authErr):
		return ErrTypeAuth
	case errors.As(err, &notFound):
		return ErrTypeNotFound
	case errors.As(err, &httpErr):
		return ErrTypeHTTP
	case errors.As(err, &failed):
		return ErrTypeRefreshFailed
	case errors.As(err, &timeout):
		return ErrTypeTimeout
	default:
		return ErrTypeRefresh
	}
}

// toApplicationError wraps an executor failure so Temporal does not retry it.
// Re-running a refresh would trigger a second one. The partial result travels
// as the error details.
func toApplicationError(err error, result *models.RefreshResult) error {
	if result == nil {
		return temporal.NewNonRetryableApplicationError(err.Error(), errorType(err), err)
	}
	return temporal.NewNonRetryableApplicationError(err.Error(), errorType(err), err, *result)
}
