package activities

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surajsub/temporal-powerbi-refresh/auth"
	"github.com/surajsub/temporal-powerbi-refresh/executors"
	"github.com/surajsub/temporal-powerbi-refresh/models"
	"github.com/surajsub/temporal-powerbi-refresh/powerbi"
	"github.com/surajsub/temporal-powerbi-refresh/powerbi/powerbitest"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/converter"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/worker"
)

type staticToken struct{}

func (staticToken) Token(context.Context) (models.AccessToken, error) {
	return models.AccessToken{Value: "tok", Type: "Bearer", ExpiresOn: time.Now().Add(time.Hour)}, nil
}

func (staticToken) String() string { return "static" }

type mapSecrets map[string]string

func (m mapSecrets) Init(map[string]string) error { return nil }

func (m mapSecrets) GetSecret(_ context.Context, key string) (string, error) {
	if v, ok := m[key]; ok {
		return v, nil
	}
	return "", errors.New("secret not found")
}

func setup(t *testing.T) (*powerbitest.Server, *Activities, *testsuite.TestActivityEnvironment, *int32) {
	t.Helper()
	srv := powerbitest.NewServer("tok")
	t.Cleanup(srv.Close)
	srv.Workspaces = []models.Workspace{{ID: "w1", Name: "Finance"}}
	srv.Datasets["w1"] = []models.Dataset{{ID: "d1", Name: "Sales Report"}}
	srv.RequestID = "r1"

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	a := &Activities{Deps: executors.Dependencies{
		Settings: models.EnvironmentSettings{"DEV": {{Authority: "https://login.microsoftonline.com/t/", SAName: "sp", ClientID: "cid"}}},
		Secrets:  mapSecrets{"sp_dev_client_token": "s"},
		Tokens: func(models.Credential, *logrus.Logger) (auth.TokenProvider, error) {
			return staticToken{}, nil
		},
		APIURL: srv.URL,
		Poll: powerbi.PollOptions{
			MaxAttempts: 4,
			Sleep:       func(context.Context, time.Duration) error { return nil },
		},
	}}

	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestActivityEnvironment()
	env.SetWorkerOptions(worker.Options{BackgroundActivityContext: WithLogger(context.Background(), logger)})
	env.RegisterActivity(a)

	var heartbeats int32
	env.SetOnActivityHeartbeatListener(func(*activity.Info, converter.EncodedValues) {
		atomic.AddInt32(&heartbeats, 1)
	})
	return srv, a, env, &heartbeats
}

func TestRefreshActivitySucceeds(t *testing.T) {
	srv, a, env, heartbeats := setup(t)
	srv.History["d1"] = [][]models.Refresh{
		{{RequestID: "r1", Status: models.StatusUnknown}},
		{{RequestID: "r1", Status: models.StatusUnknown}},
		{{RequestID: "r1", Status: models.StatusCompleted}},
	}

	val, err := env.ExecuteActivity(a.RefreshActivity, models.RefreshRequest{
		Environment: "DEV", Action: "refresh_dataset_by_names", Workspace: "Finance", Object: "Sales Report",
	})
	require.NoError(t, err)

	var res models.RefreshResult
	require.NoError(t, val.Get(&res))
	assert.Equal(t, models.StateSucceeded, res.State)
	assert.Equal(t, "r1", res.RequestID)
	assert.Equal(t, 3, res.Attempts)
	assert.Positive(t, atomic.LoadInt32(heartbeats))
}

func TestRefreshActivityFailureIsNonRetryable(t *testing.T) {
	srv, a, env, _ := setup(t)
	srv.History["d1"] = [][]models.Refresh{
		{{RequestID: "r1", Status: models.StatusFailed, ServiceExceptionJSON: `{"errorCode":"E1"}`}},
	}

	_, err := env.ExecuteActivity(a.RefreshActivity, models.RefreshRequest{
		Environment: "DEV", Action: "refresh_dataset_by_names", Workspace: "Finance", Object: "Sales Report",
	})

	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, ErrTypeRefreshFailed, appErr.Type())
	assert.True(t, appErr.NonRetryable())

	var res models.RefreshResult
	require.NoError(t, appErr.Details(&res))
	assert.Equal(t, models.StateFailed, res.State)
	assert.Equal(t, "r1", res.RequestID)
}

func TestRefreshActivityUnknownAction(t *testing.T) {
	srv, a, env, _ := setup(t)

	_, err := env.ExecuteActivity(a.RefreshActivity, models.RefreshRequest{Environment: "DEV", Action: "bogus_action"})

	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, ErrTypeUnknownAction, appErr.Type())
	assert.Empty(t, srv.Requests())
}

func TestErrorType(t *testing.T) {
	cases := map[string]error{
		ErrTypeConfigMismatch: &models.ConfigMismatchError{Requested: "DEV", Ambient: "PRD"},
		ErrTypeAuth:           &models.AuthError{Code: "invalid_client"},
		ErrTypeNotFound:       &models.NotFoundError{Kind: "workspace", Name: "x"},
		ErrTypeHTTP:           &models.HTTPError{StatusCode: 500},
		ErrTypeTimeout:        &models.TimeoutError{RequestID: "r1"},
		ErrTypeRefresh:        errors.New("boom"),
	}
	for want, err := range cases {
		assert.Equal(t, want, errorType(err))
	}
}

func TestRefreshActivityUnknownExecutor(t *testing.T) {
	_, a, env, _ := setup(t)
	a.Executor = "tableau"

	_, err := env.ExecuteActivity(a.RefreshActivity, models.RefreshRequest{Environment: "DEV", Action: "get_access_token"})
	assert.Error(t, err)
}
