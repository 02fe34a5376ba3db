package workflows

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/surajsub/temporal-powerbi-refresh/activities"
	"github.com/surajsub/temporal-powerbi-refresh/models"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
)

type RefreshWorkflowSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite

	env *testsuite.TestWorkflowEnvironment
	a   *activities.Activities
}

func (s *RefreshWorkflowSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	s.a = &activities.Activities{}
	s.env.RegisterActivity(s.a)
}

func (s *RefreshWorkflowSuite) AfterTest(_, _ string) {
	s.env.AssertExpectations(s.T())
}

var request = models.RefreshRequest{Environment: "DEV", Action: "refresh_dataset_by_names", Workspace: "Finance", Object: "Sales Report"}

func (s *RefreshWorkflowSuite) TestSuccess() {
	s.env.OnActivity(s.a.RefreshActivity, mock.Anything, request).Return(&models.RefreshResult{
		State:     models.StateSucceeded,
		RequestID: "r1",
		Status:    models.StatusCompleted,
	}, nil).Once()

	s.env.ExecuteWorkflow(RefreshWorkflow, WorkflowInput{Request: request, PollInterval: time.Second, PollMaxAttempts: 3})

	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())

	var res models.RefreshResult
	s.NoError(s.env.GetWorkflowResult(&res))
	s.Equal("r1", res.RequestID)

	val, err := s.env.QueryWorkflow(StatusQuery)
	s.NoError(err)
	var state models.State
	s.NoError(val.Get(&state))
	s.Equal(models.StateSucceeded, state)
}

func (s *RefreshWorkflowSuite) TestStateWhileActivityRuns() {
	s.env.OnActivity(s.a.RefreshActivity, mock.Anything, request).After(2*time.Minute).Return(&models.RefreshResult{
		State: models.StateSucceeded,
	}, nil).Once()

	var midRun models.State
	s.env.RegisterDelayedCallback(func() {
		val, err := s.env.QueryWorkflow(StatusQuery)
		s.NoError(err)
		s.NoError(val.Get(&midRun))
	}, time.Minute)

	s.env.ExecuteWorkflow(RefreshWorkflow, WorkflowInput{Request: request})

	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
	s.Equal(models.StateRunning, midRun)
}

func (s *RefreshWorkflowSuite) TestFailureIsNotRetried() {
	s.env.OnActivity(s.a.RefreshActivity, mock.Anything, request).Return(nil,
		temporal.NewNonRetryableApplicationError("refresh r1 failed", activities.ErrTypeRefreshFailed, nil,
			models.RefreshResult{State: models.StateFailed, RequestID: "r1"})).Once()

	s.env.ExecuteWorkflow(RefreshWorkflow, WorkflowInput{Request: request})

	s.True(s.env.IsWorkflowCompleted())
	err := s.env.GetWorkflowError()
	s.Error(err)

	var appErr *temporal.ApplicationError
	s.True(errors.As(err, &appErr))
	s.Equal(activities.ErrTypeRefreshFailed, appErr.Type())

	val, err := s.env.QueryWorkflow(StatusQuery)
	s.NoError(err)
	var state models.State
	s.NoError(val.Get(&state))
	s.Equal(models.StateFailed, state)
}

func TestRefreshWorkflowSuite(t *testing.T) {
	suite.Run(t, new(RefreshWorkflowSuite))
}

func TestActivityOptions(t *testing.T) {
	opts := activityOptions(WorkflowInput{PollInterval: 10 * time.Second, PollMaxAttempts: 6})
	assert.Equal(t, time.Minute+activitySlack, opts.StartToCloseTimeout)
	assert.Equal(t, 20*time.Second+heartbeatSlack, opts.HeartbeatTimeout)
	require.NotNil(t, opts.RetryPolicy)
	assert.Equal(t, int32(1), opts.RetryPolicy.MaximumAttempts)

	defaults := activityOptions(WorkflowInput{})
	assert.Equal(t, 120*time.Minute+activitySlack, defaults.StartToCloseTimeout)
}
