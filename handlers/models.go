package handlers

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/surajsub/temporal-powerbi-refresh/models"
)

// Settings carries what the API needs to start refresh workflows.
type Settings struct {
	TaskQueue       string
	Namespace       string
	PollInterval    time.Duration
	PollMaxAttempts int
	Logger          *logrus.Logger
}

type SubmitResponse struct {
	WorkflowID     string `json:"workflow_id"`
	RunID          string `json:"run_id"`
	SubmissionTime string `json:"submission_time"`
}

type StatusResponse struct {
	WorkflowID string                `json:"workflow_id"`
	RunID      string                `json:"run_id"`
	Status     string                `json:"status"`
	StartTime  time.Time             `json:"start_time"`
	Duration   string                `json:"duration"`
	State      models.State          `json:"state,omitempty"`
	Result     *models.RefreshResult `json:"result,omitempty"`
}
