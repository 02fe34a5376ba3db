package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/surajsub/temporal-powerbi-refresh/models"
	"github.com/surajsub/temporal-powerbi-refresh/workflows"
	commonpb "go.temporal.io/api/common/v1"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/history/v1"
	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
	"gopkg.in/yaml.v2"
)

const describeTimeout = 3 * time.Second

func logger(settings Settings) *logrus.Logger {
	if settings.Logger != nil {
		return settings.Logger
	}
	return logrus.StandardLogger()
}

// SubmitRefreshHandler starts a RefreshWorkflow for the posted request. The
// body is JSON or YAML depending on the Content-Type.
func SubmitRefreshHandler(c echo.Context, temporalClient client.Client, settings Settings) error {
	log := logger(settings)

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		log.WithError(err).Error("Failed to read body")
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "cannot read body"})
	}

	contentType, _, _ := mime.ParseMediaType(c.Request().Header.Get("Content-Type"))
	var req models.RefreshRequest
	switch contentType {
	case "application/json":
		err = json.Unmarshal(body, &req)
	case "application/x-yaml", "text/yaml", "application/yaml":
		err = yaml.Unmarshal(body, &req)
	default:
		log.Warnf("Unsupported Content-Type: %s", contentType)
		return c.JSON(http.StatusUnsupportedMediaType, map[string]string{"error": "unsupported content type"})
	}
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	requiredFields := []string{"Environment", "Action"}
	if req.Action != string(models.GetAccessToken) {
		requiredFields = append(requiredFields, "Workspace", "Object")
	}
	if missing := checkMissingFields(req, requiredFields); len(missing) > 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": fmt.Sprintf("missing required fields: %v", missing)})
	}
	if _, err := models.ParseAction(req.Action); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error(), "supported_actions": models.Actions})
	}

	if temporalClient == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Temporal client not available"})
	}

	workflowOptions := client.StartWorkflowOptions{
		ID:        "powerbi-" + strings.ToLower(req.Environment) + "-" + uuid.NewString(),
		TaskQueue: settings.TaskQueue,
	}
	input := workflows.WorkflowInput{
		Request:         req,
		PollInterval:    settings.PollInterval,
		PollMaxAttempts: settings.PollMaxAttempts,
	}

	we, err := temporalClient.ExecuteWorkflow(c.Request().Context(), workflowOptions, workflows.RefreshWorkflow, input)
	if err != nil {
		log.WithError(err).Error("Failed to start workflow")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	log.WithFields(logrus.Fields{
		"workflow_id": we.GetID(),
		"run_id":      we.GetRunID(),
		"action":      req.Action,
	}).Info("Workflow started successfully")

	return c.JSON(http.StatusAccepted, SubmitResponse{
		WorkflowID:     we.GetID(),
		RunID:          we.GetRunID(),
		SubmissionTime: time.Now().Format(time.RFC3339),
	})
}

// GetWorkflowStatusHandler describes a refresh workflow. Running workflows
// report their State, completed ones their result.
func GetWorkflowStatusHandler(c echo.Context, temporalClient client.Client, settings Settings) error {
	log := logger(settings)
	workflowID := c.Param("workflow_id")
	if workflowID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Missing workflow_id"})
	}
	runID := c.QueryParam("run_id")

	ctx, cancel := context.WithTimeout(c.Request().Context(), describeTimeout)
	defer cancel()

	resp, err := temporalClient.DescribeWorkflowExecution(ctx, workflowID, runID)
	if err != nil {
		log.WithError(err).Errorf("Error describing workflow [%s]", workflowID)
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error":       "Unable to retrieve workflow status",
			"workflow_id": workflowID,
			"run_id":      runID,
		})
	}

	info := resp.GetWorkflowExecutionInfo()
	startTime := info.GetStartTime().AsTime()
	duration := info.GetCloseTime().AsTime().Sub(startTime)
	if info.GetStatus() == enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING {
		duration = time.Since(startTime)
	}

	status := StatusResponse{
		WorkflowID: workflowID,
		RunID:      info.GetExecution().GetRunId(),
		Status:     enumspb.WorkflowExecutionStatus_name[int32(info.GetStatus())],
		StartTime:  startTime,
		Duration:   duration.String(),
	}

	switch info.GetStatus() {
	case enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING:
		entry := log.WithFields(logrus.Fields{"workflow_id": workflowID, "run_id": status.RunID})
		val, err := temporalClient.QueryWorkflow(ctx, workflowID, status.RunID, workflows.StatusQuery)
		if err != nil {
			entry.WithError(err).Warn("Failed to query workflow state")
			break
		}
		if err := val.Get(&status.State); err != nil {
			entry.WithError(err).Warn("Failed to decode workflow state")
		}
	case enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED:
		var result models.RefreshResult
		if err := temporalClient.GetWorkflow(ctx, workflowID, status.RunID).Get(ctx, &result); err == nil {
			status.State = result.State
			status.Result = &result
		}
	case enumspb.WORKFLOW_EXECUTION_STATUS_FAILED:
		status.State = models.StateFailed
	}

	return c.JSON(http.StatusOK, status)
}

func GetWorkflowActivityHistoryHandler(c echo.Context, temporalClient client.Client, settings Settings) error {
	workflowID := c.Param("workflow_id")
	if workflowID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "workflow_id required"})
	}

	// Optional: Get run_id as query param
	runID := c.QueryParam("run_id")

	namespace := settings.Namespace
	if namespace == "" {
		namespace = client.DefaultNamespace
	}

	resp, err := temporalClient.WorkflowService().GetWorkflowExecutionHistory(c.Request().Context(), &workflowservice.GetWorkflowExecutionHistoryRequest{
		Namespace: namespace,
		Execution: &commonpb.WorkflowExecution{
			WorkflowId: workflowID,
			RunId:      runID,
		},
	})
	if err != nil {
		logger(settings).WithError(err).Error("Failed to fetch history")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	activityEvents := []*history.HistoryEvent{}
	for _, event := range resp.GetHistory().GetEvents() {
		switch event.GetEventType() {
		case enumspb.EVENT_TYPE_ACTIVITY_TASK_SCHEDULED,
			enumspb.EVENT_TYPE_ACTIVITY_TASK_STARTED,
			enumspb.EVENT_TYPE_ACTIVITY_TASK_COMPLETED,
			enumspb.EVENT_TYPE_ACTIVITY_TASK_FAILED,
			enumspb.EVENT_TYPE_ACTIVITY_TASK_TIMED_OUT,
			enumspb.EVENT_TYPE_ACTIVITY_TASK_CANCELED:
			activityEvents = append(activityEvents, event)
		}
	}

	return c.JSON(http.StatusOK, activityEvents)
}

func checkMissingFields(input any, requiredFields []string) []string {
	var missing []string
	v := reflect.ValueOf(input)

	for _, field := range requiredFields {
		if val := v.FieldByName(field); val.IsValid() && val.Kind() == reflect.String && val.String() == "" {
			missing = append(missing, field)
		}
	}
	return missing
}

// CustomHTTPErrorHandler keeps echo's own status codes and hides everything
// else behind a request ID.
func CustomHTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	requestID, _ := c.Get("requestID").(string)
	if requestID == "" {
		requestID = uuid.New().String()
	}

	if he, ok := err.(*echo.HTTPError); ok {
		c.JSON(he.Code, map[string]any{"error": he.Message, "request_id": requestID})
		return
	}

	c.Logger().Errorf("Request ID: %s | Internal error: %v", requestID, err)
	c.JSON(http.StatusInternalServerError, map[string]any{
		"error":      "Internal server error. Please contact support with the request ID.",
		"request_id": requestID,
	})
}

func RequestIDMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := uuid.New().String()
		c.Set("requestID", requestID)
		c.Response().Header().Set("X-Request-ID", requestID)
		return next(c)
	}
}
