package executors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/surajsub/temporal-powerbi-refresh/auth"
	"github.com/surajsub/temporal-powerbi-refresh/models"
	"github.com/surajsub/temporal-powerbi-refresh/powerbi"
)

// PowerBIExecutor runs one refresh action end to end:
// authenticate, resolve names, trigger the refresh and poll for its outcome.
type PowerBIExecutor struct {
	deps Dependencies
}

func NewPowerBIExecutor(deps Dependencies) *PowerBIExecutor {
	if deps.Logger == nil {
		deps.Logger = NewLogger("info")
	}
	if deps.Tokens == nil {
		deps.Tokens = func(cred models.Credential, logger *logrus.Logger) (auth.TokenProvider, error) {
			return auth.NewClientCredentialsProvider(cred, logger), nil
		}
	}
	if deps.SecretKey == nil {
		deps.SecretKey = func(saName, environment string) string {
			return fmt.Sprintf("%s_%s_client_token", saName, strings.ToLower(environment))
		}
	}
	return &PowerBIExecutor{deps: deps}
}

// ValidateRequest checks the request before anything touches the network.
func (p *PowerBIExecutor) ValidateRequest(req models.RefreshRequest) (models.Action, error) {
	action, err := models.ParseAction(req.Action)
	if err != nil {
		return "", err
	}
	if req.Environment == "" {
		return "", errors.New("environment is required")
	}
	if action != models.GetAccessToken && (req.Workspace == "" || req.Object == "") {
		return "", fmt.Errorf("action %s requires both a workspace and an object", action)
	}
	return action, nil
}

// Execute performs the request. The result is returned on failure too and
// records how far the invocation got.
func (p *PowerBIExecutor) Execute(ctx context.Context, req models.RefreshRequest) (*models.RefreshResult, error) {
	base := NewExecutorBase(req, p.deps.Logger)
	result := &models.RefreshResult{
		Environment: req.Environment,
		Action:      req.Action,
		State:       models.StateIdle,
	}

	action, err := p.ValidateRequest(req)
	if err != nil {
		return p.fail(base, result, "ValidateRequest", req.Action, err)
	}

	tokens, token, err := p.authenticate(ctx, base)
	if err != nil {
		return p.fail(base, result, "authenticate", req.Environment, err)
	}
	result.State = models.StateAuthenticated
	result.TokenType = token.Type
	result.TokenExpiresOn = token.ExpiresOn.Format(time.RFC3339)

	client := powerbi.New(p.deps.APIURL, auth.NewTokenSource(ctx, tokens, token), p.clientOptions(base)...)

	switch action {
	case models.GetAccessToken:
		base.Entry().WithFields(logrus.Fields{
			"token_type": token.Type,
			"expires_on": result.TokenExpiresOn,
		}).Info("Access token obtained")
	case models.RefreshDataset:
		err = p.refreshDataset(ctx, client, base, result)
	case models.RefreshDatasetByNames:
		err = p.refreshDatasetByNames(ctx, client, base, result)
	case models.RefreshDataflowByNames:
		err = p.refreshDataflowByNames(ctx, client, base, result)
	}
	if err != nil {
		return p.fail(base, result, string(action), base.Object, err)
	}

	result.State = models.StateSucceeded
	base.Entry().WithField("request_id", result.RequestID).Info("Power BI action completed")
	return result, nil
}

func (p *PowerBIExecutor) clientOptions(base *ExecutorBase) []powerbi.Option {
	opts := []powerbi.Option{powerbi.WithLogger(base.Logger)}
	switch {
	case p.deps.HTTPClient != nil:
		opts = append(opts, powerbi.WithHTTPClient(p.deps.HTTPClient))
	case p.deps.HTTPTimeout > 0:
		opts = append(opts, powerbi.WithTimeout(p.deps.HTTPTimeout))
	}
	return opts
}

// authenticate checks the environment, fetches the client secret and
// acquires an access token. The provider is returned as well so the API
// client can renew the token when it expires mid-run.
func (p *PowerBIExecutor) authenticate(ctx context.Context, base *ExecutorBase) (auth.TokenProvider, models.AccessToken, error) {
	if ambient := p.deps.AmbientEnvironment; ambient != "" && ambient != base.Environment {
		return nil, models.AccessToken{}, &models.ConfigMismatchError{Requested: base.Environment, Ambient: ambient}
	}
	base.Entry().Info("Running for environment " + base.Environment)

	setting, err := p.deps.Settings.Lookup(base.Environment)
	if err != nil {
		return nil, models.AccessToken{}, err
	}
	if p.deps.Secrets == nil {
		return nil, models.AccessToken{}, errors.New("no secrets provider configured")
	}

	secret, err := p.deps.Secrets.GetSecret(ctx, p.deps.SecretKey(setting.SAName, base.Environment))
	if err != nil {
		return nil, models.AccessToken{}, fmt.Errorf("failed to fetch client secret for %s: %w", setting.SAName, err)
	}

	tokens, err := p.deps.Tokens(models.Credential{
		Authority:    setting.Authority,
		Scopes:       setting.Scope,
		ClientID:     setting.ClientID,
		ClientSecret: secret,
	}, base.Logger)
	if err != nil {
		return nil, models.AccessToken{}, err
	}
	base.Entry().WithField("provider", tokens.String()).Info("Requesting access token")
	token, err := tokens.Token(ctx)
	return tokens, token, err
}

// refreshDataset treats workspace and object as identifiers. It verifies the
// dataset exists and triggers the refresh without waiting for it.
func (p *PowerBIExecutor) refreshDataset(ctx context.Context, client *powerbi.Client, base *ExecutorBase, result *models.RefreshResult) error {
	dataset, err := client.GetDataset(ctx, base.Workspace, base.Object)
	if err != nil {
		return err
	}
	result.WorkspaceID = base.Workspace
	result.ObjectID = dataset.ID
	result.ObjectName = dataset.Name
	result.State = models.StateNamesResolved

	return p.trigger(base, result, func() (string, error) {
		return client.RefreshDataset(ctx, result.WorkspaceID, result.ObjectID)
	})
}

func (p *PowerBIExecutor) refreshDatasetByNames(ctx context.Context, client *powerbi.Client, base *ExecutorBase, result *models.RefreshResult) error {
	workspaceID, err := resolve("workspace", base.Workspace, "FindWorkspaceID", func() (string, bool, error) {
		return client.FindWorkspaceID(ctx, base.Workspace)
	})
	if err != nil {
		return err
	}
	datasetID, err := resolve("dataset", base.Object, "FindDatasetID", func() (string, bool, error) {
		return client.FindDatasetID(ctx, workspaceID, base.Object)
	})
	if err != nil {
		return err
	}
	result.WorkspaceID = workspaceID
	result.ObjectID = datasetID
	result.ObjectName = base.Object
	result.State = models.StateNamesResolved

	err = p.trigger(base, result, func() (string, error) {
		return client.RefreshDataset(ctx, workspaceID, datasetID)
	})
	if err != nil {
		return err
	}

	result.State = models.StatePolling
	refresh, attempts, err := client.WaitForRefresh(ctx, result.RequestID, workspaceID, datasetID, p.deps.Poll)
	result.Attempts = attempts
	result.Status = refresh.Status
	result.StartTime = refresh.StartTime
	result.EndTime = refresh.EndTime
	return err
}

// refreshDataflowByNames triggers a dataflow refresh. Dataflows have no
// per-request history endpoint, so there is nothing to poll.
func (p *PowerBIExecutor) refreshDataflowByNames(ctx context.Context, client *powerbi.Client, base *ExecutorBase, result *models.RefreshResult) error {
	workspaceID, err := resolve("workspace", base.Workspace, "FindWorkspaceID", func() (string, bool, error) {
		return client.FindWorkspaceID(ctx, base.Workspace)
	})
	if err != nil {
		return err
	}
	dataflowID, err := resolve("dataflow", base.Object, "FindDataflowID", func() (string, bool, error) {
		return client.FindDataflowID(ctx, workspaceID, base.Object)
	})
	if err != nil {
		return err
	}
	result.WorkspaceID = workspaceID
	result.ObjectID = dataflowID
	result.ObjectName = base.Object
	result.State = models.StateNamesResolved

	return p.trigger(base, result, func() (string, error) {
		return client.RefreshDataflow(ctx, workspaceID, dataflowID)
	})
}

func (p *PowerBIExecutor) trigger(base *ExecutorBase, result *models.RefreshResult, post func() (string, error)) error {
	base.Entry().WithFields(logrus.Fields{
		"workspace_id": result.WorkspaceID,
		"object_id":    result.ObjectID,
	}).Info("Requesting refresh")

	requestID, err := post()
	if err != nil {
		return err
	}
	result.RequestID = requestID
	result.State = models.StateRefreshTriggered
	base.Entry().WithField("request_id", requestID).Info("Refresh registered")
	return nil
}

// resolve turns a not-found lookup into a NotFoundError.
func resolve(kind, name, function string, lookup func() (string, bool, error)) (string, error) {
	id, found, err := lookup()
	if err != nil {
		return "", err
	}
	if !found {
		return "", &models.NotFoundError{Kind: kind, Name: name, Function: function}
	}
	return id, nil
}

func (p *PowerBIExecutor) fail(base *ExecutorBase, result *models.RefreshResult, function, input string, err error) (*models.RefreshResult, error) {
	result.State = models.StateFailed
	base.Entry().WithError(err).WithFields(logrus.Fields{
		"function":   function,
		"input":      input,
		"request_id": result.RequestID,
	}).Error("An error occurred while running the Power BI refresh")
	return result, err
}
