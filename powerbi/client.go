package powerbi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/surajsub/temporal-powerbi-refresh/models"
	"golang.org/x/oauth2"
)

const (
	DefaultBaseURL = "https://api.powerbi.com/v1.0/myorg"

	defaultTimeout = 30 * time.Second

	// RequestIDHeader carries the id of an accepted refresh.
	RequestIDHeader = "RequestId"

	workspacesEndpoint      = "/groups"
	datasetsEndpoint        = "/groups/%s/datasets"
	datasetEndpoint         = "/groups/%s/datasets/%s"
	dataflowsEndpoint       = "/groups/%s/dataflows"
	datasetRefreshEndpoint  = "/groups/%s/datasets/%s/refreshes"
	dataflowRefreshEndpoint = "/groups/%s/dataflows/%s/refreshes?processType=default"
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the http.Client whose transport carries the
// authorized requests. The client itself is never modified.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.base = hc
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

func WithLogger(l *logrus.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// StaticToken is a token source that always returns the same bearer token.
func StaticToken(token string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
}

// Client talks to the Power BI REST API. Every request is authorized by the
// token source, which is asked for a fresh token once the current one expires.
type Client struct {
	baseURL    string
	base       *http.Client
	timeout    time.Duration
	httpClient *http.Client
	logger     *logrus.Logger
}

func New(baseURL string, tokens oauth2.TokenSource, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		base:    &http.Client{Timeout: defaultTimeout},
		logger:  logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.base == nil {
		c.base = &http.Client{Timeout: defaultTimeout}
	}

	if tokens == nil {
		hc := *c.base
		c.httpClient = &hc
	} else {
		c.httpClient = oauth2.NewClient(context.WithValue(context.Background(), oauth2.HTTPClient, c.base), tokens)
		c.httpClient.Timeout = c.base.Timeout
	}
	if c.timeout > 0 {
		c.httpClient.Timeout = c.timeout
	}
	return c
}

func (c *Client) ListWorkspaces(ctx context.Context) ([]models.Workspace, error) {
	var out models.ListResponse[models.Workspace]
	if _, err := c.do(ctx, http.MethodGet, workspacesEndpoint, nil, &out); err != nil {
		return nil, err
	}
	return out.Value, nil
}

func (c *Client) ListDatasets(ctx context.Context, workspaceID string) ([]models.Dataset, error) {
	var out models.ListResponse[models.Dataset]
	path := fmt.Sprintf(datasetsEndpoint, url.PathEscape(workspaceID))
	if _, err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Value, nil
}

func (c *Client) ListDataflows(ctx context.Context, workspaceID string) ([]models.Dataflow, error) {
	var out models.ListResponse[models.Dataflow]
	path := fmt.Sprintf(dataflowsEndpoint, url.PathEscape(workspaceID))
	if _, err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Value, nil
}

// GetDataset fetches a single dataset by id.
func (c *Client) GetDataset(ctx context.Context, workspaceID, datasetID string) (*models.Dataset, error) {
	var out models.Dataset
	path := fmt.Sprintf(datasetEndpoint, url.PathEscape(workspaceID), url.PathEscape(datasetID))
	if _, err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RefreshDataset starts a dataset refresh and returns its request id.
func (c *Client) RefreshDataset(ctx context.Context, workspaceID, datasetID string) (string, error) {
	path := fmt.Sprintf(datasetRefreshEndpoint, url.PathEscape(workspaceID), url.PathEscape(datasetID))
	header, err := c.do(ctx, http.MethodPost, path, nil, nil)
	if err != nil {
		return "", err
	}
	return requestID(header)
}

// RefreshDataflow starts a dataflow refresh with default processing.
func (c *Client) RefreshDataflow(ctx context.Context, workspaceID, dataflowID string) (string, error) {
	path := fmt.Sprintf(dataflowRefreshEndpoint, url.PathEscape(workspaceID), url.PathEscape(dataflowID))
	body := map[string]string{"refreshRequest": "y"}
	header, err := c.do(ctx, http.MethodPost, path, body, nil)
	if err != nil {
		return "", err
	}
	return requestID(header)
}

// RefreshHistory lists the refreshes of a dataset, most recent first.
func (c *Client) RefreshHistory(ctx context.Context, workspaceID, datasetID string) ([]models.Refresh, error) {
	var out models.ListResponse[models.Refresh]
	path := fmt.Sprintf(datasetRefreshEndpoint, url.PathEscape(workspaceID), url.PathEscape(datasetID))
	if _, err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Value, nil
}

func requestID(h http.Header) (string, error) {
	id := h.Get(RequestIDHeader)
	if id == "" {
		return "", models.ErrMissingRequestID
	}
	return id, nil
}

// do sends one request. A non-nil payload is sent as JSON, a non-nil out is
// decoded from the response body. The response headers are returned.
func (c *Client) do(ctx context.Context, method, path string, payload, out any) (http.Header, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	fullURL := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.WithFields(logrus.Fields{"method": method, "url": fullURL}).Debug("Calling Power BI API")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: HTTP request failed: %w", method, fullURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &models.HTTPError{
			Method:     method,
			URL:        fullURL,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return nil, fmt.Errorf("failed to unmarshal response body from %s: %w", fullURL, err)
		}
	}
	return resp.Header, nil
}
