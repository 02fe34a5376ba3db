package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Action is one of the fixed set of operations the refresh executor supports.
type Action string

const (
	RefreshDataset         Action = "refresh_dataset"
	RefreshDatasetByNames  Action = "refresh_dataset_by_names"
	GetAccessToken         Action = "get_access_token"
	RefreshDataflowByNames Action = "refresh_dataflow_by_names"
)

// Actions lists every supported action in a stable order.
var Actions = []Action{RefreshDataset, RefreshDatasetByNames, GetAccessToken, RefreshDataflowByNames}

// ParseAction maps a name onto a supported Action.
func ParseAction(name string) (Action, error) {
	for _, a := range Actions {
		if string(a) == name {
			return a, nil
		}
	}
	return "", &UnknownActionError{Action: name}
}

// State is the progress of a single refresh invocation.
type State string

const (
	StateIdle             State = "Idle"
	StateAuthenticated    State = "Authenticated"
	StateNamesResolved    State = "NamesResolved"
	StateRefreshTriggered State = "RefreshTriggered"
	StatePolling          State = "Polling"
	StateSucceeded        State = "Succeeded"
	StateFailed           State = "Failed"

	// StateRunning is what a workflow reports while its activity is in
	// flight. The finer states only reach the workflow with the result.
	StateRunning State = "Running"
)

// Refresh statuses reported by the refresh history endpoint.
const (
	StatusUnknown   = "Unknown"
	StatusCompleted = "Completed"
	StatusFailed    = "Failed"
)

// RefreshRequest is what the scheduler hands to the executor: the four
// constructor parameters of one refresh task.
type RefreshRequest struct {
	Environment string `json:"environment" yaml:"environment"`
	Action      string `json:"action" yaml:"action"`
	Workspace   string `json:"workspace" yaml:"workspace"`
	Object      string `json:"object" yaml:"object"`
}

// RefreshResult summarises a finished invocation.
type RefreshResult struct {
	Environment    string `json:"environment"`
	Action         string `json:"action"`
	State          State  `json:"state"`
	WorkspaceID    string `json:"workspace_id,omitempty"`
	ObjectID       string `json:"object_id,omitempty"`
	ObjectName     string `json:"object_name,omitempty"`
	RequestID      string `json:"request_id,omitempty"`
	Status         string `json:"status,omitempty"`
	StartTime      string `json:"start_time,omitempty"`
	EndTime        string `json:"end_time,omitempty"`
	Attempts       int    `json:"attempts,omitempty"`
	TokenType      string `json:"token_type,omitempty"`
	TokenExpiresOn string `json:"token_expires_on,omitempty"`
}

// Scopes accepts either a single scope string or a list of scopes.
type Scopes []string

func (s *Scopes) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*s = splitScopes(one)
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("scope must be a string or a list of strings: %w", err)
	}
	*s = many
	return nil
}

func (s *Scopes) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*s = splitScopes(node.Value)
		return nil
	case yaml.SequenceNode:
		var many []string
		if err := node.Decode(&many); err != nil {
			return err
		}
		*s = many
		return nil
	default:
		return fmt.Errorf("scope must be a string or a list of strings (line %d)", node.Line)
	}
}

func splitScopes(v string) []string {
	return strings.Fields(v)
}

// EnvironmentSetting holds the per-environment identity parameters.
type EnvironmentSetting struct {
	Authority string `json:"authority" yaml:"authority"`
	Scope     Scopes `json:"scope" yaml:"scope"`
	SAName    string `json:"sa_name" yaml:"sa_name"`
	ClientID  string `json:"client_id" yaml:"client_id"`
}

// EnvironmentSettings is the settings file: environment name to settings list.
// Only the first entry of each list is used.
type EnvironmentSettings map[string][]EnvironmentSetting

// Lookup returns the first settings entry for env.
func (e EnvironmentSettings) Lookup(env string) (EnvironmentSetting, error) {
	list, ok := e[env]
	if !ok {
		return EnvironmentSetting{}, &ConfigMismatchError{Requested: env, Reason: "environment not present in settings file"}
	}
	if len(list) == 0 {
		return EnvironmentSetting{}, &ConfigMismatchError{Requested: env, Reason: "environment has no settings entries"}
	}
	return list[0], nil
}

// Credential is what a token provider needs to run the client-credentials grant.
type Credential struct {
	Authority    string
	Scopes       []string
	ClientID     string
	ClientSecret string
}

// String never includes the secret.
func (c Credential) String() string {
	return fmt.Sprintf("Credential(authority=%s, client=%s)", c.Authority, c.ClientID)
}
