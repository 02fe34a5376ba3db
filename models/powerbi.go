package models

import (
	"encoding/json"
	"time"
)

type Workspace struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Dataset struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Dataflow listings identify objects by objectId rather than id.
type Dataflow struct {
	ObjectID string `json:"objectId"`
	Name     string `json:"name"`
}

// Refresh is one entry of a dataset's refresh history.
type Refresh struct {
	RequestID            string `json:"requestId"`
	RefreshType          string `json:"refreshType,omitempty"`
	Status               string `json:"status"`
	StartTime            string `json:"startTime,omitempty"`
	EndTime              string `json:"endTime,omitempty"`
	ServiceExceptionJSON string `json:"serviceExceptionJson,omitempty"`
}

// ErrorCode extracts errorCode from the nested service exception document.
// The second return is false when there is no parseable exception.
func (r Refresh) ErrorCode() (string, bool) {
	if r.ServiceExceptionJSON == "" {
		return "", false
	}
	var exc struct {
		ErrorCode string `json:"errorCode"`
	}
	if err := json.Unmarshal([]byte(r.ServiceExceptionJSON), &exc); err != nil {
		return "", false
	}
	return exc.ErrorCode, exc.ErrorCode != ""
}

// ListResponse is the OData envelope every listing endpoint returns.
type ListResponse[T any] struct {
	Value []T `json:"value"`
}

// AccessToken is an opaque bearer token with its validity.
type AccessToken struct {
	Value     string
	Type      string
	ExpiresOn time.Time
}
