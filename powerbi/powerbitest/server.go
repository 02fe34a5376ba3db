// Package powerbitest provides an in-memory Power BI REST API for tests.
package powerbitest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/surajsub/temporal-powerbi-refresh/models"
)

// Server fakes the subset of the Power BI API the refresh executor uses.
// Paths are served relative to the server root.
type Server struct {
	*httptest.Server

	token string

	Workspaces []models.Workspace
	Datasets   map[string][]models.Dataset  // by workspace id
	Dataflows  map[string][]models.Dataflow // by workspace id

	// History holds successive refresh-history responses per dataset id;
	// once exhausted the last response keeps being served.
	History map[string][][]models.Refresh

	// RequestID is returned in the RequestId header of refresh POSTs.
	RequestID string

	// FailPaths maps a request path to a forced status code.
	FailPaths map[string]int

	mu           sync.Mutex
	requests     []string
	historyCalls map[string]int
	bodies       map[string]string
}

func NewServer(token string) *Server {
	s := &Server{
		token:        token,
		Datasets:     map[string][]models.Dataset{},
		Dataflows:    map[string][]models.Dataflow{},
		History:      map[string][][]models.Refresh{},
		FailPaths:    map[string]int{},
		historyCalls: map[string]int{},
		bodies:       map[string]string{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// SetToken changes the bearer token the server accepts. Requests carrying
// the previous token are rejected with 401 from then on.
func (s *Server) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Requests returns "METHOD /path?query" for every request received.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// HistoryCalls is the number of refresh-history reads for a dataset.
func (s *Server) HistoryCalls(datasetID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.historyCalls[datasetID]
}

// Body returns the request body last posted to path.
func (s *Server) Body(path string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bodies[path]
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	s.mu.Lock()
	s.requests = append(s.requests, r.Method+" "+target)
	token := s.token
	s.mu.Unlock()

	if r.Header.Get("Authorization") != "Bearer "+token {
		http.Error(w, `{"error":{"code":"TokenExpired"}}`, http.StatusUnauthorized)
		return
	}
	if code, ok := s.FailPaths[r.URL.Path]; ok {
		http.Error(w, `{"error":{"code":"Forced"}}`, code)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case r.Method == http.MethodGet && len(parts) == 1 && parts[0] == "groups":
		writeList(w, s.Workspaces)
	case r.Method == http.MethodGet && len(parts) == 3 && parts[2] == "datasets":
		writeList(w, s.Datasets[parts[1]])
	case r.Method == http.MethodGet && len(parts) == 3 && parts[2] == "dataflows":
		writeList(w, s.Dataflows[parts[1]])
	case r.Method == http.MethodGet && len(parts) == 4 && parts[2] == "datasets":
		for _, d := range s.Datasets[parts[1]] {
			if d.ID == parts[3] {
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(d)
				return
			}
		}
		http.Error(w, `{"error":{"code":"ItemNotFound"}}`, http.StatusNotFound)
	case r.Method == http.MethodGet && len(parts) == 5 && parts[4] == "refreshes":
		writeList(w, s.nextHistory(parts[3]))
	case r.Method == http.MethodPost && len(parts) == 5 && parts[4] == "refreshes":
		body, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.bodies[r.URL.Path] = string(body)
		s.mu.Unlock()
		if s.RequestID != "" {
			w.Header().Set("RequestId", s.RequestID)
		}
		w.WriteHeader(http.StatusAccepted)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) nextHistory(datasetID string) []models.Refresh {
	s.mu.Lock()
	defer s.mu.Unlock()
	responses := s.History[datasetID]
	i := s.historyCalls[datasetID]
	s.historyCalls[datasetID]++
	if len(responses) == 0 {
		return nil
	}
	if i >= len(responses) {
		i = len(responses) - 1
	}
	return responses[i]
}

func writeList[T any](w http.ResponseWriter, items []T) {
	if items == nil {
		items = []T{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.ListResponse[T]{Value: items})
}
