package powerbi

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/surajsub/temporal-powerbi-refresh/models"
)

// FindWorkspaceID resolves a workspace name. found is false when no workspace
// has that name; err is reserved for transport and API failures.
func (c *Client) FindWorkspaceID(ctx context.Context, name string) (id string, found bool, err error) {
	workspaces, err := c.ListWorkspaces(ctx)
	if err != nil {
		return "", false, err
	}
	id, found = firstMatch(c.logger, "workspace", name, workspaces,
		func(w models.Workspace) (string, string) { return w.Name, w.ID })
	return id, found, nil
}

func (c *Client) FindDatasetID(ctx context.Context, workspaceID, name string) (id string, found bool, err error) {
	datasets, err := c.ListDatasets(ctx, workspaceID)
	if err != nil {
		return "", false, err
	}
	id, found = firstMatch(c.logger, "dataset", name, datasets,
		func(d models.Dataset) (string, string) { return d.Name, d.ID })
	return id, found, nil
}

func (c *Client) FindDataflowID(ctx context.Context, workspaceID, name string) (id string, found bool, err error) {
	dataflows, err := c.ListDataflows(ctx, workspaceID)
	if err != nil {
		return "", false, err
	}
	id, found = firstMatch(c.logger, "dataflow", name, dataflows,
		func(d models.Dataflow) (string, string) { return d.Name, d.ObjectID })
	return id, found, nil
}

// firstMatch scans items in listing order and returns the id of the first
// exact name match. Later duplicates are reported but ignored.
func firstMatch[T any](logger *logrus.Logger, kind, name string, items []T, fields func(T) (name, id string)) (string, bool) {
	var (
		id      string
		matches int
	)
	for _, item := range items {
		n, i := fields(item)
		if n != name {
			continue
		}
		if matches == 0 {
			id = i
		}
		matches++
	}
	if matches == 0 {
		return "", false
	}

	entry := logger.WithFields(logrus.Fields{"kind": kind, "name": name, "id": id})
	if matches > 1 {
		entry.WithField("matches", matches).Warn("Name is not unique, using the first match")
	} else {
		entry.Info("Resolved name to id")
	}
	return id, true
}
