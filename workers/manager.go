package workers

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/surajsub/temporal-powerbi-refresh/activities"
	"github.com/surajsub/temporal-powerbi-refresh/workflows"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

// WorkerManager runs one refresh worker per task queue.
type WorkerManager struct {
	client     client.Client
	activities *activities.Activities
	logger     *logrus.Logger

	// newWorker is swapped out in tests.
	newWorker func(c client.Client, queue string, opts worker.Options) worker.Worker

	workers     map[string]worker.Worker
	activeCount int
	mu          sync.Mutex
	workerIDs   map[string]string
}

func NewWorkerManager(c client.Client, acts *activities.Activities, logger *logrus.Logger) *WorkerManager {
	return &WorkerManager{
		client:     c,
		activities: acts,
		logger:     logger,
		newWorker:  worker.New,
		workers:    make(map[string]worker.Worker),
		workerIDs:  make(map[string]string),
	}
}

// StartWorker starts polling queueName. Starting a queue twice is a no-op.
func (m *WorkerManager) StartWorker(queueName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.workers[queueName]; exists {
		m.logger.Warnf("Worker for queue %s is already running", queueName)
		return nil
	}

	w := m.newWorker(m.client, queueName, worker.Options{
		BackgroundActivityContext: activities.WithLogger(context.Background(), m.logger),
	})
	w.RegisterWorkflow(workflows.RefreshWorkflow)
	w.RegisterActivity(m.activities)

	if err := w.Start(); err != nil {
		return fmt.Errorf("worker for queue %s failed to start: %w", queueName, err)
	}

	workerID := uuid.New().String()
	m.workerIDs[queueName] = workerID
	m.workers[queueName] = w
	m.activeCount++
	m.logger.WithFields(logrus.Fields{"worker_id": workerID, "task_queue": queueName}).Info("Started worker")
	return nil
}

func (m *WorkerManager) StopWorker(queueName string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if w, exists := m.workers[queueName]; exists {
		w.Stop()
		delete(m.workers, queueName)
		delete(m.workerIDs, queueName)
		m.activeCount--
		m.logger.Infof("Stopped worker for queue %s", queueName)
	} else {
		m.logger.Infof("Worker for queue %s is not running", queueName)
	}
}

// StopAll stops every running worker.
func (m *WorkerManager) StopAll() {
	m.mu.Lock()
	queues := make([]string, 0, len(m.workers))
	for q := range m.workers {
		queues = append(queues, q)
	}
	m.mu.Unlock()

	for _, q := range queues {
		m.StopWorker(q)
	}
}

// GetActiveWorkers returns the number of active workers.
func (m *WorkerManager) GetActiveWorkers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeCount
}

// GetWorkerID returns the worker ID for a specific task queue.
func (m *WorkerManager) GetWorkerID(queueName string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.workerIDs[queueName]
}
