package executors

import (
	"fmt"

	"github.com/surajsub/temporal-powerbi-refresh/models"
)

const POWERBI = "powerbi"

type ExecutorConstructor func(deps Dependencies) Executor

// Registry to store executor constructors and supported actions
var registry = make(map[string]ExecutorConstructor)
var supportedActions = make(map[string][]models.Action)

// RegisterExecutor registers an executor and its supported actions
func RegisterExecutor(name string, constructor ExecutorConstructor, actions []models.Action) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("Executor %s is already registered", name))
	}
	registry[name] = constructor
	supportedActions[name] = actions
}

// GetExecutor retrieves an executor from the registry
func GetExecutor(name string, deps Dependencies) (Executor, error) {
	constructor, exists := registry[name]
	if !exists {
		return nil, fmt.Errorf("executor %s not found", name)
	}
	return constructor(deps), nil
}

// SupportedActions lists the actions a registered executor accepts.
func SupportedActions(name string) []models.Action {
	return supportedActions[name]
}

func init() {
	RegisterExecutor(POWERBI, func(deps Dependencies) Executor {
		return NewPowerBIExecutor(deps)
	}, models.Actions)
}
