// Package executors defines the executor interface and registry for drover
// agents.
package executors

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fentz26/drover/internal/models"
)

// Executor runs commands of a single type. Payload and result shapes are
// the executor's own concern.
type Executor interface {
	// Type returns the command type this executor handles.
	Type() models.CommandType

	// Execute runs the command payload and returns its result.
	Execute(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)
}

// Registry maps command types to executors.
type Registry struct {
	executors map[models.CommandType]Executor
}

// NewRegistry creates an empty executor registry.
func NewRegistry() *Registry {
	return &Registry{
		executors: make(map[models.CommandType]Executor),
	}
}

// Register adds an executor, replacing any previous one for the same type.
func (r *Registry) Register(e Executor) {
	r.executors[e.Type()] = e
}

// Get returns the executor for a command type.
func (r *Registry) Get(t models.CommandType) (Executor, bool) {
	e, ok := r.executors[t]
	return e, ok
}

// Count returns the number of registered executors.
func (r *Registry) Count() int {
	return len(r.executors)
}

// Execute dispatches a command to the executor matching its type.
func (r *Registry) Execute(ctx context.Context, cmd *models.Command) (json.RawMessage, error) {
	e, ok := r.executors[cmd.Type]
	if !ok {
		return nil, fmt.Errorf("no executor registered for type %s", cmd.Type)
	}
	return e.Execute(ctx, cmd.Payload)
}
