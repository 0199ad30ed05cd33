// Package audit records the training history of the vector index: every
// retrain, clear and single-record insert.
package audit

import (
	"context"
	"time"
)

// ActorType identifies which surface triggered an action.
type ActorType string

const (
	ActorCLI    ActorType = "cli"
	ActorAPI    ActorType = "api"
	ActorMCP    ActorType = "mcp"
	ActorSystem ActorType = "system"
)

// Action describes what was done to the index.
type Action string

const (
	ActionRetrainCompleted Action = "retrain_completed"
	ActionRetrainFailed    Action = "retrain_failed"
	ActionRecordAdded      Action = "record_added"
	ActionIndexCleared     Action = "index_cleared"
	ActionBillsClassified  Action = "bills_classified"
)

// Entry is a single audit trail record.
type Entry struct {
	ID          string        `json:"id"`
	Timestamp   time.Time     `json:"timestamp"`
	ActorType   ActorType     `json:"actor_type"`
	ActorID     string        `json:"actor_id,omitempty"`
	Action      Action        `json:"action"`
	Collection  string        `json:"collection"`
	Summary     string        `json:"summary"`
	Detail      string        `json:"detail,omitempty"`
	Dataset     string        `json:"dataset,omitempty"`
	RecordCount int           `json:"record_count"`
	Categories  []string      `json:"categories,omitempty"`
	Duration    time.Duration `json:"duration_ns"`
}

type actorKey struct{}

// WithActor attaches the surface performing an action to ctx.
func WithActor(ctx context.Context, actor ActorType) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor set by WithActor, or ActorSystem.
func ActorFromContext(ctx context.Context) ActorType {
	if a, ok := ctx.Value(actorKey{}).(ActorType); ok {
		return a
	}
	return ActorSystem
}
