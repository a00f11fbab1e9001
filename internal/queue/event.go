// Package queue defines the calculation events exchanged over RabbitMQ, the
// publisher used by the calculation service and the audit consumer that
// writes them to a log file.
package queue

import (
	"time"

	"github.com/iliyamo/calculations-api/internal/model"
)

// CalculationsQueue is the durable queue every event is routed to.
const CalculationsQueue = "calculations.events"

// Action names the lifecycle step an event reports.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// CalculationEvent is published after a calculation change has been
// committed.  It is self-contained so consumers never query the database.
type CalculationEvent struct {
	Action        Action    `json:"action"`
	CalculationID string    `json:"calculation_id"`
	UserID        string    `json:"user_id"`
	Type          string    `json:"type"`
	Inputs        []float64 `json:"inputs"`
	Result        float64   `json:"result"`
	OccurredAt    string    `json:"occurred_at"`
}

// NewCalculationEvent builds the event for c at time at.
func NewCalculationEvent(action Action, c model.Calculation, at time.Time) CalculationEvent {
	return CalculationEvent{
		Action:        action,
		CalculationID: c.ID,
		UserID:        c.UserID,
		Type:          c.Type,
		Inputs:        c.Inputs,
		Result:        c.Result,
		OccurredAt:    at.UTC().Format(time.RFC3339Nano),
	}
}
