package queue

import (
	"context"
	"encoding/json"
	"time"
)

// Priority names one of the core's three background lanes.
type Priority string

const (
	PriorityHigh    Priority = "high"
	PriorityBatch   Priority = "batch"
	PriorityQuality Priority = "quality"
)

// Weights gives each lane's share of the picker's attention. High-priority
// interactive generation tasks dominate, quality (re-runs, validation
// passes) get a moderate share, batch background work gets the least.
var Weights = map[Priority]int{
	PriorityHigh:    9,
	PriorityBatch:   3,
	PriorityQuality: 5,
}

var priorityOrder = []Priority{PriorityHigh, PriorityBatch, PriorityQuality}

// Job is a unit of coordinator work, such as a JSON-encoded generation
// task covering one or more artifacts.
type Job struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Priority  Priority        `json:"priority"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Queue is the contract a worker pulls jobs from, and a submitter pushes
// jobs into, across the three priority lanes.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Dequeue(ctx context.Context) (Job, error)
}
