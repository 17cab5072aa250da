// Package domain holds the session record every operation in §6 of the
// base specification operates on: settings, lifecycle status, the
// monotonically-advancing processing status, and the small summary
// results the dashboard reads.
package domain

import "time"

// Status is the session lifecycle state. It transitions through
// created -> identity_review -> processing -> completed | error and
// never reverses except via identity/reset, which truncates back to
// identity_review.
type Status string

const (
	StatusCreated        Status = "created"
	StatusIdentityReview Status = "identity_review"
	StatusProcessing     Status = "processing"
	StatusCompleted      Status = "completed"
	StatusError          Status = "error"
)

// Settings are the recognized session configuration options. Unknown keys
// are rejected by the caller before Settings is constructed.
type Settings struct {
	Currency     string    `json:"currency"`
	PeriodStart  time.Time `json:"period_start"`
	PeriodEnd    time.Time `json:"period_end"`
	ToleranceUSD float64   `json:"tolerance"`
}

// StepState is one pipeline stage's progress.
type StepState struct {
	Status    string     `json:"status"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// LogLine is one entry in the bounded append-only processing log.
type LogLine struct {
	Step    string    `json:"step"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// StageOrder is the fixed sequence of pipeline stage keys, in the order
// the background worker executes them.
var StageOrder = []string{"ingestion", "identity", "lifecycle", "reconciliation", "scoring"}

// ProcessingStatus is the monotonically-advancing status the status()
// operation returns; readers observe a consistent prefix by reading the
// session record atomically.
type ProcessingStatus struct {
	CurrentStep string               `json:"current_step"`
	Steps       map[string]StepState `json:"steps"`
	Log         []LogLine            `json:"log"`
	Error       string               `json:"error,omitempty"`
}

// maxLogLines bounds the append-only log the spec calls "bounded".
const maxLogLines = 200

// Append records a log line, trimming from the front once the bound is hit.
func (p *ProcessingStatus) Append(step, message string, at time.Time) {
	if p.Steps == nil {
		p.Steps = make(map[string]StepState)
	}
	p.Log = append(p.Log, LogLine{Step: step, Message: message, At: at})
	if len(p.Log) > maxLogLines {
		p.Log = p.Log[len(p.Log)-maxLogLines:]
	}
}

// SetStep advances current_step and records the step's status transition.
func (p *ProcessingStatus) SetStep(step, status string, at time.Time) {
	if p.Steps == nil {
		p.Steps = make(map[string]StepState)
	}
	p.CurrentStep = step
	t := at
	p.Steps[step] = StepState{Status: status, Timestamp: &t}
}

// Session is one reconciliation run: a single whole-period recomputation
// owned by exactly one background worker at a time.
type Session struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	Settings  Settings  `json:"settings"`
	Processing ProcessingStatus `json:"processing_status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
