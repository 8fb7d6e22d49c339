package agent

import (
	"errors"
	"time"

	"github.com/rahul/robodriver/internal/action"
)

var (
	// ErrModelUnavailable covers transport and auth failures talking to the model.
	ErrModelUnavailable = errors.New("language model unavailable")
	// ErrActionTimeout means a browser operation did not complete in time.
	ErrActionTimeout = errors.New("action timed out")
	// ErrPolicyDenied means governance refused the action.
	ErrPolicyDenied = errors.New("action denied by policy")
)

type Status string

const (
	StatusRunning  Status = "running"
	StatusFinished Status = "finished"
	StatusAborted  Status = "aborted"
)

type AbortReason string

const (
	ReasonSessionFailure      AbortReason = "session_failure"
	ReasonSnapshotFailure     AbortReason = "snapshot_failure"
	ReasonPlanningFailure     AbortReason = "planning_failure"
	ReasonModelUnavailable    AbortReason = "model_unavailable"
	ReasonStepBudgetExhausted AbortReason = "step_budget_exhausted"
	ReasonCancelled           AbortReason = "cancelled"
)

// Outcome is how one executed action went.
type Outcome struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// StepRecord is one completed snapshot, plan, execute cycle.
type StepRecord struct {
	Step     int           `json:"step"`
	Snapshot string        `json:"snapshot"`
	Action   action.Action `json:"action"`
	Outcome  Outcome       `json:"outcome"`
}

// ExecutionResult is the terminal value of a run.
type ExecutionResult struct {
	RunID     string       `json:"run_id"`
	Goal      string       `json:"goal"`
	Status    Status       `json:"status"`
	Reason    AbortReason  `json:"reason,omitempty"`
	Success   bool         `json:"success"`
	Message   string       `json:"message"`
	StepCount int          `json:"step_count"`
	History   []StepRecord `json:"history"`
	StartedAt time.Time    `json:"started_at"`
	ElapsedMS int64        `json:"elapsed_ms"`
}
