package gateway

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/rahul/robodriver/internal/agent"
)

// Messenger defines the interface for chat gateways (Telegram, Discord, etc.)
type Messenger interface {
	// Start listens for goals until ctx is done.
	Start(ctx context.Context) error
	// Send sends a message to a specific chat
	Send(chatID string, text string) error
	// Stop gracefully shuts down the gateway
	Stop() error
}

var (
	_ Messenger = (*TelegramGateway)(nil)
	_ Messenger = (*DiscordGateway)(nil)
)

// GoalRunner executes one goal to completion. *agent.Runner implements it.
type GoalRunner interface {
	Run(ctx context.Context, goal string, opts ...agent.RunOption) *agent.ExecutionResult
}

// Dispatcher bounds how many goals run at once across all gateways.
type Dispatcher struct {
	runner GoalRunner
	sem    *semaphore.Weighted
	logger *zap.Logger
}

func NewDispatcher(runner GoalRunner, maxConcurrent int, logger *zap.Logger) *Dispatcher {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		runner: runner,
		sem:    semaphore.NewWeighted(int64(maxConcurrent)),
		logger: logger,
	}
}

// Execute waits for a free slot and runs goal. The error is non-nil only when
// ctx ends before a slot frees up.
func (d *Dispatcher) Execute(ctx context.Context, goal string, opts ...agent.RunOption) (*agent.ExecutionResult, error) {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for a free runner: %w", err)
	}
	defer d.sem.Release(1)
	return d.runner.Run(ctx, goal, opts...), nil
}

// FormatResult renders a result as a chat reply.
func FormatResult(res *agent.ExecutionResult) string {
	var b strings.Builder
	if res.Success {
		b.WriteString("✓ ")
	} else {
		b.WriteString("✗ ")
	}
	b.WriteString(res.Message)
	fmt.Fprintf(&b, "\n\nSteps: %d", res.StepCount)
	if res.Reason != "" {
		fmt.Fprintf(&b, " (stopped: %s)", strings.ReplaceAll(string(res.Reason), "_", " "))
	}
	for _, rec := range res.History {
		mark := "ok"
		if !rec.Outcome.Success {
			mark = "failed"
		}
		fmt.Fprintf(&b, "\n%d. %s [%s]", rec.Step, rec.Action, mark)
	}
	return b.String()
}

// truncateMessage keeps text within a platform message limit.
func truncateMessage(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit-1]) + "…"
}
