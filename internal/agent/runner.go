package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"github.com/rahul/robodriver/internal/action"
	"github.com/rahul/robodriver/internal/browser"
	"github.com/rahul/robodriver/internal/observability"
)

const DefaultMaxSteps = 20

type Config struct {
	MaxSteps           int
	SnapshotRetries    int
	SnapshotRetryDelay time.Duration
	StepDelay          time.Duration
	Temperature        float64
}

// Runner drives goals to completion. A Runner may serve concurrent runs;
// each run gets its own browser session, planner and history.
type Runner struct {
	cfg         Config
	provider    browser.Provider
	model       llms.Model
	snapshotter *browser.Snapshotter
	executor    *Executor
	prompts     *PromptManager
	logger      *zap.Logger
	events      *observability.Logger
}

func NewRunner(cfg Config, provider browser.Provider, model llms.Model, snapshotter *browser.Snapshotter, executor *Executor, prompts *PromptManager, logger *zap.Logger, events *observability.Logger) *Runner {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if cfg.SnapshotRetries < 0 {
		cfg.SnapshotRetries = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if events == nil {
		events = observability.NewNopLogger()
	}
	if snapshotter == nil {
		snapshotter = browser.NewSnapshotter(0, 0)
	}
	if executor == nil {
		executor = NewExecutor(ExecutorConfig{}, nil, events)
	}
	return &Runner{
		cfg:         cfg,
		provider:    provider,
		model:       model,
		snapshotter: snapshotter,
		executor:    executor,
		prompts:     prompts,
		logger:      logger,
		events:      events,
	}
}

type runOptions struct {
	maxSteps int
	onStep   func(StepRecord)
}

type RunOption func(*runOptions)

// WithMaxSteps overrides the configured step budget for one run.
func WithMaxSteps(n int) RunOption {
	return func(o *runOptions) {
		if n > 0 {
			o.maxSteps = n
		}
	}
}

// OnStep registers a callback invoked after every recorded step.
func OnStep(fn func(StepRecord)) RunOption {
	return func(o *runOptions) { o.onStep = fn }
}

// run is the mutable state of one goal execution.
type run struct {
	*ExecutionResult
	planner *Planner
	opts    runOptions
}

func (r *run) abort(reason AbortReason, msg string) {
	r.Status = StatusAborted
	r.Reason = reason
	r.Success = false
	r.Message = msg
}

func (r *run) finish(success bool, msg string) {
	r.Status = StatusFinished
	r.Success = success
	r.Message = msg
}

// Run executes goal until the model finishes, the budget runs out, ctx is
// cancelled or an unrecoverable error occurs. It always returns a result.
func (rn *Runner) Run(ctx context.Context, goal string, opts ...RunOption) *ExecutionResult {
	o := runOptions{maxSteps: rn.cfg.MaxSteps}
	for _, opt := range opts {
		opt(&o)
	}

	runID := uuid.NewString()
	r := &run{
		ExecutionResult: &ExecutionResult{
			RunID:     runID,
			Goal:      goal,
			Status:    StatusRunning,
			History:   []StepRecord{},
			StartedAt: time.Now(),
		},
		planner: NewPlanner(rn.model, rn.prompts, rn.cfg.Temperature, rn.logger.With(zap.String("run_id", runID)), rn.events, runID),
		opts:    o,
	}
	log := rn.logger.With(zap.String("run_id", runID))
	log.Info("Run started", zap.String("goal", goal), zap.Int("max_steps", o.maxSteps))

	observability.RunStarted(goal)
	defer observability.RunEnded()

	rn.execute(ctx, r, log)

	r.StepCount = len(r.History)
	r.ElapsedMS = time.Since(r.StartedAt).Milliseconds()
	rn.events.LogResult(runID, r.ExecutionResult)
	log.Info("Run ended",
		zap.String("status", string(r.Status)),
		zap.String("reason", string(r.Reason)),
		zap.Bool("success", r.Success),
		zap.Int("steps", r.StepCount),
	)
	return r.ExecutionResult
}

func (rn *Runner) execute(ctx context.Context, r *run, log *zap.Logger) {
	if r.planner.Model == nil {
		r.abort(ReasonModelUnavailable, "no language model configured")
		return
	}
	if rn.provider == nil {
		r.abort(ReasonSessionFailure, "no browser configured")
		return
	}

	sess, err := rn.provider.Open(ctx)
	if err != nil {
		if ctx.Err() != nil {
			r.abort(ReasonCancelled, "run cancelled before the browser started")
			return
		}
		r.abort(ReasonSessionFailure, fmt.Sprintf("failed to start browser session: %v", err))
		return
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.Warn("Failed to close browser session", zap.Error(err))
		}
	}()

	for r.Status == StatusRunning {
		if ctx.Err() != nil {
			r.abort(ReasonCancelled, fmt.Sprintf("run cancelled after %d steps", len(r.History)))
			return
		}
		if len(r.History) >= r.opts.maxSteps {
			r.abort(ReasonStepBudgetExhausted, fmt.Sprintf("reached maximum steps (%d) without completing goal", r.opts.maxSteps))
			return
		}
		rn.step(ctx, r, sess, log)
	}
}

// step runs one snapshot, plan, execute cycle and leaves r either still
// running with one more StepRecord, or terminal.
func (rn *Runner) step(ctx context.Context, r *run, sess browser.Session, log *zap.Logger) {
	snap, err := rn.snapshot(ctx, sess, log)
	if err != nil {
		if ctx.Err() != nil {
			r.abort(ReasonCancelled, fmt.Sprintf("run cancelled after %d steps", len(r.History)))
			return
		}
		r.abort(ReasonSnapshotFailure, fmt.Sprintf("could not read the page: %v", err))
		return
	}

	act, err := r.planner.Next(ctx, r.Goal, r.History, snap)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			r.abort(ReasonCancelled, fmt.Sprintf("run cancelled after %d steps", len(r.History)))
		case errors.Is(err, ErrModelUnavailable):
			r.abort(ReasonModelUnavailable, err.Error())
		default:
			r.abort(ReasonPlanningFailure, fmt.Sprintf("could not plan next action: %v", err))
		}
		return
	}

	stepLog := log.With(zap.Int("step", len(r.History)+1), zap.Stringer("action", act))
	if why := act.Why(); why != "" {
		stepLog.Debug("Model reasoning", zap.String("reasoning", why))
	}

	res, err := rn.executor.Execute(ctx, r.RunID, sess, snap, act)
	outcome := Outcome{Success: true, Message: res.Message}
	if err != nil {
		outcome = Outcome{Success: false, Message: err.Error()}
		stepLog.Warn("Step failed", zap.Error(err))
	} else {
		stepLog.Info("Step completed", zap.String("outcome", res.Message))
	}

	rec := StepRecord{
		Step:     len(r.History) + 1,
		Snapshot: snap.Brief(),
		Action:   act,
		Outcome:  outcome,
	}
	r.History = append(r.History, rec)
	r.StepCount = len(r.History)
	rn.events.LogStep(r.RunID, rec)
	if r.opts.onStep != nil {
		r.opts.onStep(rec)
	}

	if _, ok := act.(action.Finish); ok && err == nil {
		r.finish(res.Success, res.Message)
		return
	}
	rn.pause(ctx, rn.cfg.StepDelay)
}

// snapshot takes the current page, retrying while the document is unsettled.
func (rn *Runner) snapshot(ctx context.Context, sess browser.Session, log *zap.Logger) (*browser.PageSnapshot, error) {
	var snap *browser.PageSnapshot
	attempts := 0
	operation := func() error {
		attempts++
		var err error
		snap, err = rn.snapshotter.Take(ctx, sess)
		if err != nil && !errors.Is(err, browser.ErrSnapshotUnavailable) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		log.Debug("Retrying snapshot", zap.Int("attempt", attempts), zap.Duration("delay", next), zap.Error(err))
	}

	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(rn.cfg.SnapshotRetryDelay), uint64(rn.cfg.SnapshotRetries))
	if err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify); err != nil {
		if ctx.Err() != nil || !errors.Is(err, browser.ErrSnapshotUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w after %d attempts", err, attempts)
	}
	return snap, nil
}

// pause sleeps for d and reports false if ctx ended first.
func (rn *Runner) pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
