package agent

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rahul/robodriver/internal/action"
	"github.com/rahul/robodriver/internal/browser"
	"github.com/rahul/robodriver/internal/governance"
	"github.com/rahul/robodriver/internal/observability"
)

type ExecutorConfig struct {
	NavigationTimeout time.Duration
	ElementTimeout    time.Duration
	MaxWait           time.Duration
}

// Execution is what the executor reports for one action.
type Execution struct {
	Message string
	// Finished is set for a done action; Success then carries its verdict.
	Finished bool
	Success  bool
}

// Executor applies actions to a browser session. It never touches run history.
type Executor struct {
	cfg    ExecutorConfig
	policy governance.PolicyEngine
	events *observability.Logger
}

func NewExecutor(cfg ExecutorConfig, policy governance.PolicyEngine, events *observability.Logger) *Executor {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 30 * time.Second
	}
	if cfg.ElementTimeout <= 0 {
		cfg.ElementTimeout = 10 * time.Second
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 10 * time.Second
	}
	if policy == nil {
		policy = governance.NewDefaultPolicyEngine()
	}
	return &Executor{cfg: cfg, policy: policy, events: events}
}

// Execute performs a against sess, resolving targets against snap. A non-nil
// error is a failed step the run can recover from. Browser operations are
// not interrupted by cancellation of ctx, only by their own timeouts.
func (e *Executor) Execute(ctx context.Context, runID string, sess browser.Session, snap *browser.PageSnapshot, a action.Action) (Execution, error) {
	switch a := a.(type) {
	case action.Navigate:
		target, err := canonicalURL(a.URL)
		if err != nil {
			return Execution{}, err
		}
		if err := e.authorize(ctx, runID, governance.Request{Action: string(a.Kind()), URL: target}); err != nil {
			return Execution{}, err
		}
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.NavigationTimeout)
		defer cancel()
		if err := sess.Navigate(actx, target); err != nil {
			return Execution{}, e.browserError("navigate to "+target, e.cfg.NavigationTimeout, err)
		}
		return Execution{Message: "navigated to " + target}, nil

	case action.Click:
		el, err := snap.Resolve(a.Target)
		if err != nil {
			return Execution{}, err
		}
		if err := e.authorize(ctx, runID, governance.Request{Action: string(a.Kind()), URL: snap.URL, Target: a.Target.String()}); err != nil {
			return Execution{}, err
		}
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.ElementTimeout)
		defer cancel()
		if err := sess.Click(actx, el.Selector); err != nil {
			return Execution{}, e.browserError("click "+describeElement(el), e.cfg.ElementTimeout, err)
		}
		return Execution{Message: "clicked " + describeElement(el)}, nil

	case action.TypeText:
		el, err := snap.Resolve(a.Target)
		if err != nil {
			return Execution{}, err
		}
		if err := e.authorize(ctx, runID, governance.Request{Action: string(a.Kind()), URL: snap.URL, Target: a.Target.String()}); err != nil {
			return Execution{}, err
		}
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.ElementTimeout)
		defer cancel()
		if err := sess.Type(actx, el.Selector, a.Text); err != nil {
			return Execution{}, e.browserError("type into "+describeElement(el), e.cfg.ElementTimeout, err)
		}
		return Execution{Message: fmt.Sprintf("typed %q into %s", a.Text, describeElement(el))}, nil

	case action.Wait:
		if err := e.authorize(ctx, runID, governance.Request{Action: string(a.Kind())}); err != nil {
			return Execution{}, err
		}
		d := e.cfg.MaxWait
		if int64(a.Milliseconds) < d.Milliseconds() {
			d = time.Duration(a.Milliseconds) * time.Millisecond
		}
		start := time.Now()
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
			return Execution{Message: fmt.Sprintf("waited %s", d)}, nil
		case <-ctx.Done():
			return Execution{Message: fmt.Sprintf("waited %s of %s before cancellation", time.Since(start).Round(time.Millisecond), d)}, nil
		}

	case action.Finish:
		if err := e.authorize(ctx, runID, governance.Request{Action: string(a.Kind())}); err != nil {
			return Execution{}, err
		}
		return Execution{Message: a.Result, Finished: true, Success: a.Success}, nil

	default:
		return Execution{}, fmt.Errorf("unsupported action %T", a)
	}
}

func (e *Executor) authorize(ctx context.Context, runID string, req governance.Request) error {
	res, err := e.policy.Evaluate(ctx, req)
	if err != nil {
		return fmt.Errorf("policy evaluation failed: %w", err)
	}
	e.events.LogPolicyCheck(runID, req.Action, string(res.Effect), res.Reason)
	if res.Effect == governance.EffectDeny {
		return fmt.Errorf("%w: %s", ErrPolicyDenied, res.Reason)
	}
	return nil
}

func (e *Executor) browserError(what string, timeout time.Duration, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s did not complete within %s", ErrActionTimeout, what, timeout)
	}
	return fmt.Errorf("%s failed: %w", what, err)
}

// canonicalURL adds https:// to bare hosts and rejects anything without a host
// or a usable scheme.
func canonicalURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", errors.New("invalid url: empty")
	}
	if !strings.Contains(s, "://") && !hasScheme(s) {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %v", raw, err)
	}
	switch u.Scheme {
	case "http", "https":
		if u.Host == "" {
			return "", fmt.Errorf("invalid url %q: missing host", raw)
		}
	case "":
		return "", fmt.Errorf("invalid url %q: missing scheme", raw)
	}
	return u.String(), nil
}

// hasScheme reports whether s starts with "scheme:" rather than "host:port".
func hasScheme(s string) bool {
	i := strings.IndexByte(s, ':')
	if i <= 0 {
		return false
	}
	rest := s[i+1:]
	if j := strings.IndexAny(rest, "/?#"); j >= 0 {
		rest = rest[:j]
	}
	if rest == "" {
		return true
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return true
		}
	}
	return false
}
