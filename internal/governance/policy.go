package governance

import (
	"context"
	"fmt"
	"regexp"
)

// Effect defines the result of a policy evaluation.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Request describes a browser action about to be executed.
type Request struct {
	Action string
	// URL is the destination for navigation, or the current page otherwise.
	URL    string
	Target string
}

// Result contains the outcome of a policy evaluation.
type Result struct {
	Effect Effect
	Reason string
}

// PolicyEngine evaluates actions against a set of rules.
type PolicyEngine interface {
	Evaluate(ctx context.Context, req Request) (Result, error)
}

// DefaultPolicyEngine denies listed actions and navigation to URLs matching
// any denied pattern. Everything else is allowed.
type DefaultPolicyEngine struct {
	DeniedActions map[string]bool
	DeniedURLs    []*regexp.Regexp
}

func NewDefaultPolicyEngine() *DefaultPolicyEngine {
	return &DefaultPolicyEngine{
		DeniedActions: make(map[string]bool),
		DeniedURLs:    make([]*regexp.Regexp, 0),
	}
}

func (e *DefaultPolicyEngine) DenyAction(name string) {
	e.DeniedActions[name] = true
}

func (e *DefaultPolicyEngine) DenyURL(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	e.DeniedURLs = append(e.DeniedURLs, re)
	return nil
}

func (e *DefaultPolicyEngine) Evaluate(ctx context.Context, req Request) (Result, error) {
	if e.DeniedActions[req.Action] {
		return Result{
			Effect: EffectDeny,
			Reason: fmt.Sprintf("action '%s' is restricted by system policy", req.Action),
		}, nil
	}

	if req.Action == "navigate" {
		for _, re := range e.DeniedURLs {
			if re.MatchString(req.URL) {
				return Result{
					Effect: EffectDeny,
					Reason: fmt.Sprintf("URL matches restricted pattern: %s", re.String()),
				}, nil
			}
		}
	}

	return Result{
		Effect: EffectAllow,
		Reason: "Approved by default policy",
	}, nil
}

// NewPolicyEngine builds the engine from configured rules.
func NewPolicyEngine(deniedActions, deniedURLPatterns []string) (*DefaultPolicyEngine, error) {
	e := NewDefaultPolicyEngine()
	for _, a := range deniedActions {
		e.DenyAction(a)
	}
	for _, p := range deniedURLPatterns {
		if err := e.DenyURL(p); err != nil {
			return nil, fmt.Errorf("invalid denied url pattern %q: %w", p, err)
		}
	}
	return e, nil
}
