package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"github.com/rahul/robodriver/internal/action"
	"github.com/rahul/robodriver/internal/browser"
	"github.com/rahul/robodriver/internal/observability"
)

// Planner asks the model for the next action of a run.
type Planner struct {
	Model       llms.Model
	Prompts     *PromptManager
	Temperature float64
	logger      *zap.Logger
	events      *observability.Logger
	runID       string
}

func NewPlanner(model llms.Model, prompts *PromptManager, temperature float64, logger *zap.Logger, events *observability.Logger, runID string) *Planner {
	return &Planner{
		Model:       model,
		Prompts:     prompts,
		Temperature: temperature,
		logger:      logger,
		events:      events,
		runID:       runID,
	}
}

// Next returns exactly one action. A reply that does not parse is re-requested
// once with the rejection reason; a second bad reply is returned as an error
// wrapping action.ErrPlanParse. Transport failures wrap ErrModelUnavailable.
func (p *Planner) Next(ctx context.Context, goal string, history []StepRecord, snap *browser.PageSnapshot) (action.Action, error) {
	systemPrompt, err := p.Prompts.GetSystemPrompt()
	if err != nil {
		p.logger.Warn("Falling back to built-in system prompt", zap.Error(err))
		systemPrompt = defaultSystemPrompt()
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, turnPrompt(goal, history, snap)),
	}

	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		reply, err := p.generate(ctx, messages)
		if err != nil {
			return nil, err
		}

		act, err := action.Parse(reply)
		if err == nil {
			p.events.LogPlan(p.runID, attempt, act)
			return act, nil
		}
		lastErr = err

		var pe *action.ParseError
		reason := err.Error()
		if errors.As(err, &pe) {
			reason = pe.Reason
		}
		p.logger.Warn("Model reply rejected", zap.Int("attempt", attempt), zap.String("reason", reason))
		messages = append(messages,
			llms.TextParts(llms.ChatMessageTypeAI, reply),
			llms.TextParts(llms.ChatMessageTypeHuman, correctionPrompt(reason)),
		)
	}
	return nil, fmt.Errorf("model reply rejected twice: %w", lastErr)
}

func (p *Planner) generate(ctx context.Context, messages []llms.MessageContent) (string, error) {
	resp, err := p.Model.GenerateContent(ctx, messages,
		llms.WithJSONMode(),
		llms.WithTemperature(p.Temperature),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		p.events.LogLLM(p.runID, messages, "")
		return "", nil
	}

	choice := resp.Choices[0]
	p.events.LogLLM(p.runID, messages, choice.Content)
	if prompt, completion, ok := tokenUsage(choice.GenerationInfo); ok {
		p.events.LogCost(p.runID, prompt, completion)
	}
	return choice.Content, nil
}

// tokenUsage reads token counts from provider-specific generation info.
func tokenUsage(info map[string]any) (int, int, bool) {
	prompt, okP := firstInt(info, "PromptTokens", "input_tokens")
	completion, okC := firstInt(info, "CompletionTokens", "output_tokens")
	return prompt, completion, okP || okC
}

func firstInt(info map[string]any, keys ...string) (int, bool) {
	for _, k := range keys {
		switch v := info[k].(type) {
		case int:
			return v, true
		case int32:
			return int(v), true
		case int64:
			return int(v), true
		case float64:
			return int(v), true
		}
	}
	return 0, false
}
