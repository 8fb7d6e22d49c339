package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap/zaptest"

	"github.com/rahul/robodriver/internal/action"
	"github.com/rahul/robodriver/internal/browser"
	"github.com/rahul/robodriver/internal/observability"
)

func searchSnapshot() *browser.PageSnapshot {
	return &browser.PageSnapshot{
		URL:   "https://shop.test/search",
		Title: "Search",
		Elements: []browser.ElementDescriptor{
			{Index: 0, Role: "searchbox", Name: "Search", Tag: "input", InputType: "search", Placeholder: "Search products"},
			{Index: 1, Role: "button", Name: "Go", Tag: "button"},
		},
		Omitted: 12,
		Summary: "Find anything in our catalogue.",
	}
}

func newTestPlanner(t *testing.T, model llms.Model) *Planner {
	return NewPlanner(model, nil, 0.2, zaptest.NewLogger(t), observability.NewNopLogger(), "run-1")
}

func TestPlanner_Next(t *testing.T) {
	model := script("```json\n{\"type\":\"type\",\"target\":0,\"text\":\"desk lamp\"}\n```")
	p := newTestPlanner(t, model)

	act, err := p.Next(context.Background(), "find a desk lamp", nil, searchSnapshot())

	require.NoError(t, err)
	assert.Equal(t, action.TypeText{Target: action.IndexTarget(0), Text: "desk lamp"}, act)
	require.Equal(t, 1, model.callCount())

	opts := model.options[0]
	assert.True(t, opts.JSONMode)
	assert.Equal(t, 0.2, opts.Temperature)

	msgs := model.calls[0]
	require.Len(t, msgs, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, msgs[0].Role)
	system := msgs[0].Parts[0].(llms.TextContent).Text
	for _, kind := range []string{"navigate", "click", "type", "wait", "done"} {
		assert.Contains(t, system, "- "+kind+":")
	}

	prompt := model.lastHumanText(0)
	assert.Contains(t, prompt, `GOAL: "find a desk lamp"`)
	assert.Contains(t, prompt, "(no steps taken yet)")
	assert.Contains(t, prompt, `[0] searchbox "Search" <input> type=search placeholder="Search products"`)
	assert.Contains(t, prompt, `[1] button "Go"`)
	assert.Contains(t, prompt, "(12 more elements not shown)")
	assert.Contains(t, prompt, "Find anything in our catalogue.")
}

func TestPlanner_HistoryIsCondensed(t *testing.T) {
	model := script(`{"type":"wait","milliseconds":500}`)
	p := newTestPlanner(t, model)
	history := []StepRecord{
		{
			Step:     1,
			Snapshot: `"Home" at https://shop.test/, 3 elements`,
			Action:   action.Navigate{URL: "https://shop.test/search"},
			Outcome:  Outcome{Success: true, Message: "navigated to https://shop.test/search"},
		},
		{
			Step:     2,
			Snapshot: `"Search" at https://shop.test/search, 2 elements`,
			Action:   action.Click{Target: action.IndexTarget(9)},
			Outcome:  Outcome{Success: false, Message: "target not found: index 9, snapshot has 2 elements"},
		},
	}

	_, err := p.Next(context.Background(), "goal", history, searchSnapshot())
	require.NoError(t, err)

	prompt := model.lastHumanText(0)
	assert.Contains(t, prompt, `1. on "Home" at https://shop.test/, 3 elements: {"type":"navigate","url":"https://shop.test/search"} -> ok`)
	assert.Contains(t, prompt, `2. on "Search" at https://shop.test/search, 2 elements: {"type":"click","target":9} -> FAILED: target not found`)
}

func TestPlanner_RetriesOnceWithReason(t *testing.T) {
	model := script(
		`{"type":"click"}`,
		`{"type":"click","target":"Go"}`,
	)
	p := newTestPlanner(t, model)

	act, err := p.Next(context.Background(), "goal", nil, searchSnapshot())

	require.NoError(t, err)
	assert.Equal(t, action.Click{Target: action.NameTarget("", "Go")}, act)
	require.Equal(t, 2, model.callCount())

	retry := model.calls[1]
	require.Len(t, retry, 4)
	assert.Equal(t, llms.ChatMessageTypeAI, retry[2].Role)
	assert.Contains(t, model.lastHumanText(1), "rejected")
	assert.Contains(t, model.lastHumanText(1), "target")
}

func TestPlanner_RejectedTwice(t *testing.T) {
	model := script(`not json`, `{"type":"hover","target":1}`, `{"type":"done","result":"x","success":true}`)
	p := newTestPlanner(t, model)

	_, err := p.Next(context.Background(), "goal", nil, searchSnapshot())

	require.Error(t, err)
	assert.ErrorIs(t, err, action.ErrPlanParse)
	assert.Equal(t, 2, model.callCount(), "only one re-request")
}

func TestPlanner_ModelErrors(t *testing.T) {
	t.Run("unavailable", func(t *testing.T) {
		model := &scriptedModel{replies: []reply{{err: errors.New("dial tcp: connection refused")}}}
		_, err := newTestPlanner(t, model).Next(context.Background(), "goal", nil, searchSnapshot())
		assert.ErrorIs(t, err, ErrModelUnavailable)
		assert.NotErrorIs(t, err, action.ErrPlanParse)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := newTestPlanner(t, script(`{"type":"wait","milliseconds":1}`)).Next(ctx, "goal", nil, searchSnapshot())
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestTokenUsage(t *testing.T) {
	p, c, ok := tokenUsage(map[string]any{"PromptTokens": 120, "CompletionTokens": 14})
	assert.True(t, ok)
	assert.Equal(t, 120, p)
	assert.Equal(t, 14, c)

	p, c, ok = tokenUsage(map[string]any{"input_tokens": int32(7), "output_tokens": float64(3)})
	assert.True(t, ok)
	assert.Equal(t, 7, p)
	assert.Equal(t, 3, c)

	_, _, ok = tokenUsage(nil)
	assert.False(t, ok)
}
