package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap/zaptest"

	"github.com/rahul/robodriver/internal/browser"
	"github.com/rahul/robodriver/internal/browser/browsertest"
	"github.com/rahul/robodriver/internal/observability"
)

type reply struct {
	text string
	err  error
	info map[string]any
}

// scriptedModel answers GenerateContent from a fixed script. When the script
// runs out it keeps answering with fallback, or fails if fallback is empty.
type scriptedModel struct {
	mu       sync.Mutex
	replies  []reply
	fallback string
	calls    [][]llms.MessageContent
	options  []llms.CallOptions
}

var _ llms.Model = (*scriptedModel)(nil)

func script(texts ...string) *scriptedModel {
	m := &scriptedModel{}
	for _, t := range texts {
		m.replies = append(m.replies, reply{text: t})
	}
	return m
}

func (m *scriptedModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var opts llms.CallOptions
	for _, o := range options {
		o(&opts)
	}
	m.calls = append(m.calls, append([]llms.MessageContent(nil), messages...))
	m.options = append(m.options, opts)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var r reply
	switch {
	case len(m.replies) > 0:
		r, m.replies = m.replies[0], m.replies[1:]
	case m.fallback != "":
		r = reply{text: m.fallback}
	default:
		return nil, errors.New("connection refused")
	}
	if r.err != nil {
		return nil, r.err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: r.text, GenerationInfo: r.info}},
	}, nil
}

func (m *scriptedModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func (m *scriptedModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// lastHumanText returns the text of the final human message of call i.
func (m *scriptedModel) lastHumanText(i int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.calls[i]
	for j := len(msgs) - 1; j >= 0; j-- {
		if msgs[j].Role != llms.ChatMessageTypeHuman {
			continue
		}
		var b strings.Builder
		for _, p := range msgs[j].Parts {
			if tc, ok := p.(llms.TextContent); ok {
				b.WriteString(tc.Text)
			}
		}
		return b.String()
	}
	return ""
}

func examplePages() []*browsertest.Page {
	return []*browsertest.Page{
		{
			URL:   "https://example.com",
			Title: "Example Domain",
			HTML:  "<html><body><h1>Example Domain</h1><p>This domain is for use in illustrative examples.</p></body></html>",
			Elements: []browsertest.Element{
				{Tag: "a", Role: "link", Name: "More information...", Href: "https://www.iana.org/help/example-domains"},
			},
		},
		{
			URL:   "https://shop.test/search",
			Title: "Search",
			Elements: []browsertest.Element{
				{Tag: "input", Role: "searchbox", Name: "Search", Type: "search", Placeholder: "Search products"},
				{Tag: "button", Role: "button", Name: "Go"},
				{Tag: "a", Role: "link", Name: "Home", Href: "https://shop.test/"},
				{Tag: "a", Role: "link", Name: "Cart"},
				{Tag: "a", Role: "link", Name: "Help"},
			},
		},
	}
}

// newSession returns a fake session sitting on a blank page.
func newSession() *browsertest.Session {
	s := browsertest.NewSession(examplePages()...)
	s.Current = &browsertest.Page{URL: "about:blank"}
	return s
}

func newTestRunner(t *testing.T, cfg Config, sess *browsertest.Session, model llms.Model) (*Runner, *browsertest.Provider) {
	t.Helper()
	provider := &browsertest.Provider{Session: sess}
	events := observability.NewNopLogger()
	exec := NewExecutor(ExecutorConfig{
		NavigationTimeout: time.Second,
		ElementTimeout:    time.Second,
		MaxWait:           50 * time.Millisecond,
	}, nil, events)
	r := NewRunner(cfg, provider, model, browser.NewSnapshotter(40, 200), exec, nil, zaptest.NewLogger(t), events)
	return r, provider
}
