package browser

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
)

// ErrSnapshotUnavailable means the tab has no settled document to read,
// typically because a navigation is in flight. Callers retry after a pause.
var ErrSnapshotUnavailable = errors.New("snapshot unavailable")

// RefAttr is stamped on every reported element so the executor can find it
// again. Each snapshot clears and rewrites it.
const RefAttr = "data-robodriver-ref"

// ElementDescriptor is one interactive element. Index is only meaningful
// within the snapshot that produced it.
type ElementDescriptor struct {
	Index       int    `json:"index"`
	Role        string `json:"role"`
	Name        string `json:"name,omitempty"`
	ID          string `json:"id,omitempty"`
	Tag         string `json:"tag"`
	InputType   string `json:"input_type,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	Disabled    bool   `json:"disabled,omitempty"`
	Selector    string `json:"-"`
}

type PageSnapshot struct {
	URL      string              `json:"url"`
	Title    string              `json:"title"`
	Elements []ElementDescriptor `json:"elements"`
	// Omitted counts interactive elements past the cap.
	Omitted int    `json:"omitted,omitempty"`
	Summary string `json:"summary,omitempty"`
}

// Brief is the one-line form kept in step history.
func (s *PageSnapshot) Brief() string {
	return fmt.Sprintf("%q at %s, %d elements", s.Title, s.URL, len(s.Elements))
}

type Snapshotter struct {
	maxElements  int
	summaryChars int
	sanitizer    *bluemonday.Policy
}

func NewSnapshotter(maxElements, summaryChars int) *Snapshotter {
	if maxElements <= 0 {
		maxElements = 40
	}
	return &Snapshotter{
		maxElements:  maxElements,
		summaryChars: summaryChars,
		sanitizer:    bluemonday.StrictPolicy(),
	}
}

type rawElement struct {
	Tag         string `json:"tag"`
	Role        string `json:"role"`
	Name        string `json:"name"`
	ID          string `json:"id"`
	Type        string `json:"type"`
	Placeholder string `json:"placeholder"`
	Disabled    bool   `json:"disabled"`
}

type rawPage struct {
	Ready    bool         `json:"ready"`
	URL      string       `json:"url"`
	Title    string       `json:"title"`
	Total    int          `json:"total"`
	Elements []rawElement `json:"elements"`
}

// Take reads the current document of sess.
func (s *Snapshotter) Take(ctx context.Context, sess Session) (*PageSnapshot, error) {
	var page rawPage
	if err := sess.Evaluate(ctx, snapshotScript(s.maxElements), &page); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrSnapshotUnavailable, err)
	}
	if !page.Ready {
		return nil, fmt.Errorf("%w: document is not ready", ErrSnapshotUnavailable)
	}

	snap := &PageSnapshot{
		URL:      page.URL,
		Title:    strings.TrimSpace(page.Title),
		Elements: make([]ElementDescriptor, 0, len(page.Elements)),
	}
	for i, el := range page.Elements {
		if i >= s.maxElements {
			break
		}
		snap.Elements = append(snap.Elements, ElementDescriptor{
			Index:       i,
			Role:        strings.ToLower(el.Role),
			Name:        collapse(el.Name),
			ID:          el.ID,
			Tag:         strings.ToLower(el.Tag),
			InputType:   strings.ToLower(el.Type),
			Placeholder: collapse(el.Placeholder),
			Disabled:    el.Disabled,
			Selector:    fmt.Sprintf(`[%s="%d"]`, RefAttr, i),
		})
	}
	if page.Total > len(snap.Elements) {
		snap.Omitted = page.Total - len(snap.Elements)
	}

	if s.summaryChars > 0 {
		if doc, err := sess.HTML(ctx); err == nil {
			snap.Summary = s.summarize(doc, page.URL)
		}
	}
	return snap, nil
}

// summarize reduces the page body to a short plain-text excerpt.
func (s *Snapshotter) summarize(doc, pageURL string) string {
	var text string
	if u, err := url.Parse(pageURL); err == nil {
		if article, err := readability.FromReader(strings.NewReader(doc), u); err == nil {
			text = article.TextContent
		}
	}
	if strings.TrimSpace(text) == "" {
		text = doc
	}
	text = collapse(html.UnescapeString(s.sanitizer.Sanitize(text)))
	return truncate(text, s.summaryChars)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
