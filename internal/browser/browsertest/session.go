// Package browsertest provides an in-memory browser.Session for tests.
package browsertest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rahul/robodriver/internal/browser"
)

var _ browser.Session = (*Session)(nil)

type Element struct {
	Tag         string
	Role        string
	Name        string
	ID          string
	Type        string
	Placeholder string
	Disabled    bool
	// Href is loaded when the element is clicked.
	Href string
}

type Page struct {
	URL      string
	Title    string
	Elements []Element
	HTML     string
	NotReady bool
}

// Session serves Pages by URL. Errors and delays can be injected per operation.
type Session struct {
	mu sync.Mutex

	Pages   map[string]*Page
	Current *Page

	// EvalErrs are returned by successive Evaluate calls before normal behaviour resumes.
	EvalErrs    []error
	NavigateErr error
	ActionErr   error
	// ActionDelay blocks Navigate, Click and Type until it elapses or ctx ends.
	ActionDelay time.Duration

	Calls       []string
	Typed       map[string]string
	Evaluations int
	Closed      bool
}

func NewSession(pages ...*Page) *Session {
	s := &Session{Pages: map[string]*Page{}, Typed: map[string]string{}}
	for _, p := range pages {
		s.Pages[p.URL] = p
	}
	return s
}

func (s *Session) wait(ctx context.Context) error {
	if s.ActionDelay <= 0 {
		return nil
	}
	select {
	case <-time.After(s.ActionDelay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, call)
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	s.record("navigate " + url)
	if err := s.wait(ctx); err != nil {
		return err
	}
	if s.NavigateErr != nil {
		return s.NavigateErr
	}
	s.load(url)
	return nil
}

func (s *Session) load(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.Pages[url]; ok {
		s.Current = p
		return
	}
	s.Current = &Page{URL: url}
}

func (s *Session) element(selector string) (Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var idx int
	if _, err := fmt.Sscanf(selector, "["+browser.RefAttr+`="%d"]`, &idx); err != nil {
		return Element{}, fmt.Errorf("unsupported selector %q", selector)
	}
	if s.Current == nil || idx < 0 || idx >= len(s.Current.Elements) {
		return Element{}, errors.New("element not found")
	}
	return s.Current.Elements[idx], nil
}

func (s *Session) Click(ctx context.Context, selector string) error {
	s.record("click " + selector)
	if err := s.wait(ctx); err != nil {
		return err
	}
	if s.ActionErr != nil {
		return s.ActionErr
	}
	el, err := s.element(selector)
	if err != nil {
		return err
	}
	if el.Href != "" {
		s.load(el.Href)
	}
	return nil
}

func (s *Session) Type(ctx context.Context, selector, text string) error {
	s.record("type " + selector)
	if err := s.wait(ctx); err != nil {
		return err
	}
	if s.ActionErr != nil {
		return s.ActionErr
	}
	if _, err := s.element(selector); err != nil {
		return err
	}
	s.mu.Lock()
	s.Typed[selector] = text
	s.mu.Unlock()
	return nil
}

// Evaluate answers the snapshot script with the current page, encoded the way
// Chrome returns values by JSON.
func (s *Session) Evaluate(ctx context.Context, expression string, out any) error {
	s.mu.Lock()
	s.Evaluations++
	if len(s.EvalErrs) > 0 {
		err := s.EvalErrs[0]
		s.EvalErrs = s.EvalErrs[1:]
		s.mu.Unlock()
		return err
	}
	page := s.Current
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	result := map[string]any{"ready": false}
	if page != nil && !page.NotReady {
		elements := make([]map[string]any, 0, len(page.Elements))
		for _, el := range page.Elements {
			elements = append(elements, map[string]any{
				"tag":         el.Tag,
				"role":        el.Role,
				"name":        el.Name,
				"id":          el.ID,
				"type":        el.Type,
				"placeholder": el.Placeholder,
				"disabled":    el.Disabled,
			})
		}
		result = map[string]any{
			"ready":    true,
			"url":      page.URL,
			"title":    page.Title,
			"total":    len(elements),
			"elements": elements,
		}
	}
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (s *Session) HTML(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Current == nil {
		return "", errors.New("no document")
	}
	return s.Current.HTML, nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

// Provider hands out a fixed session and counts how often it was opened.
type Provider struct {
	Session *Session
	OpenErr error
	Opened  int
}

func (p *Provider) Open(ctx context.Context) (browser.Session, error) {
	if p.OpenErr != nil {
		return nil, p.OpenErr
	}
	p.Opened++
	return p.Session, nil
}

func (p *Provider) Close() error {
	return nil
}
