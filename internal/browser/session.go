package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"
)

// Session is one live browser tab owned by a single run.
type Session interface {
	Navigate(ctx context.Context, url string) error
	// Click and Type wait for the element to be visible and enabled first.
	Click(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, text string) error
	Evaluate(ctx context.Context, expression string, out any) error
	HTML(ctx context.Context) (string, error)
	Close() error
}

// Provider hands out independent sessions, one per run.
type Provider interface {
	Open(ctx context.Context) (Session, error)
	Close() error
}

type Options struct {
	Headless       bool
	NoSandbox      bool
	UserAgent      string
	DefaultTimeout time.Duration
}

// ChromeProvider launches a separate Chrome process for every session it opens.
type ChromeProvider struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	timeout     time.Duration
}

func NewChromeProvider(o Options) *ChromeProvider {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", o.Headless),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if o.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if o.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(o.UserAgent))
	}
	timeout := o.DefaultTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &ChromeProvider{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		timeout:     timeout,
	}
}

func (p *ChromeProvider) Open(ctx context.Context) (Session, error) {
	browserCtx, browserCancel := chromedp.NewContext(p.allocCtx)

	startCtx, cancel := context.WithTimeout(browserCtx, p.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(startCtx); err != nil {
		browserCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	return &ChromeSession{
		browserCtx: browserCtx,
		cancel:     browserCancel,
		timeout:    p.timeout,
	}, nil
}

func (p *ChromeProvider) Close() error {
	p.allocCancel()
	return nil
}

type ChromeSession struct {
	mu         sync.Mutex
	browserCtx context.Context
	cancel     context.CancelFunc
	timeout    time.Duration
}

// run executes actions against the tab, bounded by the default timeout, any
// deadline on ctx, and cancellation of ctx.
func (s *ChromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return runBounded(ctx, s.browserCtx, s.timeout, func(runCtx context.Context) error {
		return chromedp.Run(runCtx, actions...)
	})
}

// runBounded calls fn with a child of parent that ends when ctx ends. When ctx
// is done first its error is returned, so a caller deadline surfaces as
// context.DeadlineExceeded rather than the child's cancellation.
func runBounded(ctx, parent context.Context, timeout time.Duration, fn func(context.Context) error) error {
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	runCtx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := fn(runCtx)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *ChromeSession) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, chromedp.Navigate(url))
}

func (s *ChromeSession) Click(ctx context.Context, selector string) error {
	return s.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.WaitEnabled(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	)
}

func (s *ChromeSession) Type(ctx context.Context, selector, text string) error {
	return s.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.WaitEnabled(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
}

func (s *ChromeSession) Evaluate(ctx context.Context, expression string, out any) error {
	return s.run(ctx, chromedp.Evaluate(expression, out))
}

func (s *ChromeSession) HTML(ctx context.Context) (string, error) {
	var html string
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		node, err := dom.GetDocument().Do(ctx)
		if err != nil {
			return err
		}
		html, err = dom.GetOuterHTML().WithNodeID(node.NodeID).Do(ctx)
		return err
	}))
	return html, err
}

func (s *ChromeSession) Close() error {
	s.cancel()
	return nil
}
