package chrome

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"mapscraper/internal/ports"
)

type Options struct {
	Headless  bool
	ExecPath  string
	UserAgent string
	Locale    string
	// StartupTimeout bounds launching the browser and loading about:blank.
	StartupTimeout time.Duration
}

// Launcher starts a fresh headless browser per session so no cookies,
// cache or tabs leak between jobs.
type Launcher struct {
	opts   Options
	logger arbor.ILogger
}

func NewLauncher(opts Options, logger arbor.ILogger) *Launcher {
	if opts.StartupTimeout <= 0 {
		opts.StartupTimeout = 30 * time.Second
	}
	if opts.Locale == "" {
		opts.Locale = "en-US"
	}
	return &Launcher{opts: opts, logger: logger}
}

func (l *Launcher) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.opts.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("lang", l.opts.Locale),
		chromedp.WindowSize(1366, 900),
	)
	if l.opts.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(l.opts.UserAgent))
	}
	if l.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.opts.ExecPath))
	}
	return opts
}

// Open launches a browser and a single tab. The caller must Close the
// session on every path.
func (l *Launcher) Open(ctx context.Context) (ports.BrowserSession, error) {
	start := time.Now()
	// Detached from ctx: the session lives until Close, not until the
	// caller's context ends.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), l.allocatorOptions()...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	s := &Session{tab: tabCtx, cancelTab: tabCancel, cancelAlloc: allocCancel, logger: l.logger}

	// The first Run allocates the browser; a timeout context on it would
	// tear the browser down with that context, so the launch is aborted
	// through allocCancel instead.
	if err := bounded(ctx, l.opts.StartupTimeout, allocCancel, func() error {
		return chromedp.Run(tabCtx)
	}); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("browser launch: %w", err)
	}

	startCtx, cancel := context.WithTimeout(ctx, l.opts.StartupTimeout)
	defer cancel()
	err := s.run(startCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": l.opts.Locale}),
		chromedp.Navigate("about:blank"),
	)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("browser startup: %w", err)
	}

	l.logger.Debug().Dur("startup_time", time.Since(start)).Msg("Browser session opened")
	return s, nil
}

// bounded runs launch, calling abort if ctx ends or timeout passes first.
// A launch that returned after abort fired is reported as failed.
func bounded(ctx context.Context, timeout time.Duration, abort func(), launch func() error) error {
	var timedOut atomic.Bool
	stopCtx := context.AfterFunc(ctx, abort)
	timer := time.AfterFunc(timeout, func() {
		timedOut.Store(true)
		abort()
	})

	err := launch()
	ctxPending := stopCtx()
	timerPending := timer.Stop()

	switch {
	case !ctxPending:
		return ctx.Err()
	case !timerPending || timedOut.Load():
		return fmt.Errorf("no browser after %s: %w", timeout, context.DeadlineExceeded)
	}
	return err
}

// Session is one browser tab driven through chromedp.
type Session struct {
	tab         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	logger      arbor.ILogger
}

// run executes actions on the tab, honouring ctx's deadline and
// cancellation. ctx is not a chromedp context, so both are merged here.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	var runCtx context.Context
	var cancel context.CancelFunc
	if deadline, ok := ctx.Deadline(); ok {
		runCtx, cancel = context.WithDeadline(s.tab, deadline)
	} else {
		runCtx, cancel = context.WithCancel(s.tab)
	}
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	return s.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

const locateAllJS = `(() => {
	const out = [];
	for (const el of document.querySelectorAll(%s)) {
		const v = el.getAttribute(%s);
		if (v) out.push(v);
	}
	return out;
})()`

func (s *Session) LocateAll(ctx context.Context, selector, attr string) ([]string, error) {
	var out []string
	if err := s.run(ctx, chromedp.Evaluate(fmt.Sprintf(locateAllJS, jsString(selector), jsString(attr)), &out)); err != nil {
		return nil, err
	}
	return out, nil
}

const clickJS = `(() => {
	for (const el of document.querySelectorAll(%s)) {
		if (el.getAttribute(%s) === %s) {
			el.scrollIntoView({block: "center"});
			el.click();
			return true;
		}
	}
	return false;
})()`

func (s *Session) Click(ctx context.Context, selector, attr, value string) (bool, error) {
	var clicked bool
	js := fmt.Sprintf(clickJS, jsString(selector), jsString(attr), jsString(value))
	if err := s.run(ctx, chromedp.Evaluate(js, &clicked)); err != nil {
		return false, err
	}
	return clicked, nil
}

func (s *Session) Snapshot(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

const scrollJS = `(() => {
	const el = document.querySelector(%s);
	if (el) {
		el.scrollBy(0, %d);
		return true;
	}
	window.scrollBy(0, %d);
	return false;
})()`

func (s *Session) Scroll(ctx context.Context, selector string, dy int) (bool, error) {
	var inContainer bool
	js := fmt.Sprintf(scrollJS, jsString(selector), dy, dy)
	if err := s.run(ctx, chromedp.Evaluate(js, &inContainer)); err != nil {
		return false, err
	}
	return inContainer, nil
}

// Close shuts the tab and the browser process. Safe to call more than once.
func (s *Session) Close() error {
	s.cancelTab()
	s.cancelAlloc()
	s.logger.Debug().Msg("Browser session closed")
	return nil
}

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
