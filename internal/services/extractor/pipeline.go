package extractor

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"mapscraper/internal/domain"
	"mapscraper/internal/ports"
)

const (
	// ListingSelector matches one anchor per rendered listing; its href is
	// the listing's stable reference.
	ListingSelector = `a[href^="https://www.google.com/maps/place"]`
	// FeedSelector is the scrollable results container.
	FeedSelector = `div[role="feed"]`
)

type Options struct {
	SearchBaseURL string
	MaxIterations int
	NavTimeout    time.Duration
	StepTimeout   time.Duration
	InitialWait   time.Duration
	DetailWait    time.Duration
	ScrollWait    time.Duration
	ScrollStep    int
}

// Extractor runs the scroll-and-collect loop over a search results feed.
type Extractor struct {
	opts   Options
	logger arbor.ILogger
}

func New(opts Options, logger arbor.ILogger) *Extractor {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 30
	}
	if opts.ScrollStep <= 0 {
		opts.ScrollStep = 1500
	}
	return &Extractor{opts: opts, logger: logger}
}

// SearchURL builds the feed address for a keyword and location.
func SearchURL(base, keyword, location string) string {
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + url.PathEscape(strings.TrimSpace(keyword+" "+location))
}

// Extract returns up to maxResults distinct listings in encounter order.
// Any error aborts the run and discards what was collected so far; a
// detail pane that fails to open or render yields a listing with every
// field absent instead.
func (e *Extractor) Extract(ctx context.Context, sess ports.BrowserSession, keyword, location string, maxResults int) ([]domain.Listing, error) {
	if maxResults < 1 {
		return nil, nil
	}
	target := SearchURL(e.opts.SearchBaseURL, keyword, location)
	if err := e.step(ctx, e.opts.NavTimeout, func(ctx context.Context) error {
		return sess.Navigate(ctx, target)
	}); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", target, err)
	}
	if err := sleep(ctx, e.opts.InitialWait); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	out := make([]domain.Listing, 0, maxResults)

	for i := 0; i < e.opts.MaxIterations; i++ {
		var refs []string
		if err := e.step(ctx, e.opts.StepTimeout, func(ctx context.Context) error {
			var err error
			refs, err = sess.LocateAll(ctx, ListingSelector, "href")
			return err
		}); err != nil {
			return nil, fmt.Errorf("locate listings: %w", err)
		}

		fresh := 0
		for _, ref := range refs {
			if ref == "" {
				continue
			}
			if _, ok := seen[ref]; ok {
				continue
			}
			seen[ref] = struct{}{}
			fresh++

			listing, err := e.openDetail(ctx, sess, ref)
			if err != nil {
				return nil, err
			}
			out = append(out, listing)
			if len(out) >= maxResults {
				return out, nil
			}
		}

		e.logger.Debug().
			Int("iteration", i).
			Int("rendered", len(refs)).
			Int("new", fresh).
			Int("collected", len(out)).
			Msg("Feed pass finished")

		var inFeed bool
		if err := e.step(ctx, e.opts.StepTimeout, func(ctx context.Context) error {
			var err error
			inFeed, err = sess.Scroll(ctx, FeedSelector, e.opts.ScrollStep)
			return err
		}); err != nil {
			return nil, fmt.Errorf("scroll feed: %w", err)
		}
		if !inFeed {
			e.logger.Debug().Int("iteration", i).Msg("Feed container absent, scrolled page")
		}
		if err := sleep(ctx, e.opts.ScrollWait); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// openDetail opens one listing and parses its pane. Only cancellation of
// ctx is returned as an error.
func (e *Extractor) openDetail(ctx context.Context, sess ports.BrowserSession, ref string) (domain.Listing, error) {
	var opened bool
	err := e.step(ctx, e.opts.StepTimeout, func(ctx context.Context) error {
		var err error
		opened, err = sess.Click(ctx, ListingSelector, "href", ref)
		return err
	})
	if err != nil || !opened {
		if ctx.Err() != nil {
			return domain.Listing{}, ctx.Err()
		}
		if err != nil {
			e.logger.Debug().Err(err).Str("ref", ref).Msg("Listing click failed")
		} else {
			e.logger.Debug().Str("ref", ref).Msg("Listing no longer rendered")
		}
		return domain.Listing{}, nil
	}
	if err := sleep(ctx, e.opts.DetailWait); err != nil {
		return domain.Listing{}, err
	}

	var html string
	err = e.step(ctx, e.opts.StepTimeout, func(ctx context.Context) error {
		var err error
		html, err = sess.Snapshot(ctx)
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return domain.Listing{}, ctx.Err()
		}
		e.logger.Debug().Err(err).Str("ref", ref).Msg("Detail pane did not render")
		return domain.Listing{}, nil
	}
	return ParseDetail(html), nil
}

// step runs fn under its own timeout when one is configured.
func (e *Extractor) step(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
