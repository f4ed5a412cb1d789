package ports

import "context"

// BrowserSession is the small set of page interactions the extraction
// pipeline needs. "Element not found" is reported as an empty result or
// false, never as an error; errors mean the page itself is unusable.
type BrowserSession interface {
	Navigate(ctx context.Context, url string) error
	// LocateAll returns the attribute value of every element matching
	// selector that carries the attribute, in document order.
	LocateAll(ctx context.Context, selector, attr string) ([]string, error)
	// Click clicks the first element matching selector whose attr equals
	// value. It reports false when no such element is rendered.
	Click(ctx context.Context, selector, attr, value string) (bool, error)
	// Snapshot returns the current document HTML.
	Snapshot(ctx context.Context) (string, error)
	// Scroll scrolls the container matching selector by dy pixels, or the
	// page when the container is absent. It reports whether the container
	// was found.
	Scroll(ctx context.Context, selector string, dy int) (bool, error)
	Close() error
}

// BrowserFactory opens an isolated browsing session per job.
type BrowserFactory interface {
	Open(ctx context.Context) (BrowserSession, error)
}
