package scraper

import "context"

// Page is a rendered document.
type Page struct {
	URL  string
	HTML string
	// Wait reports whether the post marker appeared before the wait timeout.
	Wait WaitOutcome
}

// WaitOutcome is the result of waiting for an element to appear.
type WaitOutcome int

const (
	WaitReady WaitOutcome = iota
	WaitTimedOut
)

func (w WaitOutcome) String() string {
	if w == WaitReady {
		return "ready"
	}
	return "timed_out"
}

// Renderer loads a page in a browser and returns its DOM after scripts ran.
type Renderer interface {
	// Render navigates to url and returns the rendered HTML. It honours ctx
	// cancellation and deadline.
	Render(ctx context.Context, url string) (*Page, error)

	// Close releases the browser. It is safe to call more than once.
	Close() error
}
