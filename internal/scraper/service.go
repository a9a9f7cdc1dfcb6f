package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/sirupsen/logrus"

	"feedwatch/internal/domain"
)

// DefaultUserAgent is a desktop Chrome on Windows.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Options control how pages are loaded.
type Options struct {
	// BrowserPath is the Chrome binary. Empty means look it up.
	BrowserPath string
	Headless    bool
	UserAgent   string

	ViewportWidth  int
	ViewportHeight int

	// IdleWindow is how long the network must stay quiet after load.
	IdleWindow time.Duration
	// SettleDelay is a fixed pause after load for client-side rendering.
	SettleDelay time.Duration
	// ModalSelectors are close buttons of overlays that hide the feed.
	ModalSelectors []string
	// WaitSelector is the element that signals the feed has rendered.
	WaitSelector string
	WaitTimeout  time.Duration
	// PostWaitDelay lets late images and lazy attributes fill in.
	PostWaitDelay time.Duration
}

func DefaultOptions() Options {
	return Options{
		Headless:       true,
		UserAgent:      DefaultUserAgent,
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		IdleWindow:     500 * time.Millisecond,
		SettleDelay:    3 * time.Second,
		ModalSelectors: []string{
			".ant-modal-close",
			".close-btn",
			`button[aria-label="Close"]`,
			".van-icon-cross",
		},
		WaitSelector:  ".title",
		WaitTimeout:   8 * time.Second,
		PostWaitDelay: 2 * time.Second,
	}
}

// RodRenderer implements Renderer with a single headless browser that is
// launched on first use and reused until Close.
type RodRenderer struct {
	opts Options
	log  logrus.FieldLogger

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// NewRodRenderer creates a renderer. No browser is started until the first Render.
func NewRodRenderer(opts Options, logger logrus.FieldLogger) *RodRenderer {
	return &RodRenderer{
		opts: opts,
		log:  logger.WithField("component", "renderer"),
	}
}

// Render loads url in a fresh tab and returns the DOM once the feed has
// rendered or the wait timed out. ctx bounds the whole operation.
func (r *RodRenderer) Render(ctx context.Context, url string) (*Page, error) {
	log := r.log.WithField("url", url)
	log.Info("Rendering page")

	browser, err := r.ensureBrowser()
	if err != nil {
		return nil, err
	}

	// --- Page Setup ---
	tab, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		log.WithError(err).Error("Failed to create rod page")
		return nil, fmt.Errorf("%w: failed to create page: %w", domain.ErrRender, err)
	}
	// Closed on the tab itself so it still works after ctx expired.
	defer func() {
		if closeErr := tab.Close(); closeErr != nil {
			log.WithError(closeErr).Debug("Error closing rod page")
		}
	}()
	page := tab.Context(ctx)

	if err = page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: r.opts.UserAgent}); err != nil {
		return nil, fmt.Errorf("%w: failed to set user agent: %w", domain.ErrRender, err)
	}
	if err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             r.opts.ViewportWidth,
		Height:            r.opts.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		return nil, fmt.Errorf("%w: failed to set viewport: %w", domain.ErrRender, err)
	}

	// --- Navigation ---
	waitIdle := page.WaitRequestIdle(r.opts.IdleWindow, nil, nil, nil)
	if err = page.Navigate(url); err != nil {
		return nil, r.navigationError(ctx, log, "navigate", err)
	}
	if err = page.WaitLoad(); err != nil {
		return nil, r.navigationError(ctx, log, "wait for load", err)
	}
	waitIdle()

	if err = sleep(ctx, r.opts.SettleDelay); err != nil {
		return nil, r.navigationError(ctx, log, "settle", err)
	}
	r.dismissModals(page, log)

	outcome := r.WaitFor(page, r.opts.WaitSelector, r.opts.WaitTimeout)
	if outcome == WaitTimedOut {
		log.WithField("selector", r.opts.WaitSelector).Warn("Feed marker did not appear, extracting anyway")
	}
	if err = sleep(ctx, r.opts.PostWaitDelay); err != nil {
		return nil, r.navigationError(ctx, log, "post-wait delay", err)
	}

	// --- Snapshot DOM ---
	html, err := page.HTML()
	if err != nil {
		return nil, r.navigationError(ctx, log, "read DOM", err)
	}

	log.WithFields(logrus.Fields{
		"bytes": len(html),
		"wait":  outcome.String(),
	}).Debug("Page rendered")
	return &Page{URL: url, HTML: html, Wait: outcome}, nil
}

// WaitFor blocks until selector matches or timeout elapses.
func (r *RodRenderer) WaitFor(page *rod.Page, selector string, timeout time.Duration) WaitOutcome {
	if selector == "" {
		return WaitReady
	}
	p := page.Timeout(timeout)
	defer p.CancelTimeout()

	if _, err := p.Element(selector); err != nil {
		return WaitTimedOut
	}
	return WaitReady
}

// dismissModals clicks any visible overlay close button. Failures are ignored.
func (r *RodRenderer) dismissModals(page *rod.Page, log logrus.FieldLogger) {
	for _, sel := range r.opts.ModalSelectors {
		els, err := page.Elements(sel)
		if err != nil {
			continue
		}
		for _, el := range els {
			visible, err := el.Visible()
			if err != nil || !visible {
				continue
			}
			if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
				log.WithError(err).WithField("selector", sel).Debug("Failed to close modal")
				continue
			}
			log.WithField("selector", sel).Debug("Closed modal")
		}
	}
}

func (r *RodRenderer) navigationError(ctx context.Context, log logrus.FieldLogger, step string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		log.WithError(ctx.Err()).Warn("Rendering timed out")
		return fmt.Errorf("%w: timed out during %s: %w", domain.ErrRender, step, ctx.Err())
	}
	log.WithError(err).WithField("step", step).Error("Rendering failed")
	return fmt.Errorf("%w: failed to %s: %w", domain.ErrRender, step, err)
}

func (r *RodRenderer) ensureBrowser() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser != nil {
		return r.browser, nil
	}

	path := r.opts.BrowserPath
	if path == "" {
		var exists bool
		path, exists = launcher.LookPath()
		if !exists {
			r.log.Error("Cannot find browser executable for rod")
			return nil, fmt.Errorf("%w: rod browser dependency not found", domain.ErrRender)
		}
	}

	l := launcher.New().Bin(path).Headless(r.opts.Headless).NoSandbox(true)
	u, err := l.Launch()
	if err != nil {
		r.log.WithError(err).Error("Failed to launch browser")
		return nil, fmt.Errorf("%w: failed to launch browser: %w", domain.ErrRender, err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		l.Kill()
		r.log.WithError(err).Error("Failed to connect to rod browser")
		return nil, fmt.Errorf("%w: failed to connect to browser: %w", domain.ErrRender, err)
	}

	r.log.WithField("bin", path).Info("Browser started")
	r.launcher = l
	r.browser = browser
	return browser, nil
}

// Close shuts the browser down and removes its profile directory.
func (r *RodRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	if r.browser != nil {
		if err = r.browser.Close(); err != nil {
			r.log.WithError(err).Error("Error closing rod browser instance")
			err = fmt.Errorf("error closing browser: %w", err)
		} else {
			r.log.Debug("Rod browser instance closed")
		}
		r.browser = nil
	}
	if r.launcher != nil {
		r.launcher.Kill()
		r.launcher.Cleanup()
		r.launcher = nil
	}
	return err
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
