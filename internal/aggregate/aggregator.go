// Package aggregate runs one extraction pass over every registered profile.
package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"feedwatch/internal/domain"
	"feedwatch/internal/extract"
	"feedwatch/internal/flags"
	"feedwatch/internal/registry"
	"feedwatch/internal/scraper"
	"feedwatch/internal/snapshot"
)

// PageWriter publishes the rolling view, e.g. as a static HTML page.
type PageWriter interface {
	WritePage(snaps []domain.EntitySnapshot, now time.Time) error
}

// Deps are the collaborators of an Aggregator. Site may be nil.
type Deps struct {
	Registry  *registry.Registry
	Flags     *flags.Store
	Snapshots *snapshot.Store
	Renderer  scraper.Renderer
	Extractor *extract.Extractor
	Site      PageWriter
}

// Options tune a run.
type Options struct {
	// PageTimeout bounds rendering of a single profile.
	PageTimeout time.Duration
	// Interval is the minimum spacing between two page loads.
	Interval time.Duration
	// Location decides the calendar date for recency and the daily key.
	Location *time.Location
	// Now returns the capture moment. Defaults to time.Now.
	Now func() time.Time
}

// Result summarizes a run.
type Result struct {
	RunID        string
	Skipped      bool
	Snapshots    []domain.EntitySnapshot
	Failed       int
	Posts        int
	RecentPosts  int
	TodayWritten bool
}

// Aggregator visits each registered profile in order, one at a time.
type Aggregator struct {
	deps    Deps
	opts    Options
	limiter *rate.Limiter
	log     logrus.FieldLogger
}

func New(deps Deps, opts Options, logger logrus.FieldLogger) *Aggregator {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = 90 * time.Second
	}
	limit := rate.Inf
	if opts.Interval > 0 {
		limit = rate.Every(opts.Interval)
	}
	return &Aggregator{
		deps:    deps,
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
		log:     logger.WithField("component", "aggregator"),
	}
}

// Run performs a full pass: render and extract every profile, reconcile
// names, persist both snapshot views and publish the page. The renderer is
// closed before Run returns.
//
// A profile that fails to render is recorded with no posts and the run
// continues. Only persistence failures and cancellation abort the run.
func (a *Aggregator) Run(ctx context.Context) (Result, error) {
	res := Result{RunID: uuid.NewString()}
	log := a.log.WithField("run_id", res.RunID)

	defer func() {
		if err := a.deps.Renderer.Close(); err != nil {
			log.WithError(err).Warn("Error closing renderer")
		}
	}()

	if !a.deps.Flags.Get(ctx).Crawler() {
		log.Info("Crawler is disabled, skipping run")
		res.Skipped = true
		return res, nil
	}

	entries, err := a.deps.Registry.Load(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to load link registry: %w", err)
	}
	if len(entries) == 0 {
		log.Warn("No links registered, nothing to do")
		return res, nil
	}

	now := a.opts.Now().In(a.opts.Location)
	log.WithFields(logrus.Fields{
		"links": len(entries),
		"date":  snapshot.DateKey(now, a.opts.Location),
	}).Info("Starting run")

	observed := make(map[string]string)
	snaps := make([]domain.EntitySnapshot, 0, len(entries))
	for i, entry := range entries {
		if err := a.limiter.Wait(ctx); err != nil {
			return res, fmt.Errorf("run interrupted: %w", err)
		}
		entryLog := log.WithFields(logrus.Fields{"index": i, "url": entry.URL})

		snap, err := a.visit(ctx, entry, now)
		if err != nil {
			if ctx.Err() != nil {
				return res, fmt.Errorf("run interrupted: %w", ctx.Err())
			}
			entryLog.WithError(err).Warn("Failed to process profile, recording it without posts")
			res.Failed++
		} else if snap.Nickname != domain.UnknownName {
			observed[entry.URL] = snap.Nickname
		}

		entryLog.WithFields(logrus.Fields{
			"nickname": snap.Nickname,
			"posts":    len(snap.Posts),
		}).Info("Processed profile")
		snaps = append(snaps, snap)
	}

	if _, err := a.deps.Registry.ReconcileNames(ctx, observed); err != nil {
		log.WithError(err).Warn("Failed to update profile names")
	}

	if err := a.deps.Snapshots.WriteLatest(ctx, snaps); err != nil {
		return res, err
	}
	res.TodayWritten, err = a.deps.Snapshots.WriteToday(ctx, snaps, snapshot.DateKey(now, a.opts.Location))
	if err != nil {
		return res, err
	}

	if a.deps.Site != nil {
		if err := a.deps.Site.WritePage(snaps, now); err != nil {
			return res, fmt.Errorf("failed to write static page: %w", err)
		}
	}

	res.Snapshots = snaps
	res.Posts = domain.CountPosts(snaps)
	res.RecentPosts = domain.CountPosts(snapshot.FilterRecent(snaps))
	log.WithFields(logrus.Fields{
		"profiles":     len(snaps),
		"failed":       res.Failed,
		"posts":        res.Posts,
		"recent_posts": res.RecentPosts,
	}).Info("Run finished")
	return res, nil
}

// visit renders and extracts one profile. On error the returned snapshot is
// still usable: it carries the known name and no posts.
func (a *Aggregator) visit(ctx context.Context, entry domain.LinkEntry, now time.Time) (domain.EntitySnapshot, error) {
	snap := domain.EntitySnapshot{
		Nickname:    knownName(entry),
		HomepageURL: entry.URL,
		Posts:       []domain.Post{},
	}

	pageCtx, cancel := context.WithTimeout(ctx, a.opts.PageTimeout)
	defer cancel()

	page, err := a.deps.Renderer.Render(pageCtx, entry.URL)
	if err != nil {
		return snap, err
	}
	doc, err := extract.Parse(page.HTML)
	if err != nil {
		return snap, fmt.Errorf("%w: %w", domain.ErrRender, err)
	}

	if name := a.deps.Extractor.ResolveName(doc); name != domain.UnknownName {
		snap.Nickname = name
	}
	snap.Posts = a.deps.Extractor.Extract(doc, entry.URL, now)
	return snap.Capped(), nil
}

func knownName(entry domain.LinkEntry) string {
	if entry.Name != "" {
		return entry.Name
	}
	return domain.UnknownName
}
