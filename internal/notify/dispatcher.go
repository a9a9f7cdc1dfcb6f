// Package notify decides whether a sink should be invoked and delivers the
// digest through it.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"feedwatch/internal/domain"
	"feedwatch/internal/snapshot"
)

var validate = validator.New()

// Sink delivers a message to one external channel.
type Sink interface {
	Name() string
	// Validate reports whether the sink has everything it needs to send.
	Validate() error
	Send(ctx context.Context, msg Message) error
}

// FlagReader supplies the feature flags.
type FlagReader interface {
	Get(ctx context.Context) domain.FeatureFlags
}

// SnapshotReader supplies the stored views.
type SnapshotReader interface {
	ReadLatest(ctx context.Context) ([]domain.EntitySnapshot, error)
	ReadToday(ctx context.Context, date string) ([]domain.EntitySnapshot, error)
}

// Source selects the snapshot a request reports on.
type Source int

const (
	SourceToday Source = iota
	SourceLatest
)

// Request describes one delivery attempt.
type Request struct {
	Sink   Sink
	Kind   Kind
	Source Source
	// Flag gates the request. Nil means the request is never disabled.
	Flag func(domain.FeatureFlags) bool
}

// ScheduledDigest mails today's new posts when the email flag is on.
func ScheduledDigest(s Sink) Request {
	return Request{Sink: s, Kind: KindDigest, Source: SourceToday, Flag: domain.FeatureFlags.Email}
}

// ManualDigest mails the rolling view. It is an explicit operator action, so
// the email flag does not apply.
func ManualDigest(s Sink) Request {
	return Request{Sink: s, Kind: KindManualDigest, Source: SourceLatest}
}

// Push sends today's count when the wechat flag is on.
func Push(s Sink) Request {
	return Request{Sink: s, Kind: KindPush, Source: SourceToday, Flag: domain.FeatureFlags.Wechat}
}

// ManualPush sends the rolling view's count when the wechat flag is on.
func ManualPush(s Sink) Request {
	return Request{Sink: s, Kind: KindPush, Source: SourceLatest, Flag: domain.FeatureFlags.Wechat}
}

// Outcome tells whether a message went out and, if not, why.
type Outcome struct {
	Sent   bool
	Reason string
	Posts  int
}

// Dispatcher applies the delivery gates in order: flag, sink configuration,
// at least one post.
type Dispatcher struct {
	flags     FlagReader
	snapshots SnapshotReader
	loc       *time.Location
	siteURL   string
	now       func() time.Time
	log       logrus.FieldLogger
}

func NewDispatcher(flags FlagReader, snapshots SnapshotReader, loc *time.Location, siteURL string, logger logrus.FieldLogger) *Dispatcher {
	if loc == nil {
		loc = time.UTC
	}
	return &Dispatcher{
		flags:     flags,
		snapshots: snapshots,
		loc:       loc,
		siteURL:   siteURL,
		now:       time.Now,
		log:       logger.WithField("component", "notifier"),
	}
}

// Dispatch runs req. A closed gate is not an error: the Outcome carries the
// reason. Errors wrap domain.ErrDelivery when sending failed, or come from
// reading the snapshot.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Outcome, error) {
	log := d.log.WithFields(logrus.Fields{"sink": req.Sink.Name(), "kind": req.Kind.String()})

	if req.Flag != nil && !req.Flag(d.flags.Get(ctx)) {
		log.Info("Sink is disabled by feature flag, skipping")
		return Outcome{Reason: "disabled"}, nil
	}

	if err := req.Sink.Validate(); err != nil {
		log.WithError(err).Info("Sink is not configured, skipping")
		return Outcome{Reason: "not configured"}, nil
	}

	now := d.now().In(d.loc)
	snaps, err := d.read(ctx, req.Source, now)
	if errors.Is(err, domain.ErrNotFound) {
		log.Info("No updates to report, skipping")
		return Outcome{Reason: "no updates"}, nil
	}
	if err != nil {
		return Outcome{}, err
	}

	count := domain.CountPosts(snaps)
	if count == 0 {
		log.Info("No new posts, skipping")
		return Outcome{Reason: "no updates"}, nil
	}

	msg, err := BuildMessage(req.Kind, count, now, d.siteURL)
	if err != nil {
		return Outcome{}, err
	}

	if err := req.Sink.Send(ctx, msg); err != nil {
		log.WithError(err).Error("Delivery failed")
		if !errors.Is(err, domain.ErrDelivery) {
			err = fmt.Errorf("%w: %w", domain.ErrDelivery, err)
		}
		return Outcome{Posts: count}, fmt.Errorf("%s sink: %w", req.Sink.Name(), err)
	}

	log.WithField("posts", count).Info("Notification sent")
	return Outcome{Sent: true, Posts: count}, nil
}

func (d *Dispatcher) read(ctx context.Context, src Source, now time.Time) ([]domain.EntitySnapshot, error) {
	if src == SourceLatest {
		return d.snapshots.ReadLatest(ctx)
	}
	return d.snapshots.ReadToday(ctx, snapshot.DateKey(now, d.loc))
}
