// Package snapshot persists the rolling "latest posts per profile" view and the
// date-keyed "today's new posts" view.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"feedwatch/internal/domain"
	"feedwatch/internal/secret"
	"feedwatch/internal/storage"
)

// Store reads and writes encrypted snapshot blobs.
type Store struct {
	repo   storage.Repository
	cipher *secret.Cipher
	log    logrus.FieldLogger
}

func NewStore(repo storage.Repository, cipher *secret.Cipher, logger logrus.FieldLogger) *Store {
	return &Store{repo: repo, cipher: cipher, log: logger.WithField("component", "snapshot")}
}

// DateKey formats now as an ISO calendar date in loc. Runs triggered from
// different infrastructure time zones agree on the same key.
func DateKey(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format(time.DateOnly)
}

// WriteLatest overwrites the rolling view with snaps. There is no merge with
// the previous rolling view.
func (s *Store) WriteLatest(ctx context.Context, snaps []domain.EntitySnapshot) error {
	if s.cipher == nil {
		return fmt.Errorf("%w: encryption key is required to save snapshots", domain.ErrConfig)
	}

	if prev, err := s.ReadLatest(ctx); err == nil {
		s.log.WithFields(logrus.Fields{
			"previous_entities": len(prev),
			"entities":          len(snaps),
		}).Debug("Replacing rolling snapshot")
	}

	capped := make([]domain.EntitySnapshot, len(snaps))
	for i, snap := range snaps {
		capped[i] = snap.Capped()
	}
	if err := s.put(ctx, storage.LatestBlob, capped); err != nil {
		return err
	}

	s.log.WithField("entities", len(capped)).Info("Saved latest posts")
	return nil
}

// ReadLatest returns the rolling view or domain.ErrNotFound.
func (s *Store) ReadLatest(ctx context.Context) ([]domain.EntitySnapshot, error) {
	return s.get(ctx, storage.LatestBlob)
}

// WriteToday keeps only entities with at least one recent post, and only their
// recent posts, and stores them under date. When nothing is recent the
// existing blob for date is deleted: absence means "no updates today".
// It reports whether a blob was written.
func (s *Store) WriteToday(ctx context.Context, snaps []domain.EntitySnapshot, date string) (bool, error) {
	if s.cipher == nil {
		return false, fmt.Errorf("%w: encryption key is required to save snapshots", domain.ErrConfig)
	}

	today := FilterRecent(snaps)
	name := storage.DailyBlob(date)
	log := s.log.WithField("date", date)

	if len(today) == 0 {
		if err := s.repo.Delete(ctx, name); err != nil {
			return false, fmt.Errorf("failed to clear today's snapshot: %w", err)
		}
		log.Info("No updates today")
		return false, nil
	}

	if err := s.put(ctx, name, today); err != nil {
		return false, err
	}
	log.WithFields(logrus.Fields{
		"entities": len(today),
		"posts":    domain.CountPosts(today),
	}).Info("Saved today's updates")
	return true, nil
}

// ReadToday returns the delta view for date or domain.ErrNotFound.
func (s *Store) ReadToday(ctx context.Context, date string) ([]domain.EntitySnapshot, error) {
	return s.get(ctx, storage.DailyBlob(date))
}

// FilterRecent returns, in order, the entities with recent posts, each reduced
// to those posts.
func FilterRecent(snaps []domain.EntitySnapshot) []domain.EntitySnapshot {
	var out []domain.EntitySnapshot
	for _, snap := range snaps {
		if !snap.HasRecent() {
			continue
		}
		out = append(out, snap.RecentOnly())
	}
	return out
}

func (s *Store) put(ctx context.Context, name string, snaps []domain.EntitySnapshot) error {
	blob, err := s.cipher.Encrypt(snaps)
	if err != nil {
		return fmt.Errorf("failed to encrypt snapshot %s: %w", name, err)
	}
	if err := s.repo.Put(ctx, name, blob); err != nil {
		return fmt.Errorf("failed to save snapshot %s: %w", name, err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, name string) ([]domain.EntitySnapshot, error) {
	if s.cipher == nil {
		return nil, fmt.Errorf("%w: encryption key is required to read snapshots", domain.ErrConfig)
	}
	blob, err := s.repo.Get(ctx, name)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read snapshot %s: %w", name, err)
	}

	var snaps []domain.EntitySnapshot
	if _, err := s.cipher.DecodeWithFallback(blob, &snaps); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", name, err)
	}
	return snaps, nil
}
