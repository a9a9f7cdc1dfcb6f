// Package flags reads and writes the encrypted feature-flag blob.
package flags

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"feedwatch/internal/domain"
	"feedwatch/internal/secret"
	"feedwatch/internal/storage"
)

// Store persists domain.FeatureFlags.
type Store struct {
	repo   storage.Repository
	cipher *secret.Cipher
	log    logrus.FieldLogger
}

func NewStore(repo storage.Repository, cipher *secret.Cipher, logger logrus.FieldLogger) *Store {
	return &Store{repo: repo, cipher: cipher, log: logger.WithField("component", "flags")}
}

// Get returns the current flags merged with defaults. It never fails: any
// problem reading the blob yields defaults. A missing blob is created and a
// plaintext blob is re-encrypted.
func (s *Store) Get(ctx context.Context) domain.FeatureFlags {
	if s.cipher == nil {
		s.log.Warn("Encryption key is not set, using default flags")
		return domain.DefaultFlags()
	}
	f, err := s.Load(ctx)
	if err != nil {
		s.log.WithError(err).Error("Failed to read flags, using defaults")
		return domain.DefaultFlags()
	}
	return f
}

// Load is Get for callers that write the flags back. A blob that exists but
// cannot be decoded is returned as domain.ErrDecryption instead of being
// replaced by defaults.
func (s *Store) Load(ctx context.Context) (domain.FeatureFlags, error) {
	if s.cipher == nil {
		return domain.FeatureFlags{}, fmt.Errorf("%w: encryption key is required to read flags", domain.ErrConfig)
	}

	blob, err := s.repo.Get(ctx, storage.FlagsBlob)
	if errors.Is(err, domain.ErrNotFound) {
		if err := s.Save(ctx, domain.DefaultFlags()); err != nil {
			s.log.WithError(err).Warn("Failed to write default flags")
		}
		return domain.DefaultFlags(), nil
	}
	if err != nil {
		return domain.FeatureFlags{}, fmt.Errorf("failed to read flags: %w", err)
	}

	var f domain.FeatureFlags
	legacy, err := s.cipher.DecodeWithFallback(blob, &f)
	if err != nil {
		return domain.FeatureFlags{}, fmt.Errorf("flags: %w", err)
	}
	f = f.MergeDefaults()
	if legacy {
		s.log.Info("Flags blob is not encrypted, migrating it")
		if err := s.Save(ctx, f); err != nil {
			s.log.WithError(err).Warn("Failed to persist migrated flags")
		}
	}
	return f, nil
}

// Save merges defaults and persists the flags encrypted.
func (s *Store) Save(ctx context.Context, f domain.FeatureFlags) error {
	if s.cipher == nil {
		return fmt.Errorf("%w: encryption key is required to save flags", domain.ErrConfig)
	}
	f = f.MergeDefaults()
	for name, v := range map[string]string{
		"emailEnabled":   f.EmailEnabled,
		"crawlerEnabled": f.CrawlerEnabled,
		"wechatEnabled":  f.WechatEnabled,
	} {
		if v != domain.FlagOn && v != domain.FlagOff {
			return fmt.Errorf("flag %s must be %q or %q, got %q", name, domain.FlagOn, domain.FlagOff, v)
		}
	}

	blob, err := s.cipher.Encrypt(f)
	if err != nil {
		return fmt.Errorf("failed to encrypt flags: %w", err)
	}
	if err := s.repo.Put(ctx, storage.FlagsBlob, blob); err != nil {
		return fmt.Errorf("failed to save flags: %w", err)
	}
	s.log.WithFields(logrus.Fields{
		"emailEnabled":   f.EmailEnabled,
		"crawlerEnabled": f.CrawlerEnabled,
		"wechatEnabled":  f.WechatEnabled,
	}).Info("Flags saved")
	return nil
}
