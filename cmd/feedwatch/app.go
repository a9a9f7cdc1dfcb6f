package main

import (
	"fmt"
	"time"

	"feedwatch/internal/domain"
	"feedwatch/internal/flags"
	"feedwatch/internal/registry"
	"feedwatch/internal/secret"
	"feedwatch/internal/snapshot"
	"feedwatch/internal/storage"
)

// app wires the stores shared by all subcommands.
type app struct {
	repo      storage.Repository
	cipher    *secret.Cipher
	registry  *registry.Registry
	flags     *flags.Store
	snapshots *snapshot.Store
	loc       *time.Location
}

// openApp builds the stores from cfg. A missing encryption key is allowed:
// reads degrade and writes fail with domain.ErrConfig.
func openApp() (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	repo, err := storage.Open(cfg.StorageBackend, cfg.DataDir, cfg.LinksFile, cfg.BadgerDBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open storage: %w", domain.ErrConfig, err)
	}

	var c *secret.Cipher
	if cfg.DataEncryptKey != "" {
		if c, err = secret.New(cfg.DataEncryptKey); err != nil {
			_ = repo.Close()
			return nil, err
		}
	} else {
		logger.Warn("DATA_ENCRYPT_KEY is not set, stored data cannot be read or written")
	}

	return &app{
		repo:      repo,
		cipher:    c,
		registry:  registry.New(repo, c, logger),
		flags:     flags.NewStore(repo, c, logger),
		snapshots: snapshot.NewStore(repo, c, logger),
		loc:       loc,
	}, nil
}

func (a *app) requireKey() error {
	if a.cipher == nil {
		return fmt.Errorf("%w: DATA_ENCRYPT_KEY must be set", domain.ErrConfig)
	}
	return nil
}

func (a *app) Close() {
	logger.Debug("Closing storage...")
	if err := a.repo.Close(); err != nil {
		logger.WithError(err).Error("Error closing storage")
	}
}
