package storage

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"feedwatch/internal/domain"
)

// Well-known blob names.
const (
	LinksBlob  = "links"
	FlagsBlob  = "config"
	LatestBlob = "bloggers_latest"
	dailyBlob  = "daily_"
)

// DailyBlob returns the blob name holding the delta snapshot for an ISO date.
func DailyBlob(date string) string {
	return dailyBlob + date
}

// Repository stores opaque named blobs.
// Both the file and the BadgerDB backends implement it, so the registry,
// snapshot and flag stores do not care where their bytes live.
type Repository interface {
	// Get returns the blob stored under name, or domain.ErrNotFound.
	Get(ctx context.Context, name string) (string, error)

	// Put stores data under name, replacing any previous value.
	Put(ctx context.Context, name string, data string) error

	// Delete removes name. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// Close gracefully shuts down the repository.
	Close() error
}

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendBadger = "badger"
)

// Open returns the repository for backend. An empty backend selects files.
func Open(backend, dataDir, linksPath, badgerPath string, logger logrus.FieldLogger) (Repository, error) {
	switch backend {
	case "", BackendFile:
		repo, err := NewFileRepository(dataDir, linksPath, logger)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case BackendBadger:
		repo, err := NewBadgerRepository(badgerPath, logger)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", domain.ErrConfig, backend)
	}
}
