package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"feedwatch/internal/domain"
)

// blobPrefix namespaces blob keys inside the database.
const blobPrefix = "blob:"

// BadgerRepository keeps every blob as one key in an embedded BadgerDB.
type BadgerRepository struct {
	db  *badger.DB
	log logrus.FieldLogger
}

// NewBadgerRepository opens (or creates) the database directory at dbPath.
// Badger's own log lines are routed through logger.
func NewBadgerRepository(dbPath string, logger logrus.FieldLogger) (*BadgerRepository, error) {
	// logrus.FieldLogger already satisfies badger.Logger.
	opts := badger.DefaultOptions(dbPath).
		WithLogger(logger.WithField("component", "badgerdb")).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db at %s: %w", dbPath, err)
	}

	log := logger.WithField("component", "repository")
	log.WithField("path", dbPath).Info("Blob store opened")
	return &BadgerRepository{db: db, log: log}, nil
}

func blobKey(name string) []byte {
	return []byte(blobPrefix + name)
}

// Get reads a blob in a read-only transaction.
func (r *BadgerRepository) Get(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var val []byte
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blobKey(name))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return "", fmt.Errorf("blob %s: %w", name, domain.ErrNotFound)
	case err != nil:
		return "", fmt.Errorf("failed to read blob %s: %w", name, err)
	}
	return string(val), nil
}

// Put replaces the blob in a single write transaction.
func (r *BadgerRepository) Put(ctx context.Context, name string, data string) error {
	if err := r.update(ctx, name, func(txn *badger.Txn) error {
		return txn.Set(blobKey(name), []byte(data))
	}); err != nil {
		return fmt.Errorf("failed to write blob %s: %w", name, err)
	}
	r.log.WithFields(logrus.Fields{"blob": name, "bytes": len(data)}).Debug("Blob written")
	return nil
}

// Delete removes the blob. Deleting a missing key succeeds.
func (r *BadgerRepository) Delete(ctx context.Context, name string) error {
	if err := r.update(ctx, name, func(txn *badger.Txn) error {
		return txn.Delete(blobKey(name))
	}); err != nil {
		return fmt.Errorf("failed to delete blob %s: %w", name, err)
	}
	return nil
}

func (r *BadgerRepository) update(ctx context.Context, name string, fn func(*badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.db.Update(fn); err != nil {
		r.log.WithError(err).WithField("blob", name).Error("Blob transaction failed")
		return err
	}
	return nil
}

// Close flushes and closes the database.
func (r *BadgerRepository) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger db: %w", err)
	}
	r.log.Debug("Blob store closed")
	return nil
}
