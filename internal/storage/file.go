package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"feedwatch/internal/domain"
)

// FileRepository keeps each blob in its own file. The link registry lives at
// linksPath (historically links.txt at the repository root); everything else
// goes to <dataDir>/<name>.enc.
type FileRepository struct {
	dataDir   string
	linksPath string
	log       logrus.FieldLogger
}

// NewFileRepository creates the data directory if needed.
func NewFileRepository(dataDir, linksPath string, logger logrus.FieldLogger) (*FileRepository, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir %s: %w", dataDir, err)
	}
	return &FileRepository{
		dataDir:   dataDir,
		linksPath: linksPath,
		log:       logger.WithField("component", "repository"),
	}, nil
}

func (r *FileRepository) path(name string) string {
	if name == LinksBlob && r.linksPath != "" {
		return r.linksPath
	}
	return filepath.Join(r.dataDir, name+".enc")
}

// Get reads the blob file.
func (r *FileRepository) Get(ctx context.Context, name string) (string, error) {
	b, err := os.ReadFile(r.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("blob %s: %w", name, domain.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read blob %s: %w", name, err)
	}
	return string(b), nil
}

// Put writes the blob through a temp file and rename so readers never see a
// half-written blob.
func (r *FileRepository) Put(ctx context.Context, name string, data string) error {
	p := r.path(name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create dir for %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".tmp-"+filepath.Base(p)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", name, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write blob %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close blob %s: %w", name, err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace blob %s: %w", name, err)
	}

	r.log.WithFields(logrus.Fields{"blob": name, "bytes": len(data)}).Debug("Blob written")
	return nil
}

// Delete removes the blob file if present.
func (r *FileRepository) Delete(ctx context.Context, name string) error {
	err := os.Remove(r.path(name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete blob %s: %w", name, err)
	}
	return nil
}

// Close is a no-op for plain files.
func (r *FileRepository) Close() error {
	return nil
}
