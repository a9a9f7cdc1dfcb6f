// Package registry maintains the encrypted list of monitored profile links.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"feedwatch/internal/domain"
	"feedwatch/internal/secret"
	"feedwatch/internal/storage"
)

// Registry owns the canonical ordered list of LinkEntry values.
type Registry struct {
	repo     storage.Repository
	cipher   *secret.Cipher
	validate *validator.Validate
	log      logrus.FieldLogger
}

// New creates a registry. cipher may be nil when no encryption key is
// configured; reads then degrade to an empty list and writes fail.
func New(repo storage.Repository, cipher *secret.Cipher, logger logrus.FieldLogger) *Registry {
	return &Registry{
		repo:     repo,
		cipher:   cipher,
		validate: validator.New(),
		log:      logger.WithField("component", "registry"),
	}
}

// Load returns the registry contents. It never fails because of a missing key
// or an unreadable blob; those degrade to an empty list with a logged warning.
// Legacy formats (plaintext lines, plaintext JSON, arrays of bare URLs) are
// upgraded and persisted in place.
func (r *Registry) Load(ctx context.Context) ([]domain.LinkEntry, error) {
	return r.load(ctx, false)
}

// load reads the registry. With strict set, a blob sealed under another key is
// returned as domain.ErrDecryption so callers that write back cannot replace
// it with an empty list.
func (r *Registry) load(ctx context.Context, strict bool) ([]domain.LinkEntry, error) {
	if r.cipher == nil {
		r.log.Warn("Encryption key is not set, returning empty link list")
		return []domain.LinkEntry{}, nil
	}

	blob, err := r.repo.Get(ctx, storage.LinksBlob)
	if errors.Is(err, domain.ErrNotFound) {
		r.log.Info("Link registry does not exist yet, initializing it")
		if err := r.Save(ctx, []domain.LinkEntry{}); err != nil {
			r.log.WithError(err).Warn("Failed to initialize link registry")
		}
		return []domain.LinkEntry{}, nil
	}
	if err != nil {
		r.log.WithError(err).Error("Failed to read link registry, returning empty link list")
		return []domain.LinkEntry{}, nil
	}

	blob = strings.TrimSpace(blob)
	if blob == "" {
		r.log.Warn("Link registry is empty")
		return []domain.LinkEntry{}, nil
	}

	var raw json.RawMessage
	if decErr := r.cipher.Decrypt(blob, &raw); decErr == nil {
		entries, legacy, err := decodeEntries(raw)
		if err != nil {
			r.log.WithError(err).Error("Link registry has an unexpected shape, returning empty link list")
			return []domain.LinkEntry{}, nil
		}
		if legacy {
			r.log.Info("Converting link registry from URL list to name/url entries")
			r.persistMigrated(ctx, entries)
		}
		return keepWithURL(entries), nil
	}

	if looksSealed(blob) {
		// Sealed with another key. Re-saving would destroy the list.
		if strict {
			return nil, fmt.Errorf("link registry: %w", domain.ErrDecryption)
		}
		r.log.Error("Link registry cannot be decrypted with the configured key, returning empty link list")
		return []domain.LinkEntry{}, nil
	}

	// Not sealed: a plaintext file written before encryption was introduced.
	entries, _, err := decodeEntries([]byte(blob))
	if err != nil {
		entries = parseLines(blob)
	}
	r.log.WithField("link_count", len(entries)).Info("Link registry is not encrypted, migrating it")
	if len(entries) > 0 {
		r.persistMigrated(ctx, entries)
	}
	return keepWithURL(entries), nil
}

func (r *Registry) persistMigrated(ctx context.Context, entries []domain.LinkEntry) {
	if err := r.Save(ctx, entries); err != nil {
		r.log.WithError(err).Warn("Failed to persist migrated link registry")
	}
}

// Save trims every entry, drops entries without a URL, removes duplicate URLs
// (first wins) and persists the list encrypted.
func (r *Registry) Save(ctx context.Context, entries []domain.LinkEntry) error {
	if r.cipher == nil {
		return fmt.Errorf("%w: encryption key is required to save links", domain.ErrConfig)
	}

	clean := make([]domain.LinkEntry, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		e = e.Normalize()
		if e.URL == "" || seen[e.URL] {
			continue
		}
		seen[e.URL] = true
		clean = append(clean, e)
	}

	blob, err := r.cipher.Encrypt(clean)
	if err != nil {
		return fmt.Errorf("failed to encrypt links: %w", err)
	}
	if err := r.repo.Put(ctx, storage.LinksBlob, blob); err != nil {
		return fmt.Errorf("failed to save links: %w", err)
	}

	r.log.WithField("link_count", len(clean)).Info("Link registry saved")
	return nil
}

// Add appends a new entry. The URL must be valid and not yet registered.
func (r *Registry) Add(ctx context.Context, entry domain.LinkEntry) error {
	entry = entry.Normalize()
	if err := r.validate.Struct(entry); err != nil {
		return fmt.Errorf("invalid link: %w", err)
	}

	entries, err := r.load(ctx, true)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.URL == entry.URL {
			return fmt.Errorf("link %s is already registered", entry.URL)
		}
	}
	return r.Save(ctx, append(entries, entry))
}

// Update replaces the entry keyed by url, keeping its position.
func (r *Registry) Update(ctx context.Context, url string, entry domain.LinkEntry) error {
	entry = entry.Normalize()
	if err := r.validate.Struct(entry); err != nil {
		return fmt.Errorf("invalid link: %w", err)
	}

	entries, err := r.load(ctx, true)
	if err != nil {
		return err
	}
	idx := indexOf(entries, strings.TrimSpace(url))
	if idx < 0 {
		return fmt.Errorf("link %s: %w", url, domain.ErrNotFound)
	}
	entries[idx] = entry
	return r.Save(ctx, entries)
}

// Remove deletes the entry keyed by url.
func (r *Registry) Remove(ctx context.Context, url string) error {
	entries, err := r.load(ctx, true)
	if err != nil {
		return err
	}
	idx := indexOf(entries, strings.TrimSpace(url))
	if idx < 0 {
		return fmt.Errorf("link %s: %w", url, domain.ErrNotFound)
	}
	return r.Save(ctx, append(entries[:idx], entries[idx+1:]...))
}

// ReconcileNames back-fills blank display names from names observed during a
// run. Names that are already set are never overwritten. The registry is only
// written when something changed.
func (r *Registry) ReconcileNames(ctx context.Context, observed map[string]string) (bool, error) {
	if len(observed) == 0 {
		return false, nil
	}

	entries, err := r.load(ctx, true)
	if err != nil {
		return false, err
	}

	changed := 0
	for i, e := range entries {
		if strings.TrimSpace(e.Name) != "" {
			continue
		}
		name := strings.TrimSpace(observed[e.URL])
		if name == "" {
			continue
		}
		entries[i].Name = name
		changed++
	}

	if changed == 0 {
		r.log.Debug("No link names to update")
		return false, nil
	}
	if err := r.Save(ctx, entries); err != nil {
		return false, err
	}
	r.log.WithField("updated", changed).Info("Updated link names from observed profiles")
	return true, nil
}

func indexOf(entries []domain.LinkEntry, url string) int {
	for i, e := range entries {
		if e.URL == url {
			return i
		}
	}
	return -1
}

func keepWithURL(entries []domain.LinkEntry) []domain.LinkEntry {
	out := make([]domain.LinkEntry, 0, len(entries))
	for _, e := range entries {
		if e.HasURL() {
			out = append(out, e.Normalize())
		}
	}
	return out
}

// decodeEntries accepts either the current shape (array of {name,url}) or the
// first format (array of URL strings). legacy reports the latter.
func decodeEntries(raw []byte) (entries []domain.LinkEntry, legacy bool, err error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false, fmt.Errorf("link registry is not a JSON array: %w", err)
	}

	entries = make([]domain.LinkEntry, 0, len(items))
	for _, item := range items {
		item = bytes.TrimSpace(item)
		if len(item) > 0 && item[0] == '"' {
			var url string
			if err := json.Unmarshal(item, &url); err != nil {
				return nil, false, err
			}
			legacy = true
			entries = append(entries, domain.LinkEntry{URL: url})
			continue
		}
		var e domain.LinkEntry
		if err := json.Unmarshal(item, &e); err != nil {
			return nil, false, err
		}
		entries = append(entries, e)
	}
	return entries, legacy, nil
}

// looksSealed reports whether blob has the ivHex:cipherHex shape.
func looksSealed(blob string) bool {
	iv, data, ok := strings.Cut(blob, ":")
	if !ok || len(iv) != 32 || data == "" {
		return false
	}
	return isHex(iv) && isHex(data)
}

func isHex(s string) bool {
	for _, c := range s {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}

// parseLines reads the oldest format: one URL per line, '#' comments allowed.
func parseLines(text string) []domain.LinkEntry {
	var out []domain.LinkEntry
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, domain.LinkEntry{URL: line})
	}
	return out
}
