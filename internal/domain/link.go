package domain

import "strings"

// LinkEntry is one monitored profile page in the link registry.
type LinkEntry struct {
	// Name is the display name. It may be empty until a run observes one.
	Name string `json:"name" validate:"max=200"`

	// URL is the profile page address and the unique key of the entry.
	URL string `json:"url" validate:"required,url"`
}

// Normalize returns a copy with surrounding whitespace removed from both fields.
func (l LinkEntry) Normalize() LinkEntry {
	return LinkEntry{
		Name: strings.TrimSpace(l.Name),
		URL:  strings.TrimSpace(l.URL),
	}
}

// HasURL reports whether the entry carries a non-blank URL.
func (l LinkEntry) HasURL() bool {
	return strings.TrimSpace(l.URL) != ""
}
