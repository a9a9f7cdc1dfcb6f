// Package site renders the rolling view as a static HTML page.
package site

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"feedwatch/internal/domain"
	"feedwatch/internal/extract"
)

//go:embed templates/*.html
var templatesFS embed.FS

var profileIDRe = regexp.MustCompile(`/(\d+)(?:\?|$)`)

type pageView struct {
	Generated string
	Year      int
	HasNew    bool
	Cards     []cardView
}

type cardView struct {
	Name        string
	HomepageURL string
	SearchURL   string
	HasNew      bool
	Posts       []postView
}

type postView struct {
	Title   string
	Time    string
	IsToday bool
	Image   template.URL
}

// Generator writes the page to a file.
type Generator struct {
	path         string
	searchDomain string
	tmpl         *template.Template
	log          logrus.FieldLogger
}

// NewGenerator parses the embedded template. searchDomain enables a Google
// site-search link per profile when non-empty.
func NewGenerator(path, searchDomain string, logger logrus.FieldLogger) (*Generator, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Generator{
		path:         path,
		searchDomain: searchDomain,
		tmpl:         tmpl,
		log:          logger.WithField("component", "site"),
	}, nil
}

// WritePage renders snaps and replaces the output file.
func (g *Generator) WritePage(snaps []domain.EntitySnapshot, now time.Time) error {
	var buf bytes.Buffer
	if err := g.Render(&buf, snaps, now); err != nil {
		return err
	}

	if dir := filepath.Dir(g.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	tmp := g.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write page: %w", err)
	}
	if err := os.Rename(tmp, g.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace page: %w", err)
	}

	g.log.WithFields(logrus.Fields{
		"path":     g.path,
		"profiles": len(snaps),
	}).Info("Static page generated")
	return nil
}

// Render writes the page for snaps to w. Profiles are ordered by their most
// recent post, newest first.
func (g *Generator) Render(w io.Writer, snaps []domain.EntitySnapshot, now time.Time) error {
	view := pageView{
		Generated: now.Format("2006-01-02 15:04"),
		Year:      now.Year(),
	}
	for _, snap := range SortByLatest(snaps, now) {
		card := cardView{
			Name:        snap.Nickname,
			HomepageURL: snap.HomepageURL,
			SearchURL:   g.searchURL(snap.HomepageURL),
			HasNew:      snap.HasRecent(),
		}
		if card.HomepageURL == "" {
			card.HomepageURL = "#"
		}
		for _, p := range snap.Posts {
			card.Posts = append(card.Posts, postView{
				Title:   p.Title,
				Time:    orUnknown(p.Time),
				IsToday: p.IsToday,
				Image:   safeImage(p.FirstImage()),
			})
		}
		view.HasNew = view.HasNew || card.HasNew
		view.Cards = append(view.Cards, card)
	}

	if err := g.tmpl.ExecuteTemplate(w, "index.html", view); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}
	return nil
}

func (g *Generator) searchURL(homepage string) string {
	if g.searchDomain == "" {
		return "#"
	}
	m := profileIDRe.FindStringSubmatch(homepage)
	if m == nil {
		return "#"
	}
	return "https://www.google.com/search?q=" + m[1] + "&q=site%3A" + url.QueryEscape(g.searchDomain)
}

// SortByLatest returns a copy of snaps ordered by latest post date,
// descending. Posts carry only month and day: the year is taken from now and
// dates that would lie in the future are moved to the previous year. Profiles
// without a parseable date keep their relative order at the end.
func SortByLatest(snaps []domain.EntitySnapshot, now time.Time) []domain.EntitySnapshot {
	type ranked struct {
		snap domain.EntitySnapshot
		at   time.Time
	}
	rs := make([]ranked, len(snaps))
	for i, snap := range snaps {
		rs[i] = ranked{snap: snap, at: latestPostDate(snap.Posts, now)}
	}
	sort.SliceStable(rs, func(a, b int) bool {
		return rs[a].at.After(rs[b].at)
	})

	out := make([]domain.EntitySnapshot, len(rs))
	for i, r := range rs {
		out[i] = r.snap
	}
	return out
}

func latestPostDate(posts []domain.Post, now time.Time) time.Time {
	var latest time.Time
	for _, p := range posts {
		if d := postDate(p.Time, now); d.After(latest) {
			latest = d
		}
	}
	return latest
}

// postDate reconstructs a calendar date from a month-day timestamp. Unknown
// or unparseable values yield the zero time.
func postDate(raw string, now time.Time) time.Time {
	if raw == "" || raw == domain.UnknownTime {
		return time.Time{}
	}
	month, day, ok := extract.MonthDay(raw)
	if !ok {
		return time.Time{}
	}

	d := time.Date(now.Year(), time.Month(month), day, 0, 0, 0, 0, now.Location())
	if d.After(now) {
		d = d.AddDate(-1, 0, 0)
	}
	return d
}

// safeImage admits embedded images and web URLs only.
func safeImage(src string) template.URL {
	switch {
	case strings.HasPrefix(src, "data:image/"),
		strings.HasPrefix(src, "https://"),
		strings.HasPrefix(src, "http://"):
		return template.URL(src)
	}
	return ""
}

func orUnknown(s string) string {
	if s == "" {
		return domain.UnknownTime
	}
	return s
}
