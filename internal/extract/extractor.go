// Package extract turns a rendered profile page into a short list of recent posts.
//
// Every field of a post is resolved by an ordered chain of strategies; the
// first strategy that produces a value wins. The chains and their bounds are
// described by a Policy so each heuristic can be tuned and tested on its own.
package extract

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"feedwatch/internal/domain"
)

// Policy holds the selectors and search bounds used by the extractor.
type Policy struct {
	// TitleSelectors locate post titles (method A), in priority order.
	TitleSelectors []string
	// FallbackTitleSelectors are tried only when method A finds nothing.
	FallbackTitleSelectors []string
	// MaxCandidates bounds how many title elements are visited.
	MaxCandidates int
	// MaxPosts bounds how many posts are returned.
	MaxPosts int

	// TimeSelector marks the element holding a post's timestamp.
	TimeSelector string
	// AttachmentSelector marks the element holding a post's media.
	AttachmentSelector string
	// ContainerDepth bounds the upward search for a post container.
	ContainerDepth int
	// TimeSiblingScan bounds the sibling scan, per direction, for a timestamp.
	TimeSiblingScan int

	// ImageAncestorDepth bounds the upward image search from the title.
	ImageAncestorDepth int
	// ImageSiblingScan bounds the following-sibling image search from the title.
	ImageSiblingScan int
	// MinURLLength rejects short image URLs such as icons and spacers.
	MinURLLength int
	// PlaceholderMarkers reject image URLs containing any of them.
	PlaceholderMarkers []string

	// NameSelectors locate the profile display name, in priority order.
	NameSelectors []string
}

// DefaultPolicy matches the markup of the monitored profile pages.
func DefaultPolicy() Policy {
	return Policy{
		TitleSelectors:         []string{".title"},
		FallbackTitleSelectors: []string{".titlerow"},
		MaxCandidates:          5,
		MaxPosts:               domain.MaxPostsPerEntity,
		TimeSelector:           ".createTime",
		AttachmentSelector:     ".attachments",
		ContainerDepth:         5,
		TimeSiblingScan:        5,
		ImageAncestorDepth:     5,
		ImageSiblingScan:       10,
		MinURLLength:           20,
		PlaceholderMarkers:     []string{"placeholder", "blank"},
		NameSelectors: []string{
			".nickname", ".user-name", ".username",
			"h1", ".user-info .name", ".profile-name",
			"span[data-v-27fff83a]",
		},
	}
}

// Extractor applies a Policy to rendered pages. It is safe for concurrent use.
type Extractor struct {
	policy Policy
	titles []strategy
	times  []strategy
	images []strategy
	log    logrus.FieldLogger
}

// New returns an extractor using DefaultPolicy.
func New(logger logrus.FieldLogger) *Extractor {
	return NewWithPolicy(DefaultPolicy(), logger)
}

// NewWithPolicy returns an extractor using p.
func NewWithPolicy(p Policy, logger logrus.FieldLogger) *Extractor {
	return &Extractor{
		policy: p,
		titles: titleStrategies(),
		times:  timeStrategies(),
		images: imageStrategies(),
		log:    logger.WithField("component", "extractor"),
	}
}

// Parse reads rendered HTML into a document.
func Parse(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// Extract returns up to Policy.MaxPosts posts from doc, in page order.
// pageURL resolves root-relative image references; now is the capture moment
// used for recency, already in the operator's time zone.
//
// A candidate that fails is skipped and the next one is tried.
func (e *Extractor) Extract(doc *goquery.Document, pageURL string, now time.Time) []domain.Post {
	cands := e.candidates(doc)
	e.log.WithFields(logrus.Fields{
		"url":        pageURL,
		"candidates": cands.Length(),
	}).Debug("Located title candidates")

	base := parseBase(pageURL)
	posts := make([]domain.Post, 0, e.policy.MaxPosts)

	for i := 0; i < cands.Length() && i < e.policy.MaxCandidates; i++ {
		if len(posts) >= e.policy.MaxPosts {
			break
		}
		post, err := e.extractOne(cands.Eq(i), base, now)
		if err != nil {
			e.log.WithError(err).WithField("candidate", i).Debug("Skipping candidate")
			continue
		}
		posts = append(posts, post)
	}
	return posts
}

// extractOne resolves a single post. Panics inside strategies are turned into
// domain.ErrExtraction so one bad candidate never aborts the page.
func (e *Extractor) extractOne(sel *goquery.Selection, base baseURL, now time.Time) (post domain.Post, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", domain.ErrExtraction, r)
		}
	}()

	c := &candidate{el: sel, policy: &e.policy}
	c.container = e.resolveContainer(sel)

	title, ok := firstOf(e.titles, c)
	if !ok {
		return domain.Post{}, fmt.Errorf("%w: empty title", domain.ErrExtraction)
	}

	rawTime, ok := firstOf(e.times, c)
	if !ok {
		rawTime = domain.UnknownTime
	}

	images := []string{}
	if src, ok := firstOf(e.images, c); ok {
		if img := base.normalizeImage(src); img != "" {
			images = append(images, img)
		}
	}

	return domain.Post{
		Title:   title,
		Time:    rawTime,
		IsToday: IsRecent(rawTime, now),
		Images:  images,
	}, nil
}

// candidates runs method A and falls back to method B when A finds nothing.
func (e *Extractor) candidates(doc *goquery.Document) *goquery.Selection {
	for _, group := range [][]string{e.policy.TitleSelectors, e.policy.FallbackTitleSelectors} {
		for _, s := range group {
			if found := doc.Find(s); found.Length() > 0 {
				return found
			}
		}
	}
	return doc.Selection.Slice(0, 0)
}

// resolveContainer walks up from the title looking for an element that also
// holds a timestamp or attachment marker. The bound keeps a page with no such
// marker from scanning up to <html>. Without a match the immediate parent is used.
func (e *Extractor) resolveContainer(sel *goquery.Selection) *goquery.Selection {
	marker := e.policy.TimeSelector + ", " + e.policy.AttachmentSelector
	parent := sel.Parent()
	cur := parent
	for depth := 0; depth < e.policy.ContainerDepth && cur.Length() > 0; depth++ {
		if cur.Find(marker).Length() > 0 {
			return cur
		}
		cur = cur.Parent()
	}
	return parent
}
