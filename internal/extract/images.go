package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	inlineSrcRe   = regexp.MustCompile(`src=["'](data:image/[^;]+;base64,[^"']+)["']`)
	dataURIRe     = regexp.MustCompile(`(?s)^(data:image/[^;,]+;base64,)(.*)$`)
	base64JunkRe  = regexp.MustCompile(`[^A-Za-z0-9+/=]`)
	mediaAttrs    = []string{"src", "data-src", "data-original"}
	fallbackAttrs = []string{"src", "data-src"}
)

// imageStrategies is the four-tier cascade: attachment area, container,
// title ancestors, then the title's following siblings.
func imageStrategies() []strategy {
	return []strategy{
		{name: "attachments", find: func(c *candidate) (string, bool) {
			imgs := c.container.Find(c.policy.AttachmentSelector).Find("img")
			for i := 0; i < imgs.Length(); i++ {
				if src := readSource(imgs.Eq(i), mediaAttrs); src != "" {
					return src, true
				}
			}
			return "", false
		}},
		{name: "container", find: func(c *candidate) (string, bool) {
			return c.pick(c.container.Find("img"), mediaAttrs)
		}},
		{name: "ancestors", find: func(c *candidate) (string, bool) {
			cur := c.el.Parent()
			for depth := 0; depth < c.policy.ImageAncestorDepth && cur.Length() > 0; depth++ {
				if src, ok := c.pick(cur.Find("img"), fallbackAttrs); ok {
					return src, true
				}
				cur = cur.Parent()
			}
			return "", false
		}},
		{name: "following-siblings", find: func(c *candidate) (string, bool) {
			sibs := c.el.NextAll()
			for i := 0; i < sibs.Length() && i < c.policy.ImageSiblingScan; i++ {
				if src, ok := c.pick(sibs.Eq(i).Find("img"), fallbackAttrs); ok {
					return src, true
				}
			}
			return "", false
		}},
	}
}

// pick prefers an embedded data URI, then the first URL that is long enough
// and not a placeholder.
func (c *candidate) pick(imgs *goquery.Selection, attrs []string) (string, bool) {
	var fallback string
	for i := 0; i < imgs.Length(); i++ {
		src := readSource(imgs.Eq(i), attrs)
		if src == "" {
			continue
		}
		if strings.HasPrefix(src, "data:image") {
			return src, true
		}
		if fallback == "" && c.acceptURL(src) {
			fallback = src
		}
	}
	return fallback, fallback != ""
}

func (c *candidate) acceptURL(src string) bool {
	if len(src) <= c.policy.MinURLLength {
		return false
	}
	lower := strings.ToLower(src)
	for _, m := range c.policy.PlaceholderMarkers {
		if strings.Contains(lower, m) {
			return false
		}
	}
	return true
}

// readSource returns the first non-empty attribute. An embedded image whose
// payload does not end in padding may be a truncated copy: renderers cap the
// length of lazy-load attributes while src keeps the full value. Such a value
// is replaced by the longest inline src found in the element's serialized
// markup. Padding is restored later by sanitizeDataURI.
func readSource(img *goquery.Selection, attrs []string) string {
	var src string
	for _, a := range attrs {
		if v, ok := img.Attr(a); ok && strings.TrimSpace(v) != "" {
			src = strings.TrimSpace(v)
			break
		}
	}
	if !strings.HasPrefix(src, "data:image") || strings.HasSuffix(src, "=") {
		return src
	}
	raw, err := goquery.OuterHtml(img)
	if err != nil {
		return src
	}
	for _, m := range inlineSrcRe.FindAllStringSubmatch(raw, -1) {
		if len(m[1]) > len(src) {
			src = m[1]
		}
	}
	return src
}

// baseURL resolves relative image references against the profile page.
type baseURL struct {
	page *url.URL
}

func parseBase(pageURL string) baseURL {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return baseURL{}
	}
	return baseURL{page: u}
}

func (b baseURL) origin() string {
	if b.page == nil {
		return ""
	}
	return b.page.Scheme + "://" + b.page.Host
}

// normalizeImage repairs embedded payloads and makes URLs absolute.
func (b baseURL) normalizeImage(src string) string {
	src = strings.TrimSpace(src)
	switch {
	case src == "":
		return ""
	case strings.HasPrefix(src, "data:image"):
		return sanitizeDataURI(src)
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		return src
	case strings.HasPrefix(src, "//"):
		return "https:" + src
	case strings.HasPrefix(src, "/"):
		return b.origin() + src
	}
	if b.page == nil {
		return src
	}
	ref, err := url.Parse(src)
	if err != nil {
		return src
	}
	return b.page.ResolveReference(ref).String()
}

// sanitizeDataURI drops bytes outside the base64 alphabet and re-pads the
// payload to a multiple of four.
func sanitizeDataURI(src string) string {
	m := dataURIRe.FindStringSubmatch(src)
	if m == nil {
		return src
	}
	payload := strings.TrimRight(base64JunkRe.ReplaceAllString(m[2], ""), "=")
	if rem := len(payload) % 4; rem != 0 {
		payload += strings.Repeat("=", 4-rem)
	}
	return m[1] + payload
}
