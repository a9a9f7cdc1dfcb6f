package extract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"feedwatch/internal/domain"
)

var idSuffixRe = regexp.MustCompile(`(.+?)\s*\(ID:\s*\d+\)`)

// Words that mark a login or sign-up control rather than a display name.
var nameStopWords = []string{"登录", "注册"}

// ResolveName finds the profile's display name: a known name element, then a
// "Name (ID: 123)" line in the page text, then a short CJK span. It returns
// domain.UnknownName when every step fails.
func (e *Extractor) ResolveName(doc *goquery.Document) string {
	if name, ok := e.nameFromSelectors(doc); ok {
		return name
	}
	if name, ok := nameFromIDPattern(doc); ok {
		return name
	}
	if name, ok := nameFromSpans(doc); ok {
		return name
	}
	return domain.UnknownName
}

func (e *Extractor) nameFromSelectors(doc *goquery.Document) (string, bool) {
	for _, s := range e.policy.NameSelectors {
		t, ok := textOf(doc.Find(s).First())
		if !ok || utf8.RuneCountInString(t) >= 50 || hasStopWord(t) {
			continue
		}
		return t, true
	}
	return "", false
}

func nameFromIDPattern(doc *goquery.Document) (string, bool) {
	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	for _, line := range strings.Split(innerText(body), "\n") {
		if m := idSuffixRe.FindStringSubmatch(line); m != nil {
			if name := strings.TrimSpace(m[1]); name != "" && utf8.RuneCountInString(name) < 50 {
				return name, true
			}
		}
	}
	return "", false
}

func nameFromSpans(doc *goquery.Document) (string, bool) {
	var name string
	doc.Find("span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		t := strings.TrimSpace(s.Text())
		n := utf8.RuneCountInString(t)
		if n < 2 || n > 20 || strings.Contains(t, "ID") || hasStopWord(t) || !hasHan(t) {
			return true
		}
		name = t
		return false
	})
	return name, name != ""
}

func hasStopWord(s string) bool {
	for _, w := range nameStopWords {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func hasHan(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"br": true, "dd": true, "div": true, "dl": true, "dt": true,
	"footer": true, "form": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "header": true, "hr": true,
	"li": true, "main": true, "nav": true, "ol": true, "p": true,
	"section": true, "table": true, "td": true, "th": true, "tr": true, "ul": true,
}

// innerText approximates the rendered text of sel, breaking lines around
// block elements and skipping script and style content.
func innerText(sel *goquery.Selection) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		block := n.Type == html.ElementNode && blockElements[n.Data]
		if block {
			b.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			b.WriteByte('\n')
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return b.String()
}
