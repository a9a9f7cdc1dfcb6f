package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// candidate is one title element and the post container resolved for it.
type candidate struct {
	el        *goquery.Selection
	container *goquery.Selection
	policy    *Policy
}

// strategy produces one field of a post from a candidate.
type strategy struct {
	name string
	find func(c *candidate) (string, bool)
}

// firstOf runs the chain in order and returns the first value produced.
func firstOf(chain []strategy, c *candidate) (string, bool) {
	for _, s := range chain {
		if v, ok := s.find(c); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

func titleStrategies() []strategy {
	return []strategy{
		{name: "text", find: func(c *candidate) (string, bool) {
			t := collapse(c.el.Text())
			return t, t != ""
		}},
		{name: "title-attr", find: func(c *candidate) (string, bool) {
			t, _ := c.el.Attr("title")
			t = collapse(t)
			return t, t != ""
		}},
	}
}

func timeStrategies() []strategy {
	return []strategy{
		{name: "container", find: func(c *candidate) (string, bool) {
			return textOf(c.container.Find(c.policy.TimeSelector).First())
		}},
		{name: "siblings", find: func(c *candidate) (string, bool) {
			n := c.policy.TimeSiblingScan
			for _, sibs := range []*goquery.Selection{c.container.NextAll(), c.container.PrevAll()} {
				for i := 0; i < sibs.Length() && i < n; i++ {
					sib := sibs.Eq(i)
					if sib.Is(c.policy.TimeSelector) {
						if v, ok := textOf(sib); ok {
							return v, true
						}
						continue
					}
					if v, ok := textOf(sib.Find(c.policy.TimeSelector).First()); ok {
						return v, true
					}
				}
			}
			return "", false
		}},
	}
}

func textOf(sel *goquery.Selection) (string, bool) {
	if sel.Length() == 0 {
		return "", false
	}
	t := collapse(sel.Text())
	return t, t != ""
}

// collapse trims s and folds runs of whitespace into single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
