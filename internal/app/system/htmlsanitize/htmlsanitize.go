// Package htmlsanitize cleans user-supplied rich text (bios, trade and
// collaboration descriptions, challenge submissions) before it is stored.
package htmlsanitize

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	once   sync.Once
	policy *bluemonday.Policy
	strict *bluemonday.Policy
)

func policies() (*bluemonday.Policy, *bluemonday.Policy) {
	once.Do(func() {
		policy = bluemonday.UGCPolicy()
		policy.RequireNoFollowOnLinks(false)
		policy.AllowAttrs("class").OnElements("table", "thead", "tbody", "tr", "th", "td")
		policy.AllowElements("u", "s", "mark")

		strict = bluemonday.StrictPolicy()
	})
	return policy, strict
}

// Sanitize returns s with everything removed except safe formatting,
// links, lists, tables and code blocks.
func Sanitize(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	p, _ := policies()
	return strings.TrimSpace(p.Sanitize(s))
}

// PlainText strips every tag from s. Entities in the result are escaped.
func PlainText(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	_, p := policies()
	return strings.TrimSpace(p.Sanitize(s))
}
