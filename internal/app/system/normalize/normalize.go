// Package normalize trims and case-folds user input before it is stored or
// compared.
package normalize

import (
	"strings"

	"github.com/tradeya/tradeya/internal/domain/models"
)

// Email lowercases and trims an email address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims a display name and collapses inner runs of whitespace.
// Case is preserved.
func Name(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// AuthMethod lowercases and trims an auth method value.
func AuthMethod(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Status lowercases and trims a user status value.
func Status(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Role lowercases and trims a role value.
func Role(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// QueryParam trims a query-string value. Case is preserved.
func QueryParam(s string) string {
	return strings.TrimSpace(s)
}

// Filter trims a filter value and maps "all" (any case) to "", meaning no filter.
func Filter(s string) string {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "all") {
		return ""
	}
	return s
}

// Skills trims names and levels, drops empty names and duplicate names
// (case-insensitive), and never returns nil.
func Skills(in []models.Skill) []models.Skill {
	out := make([]models.Skill, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		name := Name(s.Name)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, models.Skill{Name: name, Level: strings.ToLower(strings.TrimSpace(s.Level))})
	}
	return out
}
