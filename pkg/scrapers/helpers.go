package scrapers

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/ironscout-hq/ironscout/internal/domain"
)

// lastPathSegment extracts the final path segment of a listing URL, the usual
// source of a site's stable unique key.
func lastPathSegment(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	path := strings.TrimRight(parsed.Path, "/")
	if path == "" {
		return ""
	}
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		return path[idx+1:]
	}
	return path
}

// absoluteURL resolves href against base. Returns "" when either is invalid.
func absoluteURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	h, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return b.ResolveReference(h).String()
}

// stripLabel removes a leading field label ("Year", "Hours", ...) from the
// element text, case-insensitively.
func stripLabel(text, label string) string {
	re := regexp.MustCompile(`(?i)` + label + `\s*`)
	return strings.TrimSpace(re.ReplaceAllString(text, ""))
}

// orUnknown substitutes the explicit sentinel for absent optional fields.
func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return domain.Unknown
	}
	return strings.TrimSpace(s)
}
