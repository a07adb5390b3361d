package scrapers

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ironscout-hq/ironscout/pkg/sites"
)

// UnknownTypeError reports a configured site type with no registered extractor.
type UnknownTypeError struct {
	Type      string
	Supported []string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unsupported site type %q (supported types: %s)",
		e.Type, strings.Join(e.Supported, ", "))
}

// Registry resolves the extractor implementation for a configured site type.
// The set of extractors is fixed at construction.
type Registry struct {
	byType map[string]Extractor
}

// NewRegistry builds a registry for the provided extractor implementations
// keyed by their site type.
func NewRegistry(extractors ...Extractor) *Registry {
	reg := &Registry{byType: make(map[string]Extractor, len(extractors))}
	for _, e := range extractors {
		if e == nil {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(e.Type()))
		if key == "" {
			continue
		}
		reg.byType[key] = e
	}
	return reg
}

// DefaultRegistry wires up the known site extractors.
func DefaultRegistry() *Registry {
	return NewRegistry(
		NewAISEquipExtractor(),
		NewMonroeTractorExtractor(),
		NewMascusExtractor(),
		NewCraigslistExtractor(),
	)
}

// ExtractorFor returns the extractor for the given site type.
func (r *Registry) ExtractorFor(siteType string) (Extractor, error) {
	if r == nil {
		return nil, fmt.Errorf("extractor registry is nil")
	}
	key := strings.ToLower(strings.TrimSpace(siteType))
	if e, ok := r.byType[key]; ok {
		return e, nil
	}
	return nil, &UnknownTypeError{Type: siteType, Supported: r.Supported()}
}

// Supported returns the registered site types, sorted.
func (r *Registry) Supported() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.byType))
	for typ := range r.byType {
		out = append(out, typ)
	}
	sort.Strings(out)
	return out
}

// Validate resolves every configured site's type up front so a misconfigured
// site fails the run before any network activity.
func (r *Registry) Validate(cfgs []sites.Site) error {
	for _, s := range cfgs {
		if _, err := r.ExtractorFor(s.Type); err != nil {
			return fmt.Errorf("site %q: %w", s.ID, err)
		}
	}
	return nil
}
