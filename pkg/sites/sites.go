package sites

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Package sites contains the configured-search registry (YAML/JSON) helpers.

const (
	// Tracking modes. Store mode persists every listing and reconciles
	// against the record store; marker mode only remembers the newest key.
	TrackingStore  = "store"
	TrackingMarker = "marker"

	defaultRequestDelayMs = 2000
	defaultMaxPages       = 50
)

// Site is one configured search: a listing URL on a supported site plus the
// operator-chosen search label that scopes its records.
type Site struct {
	ID             string         `json:"id" yaml:"id"`
	Type           string         `json:"type" yaml:"type"`
	SearchLabel    string         `json:"search_label" yaml:"search_label"`
	URL            string         `json:"url" yaml:"url"`
	Enabled        *bool          `json:"enabled" yaml:"enabled"`
	Tracking       string         `json:"tracking" yaml:"tracking"`
	MaxPages       int            `json:"max_pages" yaml:"max_pages"`
	MaxItems       int            `json:"max_items" yaml:"max_items"`
	RequestDelayMs int            `json:"request_delay_ms" yaml:"request_delay_ms"`
	Config         map[string]any `json:"config" yaml:"config"`
}

type registryFile struct {
	Sites []Site `json:"sites" yaml:"sites"`
}

// Registry materializes site definitions loaded from a config file.
type Registry struct {
	mu    sync.RWMutex
	sites []Site
	idx   map[string]Site
}

// LoadRegistry loads the site registry from a YAML/JSON file.
func LoadRegistry(path string) (*Registry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sites file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sites file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read sites file: %w", err)
	}

	fileReg, err := parseRegistry(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if len(fileReg.Sites) == 0 {
		return nil, errors.New("sites file contains no sites entries")
	}

	reg := &Registry{
		sites: make([]Site, len(fileReg.Sites)),
		idx:   make(map[string]Site, len(fileReg.Sites)),
	}

	for i := range fileReg.Sites {
		s := sanitizeSite(fileReg.Sites[i])
		if err := validateSite(s); err != nil {
			return nil, fmt.Errorf("sites[%d]: %w", i, err)
		}
		if _, exists := reg.idx[s.ID]; exists {
			return nil, fmt.Errorf("duplicate site id %q", s.ID)
		}
		reg.sites[i] = s
		reg.idx[s.ID] = s
	}

	return reg, nil
}

func parseRegistry(data []byte, ext string) (registryFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))

	decoders := []struct {
		name string
		ext  string
		fn   func([]byte, any) error
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var reg registryFile
		if err := d.fn(data, &reg); err == nil {
			return reg, nil
		}
	}

	return registryFile{}, errors.New("sites file format not recognized (expected YAML or JSON)")
}

func sanitizeSite(s Site) Site {
	s.ID = strings.TrimSpace(s.ID)
	s.Type = strings.ToLower(strings.TrimSpace(s.Type))
	s.SearchLabel = strings.TrimSpace(s.SearchLabel)
	s.URL = strings.TrimSpace(s.URL)
	s.Tracking = strings.ToLower(strings.TrimSpace(s.Tracking))

	if s.Enabled == nil {
		def := true
		s.Enabled = &def
	}
	if s.Tracking == "" {
		s.Tracking = TrackingStore
	}
	if s.MaxPages <= 0 {
		s.MaxPages = defaultMaxPages
	}
	if s.RequestDelayMs <= 0 {
		s.RequestDelayMs = defaultRequestDelayMs
	}
	if s.Config == nil {
		s.Config = map[string]any{}
	}

	return s
}

func validateSite(s Site) error {
	if s.ID == "" {
		return errors.New("id is required")
	}
	if s.Type == "" {
		return fmt.Errorf("type is required for site %q", s.ID)
	}
	if s.SearchLabel == "" {
		return fmt.Errorf("search_label is required for site %q", s.ID)
	}
	if !strings.HasPrefix(s.URL, "http") {
		return fmt.Errorf("invalid url %q for site %q", s.URL, s.ID)
	}
	if s.Tracking != TrackingStore && s.Tracking != TrackingMarker {
		return fmt.Errorf("unknown tracking mode %q for site %q", s.Tracking, s.ID)
	}
	return nil
}

// ByID returns the site entry for the given id, if loaded.
func (r *Registry) ByID(id string) (Site, bool) {
	if r == nil {
		return Site{}, false
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return Site{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.idx[id]
	return s, ok
}

// All returns all configured sites in file order.
func (r *Registry) All() []Site {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Site, len(r.sites))
	copy(out, r.sites)
	return out
}

// Enabled returns sites that are enabled, in file order.
func (r *Registry) Enabled() []Site {
	all := r.All()
	if len(all) == 0 {
		return nil
	}

	out := make([]Site, 0, len(all))
	for _, s := range all {
		if s.EnabledValue() {
			out = append(out, s)
		}
	}
	return out
}

// EnabledValue returns the enabled flag defaulting to true.
func (s Site) EnabledValue() bool {
	if s.Enabled == nil {
		return true
	}
	return *s.Enabled
}

// RequestDelay returns the per-request throttle duration for the site.
func (s Site) RequestDelay() time.Duration {
	if s.RequestDelayMs <= 0 {
		return defaultRequestDelayMs * time.Millisecond
	}
	return time.Duration(s.RequestDelayMs) * time.Millisecond
}

// ConfigString returns the trimmed string value for key from the site config or a fallback.
func (s Site) ConfigString(key, fallback string) string {
	if s.Config != nil {
		if raw, ok := s.Config[key]; ok {
			if val, ok := raw.(string); ok {
				if trimmed := strings.TrimSpace(val); trimmed != "" {
					return trimmed
				}
			}
		}
	}
	return fallback
}

const (
	ConfigUserAgentKey      = "user_agent"
	ConfigAcceptKey         = "accept"
	ConfigAcceptLanguageKey = "accept_language"
	ConfigCacheControlKey   = "cache_control"
)

// Headers builds the common request headers from a site config (skips empty values).
func (s Site) Headers() map[string]string {
	headers := make(map[string]string, 4)

	if v := s.ConfigString(ConfigUserAgentKey, ""); v != "" {
		headers["User-Agent"] = v
	}
	if v := s.ConfigString(ConfigAcceptKey, ""); v != "" {
		headers["Accept"] = v
	}
	if v := s.ConfigString(ConfigAcceptLanguageKey, ""); v != "" {
		headers["Accept-Language"] = v
	}
	if v := s.ConfigString(ConfigCacheControlKey, ""); v != "" {
		headers["Cache-Control"] = v
	}

	return headers
}
