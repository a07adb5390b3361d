package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/ironscout-hq/ironscout/internal/domain"
)

// Package storage provides the durable seen-listings set behind the reconciler.

// InsertResult reports the outcome of a Store.Insert call. A duplicate is an
// expected, non-exceptional outcome of reconciliation.
type InsertResult int

const (
	Inserted InsertResult = iota
	DuplicateRejected
)

// Store tracks previously seen machine listings. Identity is the composite of
// (site type, search label, unique key); an existing row is never updated.
// Insert returns the record as persisted, with the first-seen timestamp the
// store assigned. Markers support the marker-tracked site mode (newest key
// seen per search).
type Store interface {
	Init() error
	Close() error
	Exists(siteType, searchLabel, uniqueKey string) (bool, error)
	Insert(m domain.Machine) (domain.Machine, InsertResult, error)
	Marker(searchLabel string) (string, error)
	SaveMarker(searchLabel, markerKey string) error
}

// NewStore creates the configured storage backend.
func NewStore(typ, path string) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "sqlite":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("sqlite storage requires a path")
		}
		return openSQLite(path)
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

type noopStore struct{}

func (noopStore) Init() error                                 { return nil }
func (noopStore) Close() error                                { return nil }
func (noopStore) Exists(string, string, string) (bool, error) { return false, nil }
func (noopStore) Marker(string) (string, error)               { return "", nil }
func (noopStore) SaveMarker(string, string) error             { return nil }

func (noopStore) Insert(m domain.Machine) (domain.Machine, InsertResult, error) {
	m.FirstSeen = time.Now().UTC()
	return m, Inserted, nil
}
