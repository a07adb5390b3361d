package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/ironscout-hq/ironscout/internal/domain"
)

const (
	machineBucket = "machines"
	markerBucket  = "markers"
	keySep        = "\x00"
)

// boltStore implements a Store backed by BoltDB. Machines are keyed by the
// composite identity and stored as JSON so the record survives verbatim.
type boltStore struct {
	db  *bolt.DB
	now func() time.Time
}

// openBolt initializes a BoltDB-backed Store.
func openBolt(path string) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}

	store := &boltStore{db: db, now: time.Now}
	if err := store.Init(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Init creates the buckets. Safe to call on every start.
func (b *boltStore) Init() error {
	if b == nil || b.db == nil {
		return fmt.Errorf("bbolt store is not open")
	}
	err := b.db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(machineBucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists([]byte(markerBucket))
		return err
	})
	if err != nil {
		return fmt.Errorf("init buckets: %w", err)
	}
	return nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

func identityKey(siteType, searchLabel, uniqueKey string) []byte {
	return []byte(siteType + keySep + searchLabel + keySep + uniqueKey)
}

// Exists reports whether a listing with this identity was previously committed.
func (b *boltStore) Exists(siteType, searchLabel, uniqueKey string) (bool, error) {
	var exists bool
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(machineBucket))
		if bucket == nil {
			return fmt.Errorf("machine bucket missing")
		}
		exists = bucket.Get(identityKey(siteType, searchLabel, uniqueKey)) != nil
		return nil
	})
	return exists, err
}

// Insert persists a new listing, assigning the first-seen timestamp and
// returning it on the record. An existing row is left untouched and reported
// as a duplicate.
func (b *boltStore) Insert(m domain.Machine) (domain.Machine, InsertResult, error) {
	result := Inserted
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(machineBucket))
		if bucket == nil {
			return fmt.Errorf("machine bucket missing")
		}

		key := identityKey(m.SiteType, m.SearchLabel, m.UniqueKey)
		if bucket.Get(key) != nil {
			result = DuplicateRejected
			return nil
		}

		m.FirstSeen = b.now().UTC()
		value, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encode machine %s: %w", m.UniqueKey, err)
		}
		return bucket.Put(key, value)
	})
	if err != nil {
		return m, DuplicateRejected, fmt.Errorf("insert machine %s: %w", m.UniqueKey, err)
	}
	return m, result, nil
}

// Marker returns the stored marker key for a search label, or "" when unset.
func (b *boltStore) Marker(searchLabel string) (string, error) {
	var marker string
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(markerBucket))
		if bucket == nil {
			return fmt.Errorf("marker bucket missing")
		}
		if v := bucket.Get([]byte(searchLabel)); v != nil {
			marker = string(v)
		}
		return nil
	})
	return marker, err
}

// SaveMarker upserts the marker key for a search label.
func (b *boltStore) SaveMarker(searchLabel, markerKey string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(markerBucket))
		if bucket == nil {
			return fmt.Errorf("marker bucket missing")
		}
		return bucket.Put([]byte(searchLabel), []byte(markerKey))
	})
}
