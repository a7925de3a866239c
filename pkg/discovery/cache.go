package discovery

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var cacheBucket = []byte("slots")

// cachedRecord pairs a Record with the wall-clock time it was observed,
// so Get can decide whether to trust it or force a rescan.
type cachedRecord struct {
	Record    Record
	UpdatedAt time.Time
}

// Cache is a host-local BoltDB-backed scan cache. It is never the source
// of truth — every
// entry is derived from, and can always be rebuilt by, a fresh Scan. It
// must live on local disk, never on the shared filesystem mount: BoltDB
// requires a single process to hold exclusive access to its file, which
// the shared mount cannot guarantee across hosts.
type Cache struct {
	db  *bolt.DB
	ttl time.Duration
}

// OpenCache opens (creating if absent) a scan cache at a host-local path.
func OpenCache(path string, ttl time.Duration) (*Cache, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open scan cache: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(cacheBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create scan cache bucket: %w", err)
	}
	return &Cache{db: db, ttl: ttl}, nil
}

// Close releases the cache's file handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

func cacheKey(clientID, sessionID, listName string) string {
	return clientID + "/" + sessionID + "/" + listName
}

// Put stores the latest observation for a slot.
func (c *Cache) Put(rec Record, now time.Time) error {
	data, err := json.Marshal(cachedRecord{Record: rec, UpdatedAt: now})
	if err != nil {
		return fmt.Errorf("marshal cached record: %w", err)
	}
	key := cacheKey(string(rec.ClientID), rec.SessionID, rec.ListName)
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(cacheBucket).Put([]byte(key), data)
	})
}

// Get returns a cached record for a slot if present and younger than the
// cache's TTL.
func (c *Cache) Get(clientID, sessionID, listName string, now time.Time) (Record, bool) {
	key := cacheKey(clientID, sessionID, listName)
	var entry cachedRecord
	found := false
	c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(cacheBucket).Get([]byte(key))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &entry); err != nil {
			return nil
		}
		found = true
		return nil
	})
	if !found || now.Sub(entry.UpdatedAt) > c.ttl {
		return Record{}, false
	}
	return entry.Record, true
}

// ScanClientCached classifies a client's slots via Scan, refreshing the
// cache entry for each slot so a later poll within the TTL can skip the
// filesystem walk for unchanged slots. It still performs the full walk
// itself — the cache's purpose is to let a different caller (e.g. a
// lighter-weight status query for one specific slot) avoid a walk, not to
// skip this one.
func (s *Scanner) ScanClientCached(clientID string, cache *Cache, now time.Time) ([]Record, error) {
	records, err := s.ScanClient(clientID)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		_ = cache.Put(rec, now)
	}
	return records, nil
}
