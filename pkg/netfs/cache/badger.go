// Package cache provides directory-listing caches for netfs.FS.
package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/marmos91/netfs/internal/logger"
	"github.com/marmos91/netfs/pkg/netfs"
)

// DefaultTTL is the listing lifetime used when Config.TTL is zero.
const DefaultTTL = 5 * time.Second

const keyPrefix = "dir:"

// Config configures a BadgerDirCache.
type Config struct {
	// TTL bounds how long a listing is served. Default: 5s.
	TTL time.Duration

	// Now overrides the clock. Used by tests.
	Now func() time.Time
}

// record is the stored form of a listing.
type record struct {
	StoredAt time.Time        `msgpack:"t"`
	Entries  []netfs.FileInfo `msgpack:"e"`
}

// BadgerDirCache is a netfs.DirCache held in an in-memory BadgerDB.
//
// Entries carry a Badger TTL for reclamation. Get also checks the stored
// timestamp against the configured clock.
//
// Thread safety:
// Safe for concurrent use.
type BadgerDirCache struct {
	db  *badger.DB
	ttl time.Duration
	now func() time.Time
}

var _ netfs.DirCache = (*BadgerDirCache)(nil)

// NewBadgerDirCache opens an in-memory store. Close releases it.
func NewBadgerDirCache(cfg Config) (*BadgerDirCache, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLoggingLevel(badger.WARNING).
		WithCompression(options.None).
		WithBlockCacheSize(0).
		WithIndexCacheSize(8 << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory BadgerDB: %w", err)
	}
	return &BadgerDirCache{db: db, ttl: cfg.TTL, now: cfg.Now}, nil
}

func dirKey(key string) []byte {
	return []byte(keyPrefix + key)
}

// Get returns the listing stored under key if it has not expired.
func (c *BadgerDirCache) Get(key string) ([]netfs.FileInfo, bool) {
	var rec record
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(dirKey(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			logger.Warn("dircache: get %s: %v", key, err)
		}
		return nil, false
	}

	if c.now().Sub(rec.StoredAt) >= c.ttl {
		return nil, false
	}
	return rec.Entries, true
}

// Put stores entries under key.
func (c *BadgerDirCache) Put(key string, entries []netfs.FileInfo) {
	val, err := msgpack.Marshal(&record{StoredAt: c.now(), Entries: entries})
	if err != nil {
		logger.Warn("dircache: encode %s: %v", key, err)
		return
	}

	// Badger's TTL is second-granular; round up so it never undercuts ours.
	ttl := c.ttl.Truncate(time.Second) + time.Second
	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(dirKey(key), val).WithTTL(ttl))
	})
	if err != nil {
		logger.Warn("dircache: put %s: %v", key, err)
	}
}

// Invalidate drops the listing stored under key.
func (c *BadgerDirCache) Invalidate(key string) {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(dirKey(key))
	})
	if err != nil {
		logger.Warn("dircache: invalidate %s: %v", key, err)
	}
}

// Purge drops every listing.
func (c *BadgerDirCache) Purge() error {
	if err := c.db.DropPrefix([]byte(keyPrefix)); err != nil {
		return fmt.Errorf("failed to purge directory cache: %w", err)
	}
	return nil
}

// Close releases the store.
func (c *BadgerDirCache) Close() error {
	return c.db.Close()
}
