package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/h1bexplorer/internal/logging"
)

// BadgerCache stores serialized query results in BadgerDB
type BadgerCache struct {
	db      *badger.DB
	config  Config
	metrics *Metrics

	stop     chan struct{}
	stopOnce sync.Once
}

func badgerOptions(config *Config) (badger.Options, error) {
	var opts badger.Options
	switch {
	case config.InMemory:
		opts = badger.DefaultOptions("").WithInMemory(true)
	case config.Path != "":
		opts = badger.DefaultOptions(config.Path)
		if config.ValueLogMaxMB > 0 {
			opts = opts.WithValueLogFileSize(int64(config.ValueLogMaxMB) << 20)
		}
	default:
		return opts, errors.New("badger path is required unless in memory")
	}

	if config.MaxMemoryMB > 0 {
		opts = opts.WithMemTableSize(int64(config.MaxMemoryMB) << 20)
	}
	if config.NumGoroutines > 0 {
		opts = opts.WithNumGoroutines(config.NumGoroutines)
	}
	return opts.
		WithCompactL0OnClose(config.CompactOnClose).
		WithNumVersionsToKeep(1).
		WithLoggingLevel(badger.WARNING), nil
}

// Open opens or creates the badger store. Disk stores run value log GC
// every GCInterval until Close.
func Open(config *Config) (*BadgerCache, error) {
	cfg := *config
	if cfg.GCInterval <= 0 {
		cfg.GCInterval = 10 * time.Minute
	}
	if cfg.GCDiscardRatio <= 0 {
		cfg.GCDiscardRatio = 0.5
	}

	opts, err := badgerOptions(&cfg)
	if err != nil {
		return nil, err
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	bc := &BadgerCache{
		db:      db,
		config:  cfg,
		metrics: &Metrics{},
		stop:    make(chan struct{}),
	}
	if !cfg.InMemory {
		go bc.gcLoop()
	}
	bc.refreshSize()
	return bc, nil
}

// Entries carry their own expiry in an 8 byte prefix (unix seconds, 0 for
// none) on top of badger's TTL, so a value read after its TTL but before
// compaction is still a miss.
const expiryLen = 8

func encodeValue(value []byte, ttl time.Duration) []byte {
	var expires int64
	if ttl > 0 {
		expires = time.Now().Add(ttl).Unix()
	}
	out := make([]byte, expiryLen, expiryLen+len(value))
	binary.LittleEndian.PutUint64(out, uint64(expires))
	return append(out, value...)
}

func decodeValue(stored []byte) ([]byte, bool) {
	if len(stored) < expiryLen {
		return nil, false
	}
	if expires := int64(binary.LittleEndian.Uint64(stored)); expires > 0 && time.Now().Unix() > expires {
		return nil, false
	}
	return stored[expiryLen:], true
}

// Get returns ErrMiss for absent or expired keys
func (bc *BadgerCache) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := bc.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrMiss
		}
		if err != nil {
			return err
		}
		if item.IsDeletedOrExpired() {
			return ErrMiss
		}

		return item.Value(func(stored []byte) error {
			v, ok := decodeValue(stored)
			if !ok {
				return ErrMiss
			}
			value = append([]byte{}, v...)
			return nil
		})
	})
	return value, err
}

func (bc *BadgerCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	entry := badger.NewEntry([]byte(key), encodeValue(value, ttl))
	if ttl > 0 {
		entry = entry.WithTTL(ttl)
	}
	if err := bc.db.Update(func(txn *badger.Txn) error { return txn.SetEntry(entry) }); err != nil {
		return err
	}
	bc.metrics.Sets.Add(1)
	return nil
}

func (bc *BadgerCache) Delete(ctx context.Context, key string) error {
	if err := bc.db.Update(func(txn *badger.Txn) error { return txn.Delete([]byte(key)) }); err != nil {
		return err
	}
	bc.metrics.Deletes.Add(1)
	return nil
}

// keys lists the keys starting with prefix, all keys for an empty prefix
func (bc *BadgerCache) keys(prefix []byte) ([][]byte, error) {
	var out [][]byte
	err := bc.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			out = append(out, it.Item().KeyCopy(nil))
		}
		return nil
	})
	return out, err
}

// DeleteByPattern removes every key matching a "prefix*" pattern and
// reports how many were removed.
func (bc *BadgerCache) DeleteByPattern(ctx context.Context, pattern string) (int, error) {
	keys, err := bc.keys([]byte(strings.TrimSuffix(pattern, "*")))
	if err != nil || len(keys) == 0 {
		return 0, err
	}

	wb := bc.db.NewWriteBatch()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			wb.Cancel()
			return 0, err
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, err
	}

	bc.metrics.Deletes.Add(uint64(len(keys)))
	bc.refreshSize()
	return len(keys), nil
}

// GetMetrics refreshes the size gauges and returns the live counters
func (bc *BadgerCache) GetMetrics() *Metrics {
	bc.refreshSize()
	return bc.metrics
}

// Close stops GC and closes the store. Calling it twice is safe.
func (bc *BadgerCache) Close() error {
	var err error
	bc.stopOnce.Do(func() {
		close(bc.stop)
		err = bc.db.Close()
	})
	return err
}

func (bc *BadgerCache) gcLoop() {
	ticker := time.NewTicker(bc.config.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-bc.stop:
			return
		case <-ticker.C:
			bc.collectGarbage()
		}
	}
}

// collectGarbage rewrites value log files until badger reports nothing left
func (bc *BadgerCache) collectGarbage() {
	start := time.Now()
	for rewrites := 0; ; rewrites++ {
		err := bc.db.RunValueLogGC(bc.config.GCDiscardRatio)
		if err == nil {
			continue
		}
		if !errors.Is(err, badger.ErrNoRewrite) {
			logging.Warn("Cache value log GC failed", slog.Int("rewrites", rewrites), logging.Err(err))
		} else if rewrites > 0 {
			logging.Debug("Cache value log GC finished",
				slog.Int("rewrites", rewrites), logging.Duration("elapsed", time.Since(start)))
		}
		return
	}
}

func (bc *BadgerCache) refreshSize() {
	lsm, vlog := bc.db.Size()
	bc.metrics.Size.Store(uint64(lsm + vlog))
	if keys, err := bc.keys(nil); err == nil {
		bc.metrics.Keys.Store(uint64(len(keys)))
	}
}
