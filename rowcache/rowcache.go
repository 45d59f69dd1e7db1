// Package rowcache persists finished image rows in a badger key-value store,
// so an interrupted render can be resumed without retracing them.
package rowcache

import (
	"bytes"
	"context"
	"encoding/binary"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/golang/glog"
	"go.opentelemetry.io/otel"
	"golang.org/x/xerrors"

	"lumen/rgbimage"
)

// RowKey is the fingerprint, a NUL separator, and the big-endian row index.
func RowKey(fingerprint string, row int) []byte {
	key := make([]byte, len(fingerprint)+1+4)
	copy(key, fingerprint)
	binary.BigEndian.PutUint32(key[len(fingerprint)+1:], uint32(row))
	return key
}

type Cache struct {
	DB *badger.DB

	ttl time.Duration
}

type Option func(*Cache)

// WithTTL expires rows that have not been rewritten for ttl.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		c.ttl = ttl
	}
}

// Open opens (creating if needed) the cache stored in dataDir.
func Open(dataDir string, opts ...Option) (*Cache, error) {
	db, err := badger.Open(badger.DefaultOptions(dataDir).WithLogger(glogLogger{}))
	if err != nil {
		return nil, xerrors.Errorf("while opening badger kv dir %q: %w", dataDir, err)
	}

	c := &Cache{DB: db}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Cache) Close() error {
	if err := c.DB.Close(); err != nil {
		return xerrors.Errorf("while closing badger kv: %w", err)
	}
	return nil
}

func (c *Cache) LoadRow(ctx context.Context, fingerprint string, row int) (*rgbimage.RGBImage, error) {
	_, span := otel.Tracer("lumen/rowcache").Start(ctx, "Cache.LoadRow")
	defer span.End()

	var band *rgbimage.RGBImage
	err := c.DB.View(func(txn *badger.Txn) error {
		item, err := txn.Get(RowKey(fingerprint, row))
		if xerrors.Is(err, badger.ErrKeyNotFound) {
			glog.V(2).Infof("Row cache miss for row %d", row)
			return nil
		} else if err != nil {
			return xerrors.Errorf("while reading row %d: %w", row, err)
		}

		val, err := item.ValueCopy(nil)
		if err != nil {
			return xerrors.Errorf("while copying row %d: %w", row, err)
		}

		// The value is already in memory, so any decode failure means bad
		// bytes.  The row is traced again and its entry overwritten.
		band, err = rgbimage.ReadRGBImage(bytes.NewReader(val))
		if err != nil {
			glog.Warningf("Discarding unreadable cached row %d: %v", row, err)
			band = nil
			return nil
		}
		glog.V(2).Infof("Row cache hit for row %d", row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return band, nil
}

func (c *Cache) StoreRow(ctx context.Context, fingerprint string, row int, band *rgbimage.RGBImage) error {
	_, span := otel.Tracer("lumen/rowcache").Start(ctx, "Cache.StoreRow")
	defer span.End()

	buf := &bytes.Buffer{}
	if err := rgbimage.WriteRGBImage(band, buf); err != nil {
		return xerrors.Errorf("while encoding row %d: %w", row, err)
	}

	entry := badger.NewEntry(RowKey(fingerprint, row), buf.Bytes())
	if c.ttl != 0 {
		entry = entry.WithTTL(c.ttl)
	}

	// Rows are written once each, by a single worker, so transactions never
	// conflict.
	if err := c.DB.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(entry)
	}); err != nil {
		return xerrors.Errorf("while writing row %d: %w", row, err)
	}
	return nil
}

// RowCounts returns the number of cached rows for each render fingerprint.
func (c *Cache) RowCounts() (map[string]int, error) {
	counts := map[string]int{}
	err := c.DB.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			if len(key) < 5 {
				return xerrors.Errorf("key %q is too short to be a row key", key)
			}
			counts[string(key[:len(key)-5])]++
		}
		return nil
	})
	if err != nil {
		return nil, xerrors.Errorf("while iterating rows: %w", err)
	}
	return counts, nil
}

// Purge deletes every cached row.
func (c *Cache) Purge() error {
	if err := c.DB.DropAll(); err != nil {
		return xerrors.Errorf("while dropping all rows: %w", err)
	}
	return nil
}

// glogLogger routes badger's logging into glog.
type glogLogger struct{}

func (glogLogger) Errorf(format string, args ...interface{}) {
	glog.Errorf("badger: "+format, args...)
}

func (glogLogger) Warningf(format string, args ...interface{}) {
	glog.Warningf("badger: "+format, args...)
}

func (glogLogger) Infof(format string, args ...interface{}) {
	glog.V(1).Infof("badger: "+format, args...)
}

func (glogLogger) Debugf(format string, args ...interface{}) {
	glog.V(3).Infof("badger: "+format, args...)
}
