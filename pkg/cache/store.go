// Package cache persists per-file parse results between runs. Entries are
// keyed by a hash of the file content and everything that influences its
// parse, so a renamed file in the same directory hits the same entry.
package cache

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/xxh3"
	bolt "go.etcd.io/bbolt"

	"github.com/Sumatoshi-tech/funcscan/pkg/cparse"
	"github.com/Sumatoshi-tech/funcscan/pkg/csource"
	"github.com/Sumatoshi-tech/funcscan/pkg/safeconv"
)

// keyVersion is mixed into every key. Bump it when FileResult changes shape.
const keyVersion = "funcscan/v2"

const (
	bucketName  = "results"
	openTimeout = time.Second
	fileMode    = 0o600
	dirMode     = 0o750

	// headerSize is one encoding byte plus the uncompressed length.
	headerSize = 5
)

// Value encodings.
const (
	encodingRaw byte = iota
	encodingLZ4
)

// ErrCorruptEntry indicates a stored value that cannot be decoded.
var ErrCorruptEntry = errors.New("corrupt cache entry")

// Store is a bbolt-backed parse result cache. A nil *Store is a valid,
// always-missing cache.
type Store struct {
	db   *bolt.DB
	path string

	hits   atomic.Int64
	misses atomic.Int64
}

// Open opens or creates the cache database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	db, err := bolt.Open(path, fileMode, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, createErr := tx.CreateBucketIfNotExists([]byte(bucketName))

		return createErr
	})
	if err != nil {
		db.Close()

		return nil, fmt.Errorf("init cache %s: %w", path, err)
	}

	return &Store{db: db, path: path}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}

	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}

	return s.path
}

// Key derives the cache key for a file's content parsed as lang from
// directory dir with the given include paths. The directory and include
// paths matter because resolved includes are part of the result.
func Key(lang csource.Language, dir string, includePaths []string, content []byte) []byte {
	hasher := xxh3.New()

	hasher.WriteString(keyVersion)
	hasher.WriteString("\x00")
	hasher.WriteString(string(lang))
	hasher.WriteString("\x00")
	hasher.WriteString(dir)

	for _, path := range includePaths {
		hasher.WriteString("\x00")
		hasher.WriteString(path)
	}

	hasher.WriteString("\x01")
	hasher.Write(content)

	sum := hasher.Sum128().Bytes()

	return sum[:]
}

// Get returns the cached result for key, re-stamped with path.
func (s *Store) Get(key []byte, path string) (*cparse.FileResult, bool, error) {
	if s == nil {
		return nil, false, nil
	}

	var value []byte

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket == nil {
			return nil
		}

		// Values are only valid inside the transaction.
		if data := bucket.Get(key); data != nil {
			value = append([]byte(nil), data...)
		}

		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("read cache: %w", err)
	}

	if value == nil {
		s.misses.Add(1)

		return nil, false, nil
	}

	res, err := decode(value)
	if err != nil {
		s.misses.Add(1)

		return nil, false, err
	}

	s.hits.Add(1)
	res.Restamp(path)

	return res, true, nil
}

// Put stores res under key.
func (s *Store) Put(key []byte, res *cparse.FileResult) error {
	if s == nil || res == nil {
		return nil
	}

	value, err := encode(res)
	if err != nil {
		return err
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		bucket, bucketErr := tx.CreateBucketIfNotExists([]byte(bucketName))
		if bucketErr != nil {
			return bucketErr
		}

		return bucket.Put(key, value)
	})
	if err != nil {
		return fmt.Errorf("write cache: %w", err)
	}

	return nil
}

// Len returns the number of stored entries.
func (s *Store) Len() (int, error) {
	if s == nil {
		return 0, nil
	}

	var count int

	err := s.db.View(func(tx *bolt.Tx) error {
		if bucket := tx.Bucket([]byte(bucketName)); bucket != nil {
			count = bucket.Stats().KeyN
		}

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count cache entries: %w", err)
	}

	return count, nil
}

// Hits returns the number of successful lookups since Open.
func (s *Store) Hits() int64 {
	if s == nil {
		return 0
	}

	return s.hits.Load()
}

// Misses returns the number of failed lookups since Open.
func (s *Store) Misses() int64 {
	if s == nil {
		return 0
	}

	return s.misses.Load()
}

// encode serializes res as JSON and compresses it with LZ4. Values LZ4
// cannot shrink are stored raw.
func encode(res *cparse.FileResult) ([]byte, error) {
	raw, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("encode cache entry: %w", err)
	}

	size, err := safeconv.IntToUint32(len(raw))
	if err != nil {
		return nil, fmt.Errorf("encode cache entry: %w", err)
	}

	out := make([]byte, headerSize+lz4.CompressBlockBound(len(raw)))
	binary.LittleEndian.PutUint32(out[1:headerSize], size)

	written, err := lz4.CompressBlock(raw, out[headerSize:], nil)
	if err != nil || written == 0 || written >= len(raw) {
		out = append(out[:headerSize], raw...)
		out[0] = encodingRaw

		return out, nil
	}

	out[0] = encodingLZ4

	return out[:headerSize+written], nil
}

func decode(value []byte) (*cparse.FileResult, error) {
	if len(value) < headerSize {
		return nil, ErrCorruptEntry
	}

	size := binary.LittleEndian.Uint32(value[1:headerSize])
	payload := value[headerSize:]

	switch value[0] {
	case encodingRaw:
	case encodingLZ4:
		decompressed := make([]byte, size)

		n, err := lz4.UncompressBlock(payload, decompressed)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorruptEntry, err)
		}

		payload = decompressed[:n]
	default:
		return nil, ErrCorruptEntry
	}

	var res cparse.FileResult
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptEntry, err)
	}

	return &res, nil
}
