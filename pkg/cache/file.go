package cache

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
)

// FileCache stores entries as zstd-compressed files under a directory,
// fanned out into subdirectories by the first byte of the key digest.
//
// An entry file is the magic "sb3c", the expiry as big-endian Unix
// nanoseconds (zero for none), then one zstd frame holding the value.
// Writes go through a temporary file and a rename so that parallel
// inspect workers never read a partial entry.
type FileCache struct {
	dir string
}

const (
	entryMagic  = "sb3c"
	entryHeader = len(entryMagic) + 8
	entryExt    = ".zst"
)

// Encoder and decoder are safe for concurrent EncodeAll/DecodeAll.
var (
	entryEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	entryDecoder, _ = zstd.NewReader(nil)
)

// NewFileCache creates dir if needed and returns a cache stored there.
func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileCache{dir: dir}, nil
}

// Get returns the value stored under key. Expired and unreadable entries
// are removed and reported as misses.
func (c *FileCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	path := c.path(key)
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	data, ok := decodeEntry(raw, time.Now())
	if !ok {
		_ = os.Remove(path)
		return nil, false, nil
	}
	return data, true, nil
}

// Set stores data under key. A ttl of zero never expires.
func (c *FileCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	var expires int64
	if ttl > 0 {
		expires = time.Now().Add(ttl).UnixNano()
	}

	path := c.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".entry-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(encodeEntry(data, expires)); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Delete removes the entry for key, if any.
func (c *FileCache) Delete(ctx context.Context, key string) error {
	if err := os.Remove(c.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Dir returns the cache directory.
func (c *FileCache) Dir() string {
	return c.dir
}

// Clear removes every entry and returns how many there were.
func (c *FileCache) Clear() (int, error) {
	n := 0
	err := filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == entryExt {
			n++
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(c.dir, e.Name())); err != nil {
			return 0, err
		}
	}
	return n, nil
}

// Close does nothing.
func (c *FileCache) Close() error {
	return nil
}

func (c *FileCache) path(key string) string {
	sum := Hash([]byte(key))
	return filepath.Join(c.dir, sum[:2], sum[2:]+entryExt)
}

func encodeEntry(data []byte, expires int64) []byte {
	buf := make([]byte, entryHeader, entryHeader+len(data)/2)
	copy(buf, entryMagic)
	binary.BigEndian.PutUint64(buf[len(entryMagic):], uint64(expires))
	return entryEncoder.EncodeAll(data, buf)
}

func decodeEntry(raw []byte, now time.Time) ([]byte, bool) {
	if len(raw) < entryHeader || !bytes.Equal(raw[:len(entryMagic)], []byte(entryMagic)) {
		return nil, false
	}
	expires := int64(binary.BigEndian.Uint64(raw[len(entryMagic):entryHeader]))
	if expires != 0 && now.UnixNano() > expires {
		return nil, false
	}
	data, err := entryDecoder.DecodeAll(raw[entryHeader:], nil)
	if err != nil {
		return nil, false
	}
	return data, true
}

var _ Cache = (*FileCache)(nil)
