package driver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"nativebind/internal/layout"
	"nativebind/internal/logx"
)

// Current schema version - increment when DiskPayload format changes
const diskCacheSchemaVersion uint16 = 1

// DiskCache stores dumps on disk keyed by request digest.
// Thread-safe for concurrent access.
type DiskCache struct {
	mu  sync.RWMutex
	dir string
}

// DiskPayload is one cached dump.
type DiskPayload struct {
	Schema uint16
	Digest Digest
	Dump   *Dump
}

// OpenDiskCache initializes a disk cache under the user cache directory.
func OpenDiskCache(app string) (*DiskCache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	return OpenDiskCacheAt(filepath.Join(base, app))
}

// OpenDiskCacheAt initializes a disk cache in dir.
func OpenDiskCacheAt(dir string) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskCache{dir: dir}, nil
}

// Dir returns the cache directory.
func (c *DiskCache) Dir() string { return c.dir }

func (c *DiskCache) pathFor(key Digest) string {
	return filepath.Join(c.dir, "dumps", key.String()+".mp")
}

// Put serializes and writes a payload to the disk cache.
func (c *DiskCache) Put(key Digest, payload *DiskPayload) (err error) {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if rmErr := os.Remove(f.Name()); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
			err = rmErr
		}
	}()

	if err := msgpack.NewEncoder(f).Encode(payload); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), p)
}

// Get reads a payload. A missing entry or one written under another schema
// is a miss.
func (c *DiskCache) Get(key Digest) (*DiskPayload, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()
	var out DiskPayload
	if err := msgpack.NewDecoder(f).Decode(&out); err != nil {
		return nil, false, err
	}
	if out.Schema != diskCacheSchemaVersion || out.Digest != key || out.Dump == nil || out.Dump.Schema != DumpSchema {
		return nil, false, nil
	}
	return &out, true, nil
}

// DropAll invalidates the cache, useful after format changes.
func (c *DiskCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return os.RemoveAll(old)
}

// GenerateCached returns the cached dump of req when one exists and runs
// Generate otherwise. The Result is nil on a cache hit.
func GenerateCached(ctx context.Context, cache *DiskCache, req Request) (*Dump, *Result, error) {
	log := logx.Logger()
	if req.Target.PtrSize == 0 {
		req.Target = layout.AArch64Android()
	}
	var key Digest
	if cache != nil {
		var err error
		key, err = RequestDigest(req)
		if err != nil {
			return nil, nil, fmt.Errorf("digest request: %w", err)
		}
		payload, ok, err := cache.Get(key)
		if err != nil {
			log.Warn("cache read failed", zap.String("digest", key.String()), zap.Error(err))
		}
		if ok {
			log.Debug("cache hit", zap.String("digest", key.String()))
			return payload.Dump, nil, nil
		}
	}
	res, err := Generate(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	dump := NewDump(res, req.Target.Triple)
	if cache != nil {
		if err := cache.Put(key, &DiskPayload{Schema: diskCacheSchemaVersion, Digest: key, Dump: dump}); err != nil {
			log.Warn("cache write failed", zap.String("digest", key.String()), zap.Error(err))
		}
	}
	return dump, res, nil
}
