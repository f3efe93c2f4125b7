// Copyright 2026 The Unito Authors
// SPDX-License-Identifier: Apache-2.0

package fontcache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/unito-fonts/unito/lib/clock"
)

// Directory names within the cache root.
const (
	entryDir = "entries"
	dataDir  = "data"
	tmpDir   = "tmp"
)

// DefaultMemoryEntries is the in-memory payload LRU capacity used
// when Options.MemoryEntries is zero.
const DefaultMemoryEntries = 64

// ErrMiss is returned by Get when the slot has never been stored.
var ErrMiss = errors.New("fontcache: slot not cached")

// BuildFunc produces the payload for a slot. It runs at most once
// per slot at a time; concurrent requests for the same slot wait for
// the running build and share its result.
type BuildFunc func(ctx context.Context) ([]byte, error)

// Options configure a Cache.
type Options struct {
	// MemoryEntries is the capacity of the in-memory payload LRU.
	// Zero means DefaultMemoryEntries.
	MemoryEntries int

	// Clock stamps entry build times. Nil means the real clock.
	Clock clock.Clock
}

// Stats summarizes cache contents and runtime behavior. Entries,
// PayloadBytes, DataFiles, and StoredBytes are read from disk; the
// counters cover this process's lifetime only.
type Stats struct {
	Entries      int
	PayloadBytes int64
	DataFiles    int
	StoredBytes  int64

	// Hits counts lookups served from disk, MemoryHits lookups
	// served from the payload LRU. The two are disjoint.
	Hits       int64
	MemoryHits int64
	Builds     int64
}

// call tracks an in-flight build so concurrent requests for the same
// slot share one execution.
type call struct {
	done chan struct{}
	data []byte
	hit  bool
	err  error
}

// Cache is a content-addressed build cache on the local filesystem.
// Slots are identified by (repository, path, stage) and carry a
// freshness token from the upstream source. Payloads are stored
// compressed in data files named by content digest, so identical
// payloads under different slots share one file. Per-slot entry
// records commit a build atomically via temp-file rename.
//
// The cache is safe for concurrent use. Builds for distinct slots
// run in parallel; builds for the same slot are deduplicated.
type Cache struct {
	root  string
	clock clock.Clock

	mu    sync.Mutex
	calls map[Key]*call

	memory *lru.Cache[Key, memoryEntry]

	hits       atomic.Int64
	memoryHits atomic.Int64
	builds     atomic.Int64
}

// memoryEntry pairs a decompressed payload with the token it was
// stored under, so memory hits respect freshness the same way disk
// hits do.
type memoryEntry struct {
	token string
	data  []byte
}

// Open creates a Cache rooted at the given directory. The directory
// structure is created if it does not exist.
func Open(root string, opts Options) (*Cache, error) {
	for _, dir := range []string{
		root,
		filepath.Join(root, entryDir),
		filepath.Join(root, dataDir),
		filepath.Join(root, tmpDir),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory %s: %w", dir, err)
		}
	}

	capacity := opts.MemoryEntries
	if capacity <= 0 {
		capacity = DefaultMemoryEntries
	}
	memory, err := lru.New[Key, memoryEntry](capacity)
	if err != nil {
		return nil, fmt.Errorf("creating memory cache: %w", err)
	}

	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}

	return &Cache{
		root:   root,
		clock:  clk,
		calls:  make(map[Key]*call),
		memory: memory,
	}, nil
}

// Root returns the cache root directory.
func (c *Cache) Root() string { return c.root }

// Close drops the in-memory layer. The disk store needs no shutdown:
// every write is committed by rename.
func (c *Cache) Close() {
	c.memory.Purge()
}

// GetOrBuild returns the payload for the slot. If a stored entry
// matches the token, the cached payload is returned with hit true.
// Otherwise build runs and its result is committed under the token
// before being returned. An empty token never matches, so slots
// whose freshness cannot be established are rebuilt every run.
func (c *Cache) GetOrBuild(ctx context.Context, id ID, token string, build BuildFunc) ([]byte, bool, error) {
	return c.getOrBuild(ctx, id, token, build, false)
}

// Rebuild builds and commits the slot unconditionally, ignoring any
// stored entry. In-flight deduplication still applies.
func (c *Cache) Rebuild(ctx context.Context, id ID, token string, build BuildFunc) ([]byte, error) {
	data, _, err := c.getOrBuild(ctx, id, token, build, true)
	return data, err
}

func (c *Cache) getOrBuild(ctx context.Context, id ID, token string, build BuildFunc, force bool) ([]byte, bool, error) {
	key := id.Key()

	c.mu.Lock()
	if existing, ok := c.calls[key]; ok {
		c.mu.Unlock()
		select {
		case <-existing.done:
			// Waiters share the leader's result regardless of their
			// own token. Within one run every requester of a slot
			// carries the same token; differing tokens only occur
			// across runs, which never share in-flight calls.
			return existing.data, existing.hit, existing.err
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}
	current := &call{done: make(chan struct{})}
	c.calls[key] = current
	c.mu.Unlock()

	data, hit, err := c.run(ctx, id, key, token, build, force)

	current.data, current.hit, current.err = data, hit, err
	c.mu.Lock()
	delete(c.calls, key)
	c.mu.Unlock()
	close(current.done)

	return data, hit, err
}

// run performs the lookup-build-commit sequence for a slot. Only the
// in-flight leader for the slot's key executes this.
func (c *Cache) run(ctx context.Context, id ID, key Key, token string, build BuildFunc, force bool) ([]byte, bool, error) {
	if !force && token != "" {
		if data, ok := c.lookup(key, token); ok {
			return data, true, nil
		}
	}

	payload, err := build(ctx)
	if err != nil {
		return nil, false, err
	}
	if len(payload) == 0 {
		return nil, false, fmt.Errorf("fontcache: build for %s produced an empty payload", id)
	}
	c.builds.Add(1)

	if err := c.commit(id, key, token, payload); err != nil {
		return nil, false, err
	}
	c.memory.Add(key, memoryEntry{token: token, data: payload})
	return payload, false, nil
}

// lookup checks the memory LRU and then the disk store for a payload
// whose stored token matches. Any disk failure (missing or corrupt
// entry, missing data file, digest mismatch) reads as a miss so the
// caller rebuilds over the damaged slot.
func (c *Cache) lookup(key Key, token string) ([]byte, bool) {
	if cached, ok := c.memory.Get(key); ok && cached.token == token {
		c.memoryHits.Add(1)
		return cached.data, true
	}

	entry, err := c.readEntry(key)
	if err != nil || entry.Token != token {
		return nil, false
	}
	payload, err := c.readPayload(entry)
	if err != nil {
		return nil, false
	}

	c.hits.Add(1)
	c.memory.Add(key, memoryEntry{token: token, data: payload})
	return payload, true
}

// Get returns the stored payload and entry for a slot without
// consulting the token and without building. Returns ErrMiss if the
// slot has never been stored. Used by offline runs, which take
// whatever the cache holds.
func (c *Cache) Get(id ID) ([]byte, *Entry, error) {
	key := id.Key()

	entry, err := c.readEntry(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, ErrMiss
		}
		return nil, nil, err
	}

	if cached, ok := c.memory.Get(key); ok && cached.token == entry.Token {
		return cached.data, entry, nil
	}

	payload, err := c.readPayload(entry)
	if err != nil {
		return nil, nil, err
	}
	c.memory.Add(key, memoryEntry{token: entry.Token, data: payload})
	return payload, entry, nil
}

// Cached returns the slot's entry record if one is stored. It does
// not read or verify the payload.
func (c *Cache) Cached(id ID) (*Entry, bool) {
	entry, err := c.readEntry(id.Key())
	if err != nil {
		return nil, false
	}
	return entry, true
}

// Evict removes a slot's entry and, when no other entry references
// the same content, its data file. Evicting an absent slot is not an
// error.
func (c *Cache) Evict(id ID) error {
	key := id.Key()
	c.memory.Remove(key)

	entry, err := c.readEntry(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		// The entry is unreadable. Remove the record; the orphaned
		// data file is reclaimed by Clear.
		if removeErr := os.Remove(c.entryPath(key)); removeErr != nil && !os.IsNotExist(removeErr) {
			return fmt.Errorf("removing cache entry for %s: %w", id, removeErr)
		}
		return nil
	}

	if err := os.Remove(c.entryPath(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing cache entry for %s: %w", id, err)
	}

	live, err := c.liveDigests()
	if err != nil {
		return err
	}
	if _, referenced := live[entry.Digest]; !referenced {
		digest, parseErr := ParseKey(entry.Digest)
		if parseErr != nil {
			return nil
		}
		if err := os.Remove(c.dataPath(digest)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing cache data %s: %w", entry.Digest, err)
		}
	}
	return nil
}

// Clear removes every entry, data file, and leftover temp file, and
// purges the memory LRU.
func (c *Cache) Clear() error {
	c.memory.Purge()
	for _, dir := range []string{entryDir, dataDir, tmpDir} {
		path := filepath.Join(c.root, dir)
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("clearing cache directory %s: %w", path, err)
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("recreating cache directory %s: %w", path, err)
		}
	}
	return nil
}

// Stats scans the cache directories and returns content totals plus
// this process's hit and build counters.
func (c *Cache) Stats() (Stats, error) {
	stats := Stats{
		Hits:       c.hits.Load(),
		MemoryHits: c.memoryHits.Load(),
		Builds:     c.builds.Load(),
	}

	err := filepath.WalkDir(filepath.Join(c.root, entryDir), func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".cbor") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading cache entry %s: %w", path, err)
		}
		entry, err := unmarshalEntry(data)
		if err != nil {
			// Skip corrupt entries; they read as misses elsewhere.
			return nil
		}
		stats.Entries++
		stats.PayloadBytes += entry.Size
		return nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("scanning cache entries: %w", err)
	}

	err = filepath.WalkDir(filepath.Join(c.root, dataDir), func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		stats.DataFiles++
		stats.StoredBytes += info.Size()
		return nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("scanning cache data: %w", err)
	}

	return stats, nil
}

// commit stores the payload and then the entry record. The data file
// is written first so the entry rename is the commit point: a crash
// between the two leaves an orphaned data file, never a dangling
// entry.
func (c *Cache) commit(id ID, key Key, token string, payload []byte) error {
	digest := HashContent(payload)

	stored, tag, err := CompressPayloadAuto(payload, "")
	if err != nil {
		return fmt.Errorf("compressing payload for %s: %w", id, err)
	}

	if err := c.writeData(digest, stored); err != nil {
		return err
	}

	entry := &Entry{
		Version:     EntryVersion,
		Repository:  id.Repository,
		Path:        id.Path,
		Stage:       id.Stage,
		Token:       token,
		Size:        int64(len(payload)),
		StoredSize:  int64(len(stored)),
		Compression: tag,
		Digest:      FormatKey(digest),
		BuiltAt:     c.clock.Now().UTC(),
	}
	data, err := marshalEntry(entry)
	if err != nil {
		return err
	}
	return c.writeFileAtomic(c.entryPath(key), "entry-*.cbor", data)
}

// writeData stores a content-addressed data file. An existing file
// under the same digest is replaced rather than trusted: a rebuild
// may be healing a data file damaged on disk, and the rename swaps
// it out atomically under any concurrent reader.
func (c *Cache) writeData(digest Key, stored []byte) error {
	return c.writeFileAtomic(c.dataPath(digest), "data-*.bin", stored)
}

// writeFileAtomic writes data to a temp file in the cache tmp
// directory and renames it into place. Readers never see a partial
// file.
func (c *Cache) writeFileAtomic(finalPath, pattern string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return fmt.Errorf("creating cache shard directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Join(c.root, tmpDir), pattern)
	if err != nil {
		return fmt.Errorf("creating temp cache file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing %s: %w", tmpPath, err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("renaming to %s: %w", finalPath, err)
	}

	success = true
	return nil
}

// readEntry loads and validates the entry record for a key.
func (c *Cache) readEntry(key Key) (*Entry, error) {
	data, err := os.ReadFile(c.entryPath(key))
	if err != nil {
		return nil, err
	}
	return unmarshalEntry(data)
}

// readPayload loads, decompresses, and verifies the payload an entry
// names.
func (c *Cache) readPayload(entry *Entry) ([]byte, error) {
	digest, err := ParseKey(entry.Digest)
	if err != nil {
		return nil, fmt.Errorf("invalid cache entry digest: %w", err)
	}

	stored, err := os.ReadFile(c.dataPath(digest))
	if err != nil {
		return nil, fmt.Errorf("reading cache data for %s: %w", entry.ID(), err)
	}
	payload, err := DecompressPayload(stored, entry.Compression, int(entry.Size))
	if err != nil {
		return nil, fmt.Errorf("decompressing cache data for %s: %w", entry.ID(), err)
	}
	if HashContent(payload) != digest {
		return nil, fmt.Errorf("cache payload digest mismatch for %s", entry.ID())
	}
	return payload, nil
}

// liveDigests scans every entry record and returns the set of data
// file digests still referenced.
func (c *Cache) liveDigests() (map[string]struct{}, error) {
	live := make(map[string]struct{})
	err := filepath.WalkDir(filepath.Join(c.root, entryDir), func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".cbor") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		entry, err := unmarshalEntry(data)
		if err != nil {
			// A corrupt entry references nothing.
			return nil
		}
		live[entry.Digest] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning cache entries: %w", err)
	}
	return live, nil
}

// entryPath returns the sharded filesystem path for a slot's entry
// record: entries/a3/f9/a3f9....cbor.
func (c *Cache) entryPath(key Key) string {
	hex := FormatKey(key)
	return filepath.Join(c.root, entryDir, hex[:2], hex[2:4], hex+".cbor")
}

// dataPath returns the sharded filesystem path for a content-
// addressed data file.
func (c *Cache) dataPath(digest Key) string {
	hex := FormatKey(digest)
	return filepath.Join(c.root, dataDir, hex[:2], hex[2:4], hex)
}
