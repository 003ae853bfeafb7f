package htpasswd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-authgate/credgate/internal/core"

	"github.com/fsnotify/fsnotify"
)

var _ core.CredentialStore = (*CachedStore)(nil)

// CachedStore serves hash lookups from a short-TTL cache in front of a
// Store. The cache is flushed whenever the password file changes on disk, so
// edits still take effect without a restart. Unknown users are never
// cached.
type CachedStore struct {
	store *Store
	cache core.Cache[string]
	ttl   time.Duration
	// gen advances on every invalidation.
	gen atomic.Uint64

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewCachedStore wraps store with cache. Call Watch to enable change
// detection and Close to stop it.
func NewCachedStore(store *Store, cache core.Cache[string], ttl time.Duration) *CachedStore {
	return &CachedStore{
		store: store,
		cache: cache,
		ttl:   ttl,
	}
}

// Name returns provider name for logging
func (c *CachedStore) Name() string {
	return c.store.Name()
}

// Validate runs ValidateFile on the underlying file.
func (c *CachedStore) Validate() bool {
	return c.store.Validate()
}

// FindHash returns the cached hash for username, reading the file on a miss.
// A lookup overtaken by an invalidation is discarded and the file re-read.
func (c *CachedStore) FindHash(username string) (string, bool) {
	ctx := context.Background()
	gen := c.gen.Load()
	hash, err := c.cache.GetWithFetch(
		ctx,
		username,
		c.ttl,
		func(ctx context.Context, key string) (string, error) {
			hash, found := c.store.FindHash(key)
			if !found {
				return "", ErrUserNotFound
			}
			return hash, nil
		},
	)
	if c.gen.Load() != gen {
		_ = c.cache.Delete(ctx, username)
		return c.store.FindHash(username)
	}
	if err != nil {
		return "", false
	}
	return hash, true
}

// Authenticate verifies password against the cached hash for username.
func (c *CachedStore) Authenticate(username, password string) core.Verdict {
	start := time.Now()
	hash, found := c.FindHash(username)
	verdict := verify(c.store.log, username, password, hash, found)
	c.store.recorder.RecordAuthAttempt(BackendName, verdict, time.Since(start))
	return verdict
}

// ValidUser reports whether username has an entry in the file.
func (c *CachedStore) ValidUser(username string) bool {
	_, found := c.FindHash(username)
	return found
}

// SetPassword updates the file and drops the cached entry for username.
func (c *CachedStore) SetPassword(username, password string) error {
	if err := c.store.SetPassword(username, password); err != nil {
		return err
	}
	c.gen.Add(1)
	return c.cache.Delete(context.Background(), username)
}

// Invalidate drops every cached entry.
func (c *CachedStore) Invalidate() {
	c.gen.Add(1)
	if err := c.cache.Flush(context.Background()); err != nil {
		c.store.log.Errorf("Failed to flush htpasswd cache: %v", err)
	}
}

// Watch starts watching the password file's directory and flushes the cache
// on any change to the file. Watching the directory survives editors and
// SetPassword replacing the file by rename.
func (c *CachedStore) Watch() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.watcher != nil {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(c.store.path)); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(c.store.path), err)
	}

	c.watcher = w
	c.done = make(chan struct{})
	c.wg.Add(1)
	go c.watchLoop(w, c.done)
	return nil
}

func (c *CachedStore) watchLoop(w *fsnotify.Watcher, done <-chan struct{}) {
	defer c.wg.Done()
	target := filepath.Clean(c.store.path)

	for {
		select {
		case <-done:
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target || ev.Op == fsnotify.Chmod {
				continue
			}
			c.store.log.Debugf("htpasswd file changed op=%s, flushing cache", ev.Op)
			c.Invalidate()
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				c.Invalidate()
			}
			c.store.log.Errorf("htpasswd watcher error: %v", err)
		}
	}
}

// Close stops the watcher, if any, and releases the cache.
func (c *CachedStore) Close() error {
	c.mu.Lock()
	w := c.watcher
	c.watcher = nil
	if w != nil {
		close(c.done)
	}
	c.mu.Unlock()

	var err error
	if w != nil {
		err = w.Close()
		c.wg.Wait()
	}
	return errors.Join(err, c.cache.Close())
}
