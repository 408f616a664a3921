package pipeline

import (
	"context"
	"sync"

	"github.com/lukaszchomatek/aji-vision-demo/internal/backend"
	"github.com/lukaszchomatek/aji-vision-demo/internal/logger"
	"golang.org/x/sync/singleflight"
)

// Hooks are called from the goroutine running the load.
type Hooks struct {
	OnLoading  func(b backend.Backend)
	OnProgress func(b backend.Backend, p Progress)
	OnReady    func(b backend.Backend)
}

// Cache keeps at most one pipeline. It is rebuilt whenever a different backend is requested.
type Cache struct {
	loader Loader
	hooks  Hooks

	mu      sync.Mutex
	current Pipeline
	backend backend.Backend

	// loads for the same backend share one construction, loads for different backends queue on loadMu
	group  singleflight.Group
	loadMu sync.Mutex
}

func NewCache(loader Loader, hooks Hooks) *Cache {
	return &Cache{loader: loader, hooks: hooks}
}

func (c *Cache) cached(b backend.Backend) (Pipeline, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil && c.backend == b {
		return c.current, true
	}
	return nil, false
}

// Ensure returns the pipeline for b, loading it (and discarding any other) when needed.
// A failed load leaves the cache empty.
func (c *Cache) Ensure(ctx context.Context, b backend.Backend) (Pipeline, error) {
	if p, ok := c.cached(b); ok {
		return p, nil
	}
	v, err, shared := c.group.Do(string(b), func() (interface{}, error) {
		c.loadMu.Lock()
		defer c.loadMu.Unlock()
		if p, ok := c.cached(b); ok {
			return p, nil
		}
		c.discard()
		return c.load(ctx, b)
	})
	if shared {
		logger.Debugf("pipeline load for %s shared with a concurrent caller", b)
	}
	if err != nil {
		return nil, err
	}
	return v.(Pipeline), nil
}

func (c *Cache) load(ctx context.Context, b backend.Backend) (Pipeline, error) {
	if c.hooks.OnLoading != nil {
		c.hooks.OnLoading(b)
	}
	p, err := c.loader.Load(ctx, b, func(progress Progress) {
		if c.hooks.OnProgress != nil {
			c.hooks.OnProgress(b, progress)
		}
	})
	if err != nil {
		logger.Warnf("failed to load pipeline for %s: %s", b, err)
		return nil, err
	}
	c.mu.Lock()
	c.current = p
	c.backend = b
	c.mu.Unlock()
	logger.Infof("pipeline ready, backend: %s", b)
	if c.hooks.OnReady != nil {
		c.hooks.OnReady(b)
	}
	return p, nil
}

func (c *Cache) discard() {
	c.mu.Lock()
	old, oldBackend := c.current, c.backend
	c.current = nil
	c.backend = ""
	c.mu.Unlock()
	if old == nil {
		return
	}
	logger.Infof("discarding pipeline for %s", oldBackend)
	if err := old.Close(); err != nil {
		logger.Warnf("failed to close pipeline for %s: %s", oldBackend, err)
	}
}

// Current reports the backend of the cached pipeline, empty when nothing is loaded.
func (c *Cache) Current() backend.Backend {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backend
}

func (c *Cache) Close() error {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	c.discard()
	return nil
}
