package catalog

import (
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/ezoic/marketlens/pkg/log"
)

// Loader memoizes catalogs per (cleanPath, fullPath) for the lifetime of the
// process. Concurrent first loads of the same pair share one read. Failed
// loads are not cached.
type Loader struct {
	mu     sync.RWMutex
	cache  map[string]*Catalog
	group  singleflight.Group
	loadFn func(cleanPath, fullPath string) (*Catalog, error)
	logger log.Logger
}

// NewLoader returns a Loader reading CSV files with Load.
func NewLoader() *Loader {
	return &Loader{
		cache:  make(map[string]*Catalog),
		loadFn: Load,
		logger: log.GetLoggerWithName("catalog.loader"),
	}
}

// Load returns the cached catalog for the pair of paths, reading it on first
// use.
func (l *Loader) Load(cleanPath, fullPath string) (*Catalog, error) {
	key := cleanPath + "\x00" + fullPath

	l.mu.RLock()
	c, ok := l.cache[key]
	l.mu.RUnlock()
	if ok {
		l.logger.Debug("Catalog cache hit", log.PathKey, cleanPath)
		return c, nil
	}

	v, err, _ := l.group.Do(key, func() (interface{}, error) {
		l.mu.RLock()
		c, ok := l.cache[key]
		l.mu.RUnlock()
		if ok {
			return c, nil
		}

		c, err := l.loadFn(cleanPath, fullPath)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.cache[key] = c
		l.mu.Unlock()
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Catalog), nil
}
