package tenantschema

import (
	"sync"

	"github.com/golang/groupcache/lru"
)

const maxCachedQueries = 1000

// queryCache implements a lru cache for translated queries,
// keyed by translation map and query text.
type queryCache struct {
	mu    sync.Mutex
	cache *lru.Cache // lazily initialized
}

func cacheKey(m SchemaTranslateMap, q string) string {
	return m.key() + "\x00" + q
}

func (qc *queryCache) lookup(m SchemaTranslateMap, q string) (string, bool) {
	qc.mu.Lock()
	defer qc.mu.Unlock()

	if qc.cache == nil {
		return "", false
	}
	v, ok := qc.cache.Get(cacheKey(m, q))
	if !ok {
		return "", false
	}
	return v.(string), true
}

func (qc *queryCache) add(m SchemaTranslateMap, q, translated string) {
	qc.mu.Lock()
	defer qc.mu.Unlock()

	if qc.cache == nil {
		qc.cache = lru.New(maxCachedQueries)
	}
	qc.cache.Add(cacheKey(m, q), translated)
}
