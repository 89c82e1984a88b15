package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/evergreen-ci/utility/ttlcache"
)

type (
	// Using a custom type to avoid collisions with other context keys.
	cacheContextKey string
)

const (
	documentsCache cacheContextKey = "documents"

	lifetime = time.Second
)

// Embed adds a short lived document cache to the context, unless one is
// already present. Referenced documents fetched while populating a response
// are cached so that a reference repeated across results is read once.
func Embed(ctx context.Context, namePrefix string) context.Context {
	if ctx.Value(documentsCache) != nil {
		return ctx
	}

	cacheName := fmt.Sprintf("%s-db-cache-%s", namePrefix, documentsCache)
	cache := ttlcache.WithOtel(ttlcache.NewWeakInMemory[any](), cacheName)

	return context.WithValue(ctx, documentsCache, cache)
}

// GetFromCache returns the cached document of the collection with the id.
func GetFromCache(ctx context.Context, collection, id string) (any, bool) {
	cache, ok := getCache(ctx)
	if !ok {
		return nil, false
	}

	return cache.Get(ctx, key(collection, id), 0)
}

// SetInCache caches a document of the collection by id. It is a no-op when
// the context carries no cache.
func SetInCache(ctx context.Context, collection, id string, value any) {
	cache, ok := getCache(ctx)
	if !ok {
		return
	}

	cache.Put(ctx, key(collection, id), value, time.Now().Add(lifetime))
}

func getCache(ctx context.Context) (ttlcache.Cache[any], bool) {
	cache, ok := ctx.Value(documentsCache).(ttlcache.Cache[any])
	return cache, ok
}

func key(collection, id string) string {
	return collection + "/" + id
}
