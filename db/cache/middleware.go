package cache

import (
	"net/http"

	"github.com/evergreen-ci/gimlet"
)

// requestCacheMiddleware embeds a document cache into the request context.
type requestCacheMiddleware struct {
	name string
}

// NewGimletMiddleware returns middleware giving every request its own
// document cache, named after the service.
func NewGimletMiddleware(name string) gimlet.Middleware {
	return &requestCacheMiddleware{name: name}
}

func (m *requestCacheMiddleware) ServeHTTP(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	next(rw, r.WithContext(Embed(r.Context(), m.name)))
}
