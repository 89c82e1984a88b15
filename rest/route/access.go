package route

import (
	"net/http"
	"strings"

	"github.com/evergreen-ci/mongorest"
	"github.com/evergreen-ci/mongorest/db"
	"github.com/evergreen-ci/mongorest/model/access"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
)

// AccessFunc returns the access level a request is served at for a model.
type AccessFunc func(r *http.Request, model string) access.Level

// ContextFilter scopes the base plan of a request before the query string
// is applied, for instance to the documents owned by the requesting user.
// The translator only ever narrows the scoped filter.
type ContextFilter func(r *http.Request, model string, base db.Q) (db.Q, error)

// StaticAccess serves every request at the same level.
func StaticAccess(level access.Level) AccessFunc {
	return func(*http.Request, string) access.Level { return level }
}

// AccessFromConfig serves requests at the configured default level, or at
// the level named by the configured access header when it is present. An
// unknown level in the header is returned as is, so the request is
// refused.
func AccessFromConfig(conf mongorest.APIConfig) AccessFunc {
	fallback, err := access.ParseLevel(conf.DefaultAccess)
	if err != nil {
		fallback = access.Public
	}
	if conf.AccessHeader == "" {
		return StaticAccess(fallback)
	}

	return func(r *http.Request, model string) access.Level {
		raw := strings.TrimSpace(r.Header.Get(conf.AccessHeader))
		if raw == "" {
			return fallback
		}
		level, err := access.ParseLevel(raw)
		if err != nil {
			grip.Debug(message.WrapError(err, message.Fields{
				"message": "refusing invalid access header",
				"header":  conf.AccessHeader,
				"model":   model,
			}))
			return access.Level(raw)
		}
		return level
	}
}
