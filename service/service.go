package service

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/evergreen-ci/gimlet"
	"github.com/evergreen-ci/mongorest"
	"github.com/evergreen-ci/mongorest/rest/route"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// GetServer produces an HTTP server instance for a handler.
func GetServer(addr string, n http.Handler) *http.Server {
	grip.Notice(message.Fields{
		"action":  "starting service",
		"service": addr,
		"build":   mongorest.BuildRevision,
		"process": grip.Name(),
	})

	return &http.Server{
		Addr:              addr,
		Handler:           n,
		ReadTimeout:       time.Minute,
		ReadHeaderTimeout: 30 * time.Second,
		WriteTimeout:      time.Minute,
	}
}

// GetRouter builds the handler serving the configured models of the
// environment, along with a status endpoint.
func GetRouter(env mongorest.Environment, opts route.HandlerOptions) (http.Handler, error) {
	app := gimlet.NewApp()
	app.SetPrefix(strings.Trim(env.Settings().Api.Prefix, "/"))
	app.AddMiddleware(gimlet.MakeRecoveryLogger())

	if err := route.AttachHandler(app, opts); err != nil {
		return nil, errors.Wrap(err, "attaching model routes")
	}
	app.AddRoute("/status").Version(opts.Version).Get().Handler(statusHandler(env))

	handler, err := app.Handler()
	if err != nil {
		return nil, errors.Wrap(err, "building router")
	}

	return otelhttp.NewHandler(handler, mongorest.PackageName), nil
}

type statusResponse struct {
	Build    string   `json:"build_revision"`
	Database bool     `json:"database"`
	Models   []string `json:"models"`
}

func statusHandler(env mongorest.Environment) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		resp := statusResponse{
			Build:  mongorest.BuildRevision,
			Models: env.Schemas().Models(),
		}
		if client := env.Client(); client != nil {
			err := client.Ping(ctx, readpref.Primary())
			grip.Warning(message.WrapError(err, message.Fields{
				"message": "database ping failed",
			}))
			resp.Database = err == nil
		}

		status := http.StatusOK
		if !resp.Database {
			status = http.StatusServiceUnavailable
		}
		gimlet.WriteJSONResponse(w, status, resp)
	}
}
