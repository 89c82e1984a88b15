package route

import (
	"fmt"

	"github.com/evergreen-ci/gimlet"
	"github.com/evergreen-ci/mongorest"
	"github.com/evergreen-ci/mongorest/db/cache"
	"github.com/evergreen-ci/mongorest/model/access"
	"github.com/evergreen-ci/mongorest/model/schema"
	"github.com/evergreen-ci/mongorest/rest/data"
	"github.com/evergreen-ci/mongorest/rest/query"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

// HandlerOptions holds the dependencies of the generated routes.
type HandlerOptions struct {
	Connector  data.Connector
	Schemas    *schema.Registry
	Visibility *access.Registry
	Query      mongorest.QueryConfig
	Models     mongorest.ModelConfigs
	Version    int

	// Access defaults to serving every request at the public level.
	Access AccessFunc
	// ContextFilter is optional.
	ContextFilter ContextFilter
}

// NewHandlerOptions returns options serving the environment's models from
// its database.
func NewHandlerOptions(env mongorest.Environment) HandlerOptions {
	settings := env.Settings()
	return HandlerOptions{
		Connector:  data.NewDBConnector(env.Schemas()),
		Schemas:    env.Schemas(),
		Visibility: env.Visibility(),
		Query:      settings.Query,
		Models:     settings.Models,
		Version:    settings.Api.Version,
		Access:     AccessFromConfig(settings.Api),
	}
}

func (o *HandlerOptions) validate() error {
	catcher := grip.NewBasicCatcher()
	catcher.NewWhen(o.Connector == nil, "connector must be set")
	catcher.NewWhen(o.Schemas == nil, "schema registry must be set")
	catcher.NewWhen(o.Visibility == nil, "visibility registry must be set")
	if o.Schemas != nil {
		for _, m := range o.Models {
			_, ok := o.Schemas.Get(m.Name)
			catcher.ErrorfWhen(!ok, "model '%s' has no registered schema", m.Name)
		}
	}
	if o.Access == nil {
		o.Access = StaticAccess(access.Public)
	}
	if o.Version <= 0 {
		o.Version = mongorest.DefaultAPIVersion
	}

	return catcher.Resolve()
}

// AttachHandler registers the routes of every configured model on the app:
//
//	GET    /{Model}        list, or distinct values with ?distinct=
//	GET    /{Model}/count  count
//	POST   /{Model}        create
//	DELETE /{Model}        delete the documents matching ?query=
//	GET    /{Model}/{id}   fetch one
//	PUT    /{Model}/{id}   update
//	PATCH  /{Model}/{id}   update
//	DELETE /{Model}/{id}   delete one
//
// Write routes are not registered for read only models.
func AttachHandler(app *gimlet.APIApp, opts HandlerOptions) error {
	if err := opts.validate(); err != nil {
		return errors.Wrap(err, "invalid handler options")
	}

	app.AddMiddleware(cache.NewGimletMiddleware(mongorest.PackageName))

	filter := access.NewFilter(opts.Visibility, opts.Schemas)
	translator := query.NewTranslator(opts.Schemas, query.OptionsFromSettings(opts.Query))

	for _, m := range opts.Models {
		env := modelEnv{
			model:         m.Name,
			connector:     opts.Connector,
			schemas:       opts.Schemas,
			visibility:    opts.Visibility,
			filter:        filter,
			translator:    translator,
			access:        opts.Access,
			contextFilter: opts.ContextFilter,
		}
		collection := "/" + m.Name
		document := fmt.Sprintf("/%s/{%s}", m.Name, idVar)

		app.AddRoute(collection).Version(opts.Version).Get().RouteHandler(makeListDocuments(env))
		app.AddRoute(collection + "/count").Version(opts.Version).Get().RouteHandler(makeCountDocuments(env))
		app.AddRoute(document).Version(opts.Version).Get().RouteHandler(makeGetDocument(env))

		if m.ReadOnly {
			continue
		}
		app.AddRoute(collection).Version(opts.Version).Post().RouteHandler(makeCreateDocument(env))
		app.AddRoute(collection).Version(opts.Version).Delete().RouteHandler(makeDeleteDocuments(env))
		app.AddRoute(document).Version(opts.Version).Put().RouteHandler(makeUpdateDocument(env))
		app.AddRoute(document).Version(opts.Version).Patch().RouteHandler(makeUpdateDocument(env))
		app.AddRoute(document).Version(opts.Version).Delete().RouteHandler(makeDeleteDocument(env))
	}

	grip.Info(message.Fields{
		"message": "attached model routes",
		"models":  len(opts.Models),
		"version": opts.Version,
	})

	return nil
}
