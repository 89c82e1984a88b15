package mock

import (
	"context"

	"github.com/evergreen-ci/mongorest"
	"github.com/evergreen-ci/mongorest/model/access"
	"github.com/evergreen-ci/mongorest/model/schema"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/send"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
)

// this is just a hack to ensure that compile breaks clearly if the
// mock implementation diverges from the interface
var _ mongorest.Environment = &Environment{}

// Environment is an in-memory environment without a database connection.
type Environment struct {
	MongorestSettings  *mongorest.Settings
	MongoClient        *mongo.Client
	SchemaRegistry     *schema.Registry
	VisibilityRegistry *access.Registry
	LogSender          send.Sender
	Closers            map[string]func(context.Context) error
}

// Configure validates the settings and registers their models.
func (e *Environment) Configure(settings *mongorest.Settings) error {
	if settings == nil {
		settings = &mongorest.Settings{}
	}
	if err := settings.Validate(); err != nil {
		return errors.Wrap(err, "validating settings")
	}

	e.MongorestSettings = settings
	e.SchemaRegistry = schema.NewRegistry()
	e.VisibilityRegistry = access.NewRegistry()
	e.LogSender = send.MakeInternalLogger()
	e.Closers = map[string]func(context.Context) error{}

	return errors.Wrap(settings.Models.Register(e.SchemaRegistry, e.VisibilityRegistry), "registering models")
}

func (e *Environment) Settings() *mongorest.Settings { return e.MongorestSettings }
func (e *Environment) Client() *mongo.Client         { return e.MongoClient }
func (e *Environment) Schemas() *schema.Registry     { return e.SchemaRegistry }
func (e *Environment) Visibility() *access.Registry  { return e.VisibilityRegistry }
func (e *Environment) Sender() send.Sender           { return e.LogSender }

func (e *Environment) DB() *mongo.Database {
	if e.MongoClient == nil {
		return nil
	}
	return e.MongoClient.Database(e.MongorestSettings.Database.DB)
}

func (e *Environment) RegisterCloser(name string, closer func(context.Context) error) {
	if e.Closers == nil {
		e.Closers = map[string]func(context.Context) error{}
	}
	e.Closers[name] = closer
}

func (e *Environment) Close(ctx context.Context) error {
	catcher := grip.NewBasicCatcher()
	for name, closer := range e.Closers {
		catcher.Wrapf(closer(ctx), "closer '%s'", name)
	}

	return catcher.Resolve()
}
