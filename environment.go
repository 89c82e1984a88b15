package mongorest

import (
	"context"
	"sync"
	"time"

	"github.com/evergreen-ci/mongorest/model/access"
	"github.com/evergreen-ci/mongorest/model/schema"
	"github.com/jpillora/backoff"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/mongodb/grip/send"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

var (
	globalEnv     Environment
	globalEnvLock *sync.RWMutex
)

func init() { globalEnvLock = &sync.RWMutex{} }

// GetEnvironment returns the global application level environment. The
// environment must be configured with SetEnvironment before use.
//
// In general you should pass the Environment through your application
// rather than reaching for the global, but the database helpers need it to
// find the connection.
func GetEnvironment() Environment {
	globalEnvLock.RLock()
	defer globalEnvLock.RUnlock()

	return globalEnv
}

func SetEnvironment(env Environment) {
	globalEnvLock.Lock()
	defer globalEnvLock.Unlock()

	globalEnv = env
}

// Environment provides application-level services: the settings, the
// database and the model registries.
type Environment interface {
	// Returns the settings object. The settings object is not
	// necessarily safe for concurrent access.
	Settings() *Settings

	Client() *mongo.Client
	DB() *mongo.Database

	// Schemas holds the schema of every served model.
	Schemas() *schema.Registry
	// Visibility holds the field visibility declared for every model.
	Visibility() *access.Registry

	// Sender returns the process level log sender.
	Sender() send.Sender

	// RegisterCloser adds a function object to an internal
	// tracker to be called by the Close method before process
	// termination. The ID is used in reporting, but must be
	// unique or a new closer could overwrite an existing closer
	// in some implementations.
	RegisterCloser(string, func(context.Context) error)
	// Close calls all registered closers in the environment.
	Close(context.Context) error
}

// NewEnvironment constructs an Environment instance, reading the settings
// from confPath unless settings are given, building the model registries
// and establishing a connection to the database.
func NewEnvironment(ctx context.Context, confPath string, settings *Settings) (Environment, error) {
	e := &envState{
		settings: settings,
		closers:  map[string]func(context.Context) error{},
	}

	if err := e.initSettings(confPath); err != nil {
		return nil, errors.WithStack(err)
	}

	catcher := grip.NewBasicCatcher()
	catcher.Add(e.initRegistries())
	catcher.Add(e.initSender())
	if catcher.HasErrors() {
		return nil, errors.WithStack(catcher.Resolve())
	}

	if err := e.initDB(ctx); err != nil {
		return nil, errors.Wrap(err, "configuring database")
	}
	if err := e.initOtel(ctx); err != nil {
		return nil, errors.Wrap(err, "initializing telemetry")
	}

	return e, nil
}

type envState struct {
	settings   *Settings
	client     *mongo.Client
	schemas    *schema.Registry
	visibility *access.Registry
	sender     send.Sender
	mu         sync.RWMutex
	closers    map[string]func(context.Context) error
}

func (e *envState) initSettings(path string) error {
	var err error

	if e.settings == nil {
		if path == "" {
			return errors.New("no settings file or settings given")
		}
		e.settings, err = NewSettings(path)
		if err != nil {
			return errors.Wrap(err, "getting settings from file")
		}
	}

	return errors.Wrap(e.settings.Validate(), "validating settings")
}

func (e *envState) initRegistries() error {
	e.schemas = schema.NewRegistry()
	e.visibility = access.NewRegistry()

	return errors.Wrap(e.settings.Models.Register(e.schemas, e.visibility), "registering models")
}

func (e *envState) initSender() error {
	sender, err := e.settings.GetSender()
	if err != nil {
		return errors.Wrap(err, "building log sender")
	}
	e.sender = sender

	e.closers["log-sender"] = func(context.Context) error {
		return errors.Wrap(sender.Close(), "closing log sender")
	}

	return nil
}

const connectAttempts = 5

func (e *envState) initDB(ctx context.Context) error {
	settings := e.settings.Database

	client, err := mongo.Connect(ctx, settings.ClientOptions())
	if err != nil {
		return errors.Wrap(err, "connecting to the database")
	}

	interval := backoff.Backoff{
		Min:    100 * time.Millisecond,
		Max:    settings.ConnectTimeout,
		Factor: 2,
		Jitter: true,
	}
	timer := time.NewTimer(0)
	defer timer.Stop()

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "waiting for the database")
		case <-timer.C:
		}

		pingCtx, cancel := context.WithTimeout(ctx, settings.ConnectTimeout)
		err = client.Ping(pingCtx, readpref.Primary())
		cancel()
		if err == nil {
			break
		}
		if attempt >= connectAttempts {
			return errors.Wrapf(err, "pinging the database after %d attempts", attempt)
		}

		wait := interval.Duration()
		grip.Warning(message.WrapError(err, message.Fields{
			"message":   "database is not reachable",
			"attempt":   attempt,
			"max":       connectAttempts,
			"wait_secs": wait.Seconds(),
		}))
		timer.Reset(wait)
	}

	e.client = client
	e.closers["database"] = func(ctx context.Context) error {
		return errors.Wrap(client.Disconnect(ctx), "disconnecting from the database")
	}

	return nil
}

func (e *envState) Settings() *Settings {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.settings
}

func (e *envState) Client() *mongo.Client {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.client
}

func (e *envState) DB() *mongo.Database {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.client.Database(e.settings.Database.DB)
}

func (e *envState) Schemas() *schema.Registry {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.schemas
}

func (e *envState) Visibility() *access.Registry {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.visibility
}

func (e *envState) Sender() send.Sender {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.sender
}

func (e *envState) RegisterCloser(name string, closer func(context.Context) error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.closers[name]; ok {
		grip.Critical(message.Fields{
			"closer":  name,
			"message": "duplicate closer registered",
			"cause":   "programmer error",
		})
	}
	e.closers[name] = closer
}

func (e *envState) Close(ctx context.Context) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	deadline, _ := ctx.Deadline()
	catcher := grip.NewBasicCatcher()
	wg := &sync.WaitGroup{}
	for n, closer := range e.closers {
		if closer == nil {
			continue
		}

		wg.Add(1)
		go func(name string, close func(context.Context) error) {
			defer wg.Done()
			grip.Info(message.Fields{
				"message":  "calling closer",
				"closer":   name,
				"deadline": deadline,
			})
			catcher.Add(close(ctx))
		}(n, closer)
	}

	wg.Wait()
	return catcher.Resolve()
}
