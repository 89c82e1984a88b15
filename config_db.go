package mongorest

import (
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// DBSettings configures the connection to the backing database.
type DBSettings struct {
	Url                  string        `yaml:"url" json:"url"`
	DB                   string        `yaml:"db" json:"db"`
	WriteConcernSettings WriteConcern  `yaml:"write_concern" json:"write_concern"`
	ReadConcernSettings  ReadConcern   `yaml:"read_concern" json:"read_concern"`
	ConnectTimeout       time.Duration `yaml:"connect_timeout" json:"connect_timeout"`
	// QueryTimeout bounds every query issued on behalf of a request.
	QueryTimeout time.Duration `yaml:"query_timeout" json:"query_timeout"`
}

// WriteConcern is the configurable subset of a mongo write concern.
type WriteConcern struct {
	W        int    `yaml:"w" json:"w"`
	WMode    string `yaml:"wmode" json:"wmode"`
	WTimeout int    `yaml:"wtimeout" json:"wtimeout"`
	J        bool   `yaml:"j" json:"j"`
}

// ReadConcern is the configurable subset of a mongo read concern.
type ReadConcern struct {
	Level string `yaml:"level" json:"level"`
}

func (c *DBSettings) SectionId() string { return "database" }

func (c *DBSettings) ValidateAndDefault() error {
	if c.Url == "" {
		c.Url = DefaultDatabaseURL
	}
	if c.DB == "" {
		c.DB = DefaultDatabaseName
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.QueryTimeout < 0 {
		return errors.New("query timeout cannot be negative")
	}
	if c.WriteConcernSettings.W < 0 {
		return errors.New("write concern w cannot be negative")
	}

	return nil
}

// ClientOptions returns the mongo client options described by the settings.
func (c *DBSettings) ClientOptions() *options.ClientOptions {
	opts := options.Client().ApplyURI(c.Url).SetConnectTimeout(c.ConnectTimeout)
	if wc := c.WriteConcernSettings.Resolve(); wc != nil {
		opts.SetWriteConcern(wc)
	}
	if rc := c.ReadConcernSettings.Resolve(); rc != nil {
		opts.SetReadConcern(rc)
	}

	return opts
}

// Resolve returns the driver write concern, or nil when none is configured.
func (wc WriteConcern) Resolve() *writeconcern.WriteConcern {
	concern := &writeconcern.WriteConcern{}
	switch {
	case wc.WMode == "majority":
		concern = writeconcern.Majority()
	case wc.W > 0:
		concern.W = wc.W
	case wc.WMode != "":
		concern.W = wc.WMode
	default:
		if !wc.J && wc.WTimeout == 0 {
			return nil
		}
	}

	if wc.J {
		concern.Journal = &wc.J
	}
	if wc.WTimeout > 0 {
		concern.WTimeout = time.Duration(wc.WTimeout) * time.Millisecond
	}

	return concern
}

// Resolve returns the driver read concern, or nil when none is configured.
func (rc ReadConcern) Resolve() *readconcern.ReadConcern {
	if rc.Level == "" {
		return nil
	}

	return &readconcern.ReadConcern{Level: rc.Level}
}
