package mongorest

import (
	"strings"

	"github.com/pkg/errors"
)

// APIConfig holds the settings for the generated REST endpoints.
type APIConfig struct {
	HttpListenAddr string `yaml:"http_listen_addr" json:"http_listen_addr"`
	Prefix         string `yaml:"prefix" json:"prefix"`
	Version        int    `yaml:"version" json:"version"`
	// DefaultAccess is the access level granted to requests when no
	// access header is trusted.
	DefaultAccess string `yaml:"default_access" json:"default_access"`
	// AccessHeader, when set, names a request header whose value selects
	// the access level; an unknown level is refused with 403. Only enable
	// behind a trusted proxy.
	AccessHeader string `yaml:"access_header" json:"access_header"`
}

func (c *APIConfig) SectionId() string { return "api" }

func (c *APIConfig) ValidateAndDefault() error {
	if c.HttpListenAddr == "" {
		c.HttpListenAddr = DefaultHTTPListenAddr
	}
	if c.Prefix == "" {
		c.Prefix = RestRoutePrefix
	}
	if !strings.HasPrefix(c.Prefix, "/") {
		c.Prefix = "/" + c.Prefix
	}
	if c.Version == 0 {
		c.Version = DefaultAPIVersion
	}
	if c.Version < 0 {
		return errors.Errorf("invalid API version %d", c.Version)
	}
	switch c.DefaultAccess {
	case "":
		c.DefaultAccess = "public"
	case "public", "protected", "private":
	default:
		return errors.Errorf("invalid default access level '%s'", c.DefaultAccess)
	}

	return nil
}

// QueryConfig holds the settings for query string translation.
type QueryConfig struct {
	// MaxLimit clamps the number of documents returned by a list request.
	MaxLimit int `yaml:"max_limit" json:"max_limit"`
	// DisableRegex rejects the "~" operator when set.
	DisableRegex bool `yaml:"disable_regex" json:"disable_regex"`
}

func (c *QueryConfig) SectionId() string { return "query" }

func (c *QueryConfig) ValidateAndDefault() error {
	if c.MaxLimit < 0 {
		return errors.New("max limit cannot be negative")
	}
	if c.MaxLimit == 0 {
		c.MaxLimit = DefaultMaxLimit
	}

	return nil
}
