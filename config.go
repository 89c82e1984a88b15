package mongorest

import (
	"github.com/evergreen-ci/mongorest/util"
	"github.com/mongodb/grip"
	"github.com/pkg/errors"
)

// ConfigSection is the interface shared by every section of the service
// settings.
type ConfigSection interface {
	// SectionId returns the key of the section in the settings file.
	SectionId() string
	// ValidateAndDefault validates the section and fills in defaults for
	// any unset values.
	ValidateAndDefault() error
}

// Settings contains all configuration settings for running mongorest.
type Settings struct {
	Database     DBSettings   `yaml:"database" json:"database"`
	Api          APIConfig    `yaml:"api" json:"api"`
	Query        QueryConfig  `yaml:"query" json:"query"`
	LoggerConfig LoggerConfig `yaml:"logger_config" json:"logger_config"`
	Tracer       TracerConfig `yaml:"tracer" json:"tracer"`
	Models       ModelConfigs `yaml:"models" json:"models"`
	LogPath      string       `yaml:"log_path" json:"log_path"`
}

// NewSettings builds an in-memory representation of the given settings file.
func NewSettings(filename string) (*Settings, error) {
	settings := &Settings{}
	if err := util.ReadFromYAMLFile(filename, settings); err != nil {
		return nil, errors.Wrapf(err, "reading settings file '%s'", filename)
	}

	return settings, nil
}

func (s *Settings) sections() []ConfigSection {
	return []ConfigSection{
		&s.Database,
		&s.Api,
		&s.Query,
		&s.LoggerConfig,
		&s.Tracer,
		&s.Models,
	}
}

// Validate checks the settings and fills in defaults. Errors from every
// section are collected rather than returning on the first one.
func (s *Settings) Validate() error {
	catcher := grip.NewBasicCatcher()
	for _, section := range s.sections() {
		catcher.Wrapf(section.ValidateAndDefault(), "validating section '%s'", section.SectionId())
	}

	return catcher.Resolve()
}
