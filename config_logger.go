package mongorest

import (
	"os"

	"github.com/mongodb/grip/level"
	"github.com/mongodb/grip/send"
	"github.com/pkg/errors"
)

// LoggerConfig configures the process logger.
type LoggerConfig struct {
	DefaultLevel   string `yaml:"default_level" json:"default_level"`
	ThresholdLevel string `yaml:"threshold_level" json:"threshold_level"`
}

func (c *LoggerConfig) SectionId() string { return "logger_config" }

func (c *LoggerConfig) ValidateAndDefault() error {
	if c.DefaultLevel == "" {
		c.DefaultLevel = level.Info.String()
	}
	if c.ThresholdLevel == "" {
		c.ThresholdLevel = level.Debug.String()
	}

	if !level.FromString(c.DefaultLevel).IsValid() {
		return errors.Errorf("%s is not a default log level", c.DefaultLevel)
	}
	if !level.FromString(c.ThresholdLevel).IsValid() {
		return errors.Errorf("%s is not a threshold log level", c.ThresholdLevel)
	}

	return nil
}

// Info returns the grip level info described by the config.
func (c LoggerConfig) Info() send.LevelInfo {
	return send.LevelInfo{
		Default:   level.FromString(c.DefaultLevel),
		Threshold: level.FromString(c.ThresholdLevel),
	}
}

// GetSender builds the sender the service logs to: a file when a log path
// is configured and standard output otherwise.
func (s *Settings) GetSender() (send.Sender, error) {
	var (
		sender send.Sender
		err    error
	)

	name := "mongorest"
	info := s.LoggerConfig.Info()

	if s.LogPath == "" || s.LogPath == "stdout" {
		sender, err = send.NewNativeLogger(name, info)
		if err != nil {
			return nil, errors.Wrap(err, "creating native logger")
		}
		return sender, nil
	}

	if _, err = os.Stat(s.LogPath); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "checking log path '%s'", s.LogPath)
	}
	sender, err = send.NewFileLogger(name, s.LogPath, info)
	if err != nil {
		return nil, errors.Wrap(err, "creating file logger")
	}

	return sender, nil
}
