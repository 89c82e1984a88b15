package mongorest

import (
	"time"

	"github.com/pkg/errors"
)

const defaultMetricsIntervalSecs = 60

// TracerConfig configures the OpenTelemetry trace and metric providers. If not enabled nothing is exported.
type TracerConfig struct {
	Enabled           bool   `yaml:"enabled" json:"enabled"`
	CollectorEndpoint string `yaml:"collector_endpoint" json:"collector_endpoint"`
	// Insecure disables TLS to the collector.
	Insecure            bool `yaml:"insecure" json:"insecure"`
	MetricsIntervalSecs int  `yaml:"metrics_interval_secs" json:"metrics_interval_secs"`
}

// SectionId returns the ID of this config section.
func (c *TracerConfig) SectionId() string { return "tracer" }

// ValidateAndDefault validates the tracer configuration.
func (c *TracerConfig) ValidateAndDefault() error {
	if c.Enabled && c.CollectorEndpoint == "" {
		return errors.New("tracer can't be enabled without a collector endpoint")
	}
	if c.MetricsIntervalSecs < 0 {
		return errors.New("metrics interval can't be negative")
	}
	if c.MetricsIntervalSecs == 0 {
		c.MetricsIntervalSecs = defaultMetricsIntervalSecs
	}
	return nil
}

func (c TracerConfig) metricsInterval() time.Duration {
	if c.MetricsIntervalSecs <= 0 {
		return defaultMetricsIntervalSecs * time.Second
	}
	return time.Duration(c.MetricsIntervalSecs) * time.Second
}
