package pipeline

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	hrrcore "github.com/lucasjlepore/hrr-monitor"
	"github.com/lucasjlepore/hrr-monitor/trend"
)

// RunConfig carries every tunable of a pipeline run. All thresholds are
// recalibratable configuration; the defaults are a starting point, not a
// statement of correctness.
type RunConfig struct {
	Detector hrrcore.Config    `mapstructure:"detector"`
	EWMA     trend.EWMAConfig  `mapstructure:"ewma"`
	CUSUM    trend.CUSUMConfig `mapstructure:"cusum"`
}

// LoadRunConfig merges an optional YAML file and HRR_-prefixed environment
// variables over the calibrated defaults. An explicit path that cannot be
// read is a hard error; with no path, a missing config file just means
// defaults.
func LoadRunConfig(path string) (RunConfig, error) {
	cfg := RunConfig{
		Detector: hrrcore.DefaultConfig(),
		EWMA:     trend.DefaultEWMAConfig(),
		CUSUM:    trend.DefaultCUSUMConfig(),
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("hrr")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/hrr-monitor")
	}

	v.SetEnvPrefix("HRR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if path != "" {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return cfg, fmt.Errorf("read config: %w", err)
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Validate checks every sub-config up front, before per-session work starts.
func (c RunConfig) Validate() error {
	if err := c.Detector.Validate(); err != nil {
		return err
	}
	if err := c.EWMA.Validate(); err != nil {
		return err
	}
	return c.CUSUM.Validate()
}
