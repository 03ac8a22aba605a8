package params

import (
	"fmt"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the whole application configuration.
type Config struct {
	Web      *WebDaemonConfig `mapstructure:"web" yaml:"web" validate:"required"`
	Snap     *SnapConfig      `mapstructure:"snap" yaml:"snap" validate:"required"`
	Playback *PlaybackConfig  `mapstructure:"playback" yaml:"playback" validate:"required"`
}

func DefaultConfig() *Config {
	return &Config{
		Web:      DefaultWebDaemonConfig(),
		Snap:     DefaultSnapConfig(ProviderOSRM),
		Playback: DefaultPlaybackConfig(),
	}
}

var validate = validator.New()

// Validate checks struct tags and cross-field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Playback.MinInterval > c.Playback.BaseInterval {
		return fmt.Errorf("invalid config: playback min_interval %v exceeds base_interval %v",
			c.Playback.MinInterval, c.Playback.BaseInterval)
	}
	return nil
}

// YAML renders the config as it would appear in a config file.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// ParseYAML decodes a config file over the defaults and validates the result.
func ParseYAML(data []byte) (*Config, error) {
	c := DefaultConfig()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
