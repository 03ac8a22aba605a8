package params

import (
	"path/filepath"
	"time"
)

type WebDaemonConfig struct {
	ListenerConfig `mapstructure:",squash" yaml:",inline"`

	// DataFile is the JSON store of location points.
	DataFile string `mapstructure:"data_file" yaml:"data_file" validate:"required"`

	// PublicDir serves static front ends. Empty disables static serving.
	PublicDir string `mapstructure:"public_dir" yaml:"public_dir"`

	// DedupeCacheSize bounds the cache of recently posted points
	// used to drop identical re-posts.
	DedupeCacheSize int `mapstructure:"dedupe_cache_size" yaml:"dedupe_cache_size" validate:"gte=0"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

func DefaultWebListenerConfig() ListenerConfig {
	return ListenerConfig{
		Network: "tcp",
		Address: "localhost:3000",
	}
}

func DefaultWebDaemonConfig() *WebDaemonConfig {
	return &WebDaemonConfig{
		ListenerConfig:  DefaultWebListenerConfig(),
		DataFile:        DefaultDataFile(),
		PublicDir:       filepath.Join(DefaultDatadirRoot, PublicDirName),
		DedupeCacheSize: 1024,
		ShutdownTimeout: 5 * time.Second,
	}
}

func DefaultTestWebDaemonConfig() *WebDaemonConfig {
	return &WebDaemonConfig{
		ListenerConfig: ListenerConfig{
			Network: "tcp",
			Address: "localhost:3333",
		},
		DataFile:        "",
		PublicDir:       "",
		DedupeCacheSize: 16,
		ShutdownTimeout: time.Second,
	}
}
