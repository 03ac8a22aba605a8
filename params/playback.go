package params

import "time"

type PlaybackConfig struct {
	// BaseInterval is the tick interval at speed 1.
	BaseInterval time.Duration `mapstructure:"base_interval" yaml:"base_interval" validate:"gt=0"`

	// MinInterval floors the tick interval at high speeds.
	MinInterval time.Duration `mapstructure:"min_interval" yaml:"min_interval" validate:"gt=0"`

	// MarkerStride draws every Nth point as a marker. Key-flagged points,
	// and the first and last points, are always drawn.
	// The drawn path always uses every point.
	MarkerStride int `mapstructure:"marker_stride" yaml:"marker_stride" validate:"gte=1"`

	// Snap enables road-snapping of the playback path.
	Snap bool `mapstructure:"snap" yaml:"snap"`
}

func DefaultPlaybackConfig() *PlaybackConfig {
	return &PlaybackConfig{
		BaseInterval: 100 * time.Millisecond,
		MinInterval:  20 * time.Millisecond,
		MarkerStride: 1,
		Snap:         true,
	}
}
