package params

import "time"

// Provider names.
const (
	ProviderNone   = "none"
	ProviderOSRM   = "osrm"
	ProviderMapbox = "mapbox"
	ProviderGoogle = "google"
	ProviderAzure  = "azure"
	ProviderHERE   = "here"
	ProviderTomTom = "tomtom"
)

var Providers = []string{
	ProviderNone, ProviderOSRM, ProviderMapbox, ProviderGoogle,
	ProviderAzure, ProviderHERE, ProviderTomTom,
}

// SnapConfig configures road-snapping against one routing provider.
type SnapConfig struct {
	Provider string `mapstructure:"provider" yaml:"provider" validate:"oneof=none osrm mapbox google azure here tomtom"`

	// BaseURL overrides the provider's public endpoint, eg. for a self-hosted OSRM.
	BaseURL string `mapstructure:"base_url" yaml:"base_url" validate:"omitempty,url"`

	APIKey string `mapstructure:"api_key" yaml:"api_key"`

	// Profile is the travel mode, eg. driving, car, walking.
	Profile string `mapstructure:"profile" yaml:"profile"`

	// RadiusMeters is the per-point search radius for map-matching providers.
	RadiusMeters float64 `mapstructure:"radius_meters" yaml:"radius_meters" validate:"gte=0"`

	// MaxWaypoints is the per-request coordinate cap.
	MaxWaypoints int `mapstructure:"max_waypoints" yaml:"max_waypoints" validate:"gte=2"`

	// MinGapMeters drops points closer than this to the last kept point before snapping.
	MinGapMeters float64 `mapstructure:"min_gap_meters" yaml:"min_gap_meters" validate:"gte=0"`

	// Concurrency bounds in-flight batch requests.
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency" validate:"gte=1"`

	// RequestsPerSecond paces requests. Zero is unlimited.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second" validate:"gte=0"`

	// BatchTimeout bounds each request. Expiry falls back to straight lines.
	BatchTimeout time.Duration `mapstructure:"batch_timeout" yaml:"batch_timeout" validate:"gt=0"`

	// CacheTTL is how long snapped geometries are reused.
	CacheTTL time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
}

// DefaultSnapConfig returns provider defaults.
// Unknown providers get the OSRM defaults with road-snapping disabled.
func DefaultSnapConfig(provider string) *SnapConfig {
	c := &SnapConfig{
		Provider:          provider,
		Profile:           "driving",
		RadiusMeters:      25,
		MaxWaypoints:      10,
		MinGapMeters:      15,
		Concurrency:       4,
		RequestsPerSecond: 10,
		BatchTimeout:      10 * time.Second,
		CacheTTL:          time.Hour,
	}
	switch provider {
	case ProviderOSRM:
		c.BaseURL = "https://router.project-osrm.org"
	case ProviderMapbox:
		c.BaseURL = "https://api.mapbox.com"
		c.MaxWaypoints = 100
		c.MinGapMeters = 10
	case ProviderGoogle:
		c.BaseURL = "https://maps.googleapis.com"
		c.MaxWaypoints = 25
		c.MinGapMeters = 0
	case ProviderAzure:
		c.BaseURL = "https://atlas.microsoft.com"
		c.Profile = "car"
		c.MaxWaypoints = 150
		c.MinGapMeters = 0
	case ProviderHERE:
		c.BaseURL = "https://router.hereapi.com"
		c.Profile = "car"
		c.MaxWaypoints = 50
		c.MinGapMeters = 0
	case ProviderTomTom:
		c.BaseURL = "https://api.tomtom.com"
		c.Profile = "car"
		c.MaxWaypoints = 150
		c.MinGapMeters = 0
	default:
		c.Provider = ProviderNone
	}
	return c
}
