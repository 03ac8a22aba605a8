package webd

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rotblauer/trailplay/params"
)

func newTestConfig(t *testing.T) *params.Config {
	t.Helper()
	config := params.DefaultConfig()
	config.Web = params.DefaultTestWebDaemonConfig()
	config.Web.DataFile = filepath.Join(t.TempDir(), "locations.json")
	config.Snap = params.DefaultSnapConfig(params.ProviderNone)
	config.Playback.BaseInterval = 10 * time.Millisecond
	config.Playback.MinInterval = time.Millisecond
	return config
}

// newTestWebDaemon creates a WebDaemon on a temporary data file, with road-snapping disabled.
func newTestWebDaemon(t *testing.T) *WebDaemon {
	t.Helper()
	return newTestWebDaemonConfig(t, newTestConfig(t))
}

func newTestWebDaemonConfig(t *testing.T, config *params.Config) *WebDaemon {
	t.Helper()
	d, err := NewWebDaemon(config)
	if err != nil {
		t.Fatal(err)
	}
	return d
}
