package params

import (
	"github.com/mitchellh/go-homedir"
	"os"
	"path/filepath"
)

const (
	// EnvPrefix prefixes environment variables bound to config keys,
	// eg. TRAILPLAY_SNAP_PROVIDER.
	EnvPrefix = "TRAILPLAY"

	DataFileName   = "locations.json"
	ConfigFileName = "config.yaml"
	PublicDirName  = "public"
)

var DatadirRoot = func() string {
	home, err := homedir.Dir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".trailplay")
}()

var DefaultDatadirRoot = DatadirRoot

func DefaultDataFile() string {
	return filepath.Join(DefaultDatadirRoot, DataFileName)
}
