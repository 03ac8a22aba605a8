/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotblauer/trailplay/params"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var cfgFile string
var optVerbosity int

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "trailplay",
	Short: "Record, road-snap and replay GPS trails",
	Long: `trailplay stores location breadcrumbs posted by tracking clients,
splits them into routes, and animates their playback on a map.

Configuration is read from $HOME/.trailplay/config.yaml (or --config),
then from TRAILPLAY_* environment variables, eg. TRAILPLAY_SNAP_PROVIDER=mapbox.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		fmt.Sprintf("config file (default is %s)", filepath.Join(params.DatadirRoot, params.ConfigFileName)))
	rootCmd.PersistentFlags().IntVarP(&optVerbosity, "verbosity", "v", int(slog.LevelInfo),
		"Log level: -4 debug, 0 info, 4 warn, 8 error")
}

// initConfig seeds viper with the defaults, then reads in the config file and ENV variables if set.
func initConfig() {
	cobra.CheckErr(setDefaults("", params.DefaultConfig()))

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(params.DatadirRoot)
		viper.SetConfigName(strings.TrimSuffix(params.ConfigFileName, filepath.Ext(params.ConfigFileName)))
	}
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix(params.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		slog.Debug("Using config file", "file", viper.ConfigFileUsed())
	} else if cfgFile != "" {
		cobra.CheckErr(err)
	}
}

// setDefaults registers every field of v, as it marshals to YAML, as a viper default under prefix.
func setDefaults(prefix string, v any) error {
	b, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	m := map[string]any{}
	if err := yaml.Unmarshal(b, &m); err != nil {
		return err
	}
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if sub, ok := v.(map[string]any); ok {
				walk(key, sub)
				continue
			}
			viper.SetDefault(key, v)
		}
	}
	walk(prefix, m)
	return nil
}

// loadConfig resolves the layered configuration and validates it.
// Snap settings not given explicitly take the chosen provider's defaults.
func loadConfig() (*params.Config, error) {
	if provider := viper.GetString("snap.provider"); provider != params.DefaultConfig().Snap.Provider {
		if err := setDefaults("snap", params.DefaultSnapConfig(provider)); err != nil {
			return nil, err
		}
	}
	config := params.DefaultConfig()
	if err := viper.Unmarshal(config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func setDefaultSlog(cmd *cobra.Command, args []string) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(optVerbosity),
	})))
}
