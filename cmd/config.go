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
	"log"
	"os"

	"github.com/spf13/cobra"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the resolved configuration as YAML",
	Long: `Prints the configuration after defaults, the config file, environment variables and flags are applied.
The output is a valid config file.

Examples:

  trailplay config > ~/.trailplay/config.yaml
  TRAILPLAY_SNAP_PROVIDER=here trailplay config`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		config, err := loadConfig()
		if err != nil {
			log.Fatalln(err)
		}
		b, err := config.YAML()
		if err != nil {
			log.Fatalln(err)
		}
		_, _ = os.Stdout.Write(b)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
