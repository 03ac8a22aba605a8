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
	"log/slog"

	"github.com/rotblauer/trailplay/common"
	"github.com/rotblauer/trailplay/daemon/webd"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// webdCmd represents the serve command
var webdCmd = &cobra.Command{
	Use:   "webd",
	Short: "Start the webserver",
	Long: `Serves the location API, the playback websocket, and the static map front ends.

Examples:

  trailplay webd --address 0.0.0.0:3000 --public ./public
  TRAILPLAY_SNAP_PROVIDER=none trailplay webd`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		config, err := loadConfig()
		if err != nil {
			log.Fatalln(err)
		}
		server, err := webd.NewWebDaemon(config)
		if err != nil {
			log.Fatalln(err)
		}
		if err := server.Start(); err != nil {
			log.Fatalln(err)
		}

		interrupt := common.Interrupted()
		select {
		case sig := <-interrupt:
			slog.Warn("Received signal", "signal", sig)
			server.Interrupt()
		case <-waitDone(server):
			return
		}
		server.Wait()
	},
}

func waitDone(server *webd.WebDaemon) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		server.Wait()
		close(done)
	}()
	return done
}

func init() {
	rootCmd.AddCommand(webdCmd)

	pFlags := webdCmd.PersistentFlags()
	pFlags.String("address", "", "HTTP address to listen on")
	pFlags.String("public", "", "Directory of static front ends to serve")
	pFlags.String("data-file", "", "JSON store of location points")
	_ = viper.BindPFlag("web.address", pFlags.Lookup("address"))
	_ = viper.BindPFlag("web.public_dir", pFlags.Lookup("public"))
	_ = viper.BindPFlag("web.data_file", pFlags.Lookup("data-file"))
}
