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
	"errors"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/rotblauer/trailplay/common"
	"github.com/rotblauer/trailplay/conceptual"
	"github.com/rotblauer/trailplay/playback"
	"github.com/rotblauer/trailplay/render"
	"github.com/rotblauer/trailplay/roadsnap"
	"github.com/rotblauer/trailplay/store/flat"
	"github.com/rotblauer/trailplay/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var optReplaySpeed float64

// replayCmd represents the replay command
var replayCmd = &cobra.Command{
	Use:   "replay <route> [file]",
	Short: "Play a route back in the terminal",
	Long: `Animates a stored route, logging each drawing command as it would be sent to a map.
Playback stops at the end of the route or on interrupt.

Examples:

  trailplay replay Sandeep --speed 4
  trailplay replay delhi export.json -v -4
  TRAILPLAY_SNAP_PROVIDER=osrm trailplay replay Sandeep --snap`,
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		config, err := loadConfig()
		if err != nil {
			log.Fatalln(err)
		}

		var normalized *types.Normalized
		if len(args) == 2 {
			f, err := os.Open(args[1])
			if err != nil {
				log.Fatalln(err)
			}
			defer f.Close()
			normalized, err = types.NormalizeReader(f, time.Now())
			if err != nil {
				log.Fatalln(err)
			}
		} else {
			store, err := flat.Open(config.Web.DataFile)
			if err != nil {
				log.Fatalln(err)
			}
			normalized = store.Locations(time.Now())
		}

		var snapper playback.Snapper
		if config.Playback.Snap {
			provider, err := roadsnap.NewProvider(config.Snap, nil)
			switch {
			case errors.Is(err, roadsnap.ErrNoProvider):
			case err != nil:
				log.Fatalln(err)
			default:
				s := roadsnap.NewSnapper(provider, config.Snap)
				defer s.Close()
				snapper = s
			}
		}

		finished := make(chan struct{})
		session := playback.NewSession(config.Playback, render.NewLog(slog.Default()), snapper,
			playback.WithFrameHook(endOfRoute(finished)))
		defer session.Close()

		session.Load(normalized.Points)
		if err := session.SelectRoute(conceptual.RouteID(args[0])); err != nil {
			log.Fatalln(err)
		}
		if err := session.SetSpeed(optReplaySpeed); err != nil {
			log.Fatalln(err)
		}
		if err := session.Play(); err != nil {
			log.Fatalln(err)
		}

		select {
		case <-finished:
			slog.Info("Replay done", "route", args[0])
		case sig := <-common.Interrupted():
			slog.Warn("Received signal", "signal", sig)
			session.Pause()
		}
	},
}

// endOfRoute returns a frame hook that closes done once playback runs off the end of the path.
func endOfRoute(done chan struct{}) func(playback.Frame) {
	played := false
	return func(f playback.Frame) {
		switch {
		case f.State == playback.Playing:
			played = true
		case played && f.Reset && f.State == playback.Stopped:
			played = false
			close(done)
		}
	}
}

func init() {
	rootCmd.AddCommand(replayCmd)

	pFlags := replayCmd.PersistentFlags()
	pFlags.Float64Var(&optReplaySpeed, "speed", 1, "Playback speed multiplier")
	pFlags.Bool("snap", true, "Road-snap the route before playing")
	_ = viper.BindPFlag("playback.snap", pFlags.Lookup("snap"))
}
