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
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"slices"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rotblauer/trailplay/conceptual"
	"github.com/rotblauer/trailplay/geo/segment"
	"github.com/rotblauer/trailplay/store/flat"
	"github.com/rotblauer/trailplay/trail"
	"github.com/rotblauer/trailplay/types"
	"github.com/spf13/cobra"
)

var optInspectRoute string
var optInspectJSON bool

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect [file]",
	Short: "Summarize the stored routes",
	Long: `Prints per-route statistics: points, distance, sampling intervals, gaps and flags.
Reads the store, or a file of location records if one is given.

Examples:

  trailplay inspect
  trailplay inspect --route Sandeep --json
  trailplay inspect export.json`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		config, err := loadConfig()
		if err != nil {
			log.Fatalln(err)
		}

		var normalized *types.Normalized
		if len(args) == 1 {
			f, err := os.Open(args[0])
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

		points := trail.Filter(normalized.Points, trail.Query{RouteID: conceptual.RouteID(optInspectRoute)})
		reports := inspectTrails(trail.Group(points))
		if optInspectJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(reports); err != nil {
				log.Fatalln(err)
			}
			return
		}
		writeInspectReports(os.Stdout, reports, len(normalized.Dropped))
	},
}

type inspectReport struct {
	Summary  trail.RouteSummary `json:"summary"`
	Stats    trail.Stats        `json:"stats"`
	Segments int                `json:"segments"`
	Gaps     int                `json:"gaps"`
}

func inspectTrails(trails []*trail.Trail) []inspectReport {
	out := make([]inspectReport, 0, len(trails))
	for _, t := range trails {
		segs := segment.Segment(t.Points)
		out = append(out, inspectReport{
			Summary:  trail.Summarize(t),
			Stats:    trail.Inspect(t),
			Segments: len(segs.Active),
			Gaps:     len(segs.GapLines()),
		})
	}
	slices.SortFunc(out, func(a, b inspectReport) int {
		return b.Stats.Points - a.Stats.Points
	})
	return out
}

func writeInspectReports(w io.Writer, reports []inspectReport, dropped int) {
	if len(reports) == 0 {
		fmt.Fprintln(w, "No routes.")
	}
	for _, r := range reports {
		st := r.Stats
		fmt.Fprintf(w, "%s\n", st.RouteID)
		fmt.Fprintf(w, "  points     %s (%d key, %d gap markers, %d unparsed timestamps)\n",
			humanize.Comma(int64(st.Points)), st.KeyPoints, st.GapMarkers, st.Unparsed)
		fmt.Fprintf(w, "  distance   %s km\n", humanize.CommafWithDigits(st.DistanceKm, 2))
		fmt.Fprintf(w, "  time       %s to %s (%s)\n", r.Summary.StartTime, r.Summary.EndTime, r.Summary.Duration)
		fmt.Fprintf(w, "  interval   mean %v, median %v, max %v\n", st.IntervalMean, st.IntervalMedian, st.IntervalMax)
		fmt.Fprintf(w, "  segments   %d active, %d gaps\n", r.Segments, r.Gaps)
		flags := make([]string, 0, len(st.Flags))
		for f, n := range st.Flags {
			flags = append(flags, fmt.Sprintf("%s=%d", f, n))
		}
		slices.Sort(flags)
		fmt.Fprintf(w, "  flags      %v\n", flags)
	}
	if dropped > 0 {
		fmt.Fprintf(w, "%s records could not be read.\n", humanize.Comma(int64(dropped)))
	}
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	pFlags := inspectCmd.PersistentFlags()
	pFlags.StringVar(&optInspectRoute, "route", "", "Only inspect this route")
	pFlags.BoolVar(&optInspectJSON, "json", false, "Print JSON")
}
