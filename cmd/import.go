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
	"context"
	"io"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/rotblauer/trailplay/common"
	"github.com/rotblauer/trailplay/metrics"
	"github.com/rotblauer/trailplay/store/cache"
	"github.com/rotblauer/trailplay/store/flat"
	"github.com/rotblauer/trailplay/stream"
	"github.com/rotblauer/trailplay/types"
	"github.com/rotblauer/trailplay/types/locpoint"
	"github.com/spf13/cobra"
)

var optImportReplace bool
var optImportBatchSize int
var optImportDedupe bool

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import location points from a file or stdin",
	Long: `Reads a JSON array of location records, or a stored envelope with a 'data' array,
normalizes it, and appends the valid points to the store.

Records may be objects ({lat, lng, routeId, timestamp, flag, ...}) or positional tuples
([lat, lng, address, -, -, null, routeId, timestamp, ., flag]).
Malformed records are dropped and reported. Unparseable timestamps are kept verbatim.

Flags:

  --replace     Replace the store contents instead of appending.
  --dedupe      Drop records identical to one already seen in this import. (Default is true.)
  --batch-size  Number of points per store write. (Default is 1000.)

Examples:

  trailplay import < export.json
  trailplay import --replace locations.json`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		config, err := loadConfig()
		if err != nil {
			log.Fatalln(err)
		}

		var in io.Reader = os.Stdin
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				log.Fatalln(err)
			}
			defer f.Close()
			in = f
		}

		store, err := flat.Open(config.Web.DataFile)
		if err != nil {
			log.Fatalln(err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			select {
			case sig := <-common.Interrupted():
				slog.Warn("Received signal", "signal", sig)
				cancel()
			case <-ctx.Done():
			}
		}()

		n, err := importPoints(ctx, store, in, importOptions{
			replace:   optImportReplace,
			dedupe:    optImportDedupe,
			batchSize: optImportBatchSize,
		})
		if err != nil {
			log.Fatalln(err)
		}
		slog.Info("Import done", "points", n, "store", store.Path())
	},
}

type importOptions struct {
	replace   bool
	dedupe    bool
	batchSize int
}

// importPoints normalizes in and writes its points to store in batches.
// It returns the number of points written.
func importPoints(ctx context.Context, store *flat.Store, in io.Reader, opts importOptions) (int, error) {
	start := time.Now()
	normalized, err := types.NormalizeReader(in, start)
	if err != nil {
		return 0, err
	}
	for _, d := range normalized.Dropped {
		slog.Warn("Dropped record", "error", d)
		metrics.PointsDroppedTotal.WithLabelValues("invalid").Inc()
	}
	for _, u := range normalized.Unparsed {
		slog.Debug("Kept record with unparsed timestamp", "error", u)
	}

	if opts.replace {
		if err := store.Clear(); err != nil {
			return 0, err
		}
	}

	var pipe <-chan locpoint.LocationPoint = stream.Slice(ctx, normalized.Points)
	if opts.dedupe {
		pipe = stream.Filter(ctx, cache.NewDedupePassLRUFunc(max(len(normalized.Points), 1)), pipe)
	}

	written := 0
	for batch := range stream.Batch(ctx, max(opts.batchSize, 1), pipe) {
		if err := store.Append(batch...); err != nil {
			return written, err
		}
		written += len(batch)
		metrics.PointsIngestedTotal.Add(float64(len(batch)))
		slog.Debug("Wrote batch", "points", len(batch), "total", written)
	}
	if err := ctx.Err(); err != nil {
		return written, err
	}
	slog.Info("Imported points",
		"read", len(normalized.Points)+len(normalized.Dropped),
		"written", written,
		"dropped", len(normalized.Dropped),
		"unparsed_timestamps", len(normalized.Unparsed),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return written, nil
}

func init() {
	rootCmd.AddCommand(importCmd)

	pFlags := importCmd.PersistentFlags()
	pFlags.BoolVar(&optImportReplace, "replace", false, "Replace the store contents instead of appending")
	pFlags.BoolVar(&optImportDedupe, "dedupe", true, "Drop records identical to one already seen in this import")
	pFlags.IntVar(&optImportBatchSize, "batch-size", 1000, "Number of points per store write")
}
