package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eaobservatory/omp-cli/internal/header"
	"github.com/eaobservatory/omp-cli/internal/translate"
)

var (
	mergeDates      []string
	mergeInstrument string
	mergeJSONFile   string
	mergeWorkers    int
)

// mergedOut is the JSON shape one merged observation is printed as.
type mergedOut struct {
	Header       header.Header       `json:"header"`
	Filenames    []string            `json:"filenames"`
	ObsIDSSFiles map[string][]string `json:"obsidss_files,omitempty"`
}

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge per-file headers into one record per observation",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := buildRegistry()
		if err != nil {
			return err
		}

		if mergeJSONFile != "" {
			out, err := mergeBatchFile(mergeJSONFile, reg)
			if err != nil {
				return err
			}
			return printJSON(out)
		}

		if len(mergeDates) == 0 {
			return eris.New("merge: --date or --json required")
		}

		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		// Dates are independent batches, so they can merge in parallel;
		// within one date, grouping finishes before any bucket merges.
		results := make([]map[string]mergedOut, len(mergeDates))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(mergeWorkers)
		for i, date := range mergeDates {
			i, date := i, date
			g.Go(func() error {
				recs, err := st.ListRawHeaders(gctx, date, mergeInstrument)
				if err != nil {
					return err
				}
				merged, err := header.Merge(recs, reg)
				if err != nil {
					return err
				}
				if merged == nil {
					zap.L().Info("merge: nothing to merge", zap.String("utdate", date))
					return nil
				}
				results[i] = flattenMerged(merged)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		byDate := make(map[string]map[string]mergedOut)
		for i, date := range mergeDates {
			if results[i] != nil {
				byDate[date] = results[i]
			}
		}
		return printJSON(byDate)
	},
}

// mergeBatchFile merges a JSON file of raw records, the offline path used
// when the database is unreachable.
func mergeBatchFile(path string, reg translate.Registry) (map[string]mergedOut, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "merge: read batch file")
	}
	var recs []header.Raw
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, eris.Wrap(err, "merge: parse batch file")
	}

	merged, err := header.Merge(recs, reg)
	if err != nil {
		return nil, err
	}
	if merged == nil {
		return nil, nil
	}
	return flattenMerged(merged), nil
}

func flattenMerged(merged map[string]*header.MergedObservation) map[string]mergedOut {
	out := make(map[string]mergedOut, len(merged))
	for obsid, obs := range merged {
		out[obsid] = mergedOut{
			Header:       obs.Header(),
			Filenames:    obs.Filenames(),
			ObsIDSSFiles: obs.ObsIDSSFiles(),
		}
	}
	return out
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	mergeCmd.Flags().StringSliceVar(&mergeDates, "date", nil, "UT date(s) to merge, YYYY-MM-DD")
	mergeCmd.Flags().StringVar(&mergeInstrument, "instrument", "", "restrict to one instrument")
	mergeCmd.Flags().StringVar(&mergeJSONFile, "json", "", "merge a JSON batch file instead of the store")
	mergeCmd.Flags().IntVar(&mergeWorkers, "workers", 4, "concurrent date batches")
	rootCmd.AddCommand(mergeCmd)
}
