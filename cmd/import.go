package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eaobservatory/omp-cli/internal/header"
	"github.com/eaobservatory/omp-cli/internal/timeacct"
)

var importDate string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load records into the store from JSON files",
}

var importHeadersCmd = &cobra.Command{
	Use:   "headers FILE",
	Short: "Load raw per-file headers for one UT date",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if importDate == "" {
			return eris.New("import: --date required")
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrap(err, "import: read file")
		}
		var recs []header.Raw
		if err := json.Unmarshal(data, &recs); err != nil {
			return eris.Wrap(err, "import: parse file")
		}

		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.InsertRawHeaders(ctx, importDate, recs); err != nil {
			return err
		}
		zap.L().Info("import: headers loaded",
			zap.String("utdate", importDate),
			zap.Int("records", len(recs)),
		)
		return nil
	},
}

var importTimeacctCmd = &cobra.Command{
	Use:   "timeacct FILE",
	Short: "Load time-account records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrap(err, "import: read file")
		}
		var recs []timeacct.Record
		if err := json.Unmarshal(data, &recs); err != nil {
			return eris.Wrap(err, "import: parse file")
		}
		for i := range recs {
			recs[i].Date = timeacct.Midnight(recs[i].Date)
		}

		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.InsertTimeAccounts(ctx, recs); err != nil {
			return err
		}
		zap.L().Info("import: time accounts loaded", zap.Int("records", len(recs)))
		return nil
	},
}

func init() {
	importHeadersCmd.Flags().StringVar(&importDate, "date", "", "UT date the headers belong to, YYYY-MM-DD")
	importCmd.AddCommand(importHeadersCmd)
	importCmd.AddCommand(importTimeacctCmd)
	rootCmd.AddCommand(importCmd)
}
