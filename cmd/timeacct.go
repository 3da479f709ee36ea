package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eaobservatory/omp-cli/internal/report"
	"github.com/eaobservatory/omp-cli/internal/store"
	"github.com/eaobservatory/omp-cli/internal/timeacct"
)

var (
	taFormat  string
	taProject string
	taFrom    string
	taTo      string
	taXLSX    string
)

var timeacctCmd = &cobra.Command{
	Use:   "timeacct",
	Short: "Summarize time spent per project and date",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		filter := store.TimeAcctFilter{ProjectID: taProject}
		if filter.From, err = parseDateFlag(taFrom); err != nil {
			return err
		}
		if filter.To, err = parseDateFlag(taTo); err != nil {
			return err
		}

		recs, err := st.ListTimeAccounts(ctx, filter)
		if err != nil {
			return err
		}

		res, err := timeacct.Summarize(timeacct.Format(taFormat), recs)
		if err != nil {
			return err
		}

		if taXLSX != "" {
			if err := report.WriteTimeAcctXLSX(taXLSX, res); err != nil {
				return err
			}
			zap.L().Info("timeacct: wrote report",
				zap.String("path", taXLSX),
				zap.Int("records", len(recs)),
			)
			return nil
		}
		return printJSON(res)
	},
}

var confirmCmd = &cobra.Command{
	Use:   "confirm PROJECT DATE",
	Short: "Confirm pending time accounts for a project and date",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		date, err := parseDateFlag(args[1])
		if err != nil {
			return err
		}
		n, err := st.ConfirmTimeAccounts(ctx, args[0], date)
		if err != nil {
			return err
		}
		zap.L().Info("timeacct: confirmed",
			zap.String("project", args[0]),
			zap.Int64("rows", n),
		)
		return nil
	},
}

func parseDateFlag(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(timeacct.DateKey, s)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "bad date %q, want YYYY-MM-DD", s)
	}
	return t, nil
}

func init() {
	timeacctCmd.Flags().StringVar(&taFormat, "format", string(timeacct.FormatByProjDate),
		"summary granularity: all, bydate, byproject, byprojdate")
	timeacctCmd.Flags().StringVar(&taProject, "project", "", "restrict to one project id")
	timeacctCmd.Flags().StringVar(&taFrom, "from", "", "start date, YYYY-MM-DD")
	timeacctCmd.Flags().StringVar(&taTo, "to", "", "end date, YYYY-MM-DD")
	timeacctCmd.Flags().StringVar(&taXLSX, "xlsx", "", "write an XLSX report instead of JSON")
	timeacctCmd.AddCommand(confirmCmd)
	rootCmd.AddCommand(timeacctCmd)
}
