package main

import (
	"github.com/spf13/cobra"

	"github.com/eaobservatory/omp-cli/internal/translate"
)

var instrumentsCmd = &cobra.Command{
	Use:   "instruments",
	Short: "List known instrument profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		profiles := translate.BuiltinProfiles()
		if cfg.Instruments.ProfileFile != "" {
			extras, err := translate.LoadProfiles(cfg.Instruments.ProfileFile)
			if err != nil {
				return err
			}
			profiles = append(profiles, extras...)
		}
		return printJSON(profiles)
	},
}

func init() {
	rootCmd.AddCommand(instrumentsCmd)
}
