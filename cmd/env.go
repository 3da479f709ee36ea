package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/eaobservatory/omp-cli/internal/store"
	"github.com/eaobservatory/omp-cli/internal/translate"
)

// openStore opens the configured database backend.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	return st, nil
}

// buildRegistry assembles the translator registry: built-in instrument
// profiles plus any extras from the configured profile file.
func buildRegistry() (translate.Registry, error) {
	profiles := translate.BuiltinProfiles()
	if cfg.Instruments.ProfileFile != "" {
		extras, err := translate.LoadProfiles(cfg.Instruments.ProfileFile)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, extras...)
	}
	return translate.NewRegistry(profiles...), nil
}
