// Package store persists raw per-file header records and time-account
// rows. It is the record source the computation cores read from;
// transaction boundaries live entirely here.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/eaobservatory/omp-cli/internal/header"
	"github.com/eaobservatory/omp-cli/internal/timeacct"
)

// TimeAcctFilter specifies criteria for listing time accounts.
type TimeAcctFilter struct {
	ProjectID string    `json:"project_id,omitempty"`
	From      time.Time `json:"from,omitempty"`
	To        time.Time `json:"to,omitempty"`
}

// Store defines the persistence interface for the observation log.
type Store interface {
	// Raw headers
	InsertRawHeaders(ctx context.Context, utdate string, recs []header.Raw) error
	ListRawHeaders(ctx context.Context, utdate, instrument string) ([]header.Raw, error)

	// Time accounting
	InsertTimeAccounts(ctx context.Context, recs []timeacct.Record) error
	ListTimeAccounts(ctx context.Context, filter TimeAcctFilter) ([]timeacct.Record, error)
	ConfirmTimeAccounts(ctx context.Context, projectID string, date time.Time) (int64, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a Store for the configured driver.
func Open(ctx context.Context, driver, databaseURL string) (Store, error) {
	switch driver {
	case "sqlite":
		return NewSQLite(databaseURL)
	case "postgres":
		return NewPostgres(ctx, databaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
