package store

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/eaobservatory/omp-cli/internal/header"
	"github.com/eaobservatory/omp-cli/internal/timeacct"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock pools
// satisfy it too, which is how the unit tests run without a server.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS raw_headers (
	id          UUID PRIMARY KEY,
	utdate      TEXT NOT NULL,
	instrument  TEXT NOT NULL DEFAULT '',
	filename    TEXT NOT NULL DEFAULT '',
	header      JSONB NOT NULL,
	received_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS time_accounts (
	id           UUID PRIMARY KEY,
	project_id   TEXT NOT NULL,
	utdate       DATE NOT NULL,
	time_spent_s BIGINT NOT NULL DEFAULT 0,
	confirmed    BOOLEAN NOT NULL DEFAULT false,
	shift_type   TEXT NOT NULL DEFAULT '',
	comment      TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_raw_headers_utdate ON raw_headers(utdate);
CREATE INDEX IF NOT EXISTS idx_raw_headers_instrument ON raw_headers(instrument);
CREATE INDEX IF NOT EXISTS idx_time_accounts_project ON time_accounts(project_id);
CREATE INDEX IF NOT EXISTS idx_time_accounts_utdate ON time_accounts(utdate);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) InsertRawHeaders(ctx context.Context, utdate string, recs []header.Raw) error {
	for _, rec := range recs {
		hdrJSON, err := json.Marshal(rec.Header)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal header")
		}
		_, err = s.pool.Exec(ctx,
			`INSERT INTO raw_headers (id, utdate, instrument, filename, header) VALUES ($1, $2, $3, $4, $5)`,
			uuid.New(), utdate, recInstrument(rec.Header), rec.Filename, hdrJSON,
		)
		if err != nil {
			return eris.Wrap(err, "postgres: insert raw header")
		}
	}
	return nil
}

func (s *PostgresStore) ListRawHeaders(ctx context.Context, utdate, instrument string) ([]header.Raw, error) {
	query := `SELECT filename, header FROM raw_headers WHERE utdate = $1`
	args := []any{utdate}
	if instrument != "" {
		query += ` AND instrument = $2`
		args = append(args, instrument)
	}
	query += ` ORDER BY received_at`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list raw headers")
	}
	defer rows.Close()

	var out []header.Raw
	for rows.Next() {
		var filename string
		var hdrJSON []byte
		if err := rows.Scan(&filename, &hdrJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan raw header")
		}
		var hdr header.Header
		if err := json.Unmarshal(hdrJSON, &hdr); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal header")
		}
		out = append(out, header.Raw{Header: hdr, Filename: filename})
	}
	return out, eris.Wrap(rows.Err(), "postgres: list raw headers")
}

func (s *PostgresStore) InsertTimeAccounts(ctx context.Context, recs []timeacct.Record) error {
	for _, rec := range recs {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO time_accounts (id, project_id, utdate, time_spent_s, confirmed, shift_type, comment)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			uuid.New(), rec.ProjectID, rec.Date.UTC(),
			int64(rec.TimeSpent/time.Second), rec.Confirmed, rec.ShiftType, rec.Comment,
		)
		if err != nil {
			return eris.Wrap(err, "postgres: insert time account")
		}
	}
	return nil
}

func (s *PostgresStore) ListTimeAccounts(ctx context.Context, filter TimeAcctFilter) ([]timeacct.Record, error) {
	query := `SELECT project_id, utdate, time_spent_s, confirmed, shift_type, comment FROM time_accounts WHERE 1=1`
	var args []any
	if filter.ProjectID != "" {
		args = append(args, filter.ProjectID)
		query += ` AND project_id = $1`
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From.UTC())
		query += ` AND utdate >= $` + strconv.Itoa(len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To.UTC())
		query += ` AND utdate <= $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY utdate, project_id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list time accounts")
	}
	defer rows.Close()

	var out []timeacct.Record
	for rows.Next() {
		var (
			rec    timeacct.Record
			date   time.Time
			spentS int64
		)
		if err := rows.Scan(&rec.ProjectID, &date, &spentS, &rec.Confirmed, &rec.ShiftType, &rec.Comment); err != nil {
			return nil, eris.Wrap(err, "postgres: scan time account")
		}
		rec.Date = timeacct.Midnight(date)
		rec.TimeSpent = time.Duration(spentS) * time.Second
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list time accounts")
}

func (s *PostgresStore) ConfirmTimeAccounts(ctx context.Context, projectID string, date time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE time_accounts SET confirmed = true WHERE project_id = $1 AND utdate = $2`,
		projectID, date.UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: confirm time accounts")
	}
	return tag.RowsAffected(), nil
}

