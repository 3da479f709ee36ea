package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/eaobservatory/omp-cli/internal/header"
	"github.com/eaobservatory/omp-cli/internal/timeacct"
	"github.com/eaobservatory/omp-cli/internal/translate"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS raw_headers (
	id          TEXT PRIMARY KEY,
	utdate      TEXT NOT NULL,
	instrument  TEXT NOT NULL DEFAULT '',
	filename    TEXT NOT NULL DEFAULT '',
	header      TEXT NOT NULL,
	received_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS time_accounts (
	id           TEXT PRIMARY KEY,
	project_id   TEXT NOT NULL,
	utdate       TEXT NOT NULL,
	time_spent_s INTEGER NOT NULL DEFAULT 0,
	confirmed    INTEGER NOT NULL DEFAULT 0,
	shift_type   TEXT NOT NULL DEFAULT '',
	comment      TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_raw_headers_utdate ON raw_headers(utdate);
CREATE INDEX IF NOT EXISTS idx_raw_headers_instrument ON raw_headers(instrument);
CREATE INDEX IF NOT EXISTS idx_time_accounts_project ON time_accounts(project_id);
CREATE INDEX IF NOT EXISTS idx_time_accounts_utdate ON time_accounts(utdate);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertRawHeaders(ctx context.Context, utdate string, recs []header.Raw) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback()

	for _, rec := range recs {
		hdrJSON, err := json.Marshal(rec.Header)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal header")
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO raw_headers (id, utdate, instrument, filename, header, received_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), utdate, recInstrument(rec.Header),
			rec.Filename, string(hdrJSON), time.Now().UTC(),
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: insert raw header")
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

func (s *SQLiteStore) ListRawHeaders(ctx context.Context, utdate, instrument string) ([]header.Raw, error) {
	query := `SELECT filename, header FROM raw_headers WHERE utdate = ?`
	args := []any{utdate}
	if instrument != "" {
		query += ` AND instrument = ?`
		args = append(args, instrument)
	}
	query += ` ORDER BY received_at, rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list raw headers")
	}
	defer rows.Close()

	var out []header.Raw
	for rows.Next() {
		var filename, hdrJSON string
		if err := rows.Scan(&filename, &hdrJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan raw header")
		}
		var hdr header.Header
		if err := json.Unmarshal([]byte(hdrJSON), &hdr); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal header")
		}
		out = append(out, header.Raw{Header: hdr, Filename: filename})
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list raw headers")
}

func (s *SQLiteStore) InsertTimeAccounts(ctx context.Context, recs []timeacct.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback()

	for _, rec := range recs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO time_accounts (id, project_id, utdate, time_spent_s, confirmed, shift_type, comment)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), rec.ProjectID,
			rec.Date.UTC().Format(timeacct.DateKey),
			int64(rec.TimeSpent/time.Second),
			rec.Confirmed, rec.ShiftType, rec.Comment,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: insert time account")
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

func (s *SQLiteStore) ListTimeAccounts(ctx context.Context, filter TimeAcctFilter) ([]timeacct.Record, error) {
	query := `SELECT project_id, utdate, time_spent_s, confirmed, shift_type, comment FROM time_accounts WHERE 1=1`
	var args []any
	if filter.ProjectID != "" {
		query += ` AND project_id = ?`
		args = append(args, filter.ProjectID)
	}
	if !filter.From.IsZero() {
		query += ` AND utdate >= ?`
		args = append(args, filter.From.UTC().Format(timeacct.DateKey))
	}
	if !filter.To.IsZero() {
		query += ` AND utdate <= ?`
		args = append(args, filter.To.UTC().Format(timeacct.DateKey))
	}
	query += ` ORDER BY utdate, project_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list time accounts")
	}
	defer rows.Close()

	var out []timeacct.Record
	for rows.Next() {
		rec, err := scanTimeAccount(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan time account")
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list time accounts")
}

func (s *SQLiteStore) ConfirmTimeAccounts(ctx context.Context, projectID string, date time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE time_accounts SET confirmed = 1 WHERE project_id = ? AND utdate = ?`,
		projectID, date.UTC().Format(timeacct.DateKey),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: confirm time accounts")
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: confirm time accounts")
}

// recInstrument reads the instrument a raw header belongs to, for the
// indexed column.
func recInstrument(hdr header.Header) string {
	for _, card := range []string{"INSTRUME", "BACKEND"} {
		if s, ok := translate.CardString(hdr, card); ok {
			return s
		}
	}
	return ""
}

// scanTimeAccount builds a Record from a time_accounts row scanner.
func scanTimeAccount(scan func(dest ...any) error) (timeacct.Record, error) {
	var (
		rec     timeacct.Record
		utdate  string
		spentS  int64
	)
	if err := scan(&rec.ProjectID, &utdate, &spentS, &rec.Confirmed, &rec.ShiftType, &rec.Comment); err != nil {
		return rec, err
	}
	date, err := time.Parse(timeacct.DateKey, utdate)
	if err != nil {
		return rec, err
	}
	rec.Date = date
	rec.TimeSpent = time.Duration(spentS) * time.Second
	return rec, nil
}
