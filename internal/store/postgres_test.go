package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eaobservatory/omp-cli/internal/header"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return &PostgresStore{pool: mock}, mock
}

func TestPostgresStore_InsertRawHeaders(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO raw_headers`).
		WithArgs(pgxmock.AnyArg(), "2024-01-01", "SCUBA-2", "a.sdf", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.InsertRawHeaders(context.Background(), "2024-01-01", []header.Raw{
		{Header: header.Header{"INSTRUME": "SCUBA-2", "OBSID": "obsA"}, Filename: "a.sdf"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRawHeaders(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT filename, header FROM raw_headers WHERE utdate = \$1 AND instrument = \$2`).
		WithArgs("2024-01-01", "SCUBA-2").
		WillReturnRows(pgxmock.NewRows([]string{"filename", "header"}).
			AddRow("a.sdf", []byte(`{"OBSID":"obsA"}`)))

	got, err := s.ListRawHeaders(context.Background(), "2024-01-01", "SCUBA-2")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "obsA", got[0].Header["OBSID"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListTimeAccounts(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT project_id, utdate, time_spent_s, confirmed, shift_type, comment FROM time_accounts`).
		WithArgs("M24BU011").
		WillReturnRows(pgxmock.NewRows([]string{"project_id", "utdate", "time_spent_s", "confirmed", "shift_type", "comment"}).
			AddRow("M24BU011", day, int64(3600), true, "NIGHT", ""))

	got, err := s.ListTimeAccounts(context.Background(), TimeAcctFilter{ProjectID: "M24BU011"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, time.Hour, got[0].TimeSpent)
	assert.True(t, got[0].Confirmed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ConfirmTimeAccounts(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`UPDATE time_accounts SET confirmed = true`).
		WithArgs("M24BU011", day).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))

	n, err := s.ConfirmTimeAccounts(context.Background(), "M24BU011", day)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
