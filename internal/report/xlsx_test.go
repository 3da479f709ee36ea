package report

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/eaobservatory/omp-cli/internal/timeacct"
)

func TestWriteTimeAcctXLSX_ByProjDate(t *testing.T) {
	t.Parallel()

	res, err := timeacct.Summarize(timeacct.FormatByProjDate, []timeacct.Record{
		timeacct.New("P1", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Hour, true),
		timeacct.New("P1", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 30*time.Minute, false),
		timeacct.New("P2", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), 10*time.Minute, true),
	})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "timeacct.xlsx")
	require.NoError(t, WriteTimeAcctXLSX(path, res))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)

	sheet := f.Sheets[0]
	assert.Equal(t, "By Project and Date", sheet.Name)
	require.Len(t, sheet.Rows, 3)

	assert.Equal(t, "Project", sheet.Rows[0].Cells[0].Value)
	assert.Equal(t, "P1", sheet.Rows[1].Cells[0].Value)
	assert.Equal(t, "2024-01-01", sheet.Rows[1].Cells[1].Value)

	total, err := sheet.Rows[1].Cells[2].Float()
	require.NoError(t, err)
	assert.InDelta(t, 1.5, total, 1e-9)
}

func TestWriteTimeAcctXLSX_All(t *testing.T) {
	t.Parallel()

	res, err := timeacct.Summarize(timeacct.FormatAll, []timeacct.Record{
		timeacct.New("P1", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 2*time.Hour, true),
	})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "total.xlsx")
	require.NoError(t, WriteTimeAcctXLSX(path, res))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)
	require.Len(t, f.Sheets[0].Rows, 2)
}

func TestWriteTimeAcctXLSX_Empty(t *testing.T) {
	t.Parallel()

	err := WriteTimeAcctXLSX(filepath.Join(t.TempDir(), "x.xlsx"), &timeacct.Result{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty summary")
}
