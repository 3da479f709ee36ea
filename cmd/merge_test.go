package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eaobservatory/omp-cli/internal/header"
	"github.com/eaobservatory/omp-cli/internal/translate"
)

func writeBatchFile(t *testing.T, recs []header.Raw) string {
	t.Helper()
	data, err := json.Marshal(recs)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "batch.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestMergeBatchFile(t *testing.T) {
	t.Parallel()

	path := writeBatchFile(t, []header.Raw{
		{Header: header.Header{"INSTRUME": "SCUBA-2", "OBSID": "obsA", "FILE_ID": "a.sdf", "SUBARRAY": "s8a"}},
		{Header: header.Header{"INSTRUME": "SCUBA-2", "OBSID": "obsA", "FILE_ID": "b.sdf", "SUBARRAY": "s8b"}},
	})

	out, err := mergeBatchFile(path, translate.Default())
	require.NoError(t, err)
	require.Contains(t, out, "obsA")

	obs := out["obsA"]
	assert.Equal(t, []string{"a.sdf", "b.sdf"}, obs.Filenames)
	assert.NotContains(t, obs.Header, "SUBARRAY")

	rows, ok := obs.Header[header.SubHeadersKey].([]header.Header)
	require.True(t, ok)
	require.Len(t, rows, 2)
	assert.Equal(t, "s8a", rows[0]["SUBARRAY"])
}

func TestMergeBatchFileEmpty(t *testing.T) {
	t.Parallel()

	path := writeBatchFile(t, nil)
	out, err := mergeBatchFile(path, translate.Default())
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestMergeBatchFileErrors(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := mergeBatchFile(filepath.Join(t.TempDir(), "nope.json"), translate.Default())
		assert.Error(t, err)
	})

	t.Run("malformed json", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
		_, err := mergeBatchFile(path, translate.Default())
		assert.Error(t, err)
	})
}
