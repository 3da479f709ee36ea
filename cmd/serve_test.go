package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eaobservatory/omp-cli/internal/config"
	"github.com/eaobservatory/omp-cli/internal/header"
	"github.com/eaobservatory/omp-cli/internal/store"
	"github.com/eaobservatory/omp-cli/internal/timeacct"
	"github.com/eaobservatory/omp-cli/internal/translate"
)

func testServer(t *testing.T, srvCfg config.ServerConfig) (*httptest.Server, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	srv := httptest.NewServer(newRouter(st, translate.Default(), srvCfg))
	t.Cleanup(srv.Close)
	return srv, st
}

func defaultServerConfig() config.ServerConfig {
	return config.ServerConfig{RequestsPerSec: 1000, Burst: 1000}
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestServeHealth(t *testing.T) {
	t.Parallel()
	srv, _ := testServer(t, defaultServerConfig())

	var body map[string]string
	code := getJSON(t, srv.URL+"/health", &body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestServeObservations(t *testing.T) {
	t.Parallel()
	srv, st := testServer(t, defaultServerConfig())

	recs := []header.Raw{
		{Header: header.Header{"INSTRUME": "SCUBA-2", "OBSID": "obsA", "FILE_ID": "a.sdf", "SUBARRAY": "s8a"}},
		{Header: header.Header{"INSTRUME": "SCUBA-2", "OBSID": "obsA", "FILE_ID": "b.sdf", "SUBARRAY": "s8b"}},
	}
	require.NoError(t, st.InsertRawHeaders(context.Background(), "2024-01-01", recs))

	t.Run("merged observations for date", func(t *testing.T) {
		var body map[string]mergedOut
		code := getJSON(t, srv.URL+"/obs/2024-01-01", &body)
		require.Equal(t, http.StatusOK, code)
		require.Contains(t, body, "obsA")
		assert.Equal(t, []string{"a.sdf", "b.sdf"}, body["obsA"].Filenames)
	})

	t.Run("empty date is 404", func(t *testing.T) {
		code := getJSON(t, srv.URL+"/obs/1999-12-31", nil)
		assert.Equal(t, http.StatusNotFound, code)
	})

	t.Run("malformed date is 400", func(t *testing.T) {
		code := getJSON(t, srv.URL+"/obs/not-a-date", nil)
		assert.Equal(t, http.StatusBadRequest, code)
	})
}

func TestServeTimeAcctSummary(t *testing.T) {
	t.Parallel()
	srv, st := testServer(t, defaultServerConfig())

	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, st.InsertTimeAccounts(context.Background(), []timeacct.Record{
		timeacct.New("P1", day, time.Hour, true),
		timeacct.New("P1", day, 30*time.Minute, false),
	}))

	t.Run("byprojdate summary", func(t *testing.T) {
		var body timeacct.Result
		code := getJSON(t, srv.URL+"/timeacct/summary?format=byprojdate", &body)
		require.Equal(t, http.StatusOK, code)
		s := body.ByProjDate["P1"]["2024-01-01"]
		require.NotNil(t, s)
		assert.Equal(t, 90*time.Minute, s.Total)
		assert.Equal(t, 30*time.Minute, s.Pending)
	})

	t.Run("unknown format is 400", func(t *testing.T) {
		code := getJSON(t, srv.URL+"/timeacct/summary?format=byshift", nil)
		assert.Equal(t, http.StatusBadRequest, code)
	})
}

func TestServeThrottle(t *testing.T) {
	t.Parallel()
	srv, _ := testServer(t, config.ServerConfig{RequestsPerSec: 1, Burst: 1})

	codes := make(map[int]int)
	for i := 0; i < 5; i++ {
		codes[getJSON(t, srv.URL+"/health", nil)]++
	}
	assert.Positive(t, codes[http.StatusTooManyRequests])
}
