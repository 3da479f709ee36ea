package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/eaobservatory/omp-cli/internal/config"
	"github.com/eaobservatory/omp-cli/internal/header"
	"github.com/eaobservatory/omp-cli/internal/store"
	"github.com/eaobservatory/omp-cli/internal/timeacct"
	"github.com/eaobservatory/omp-cli/internal/translate"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve merged observations and time-account summaries over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		reg, err := buildRegistry()
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           newRouter(st, reg, cfg.Server),
			ReadHeaderTimeout: 5 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			zap.L().Info("serve: listening", zap.Int("port", cfg.Server.Port))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return eris.Wrap(srv.Shutdown(shutdownCtx), "serve: shutdown")
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return eris.Wrap(err, "serve: listen")
		}
	},
}

// newRouter builds the HTTP surface: health, merged observations by UT
// date, and time-account summaries.
func newRouter(st store.Store, reg translate.Registry, srvCfg config.ServerConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
	}))
	r.Use(throttle(rate.NewLimiter(rate.Limit(srvCfg.RequestsPerSec), srvCfg.Burst)))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/obs/{date}", func(w http.ResponseWriter, req *http.Request) {
		date := chi.URLParam(req, "date")
		if _, err := time.Parse(timeacct.DateKey, date); err != nil {
			httpError(w, http.StatusBadRequest, "bad date, want YYYY-MM-DD")
			return
		}

		recs, err := st.ListRawHeaders(req.Context(), date, req.URL.Query().Get("instrument"))
		if err != nil {
			zap.L().Error("serve: list raw headers", zap.Error(err))
			httpError(w, http.StatusInternalServerError, "store error")
			return
		}

		merged, err := header.Merge(recs, reg)
		if err != nil {
			zap.L().Error("serve: merge", zap.Error(err))
			httpError(w, http.StatusInternalServerError, "merge error")
			return
		}
		if merged == nil {
			httpError(w, http.StatusNotFound, "no observations for date")
			return
		}
		writeJSON(w, http.StatusOK, flattenMerged(merged))
	})

	r.Get("/timeacct/summary", func(w http.ResponseWriter, req *http.Request) {
		format := req.URL.Query().Get("format")
		if format == "" {
			format = string(timeacct.FormatByProjDate)
		}

		var filter store.TimeAcctFilter
		var err error
		if filter.From, err = parseDateFlag(req.URL.Query().Get("from")); err != nil {
			httpError(w, http.StatusBadRequest, "bad from date")
			return
		}
		if filter.To, err = parseDateFlag(req.URL.Query().Get("to")); err != nil {
			httpError(w, http.StatusBadRequest, "bad to date")
			return
		}
		filter.ProjectID = req.URL.Query().Get("project")

		recs, err := st.ListTimeAccounts(req.Context(), filter)
		if err != nil {
			zap.L().Error("serve: list time accounts", zap.Error(err))
			httpError(w, http.StatusInternalServerError, "store error")
			return
		}

		res, err := timeacct.Summarize(timeacct.Format(format), recs)
		if err != nil {
			httpError(w, http.StatusBadRequest, "unknown format")
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	return r
}

// throttle rejects requests beyond the configured rate with 429.
func throttle(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !limiter.Allow() {
				httpError(w, http.StatusTooManyRequests, "rate limited")
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
