package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/contact-finder/internal/discovery"
	"github.com/sells-group/contact-finder/internal/model"
	"github.com/sells-group/contact-finder/internal/store"
)

var (
	servePort   int
	serveRecord bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for single-organization discovery",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initDiscovery(ctx, cfg, serveRecord)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(env.Orchestrator, env.Sink),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

// discoverRequest is the body of POST /discover.
type discoverRequest struct {
	Name       string `json:"name"`
	Website    string `json:"website"`
	ProfileURL string `json:"profile_url"`
}

// buildRouter wires the API. sink may be nil, in which case results are
// not recorded and GET /results answers 404.
func buildRouter(runner discovery.Runner, sink store.Sink) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/discover", func(w http.ResponseWriter, req *http.Request) {
		var body discoverRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		org := model.Organization{
			Name:       strings.TrimSpace(body.Name),
			Website:    strings.TrimSpace(body.Website),
			ProfileURL: strings.TrimSpace(body.ProfileURL),
		}
		if org.Name == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
			return
		}

		res := runner.Run(req.Context(), org)
		if res.Err != nil {
			zap.L().Error("discover request failed",
				zap.String("org", org.Name),
				zap.String("request_id", middleware.GetReqID(req.Context())),
				zap.Error(res.Err),
			)
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": res.Err.Error()})
			return
		}
		if sink != nil {
			rec := org
			if res.Website != "" {
				rec.Website = res.Website
			}
			if err := sink.Record(req.Context(), rec, res.Emails, res.Method); err != nil {
				zap.L().Error("record discover result", zap.String("org", org.Name), zap.Error(err))
			}
		}
		writeJSON(w, http.StatusOK, res)
	})

	r.Get("/results", func(w http.ResponseWriter, req *http.Request) {
		reader, ok := sink.(store.Reader)
		if sink == nil || !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no result store configured"})
			return
		}
		rows, err := reader.Rows(req.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "read results"})
			return
		}
		if rows == nil {
			rows = []store.Row{}
		}
		writeJSON(w, http.StatusOK, rows)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveRecord, "record", false, "record results in the configured sink")
	rootCmd.AddCommand(serveCmd)
}
