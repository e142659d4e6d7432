package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadscore/internal/generate"
	"github.com/sells-group/leadscore/internal/model"
	"github.com/sells-group/leadscore/internal/store"
)

var servePort int

// serveDeps carries the handler dependencies so the router can be
// exercised in tests with fakes.
type serveDeps struct {
	store    store.Store
	assess   func(ctx context.Context, limit int) ([]model.AssessedLead, error)
	generate func(ctx context.Context, maxQueries int) (*generate.Summary, error)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		router := newRouter(ctx, &serveDeps{
			store:    env.Store,
			assess:   env.Assessor.AssessAll,
			generate: env.Generator.Run,
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: router,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "HTTP port to listen on (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}

// newRouter builds the chi router. bgCtx scopes background generation
// runs so they stop when the server shuts down.
func newRouter(bgCtx context.Context, deps *serveDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/leads/generate", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			MaxQueries int `json:"max_queries"`
		}
		if req.ContentLength > 0 {
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
		}

		go func() {
			summary, err := deps.generate(bgCtx, body.MaxQueries)
			if err != nil {
				zap.L().Error("background generation failed", zap.Error(err))
				return
			}
			zap.L().Info("background generation complete",
				zap.Int("queries", summary.TotalQueries),
				zap.Int("leads", summary.TotalLeads),
			)
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	})

	r.Post("/leads/assess", func(w http.ResponseWriter, req *http.Request) {
		// A limit of zero assesses every unassessed lead, matching the
		// assess command's --limit flag.
		var body struct {
			Limit int `json:"limit"`
		}
		if req.ContentLength > 0 {
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
		}

		results, err := deps.assess(req.Context(), body.Limit)
		if err != nil {
			zap.L().Error("assessment run failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "assessment failed")
			return
		}
		writeJSON(w, http.StatusOK, results)
	})

	r.Get("/leads", func(w http.ResponseWriter, req *http.Request) {
		filter := store.LeadFilter{
			Status: model.LeadStatus(req.URL.Query().Get("status")),
		}
		if v := req.URL.Query().Get("min_score"); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid min_score")
				return
			}
			filter.MinScore = f
		}
		if v := req.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			filter.Limit = n
		}
		if v := req.URL.Query().Get("offset"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid offset")
				return
			}
			filter.Offset = n
		}

		leads, err := deps.store.ListLeads(req.Context(), filter)
		if err != nil {
			zap.L().Error("list leads failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "list leads failed")
			return
		}
		if leads == nil {
			leads = []model.Lead{}
		}
		writeJSON(w, http.StatusOK, leads)
	})

	r.Get("/leads/{id}", func(w http.ResponseWriter, req *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(req, "id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid lead id")
			return
		}

		lead, err := deps.store.GetLead(req.Context(), id)
		if err != nil {
			writeError(w, http.StatusNotFound, "lead not found")
			return
		}
		writeJSON(w, http.StatusOK, lead)
	})

	r.Get("/stats", func(w http.ResponseWriter, req *http.Request) {
		stats, err := deps.store.Stats(req.Context())
		if err != nil {
			zap.L().Error("stats failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "stats failed")
			return
		}
		writeJSON(w, http.StatusOK, stats)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
