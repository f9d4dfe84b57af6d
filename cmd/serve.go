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

	"github.com/tablescout/review-pipeline/internal/model"
	"github.com/tablescout/review-pipeline/internal/reconcile"
	"github.com/tablescout/review-pipeline/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the review API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newAPIRouter(st),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			// the signal context is already canceled; drain on a fresh one
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("shutdown did not drain cleanly", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newAPIRouter builds the HTTP surface over the store: catalog queries,
// per-restaurant reviews and counts, the external listing, and the
// export/apply reconciliation endpoints.
func newAPIRouter(st store.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/api/restaurants", func(w http.ResponseWriter, req *http.Request) {
		restaurants, err := st.FindRestaurants(req.Context(), store.RestaurantFilter{
			Name:  req.URL.Query().Get("name"),
			Area:  req.URL.Query().Get("area"),
			Limit: queryInt(req, "limit"),
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, restaurants)
	})

	r.Get("/api/restaurants/{id}/reviews", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		if !restaurantExists(w, req, st, id) {
			return
		}
		reviews, err := st.ListReviews(req.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, reviews)
	})

	r.Get("/api/restaurants/{id}/counts", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		if !restaurantExists(w, req, st, id) {
			return
		}
		counts, err := st.CountReviews(req.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, counts)
	})

	r.Get("/api/reviews/external", func(w http.ResponseWriter, req *http.Request) {
		reviews, err := st.ListExternalReviews(req.Context(), queryInt(req, "limit"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, reviews)
	})

	r.Get("/api/export", func(w http.ResponseWriter, req *http.Request) {
		records, err := reconcile.Export(req.Context(), st, queryInt(req, "limit"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, records)
	})

	r.Post("/api/apply", func(w http.ResponseWriter, req *http.Request) {
		var records []model.RewriteRecord
		dec := json.NewDecoder(req.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&records); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed rewrite records"})
			return
		}
		summary, err := reconcile.Apply(req.Context(), st, records)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	})

	return r
}

func restaurantExists(w http.ResponseWriter, req *http.Request, st store.Store, id string) bool {
	if _, err := st.GetRestaurant(req.Context(), id); err != nil {
		if eris.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "restaurant not found"})
			return false
		}
		writeError(w, err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	zap.L().Error("request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func queryInt(req *http.Request, key string) int {
	n, _ := strconv.Atoi(req.URL.Query().Get(key))
	return n
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
