package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"oran-rapps/internal/auth"
	"oran-rapps/internal/config"
	decisions "oran-rapps/internal/decisions/domain"
	decisionshttp "oran-rapps/internal/decisions/interfaces/http"
	"oran-rapps/internal/observability/logging"
	"oran-rapps/internal/reconcile"
	slicehttp "oran-rapps/internal/sliceprb/interfaces/http"
)

// trigger runs one guarded cycle.
type trigger interface {
	RunOnce(ctx context.Context) (reconcile.Outcome, error)
}

func newRouter(cfg config.Config, loop trigger, history decisions.Lister, logger *zap.SugaredLogger) (http.Handler, error) {
	logger = logging.OrNop(logger)
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler())
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	decisionHandler, err := decisionshttp.NewHandler(history, cfg.Name)
	if err != nil {
		return nil, err
	}
	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/decisions", decisionHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/decisions/export.xlsx", decisionHandler.ExportXLSX).Methods(http.MethodGet)
	api.HandleFunc("/decisions/export.pdf", decisionHandler.ExportPDF).Methods(http.MethodGet)
	api.Handle("/cycles", cycleHandler(loop, logger)).Methods(http.MethodPost)

	if cfg.Name == config.SlicePRB {
		notifications, err := slicehttp.NewNotificationHandler(loop, logger)
		if err != nil {
			return nil, err
		}
		router.Handle(slicehttp.NotificationPath, notifications).Methods(http.MethodPost)
	}

	var handler http.Handler = router
	if cfg.HTTP.JWTSecret != "" {
		policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics", slicehttp.NotificationPath}, nil)
		handler = auth.NewMiddleware(auth.NewVerifier([]byte(cfg.HTTP.JWTSecret), cfg.Name), policy, logger).Wrap(handler)
	} else {
		logger.Warnw("HTTP.jwt_secret not set, API is unauthenticated")
	}
	handler = loggingMiddleware(handler, logger)
	return handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(handler), nil
}

// cycleHandler serves POST /api/v1/cycles, a manual trigger sharing the
// loop guard.
func cycleHandler(loop trigger, logger *zap.SugaredLogger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, role := auth.SubjectFromContext(r.Context()), auth.RoleFromContext(r.Context())
		outcome, err := loop.RunOnce(context.WithoutCancel(r.Context()))
		w.Header().Set("Content-Type", "application/json")
		if err != nil {
			logger.Errorw("manual cycle failed", "subject", subject, "role", role, "err", err)
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "message": err.Error()})
			return
		}
		logger.Infow("manual cycle", "subject", subject, "role", role, "outcome", outcome.String())
		_ = json.NewEncoder(w).Encode(map[string]string{"status": outcome.String()})
	})
}

func loggingMiddleware(next http.Handler, logger *zap.SugaredLogger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Infow("http request", "method", r.Method, "path", r.URL.Path, "status", resp.status, "duration", time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
