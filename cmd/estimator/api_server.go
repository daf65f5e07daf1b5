package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"gas-estimator-go/internal/engine"
	"gas-estimator-go/internal/recovery"
	"gas-estimator-go/internal/web"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const version = "1.2.0"

// Server 包装 HTTP 服务
type Server struct {
	estimator *engine.Estimator
	wsHub     *web.Hub
	addr      string
}

func NewServer(estimator *engine.Estimator, wsHub *web.Hub, addr string) *Server {
	return &Server{
		estimator: estimator,
		wsHub:     wsHub,
		addr:      addr,
	}
}

// Start 阻塞运行HTTP服务，ctx取消后优雅关闭
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/estimate-gas", func(w http.ResponseWriter, r *http.Request) {
		recovery.WithRecoveryNamed("estimate_handler", func() {
			s.handleEstimateGas(w, r)
		})
	})

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		s.handleHealth(w)
	})

	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /ws", s.wsHub.HandleWS)

	srv := &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("🚀 HTTP server listening", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("Shutdown signal received, starting graceful shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
