package prometheus

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type PrometheusServerConfig struct {
	Port int
}

// PrometheusServer exposes the default registry that PrometheusMetricsClient registers into.
type PrometheusServer struct {
	config *PrometheusServerConfig
	logger *zap.Logger
}

func NewPrometheusServer(cfg *PrometheusServerConfig, l *zap.Logger) *PrometheusServer {
	return &PrometheusServer{
		config: cfg,
		logger: l,
	}
}

func (ps *PrometheusServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (ps *PrometheusServer) Start(gracefulShutdown chan bool) error {
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", ps.config.Port),
		Handler:           ps.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		for range gracefulShutdown {
			ps.logger.Sugar().Info("Shutting down prometheus server")
			err := httpServer.Shutdown(context.Background())
			if err != nil {
				ps.logger.Sugar().Errorw("Failed to shutdown prometheus server", zap.Error(err))
			}
		}
	}()
	go func() {
		ps.logger.Sugar().Infow("Starting prometheus server", zap.Int("port", ps.config.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			ps.logger.Sugar().Fatalw("Failed to start prometheus server", zap.Error(err))
		}
	}()
	return nil
}
