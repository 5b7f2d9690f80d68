package rpcServer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/epochledger/epochledger/internal/config"
	"github.com/epochledger/epochledger/internal/metrics"
	"github.com/epochledger/epochledger/internal/metrics/metricsTypes"
	"github.com/epochledger/epochledger/pkg/proofs"
	"github.com/epochledger/epochledger/pkg/service/ledgerDataService"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type RpcServerConfig struct {
	GrpcPort int
	HttpPort int
}

// ReadinessCheck reports whether the server's dependencies can serve requests.
type ReadinessCheck func(ctx context.Context) error

type RpcServer struct {
	Logger            *zap.Logger
	rpcConfig         *RpcServerConfig
	globalConfig      *config.Config
	ledgerDataService *ledgerDataService.LedgerDataService
	proofsStore       *proofs.AllocationProofsStore
	metricsSink       *metrics.MetricsSink
	readinessCheck    ReadinessCheck
	healthServer      *health.Server
}

// NewRpcServer builds the read-only ledger API. proofsStore may be nil, in which
// case the proof route is not registered.
func NewRpcServer(
	rpcConfig *RpcServerConfig,
	lds *ledgerDataService.LedgerDataService,
	aps *proofs.AllocationProofsStore,
	ready ReadinessCheck,
	ms *metrics.MetricsSink,
	l *zap.Logger,
	cfg *config.Config,
) *RpcServer {
	return &RpcServer{
		Logger:            l,
		rpcConfig:         rpcConfig,
		globalConfig:      cfg,
		ledgerDataService: lds,
		proofsStore:       aps,
		metricsSink:       ms,
		readinessCheck:    ready,
		healthServer:      health.NewServer(),
	}
}

// Handler returns the HTTP handler with every route registered and CORS applied.
func (s *RpcServer) Handler() (http.Handler, error) {
	mux := runtime.NewServeMux()
	if err := s.registerHandlers(mux); err != nil {
		return nil, err
	}
	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}).Handler(mux), nil
}

func (s *RpcServer) registerHandlers(mux *runtime.ServeMux) error {
	routes := []struct {
		pattern string
		handler runtime.HandlerFunc
	}{
		{"/healthz", s.HealthCheck},
		{"/readyz", s.ReadyCheck},
		{"/ledger/epochs", s.ListEpochs},
		{"/ledger/epochs/{id}/allocations", s.GetEpochAllocations},
		{"/ledger/epochs/{id}/statement", s.GetEpochStatement},
	}
	if s.proofsStore != nil {
		routes = append(routes, struct {
			pattern string
			handler runtime.HandlerFunc
		}{"/ledger/epochs/{id}/allocations/{userId}/proof", s.GetAllocationProof})
	}

	for _, r := range routes {
		if err := mux.HandlePath(http.MethodGet, r.pattern, s.instrument(r.pattern, r.handler)); err != nil {
			s.Logger.Sugar().Errorw("Failed to register route", zap.String("pattern", r.pattern), zap.Error(err))
			return err
		}
	}
	return nil
}

func (s *RpcServer) newGrpcServer() *grpc.Server {
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(s.unaryMetricsInterceptor))
	healthpb.RegisterHealthServer(grpcServer, s.healthServer)
	s.healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	return grpcServer
}

func (s *RpcServer) unaryMetricsInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	res, err := handler(ctx, req)
	if s.metricsSink != nil {
		_ = s.metricsSink.Incr(metricsTypes.Metric_Incr_GrpcRequest, nil, 1)
		_ = s.metricsSink.Timing(metricsTypes.Metric_Timing_GrpcDuration, time.Since(start), nil)
	}
	return res, err
}

// Start serves gRPC and HTTP until a value arrives on gracefulShutdown.
func (s *RpcServer) Start(ctx context.Context, gracefulShutdown chan bool) error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}

	grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.rpcConfig.GrpcPort))
	if err != nil {
		s.Logger.Sugar().Errorw("Failed to listen on grpc port", zap.Int("port", s.rpcConfig.GrpcPort), zap.Error(err))
		return err
	}
	grpcServer := s.newGrpcServer()

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.rpcConfig.HttpPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		s.Logger.Sugar().Infow("Starting grpc server", zap.Int("port", s.rpcConfig.GrpcPort))
		if err := grpcServer.Serve(grpcListener); err != nil {
			s.Logger.Sugar().Errorw("Grpc server stopped", zap.Error(err))
		}
	}()
	go func() {
		s.Logger.Sugar().Infow("Starting http server", zap.Int("port", s.rpcConfig.HttpPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Logger.Sugar().Fatalw("Failed to start http server", zap.Error(err))
		}
	}()
	go func() {
		for range gracefulShutdown {
			s.Logger.Sugar().Info("Shutting down rpc server")
			s.healthServer.Shutdown()
			if err := httpServer.Shutdown(context.Background()); err != nil {
				s.Logger.Sugar().Errorw("Failed to shutdown http server", zap.Error(err))
			}
			grpcServer.GracefulStop()
		}
	}()
	return nil
}
