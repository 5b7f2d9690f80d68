package rpcServer

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/epochledger/epochledger/internal/metrics/metricsTypes"
	"github.com/epochledger/epochledger/pkg/ledgerErrors"
	"github.com/epochledger/epochledger/pkg/utils"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (s *RpcServer) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.Logger.Sugar().Errorw("Failed to encode response", zap.Error(err))
	}
}

// writeError maps a ledger error to its HTTP status. Internal failures are logged
// and reported without detail.
func (s *RpcServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := ledgerErrors.HTTPStatus(err)
	kind := ledgerErrors.KindOf(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		s.Logger.Sugar().Errorw("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		message = http.StatusText(status)
	}
	s.writeJSON(w, status, &errorResponse{Error: message, Kind: string(kind)})
}

func parseEpochIdParam(pathParams map[string]string) (uint64, error) {
	raw := pathParams["id"]
	epochId, err := utils.ParseEpochId(raw)
	if err != nil {
		return 0, ledgerErrors.Validation(ledgerErrors.ErrInvalidEpochId, "'%s'", raw)
	}
	return epochId, nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument records request count and latency per route pattern.
func (s *RpcServer) instrument(pattern string, next runtime.HandlerFunc) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r, pathParams)

		if s.metricsSink == nil {
			return
		}
		_ = s.metricsSink.Incr(metricsTypes.Metric_Incr_HttpRequest, []metricsTypes.MetricsLabel{
			{Name: "pattern", Value: pattern},
			{Name: "status", Value: strconv.Itoa(rec.status)},
		}, 1)
		_ = s.metricsSink.Timing(metricsTypes.Metric_Timing_HttpDuration, time.Since(start), []metricsTypes.MetricsLabel{
			{Name: "pattern", Value: pattern},
		})
	}
}
