package api

import (
	"database/sql"
	"net/http"

	"github.com/vytor/chessinsight/internal/metrics"
	"github.com/vytor/chessinsight/internal/services"
)

type Server struct {
	AnalysisService services.AnalysisService
	// DB is pinged by the readiness probe when set.
	DB *sql.DB
	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
	Metrics        metrics.Collector
}
