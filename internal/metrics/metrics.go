// Package metrics collects runtime counters for the analysis pipeline.
package metrics

// Metric names.
const (
	OracleRequests = "chessinsight_oracle_requests_total"
	OracleHits     = "chessinsight_oracle_hits_total"
	OracleMisses   = "chessinsight_oracle_misses_total"
	OracleErrors   = "chessinsight_oracle_errors_total"
	MemoHits       = "chessinsight_memo_hits_total"
	MemoSize       = "chessinsight_memo_size"

	EngineQueries      = "chessinsight_engine_queries_total"
	EngineQuerySeconds = "chessinsight_engine_query_seconds"

	AnalysisGames       = "chessinsight_analysis_games_total"
	AnalysisGamesFailed = "chessinsight_analysis_games_failed_total"
	AnalysisRunSeconds  = "chessinsight_analysis_run_seconds"

	TasksActive    = "chessinsight_tasks_active"
	TasksCompleted = "chessinsight_tasks_completed_total"
	TasksFailed    = "chessinsight_tasks_failed_total"
	TasksSwept     = "chessinsight_tasks_swept_total"

	HTTPRequests       = "chessinsight_http_requests_total"
	HTTPRequestSeconds = "chessinsight_http_request_seconds"
	HTTPServerErrors   = "chessinsight_http_server_errors_total"
)

// Collector records named metrics.
type Collector interface {
	IncCounter(name string, delta int64)
	SetGauge(name string, value int64)
	ObserveHistogram(name string, value float64)
}

// Noop discards everything.
type Noop struct{}

var _ Collector = Noop{}

func (Noop) IncCounter(string, int64)         {}
func (Noop) SetGauge(string, int64)           {}
func (Noop) ObserveHistogram(string, float64) {}

// OrNoop returns c, or Noop when c is nil.
func OrNoop(c Collector) Collector {
	if c == nil {
		return Noop{}
	}
	return c
}
