package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/vytor/chessinsight/internal/logger"
	"github.com/vytor/chessinsight/internal/metrics"
	"github.com/vytor/chessinsight/internal/models"
)

const (
	// DefaultCloudURL is the public Lichess cloud evaluation endpoint.
	DefaultCloudURL = "https://lichess.org/api/cloud-eval"

	// CloudMateScore is the score a cloud mate of any distance maps to.
	CloudMateScore = 10000

	defaultCloudTimeout = 5 * time.Second
)

// CloudConfig configures a CloudEvaluator.
type CloudConfig struct {
	BaseURL    string
	Timeout    time.Duration
	RatePerSec float64 // 0 disables rate limiting
	Burst      int
	HTTPClient *http.Client
	Metrics    metrics.Collector
}

// CloudEvaluator queries the Lichess cloud evaluation cache. Misses, timeouts
// and transport failures are reported as ErrNoEvaluation and counted.
type CloudEvaluator struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	limiter *rate.Limiter
	flight  singleflight.Group
	metrics metrics.Collector
	log     *logger.Logger

	apiCalls atomic.Int64
	hits     atomic.Int64
	misses   atomic.Int64
	errors   atomic.Int64
}

// NewCloudEvaluator creates a cloud evaluator.
func NewCloudEvaluator(cfg CloudConfig) *CloudEvaluator {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultCloudURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultCloudTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &CloudEvaluator{
		baseURL: cfg.BaseURL,
		timeout: cfg.Timeout,
		client:  cfg.HTTPClient,
		limiter: rate.NewLimiter(limit, cfg.Burst),
		metrics: metrics.OrNoop(cfg.Metrics),
		log:     logger.Default().WithPrefix("oracle"),
	}
}

type cloudResponse struct {
	Depth int `json:"depth"`
	PVs   []struct {
		CP   *int `json:"cp"`
		Mate *int `json:"mate"`
	} `json:"pvs"`
}

// Evaluate returns the cloud score for fen relative to the side to move.
// Concurrent lookups of the same position share one request, which runs
// detached from any single caller's cancellation.
func (c *CloudEvaluator) Evaluate(ctx context.Context, fen string) (int, error) {
	shared := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(fen, func() (any, error) {
		return c.lookup(shared, fen)
	})

	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%w: %v", ErrNoEvaluation, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return 0, res.Err
		}
		return res.Val.(int), nil
	}
}

func (c *CloudEvaluator) lookup(ctx context.Context, fen string) (int, error) {
	c.apiCalls.Add(1)
	c.metrics.IncCounter(metrics.OracleRequests, 1)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return 0, c.fail("rate limit wait: %v", err)
	}

	q := url.Values{}
	q.Set("fen", fen)
	q.Set("multiPv", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return 0, c.fail("failed to create request: %v", err)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, c.fail("request failed: %v", err)
	}
	defer resp.Body.Close()

	c.log.Debug("cloud response in %v, status=%d", time.Since(start), resp.StatusCode)

	if resp.StatusCode == http.StatusNotFound {
		return 0, c.miss(fen)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return 0, c.fail("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var out cloudResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, c.fail("failed to decode response: %v", err)
	}
	if len(out.PVs) == 0 {
		return 0, c.miss(fen)
	}

	var white int
	switch pv := out.PVs[0]; {
	case pv.CP != nil:
		white = *pv.CP
	case pv.Mate != nil:
		white = CloudMateScore
		if *pv.Mate < 0 {
			white = -CloudMateScore
		}
	default:
		return 0, c.miss(fen)
	}

	c.hits.Add(1)
	c.metrics.IncCounter(metrics.OracleHits, 1)
	c.log.Debug("cloud eval depth=%d cp(white)=%d", out.Depth, white)

	if BlackToMove(fen) {
		return -white, nil
	}
	return white, nil
}

func (c *CloudEvaluator) miss(fen string) error {
	c.misses.Add(1)
	c.metrics.IncCounter(metrics.OracleMisses, 1)
	c.log.Debug("position not in cloud: %s", fen)
	return ErrNoEvaluation
}

func (c *CloudEvaluator) fail(format string, args ...any) error {
	c.errors.Add(1)
	c.metrics.IncCounter(metrics.OracleErrors, 1)
	msg := fmt.Sprintf(format, args...)
	c.log.Warn("cloud eval error: %s", msg)
	return fmt.Errorf("%w: %s", ErrNoEvaluation, msg)
}

// Stats returns the lookup counters. HitRate is a percentage of API calls.
func (c *CloudEvaluator) Stats() models.OracleStats {
	s := models.OracleStats{
		APICalls: c.apiCalls.Load(),
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Errors:   c.errors.Load(),
	}
	if s.APICalls > 0 {
		s.HitRate = math.Round(float64(s.Hits)/float64(s.APICalls)*10000) / 100
	}
	return s
}

// ResetStats zeroes the lookup counters.
func (c *CloudEvaluator) ResetStats() {
	c.apiCalls.Store(0)
	c.hits.Store(0)
	c.misses.Store(0)
	c.errors.Store(0)
}
