package analysis

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/vytor/chessinsight/internal/chesscom"
	"github.com/vytor/chessinsight/internal/engine"
	"github.com/vytor/chessinsight/internal/logger"
	"github.com/vytor/chessinsight/internal/metrics"
	"github.com/vytor/chessinsight/internal/models"
	"github.com/vytor/chessinsight/internal/oracle"
	"github.com/vytor/chessinsight/internal/pgn"
)

const (
	// MaxAnalysisGames caps how many games one run analyzes.
	MaxAnalysisGames = 10
	// CriticalFloor is the minimum loss a critical mistake must reach.
	CriticalFloor = 300
	// CriticalPercentile is the stage percentile a critical mistake must reach.
	CriticalPercentile = 75

	// NotApplicable is reported as the weakest stage when none can be named.
	NotApplicable = "N/A"

	reasonNoMistakes = "No mistakes detected"
	reasonDisabled   = "Engine analysis disabled"
	reasonNoEngine   = "Engine unavailable"
)

// Config tunes one analysis run. Zero values fall back to the defaults.
type Config struct {
	Enabled            bool
	MaxGames           int
	MaxMovesPerGame    int
	MovesPerStage      int
	SkipEvalThreshold  int
	EarlyStopThreshold int
	CriticalFloor      int
	CriticalPercentile float64
	Budget             oracle.Budget
}

// DefaultConfig returns the standard analysis settings.
func DefaultConfig() Config {
	return Config{
		Enabled:            true,
		MaxGames:           MaxAnalysisGames,
		MaxMovesPerGame:    MaxMovesPerGame,
		MovesPerStage:      MovesPerStage,
		SkipEvalThreshold:  SkipEvalThreshold,
		EarlyStopThreshold: EarlyStopThreshold,
		CriticalFloor:      CriticalFloor,
		CriticalPercentile: CriticalPercentile,
	}
}

// EngineHandle is an engine owned by a single run.
type EngineHandle interface {
	oracle.Engine
	Close() error
}

// EngineStarter launches the engine for one run.
type EngineStarter func(ctx context.Context) (EngineHandle, error)

// StartProcess returns a starter that spawns the UCI binary at path.
func StartProcess(path string) EngineStarter {
	return func(ctx context.Context) (EngineHandle, error) {
		eng, err := engine.Start(ctx, path)
		if err != nil {
			return nil, err
		}
		return eng, nil
	}
}

// ProgressFunc is called after each game with the number of games done.
type ProgressFunc func(done, total int)

// Aggregator runs the game analyzer over a sample of games and merges the results.
type Aggregator struct {
	cfg         Config
	cloud       oracle.Evaluator
	caches      []oracle.Cache
	startEngine EngineStarter
	oracleStats func() models.OracleStats
	metrics     metrics.Collector
	poolSize    int
	positions   *EnginePool
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithCloud puts a remote evaluator in front of the engine.
func WithCloud(ev oracle.Evaluator) Option {
	return func(a *Aggregator) { a.cloud = ev }
}

// WithCache adds a cache layer. Caches added first are consulted first.
func WithCache(c oracle.Cache) Option {
	return func(a *Aggregator) { a.caches = append(a.caches, c) }
}

// WithEngineStarter sets how the per-run engine is launched.
func WithEngineStarter(s EngineStarter) Option {
	return func(a *Aggregator) { a.startEngine = s }
}

// WithOracleStats sets the source of the oracle counters copied into results.
func WithOracleStats(f func() models.OracleStats) Option {
	return func(a *Aggregator) { a.oracleStats = f }
}

// WithEnginePool keeps up to size engines alive for EvaluatePosition instead
// of starting one per call.
func WithEnginePool(size int) Option {
	return func(a *Aggregator) { a.poolSize = size }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m metrics.Collector) Option {
	return func(a *Aggregator) { a.metrics = m }
}

// NewAggregator creates an aggregator. Without an engine starter every run
// reports the engine as unavailable.
func NewAggregator(cfg Config, opts ...Option) *Aggregator {
	if cfg.MaxGames <= 0 {
		cfg.MaxGames = MaxAnalysisGames
	}
	if cfg.CriticalFloor <= 0 {
		cfg.CriticalFloor = CriticalFloor
	}
	if cfg.CriticalPercentile <= 0 {
		cfg.CriticalPercentile = CriticalPercentile
	}
	a := &Aggregator{cfg: cfg, metrics: metrics.Noop{}}
	for _, opt := range opts {
		opt(a)
	}
	a.metrics = metrics.OrNoop(a.metrics)
	if a.poolSize > 0 {
		a.positions = NewEnginePool(a.startEngine, a.poolSize)
	}
	return a
}

// Close releases pooled engines.
func (a *Aggregator) Close() {
	if a.positions != nil {
		a.positions.Close()
	}
}

// SelectGames returns the indices of the games to analyze: all of them when
// n <= maxGames, otherwise maxGames evenly spaced indices that include the
// first and the last game.
func SelectGames(n, maxGames int) []int {
	if n <= 0 {
		return nil
	}
	count := n
	if maxGames > 0 && n > maxGames {
		count = maxGames
	}
	out := make([]int, count)
	for i := range out {
		if count == n {
			out[i] = i
		} else if count == 1 {
			out[i] = n - 1
		} else {
			out[i] = i * (n - 1) / (count - 1)
		}
	}
	return out
}

func (a *Aggregator) evaluator(eng oracle.Engine) oracle.Evaluator {
	budget := a.cfg.Budget
	budget.CloudPrimary = a.cloud != nil

	var ev oracle.Evaluator = oracle.NewChain(a.cloud, oracle.NewEngineEvaluator(eng, budget, a.metrics))
	for i := len(a.caches) - 1; i >= 0; i-- {
		ev = oracle.WithCache(a.caches[i], ev)
	}
	return ev
}

// Aggregate analyzes a sample of games for player. Games that fail to parse
// are logged and skipped. A missing engine yields an empty result, not an error;
// only context cancellation is returned as an error.
func (a *Aggregator) Aggregate(ctx context.Context, games []models.GameRecord, player string, progress ProgressFunc) (*models.AggregatedAnalysis, error) {
	start := time.Now()
	log := logger.FromContext(ctx).WithPrefix("analysis").WithField("player", player)
	ctx = logger.NewContext(ctx, log)

	out := models.NewAggregatedAnalysis(len(games))
	defer func() {
		out.Duration = time.Since(start).Round(time.Millisecond).String()
		a.metrics.ObserveHistogram(metrics.AnalysisRunSeconds, time.Since(start).Seconds())
	}()

	if !a.cfg.Enabled {
		log.Info("mistake analysis disabled")
		out.WeakestStage, out.WeakestStageName, out.WeakestStageReason = NotApplicable, NotApplicable, reasonDisabled
		return out, nil
	}

	selected := SelectGames(len(games), a.cfg.MaxGames)
	if len(selected) == 0 {
		a.finalize(out)
		return out, nil
	}
	log.Info("analyzing %d of %d games", len(selected), len(games))

	if a.startEngine == nil {
		log.Warn("no engine configured, skipping mistake analysis")
		out.WeakestStage, out.WeakestStageName, out.WeakestStageReason = NotApplicable, NotApplicable, reasonNoEngine
		return out, nil
	}
	eng, err := a.startEngine(ctx)
	if err != nil {
		log.Error("engine unavailable, skipping mistake analysis: %v", err)
		out.WeakestStage, out.WeakestStageName, out.WeakestStageReason = NotApplicable, NotApplicable, reasonNoEngine
		return out, nil
	}
	defer func() {
		if err := eng.Close(); err != nil {
			log.Warn("engine close: %v", err)
		}
	}()
	out.EngineAvailable = true

	analyzer := NewGameAnalyzer(
		a.evaluator(eng),
		Sampler{MaxMoves: a.cfg.MaxMovesPerGame, PerStage: a.cfg.MovesPerStage},
		a.cfg.SkipEvalThreshold,
		a.cfg.EarlyStopThreshold,
	)

	for done, idx := range selected {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		game := games[idx]
		gameLog := log.WithFields(map[string]any{"game": idx, "game_id": pgn.GameID(game.URL)})

		res, err := a.analyzeGame(logger.NewContext(ctx, gameLog), analyzer, game, player)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			gameLog.Warn("skipping game: %v", err)
			out.FailedGames++
			a.metrics.IncCounter(metrics.AnalysisGamesFailed, 1)
		} else {
			a.merge(out, idx, game, player, res)
			out.AnalyzedGames++
			a.metrics.IncCounter(metrics.AnalysisGames, 1)
		}

		if progress != nil {
			progress(done+1, len(selected))
		}
	}

	a.finalize(out)
	log.Info("analysis finished: %d analyzed, %d failed, weakest=%s", out.AnalyzedGames, out.FailedGames, out.WeakestStage)
	return out, nil
}

func (a *Aggregator) analyzeGame(ctx context.Context, analyzer *GameAnalyzer, game models.GameRecord, player string) (res *GameResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during analysis: %v", r)
		}
	}()
	return analyzer.Analyze(ctx, game.PGN, game.ColorOf(player))
}

func (a *Aggregator) merge(out *models.AggregatedAnalysis, idx int, game models.GameRecord, player string, res *GameResult) {
	side := game.Side(game.ColorOf(player))
	result := chesscom.NormalizeResult(side.Result)
	termination := pgn.ParseHeaders(game.PGN)["Termination"]
	if termination == "" {
		termination = side.Result
	}
	critical := result == "loss" && strings.Contains(strings.ToLower(termination), "resign")

	for _, stage := range models.Stages {
		gs := res.Stages[stage]
		agg := out.Stage(stage)

		agg.TotalMoves += gs.TotalMoves
		agg.EvaluatedMoves += gs.EvaluatedMoves
		agg.Inaccuracies += gs.Inaccuracies
		agg.Mistakes += gs.Mistakes
		agg.Blunders += gs.Blunders
		agg.Quality.Merge(gs.Quality)
		agg.CPLosses = append(agg.CPLosses, gs.CPLosses...)

		if gs.WorstMistake == nil {
			continue
		}
		rec := *gs.WorstMistake
		rec.GameIndex = idx
		rec.GameURL = game.URL

		if agg.WorstMistake == nil || rec.CPLoss > agg.WorstMistake.CPLoss {
			worst := rec
			agg.WorstMistake = &worst
		}
		if critical && (agg.CriticalMistake == nil || rec.CPLoss > agg.CriticalMistake.CPLoss) {
			agg.CriticalMistake = &models.CriticalMistakeRecord{
				MistakeRecord: rec,
				Result:        result,
				Termination:   termination,
				Opening:       res.Opening,
				Link:          deepLink(game.URL, rec.Ply),
			}
		}
	}
}

func deepLink(url string, ply int) string {
	if url == "" {
		return ""
	}
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%smove=%d", url, sep, ply)
}

func (a *Aggregator) finalize(out *models.AggregatedAnalysis) {
	for _, stage := range models.Stages {
		s := out.Stage(stage)
		if len(s.CPLosses) > 0 {
			sum := 0
			for _, l := range s.CPLosses {
				sum += l
			}
			s.AvgCPLoss = math.Round(float64(sum)/float64(len(s.CPLosses))*10) / 10
		}

		if s.CriticalMistake == nil {
			continue
		}
		threshold := math.Max(percentile(s.CPLosses, a.cfg.CriticalPercentile), float64(a.cfg.CriticalFloor))
		s.CriticalThreshold = int(math.Round(threshold))
		if float64(s.CriticalMistake.CPLoss) < threshold {
			s.CriticalMistake = nil
		}
	}

	if out.TotalGames > 0 {
		out.SamplePercentage = math.Round(float64(out.AnalyzedGames)/float64(out.TotalGames)*1000) / 10
	}

	out.WeakestStage, out.WeakestStageName, out.WeakestStageReason = weakestStage(out)

	if a.oracleStats != nil {
		out.Oracle = a.oracleStats()
	}
}

// weakestStage picks the stage with the highest share of inaccurate moves.
// Ties go to the earlier stage.
func weakestStage(out *models.AggregatedAnalysis) (string, string, string) {
	var (
		worst    models.Stage
		bestRate float64
	)
	for _, stage := range models.Stages {
		s := out.Stage(stage)
		if s.TotalMoves == 0 {
			continue
		}
		rate := float64(s.TotalErrors()) / float64(s.TotalMoves)
		if rate > bestRate {
			worst, bestRate = stage, rate
		}
	}
	if bestRate == 0 {
		return NotApplicable, NotApplicable, reasonNoMistakes
	}
	return string(worst), worst.DisplayName(), fmt.Sprintf("Highest mistake rate: %.1f%%", bestRate*100)
}

// percentile returns the p-th percentile of values using linear interpolation
// between closest ranks.
func percentile(values []int, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]int, len(values))
	copy(sorted, values)
	sort.Ints(sorted)

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return float64(sorted[lo])
	}
	frac := rank - float64(lo)
	return float64(sorted[lo]) + frac*float64(sorted[hi]-sorted[lo])
}
