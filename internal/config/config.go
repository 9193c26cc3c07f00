package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/vytor/chessinsight/internal/analysis"
	"github.com/vytor/chessinsight/internal/oracle"
)

// FileEnv names the environment variable pointing at an optional YAML config file.
const FileEnv = "CHESSINSIGHT_CONFIG"

type Config struct {
	Addr     string `koanf:"addr"`
	LogLevel string `koanf:"log_level"`

	StockfishPath               string `koanf:"stockfish_path"`
	StockfishDepth              int    `koanf:"stockfish_depth"`
	StockfishMoveTimeMS         int    `koanf:"stockfish_movetime_ms"`
	StockfishNodes              int    `koanf:"stockfish_nodes"`
	StockfishFallbackMoveTimeMS int    `koanf:"stockfish_fallback_movetime_ms"`
	MistakeAnalysisEnabled      bool   `koanf:"mistake_analysis_enabled"`

	CloudEvalEnabled    bool    `koanf:"cloud_eval_enabled"`
	CloudEvalURL        string  `koanf:"cloud_eval_url"`
	CloudEvalTimeoutMS  int     `koanf:"cloud_eval_timeout_ms"`
	CloudEvalRatePerSec float64 `koanf:"cloud_eval_rate_per_sec"`
	CloudEvalBurst      int     `koanf:"cloud_eval_burst"`

	// EvalCachePath is the SQLite DSN of the persistent evaluation cache. Empty disables it.
	EvalCachePath string `koanf:"eval_cache_path"`
	// EvalCacheMaxAgeHours prunes older stored evaluations. Zero keeps them forever.
	EvalCacheMaxAgeHours int `koanf:"eval_cache_max_age_hours"`
	EvalMemoSize         int `koanf:"eval_memo_size"`

	MaxAnalysisGames int `koanf:"max_analysis_games"`
	MaxMovesPerGame  int `koanf:"max_moves_per_game"`
	MovesPerStage    int `koanf:"moves_per_stage"`

	AnalysisWorkerCount int `koanf:"analysis_worker_count"`
	AnalysisQueueSize   int `koanf:"analysis_queue_size"`
	// PositionEngines is how many engines stay alive for single-position
	// queries. Zero starts one engine per query.
	PositionEngines int `koanf:"position_engines"`

	TaskTTLSeconds     int     `koanf:"task_ttl_seconds"`
	TaskSecondsPerItem float64 `koanf:"task_seconds_per_item"`

	ArchiveLimit         int `koanf:"archive_limit"`
	MaxConcurrentArchive int `koanf:"max_concurrent_archive"`
}

// keys lists every recognised key; environment variables are matched by
// their upper-case form (ADDR, STOCKFISH_PATH, ...).
var keys = map[string]struct{}{
	"addr": {}, "log_level": {},
	"stockfish_path": {}, "stockfish_depth": {}, "stockfish_movetime_ms": {},
	"stockfish_nodes": {}, "stockfish_fallback_movetime_ms": {}, "mistake_analysis_enabled": {},
	"cloud_eval_enabled": {}, "cloud_eval_url": {}, "cloud_eval_timeout_ms": {},
	"cloud_eval_rate_per_sec": {}, "cloud_eval_burst": {},
	"eval_cache_path": {}, "eval_cache_max_age_hours": {}, "eval_memo_size": {},
	"max_analysis_games": {}, "max_moves_per_game": {}, "moves_per_stage": {},
	"analysis_worker_count": {}, "analysis_queue_size": {}, "position_engines": {},
	"task_ttl_seconds": {}, "task_seconds_per_item": {},
	"archive_limit": {}, "max_concurrent_archive": {},
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Addr:                        ":8080",
		LogLevel:                    "INFO",
		StockfishPath:               "stockfish",
		StockfishDepth:              15,
		StockfishMoveTimeMS:         1000,
		StockfishFallbackMoveTimeMS: int(oracle.DefaultFallbackMoveTime / time.Millisecond),
		MistakeAnalysisEnabled:      true,
		CloudEvalEnabled:            true,
		CloudEvalURL:                oracle.DefaultCloudURL,
		CloudEvalTimeoutMS:          2000,
		CloudEvalRatePerSec:         5,
		CloudEvalBurst:              5,
		EvalCachePath:               "file:chessinsight.db",
		EvalCacheMaxAgeHours:        720,
		EvalMemoSize:                4096,
		MaxAnalysisGames:            analysis.MaxAnalysisGames,
		MaxMovesPerGame:             analysis.MaxMovesPerGame,
		MovesPerStage:               analysis.MovesPerStage,
		AnalysisWorkerCount:         2,
		AnalysisQueueSize:           64,
		PositionEngines:             2,
		TaskTTLSeconds:              3600,
		TaskSecondsPerItem:          2.5,
		ArchiveLimit:                0,
		MaxConcurrentArchive:        10,
	}
}

// Load reads configuration from a .env file (if present), an optional YAML
// file named by CHESSINSIGHT_CONFIG and environment variables, in that order
// of increasing precedence, on top of Default.
func Load() (Config, error) {
	// Ignore error so the app still starts when .env is absent in production.
	_ = godotenv.Load()

	k := koanf.New(".")

	if path := os.Getenv(FileEnv); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	}

	envProvider := env.Provider("", ".", func(s string) string {
		s = strings.ToLower(s)
		if _, ok := keys[s]; !ok {
			return ""
		}
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration and reports every problem at once.
func (c Config) Validate() error {
	var errs []string

	if c.Addr == "" {
		errs = append(errs, "ADDR cannot be empty")
	}
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG", "INFO", "WARN", "WARNING", "ERROR":
	default:
		errs = append(errs, fmt.Sprintf("LOG_LEVEL must be one of DEBUG, INFO, WARN, ERROR (got %q)", c.LogLevel))
	}

	// A bare binary name is resolved when the engine starts; explicit paths must exist.
	if c.StockfishPath != "" && strings.ContainsRune(c.StockfishPath, filepath.Separator) {
		if _, err := os.Stat(c.StockfishPath); err != nil {
			errs = append(errs, fmt.Sprintf("STOCKFISH_PATH %q not found", c.StockfishPath))
		}
	}
	if c.StockfishDepth < 1 || c.StockfishDepth > 30 {
		errs = append(errs, fmt.Sprintf("STOCKFISH_DEPTH must be between 1 and 30 (got %d)", c.StockfishDepth))
	}
	if c.StockfishMoveTimeMS < 0 {
		errs = append(errs, fmt.Sprintf("STOCKFISH_MOVETIME_MS cannot be negative (got %d)", c.StockfishMoveTimeMS))
	}
	if c.StockfishNodes < 0 {
		errs = append(errs, fmt.Sprintf("STOCKFISH_NODES cannot be negative (got %d)", c.StockfishNodes))
	}
	if c.StockfishFallbackMoveTimeMS < 0 {
		errs = append(errs, fmt.Sprintf("STOCKFISH_FALLBACK_MOVETIME_MS cannot be negative (got %d)", c.StockfishFallbackMoveTimeMS))
	}

	if c.CloudEvalEnabled {
		if u, err := url.Parse(c.CloudEvalURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Sprintf("CLOUD_EVAL_URL must be an absolute URL (got %q)", c.CloudEvalURL))
		}
		if c.CloudEvalTimeoutMS < 1 {
			errs = append(errs, fmt.Sprintf("CLOUD_EVAL_TIMEOUT_MS must be at least 1 (got %d)", c.CloudEvalTimeoutMS))
		}
	}
	if c.CloudEvalRatePerSec < 0 {
		errs = append(errs, fmt.Sprintf("CLOUD_EVAL_RATE_PER_SEC cannot be negative (got %g)", c.CloudEvalRatePerSec))
	}
	if c.CloudEvalBurst < 0 {
		errs = append(errs, fmt.Sprintf("CLOUD_EVAL_BURST cannot be negative (got %d)", c.CloudEvalBurst))
	}
	if c.EvalCacheMaxAgeHours < 0 {
		errs = append(errs, fmt.Sprintf("EVAL_CACHE_MAX_AGE_HOURS cannot be negative (got %d)", c.EvalCacheMaxAgeHours))
	}
	if c.EvalMemoSize < 0 {
		errs = append(errs, fmt.Sprintf("EVAL_MEMO_SIZE cannot be negative (got %d)", c.EvalMemoSize))
	}

	if c.MaxAnalysisGames < 1 {
		errs = append(errs, fmt.Sprintf("MAX_ANALYSIS_GAMES must be at least 1 (got %d)", c.MaxAnalysisGames))
	}
	if c.MaxMovesPerGame < 1 {
		errs = append(errs, fmt.Sprintf("MAX_MOVES_PER_GAME must be at least 1 (got %d)", c.MaxMovesPerGame))
	}
	if c.MovesPerStage < 1 {
		errs = append(errs, fmt.Sprintf("MOVES_PER_STAGE must be at least 1 (got %d)", c.MovesPerStage))
	}
	if c.AnalysisWorkerCount < 1 {
		errs = append(errs, fmt.Sprintf("ANALYSIS_WORKER_COUNT must be at least 1 (got %d)", c.AnalysisWorkerCount))
	}
	if c.AnalysisQueueSize < 1 {
		errs = append(errs, fmt.Sprintf("ANALYSIS_QUEUE_SIZE must be at least 1 (got %d)", c.AnalysisQueueSize))
	}
	if c.PositionEngines < 0 {
		errs = append(errs, fmt.Sprintf("POSITION_ENGINES cannot be negative (got %d)", c.PositionEngines))
	}
	if c.TaskTTLSeconds < 1 {
		errs = append(errs, fmt.Sprintf("TASK_TTL_SECONDS must be at least 1 (got %d)", c.TaskTTLSeconds))
	}
	if c.TaskSecondsPerItem < 0 {
		errs = append(errs, fmt.Sprintf("TASK_SECONDS_PER_ITEM cannot be negative (got %g)", c.TaskSecondsPerItem))
	}
	if c.ArchiveLimit < 0 {
		errs = append(errs, fmt.Sprintf("ARCHIVE_LIMIT cannot be negative (got %d)", c.ArchiveLimit))
	}
	if c.MaxConcurrentArchive < 1 {
		errs = append(errs, fmt.Sprintf("MAX_CONCURRENT_ARCHIVE must be at least 1 (got %d)", c.MaxConcurrentArchive))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Budget returns the engine effort settings.
func (c Config) Budget() oracle.Budget {
	return oracle.Budget{
		Nodes:            c.StockfishNodes,
		Depth:            c.StockfishDepth,
		MoveTime:         time.Duration(c.StockfishMoveTimeMS) * time.Millisecond,
		FallbackMoveTime: time.Duration(c.StockfishFallbackMoveTimeMS) * time.Millisecond,
		CloudPrimary:     c.CloudEvalEnabled,
	}
}

// Analysis returns the settings for one mistake-analysis run.
func (c Config) Analysis() analysis.Config {
	cfg := analysis.DefaultConfig()
	cfg.Enabled = c.MistakeAnalysisEnabled
	cfg.MaxGames = c.MaxAnalysisGames
	cfg.MaxMovesPerGame = c.MaxMovesPerGame
	cfg.MovesPerStage = c.MovesPerStage
	cfg.Budget = c.Budget()
	return cfg
}

// Cloud returns the cloud evaluation client settings.
func (c Config) Cloud() oracle.CloudConfig {
	return oracle.CloudConfig{
		BaseURL:    c.CloudEvalURL,
		Timeout:    time.Duration(c.CloudEvalTimeoutMS) * time.Millisecond,
		RatePerSec: c.CloudEvalRatePerSec,
		Burst:      c.CloudEvalBurst,
	}
}

// EvalCacheMaxAge is the retention of stored evaluations, zero meaning forever.
func (c Config) EvalCacheMaxAge() time.Duration {
	return time.Duration(c.EvalCacheMaxAgeHours) * time.Hour
}

// TaskTTL is how long finished tasks stay queryable.
func (c Config) TaskTTL() time.Duration {
	return time.Duration(c.TaskTTLSeconds) * time.Second
}
