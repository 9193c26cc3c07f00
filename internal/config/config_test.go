package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vytor/chessinsight/internal/config"
)

func TestValidate_Defaults(t *testing.T) {
	assert.NoError(t, config.Default().Validate())
}

func TestValidate_EmptyAddr(t *testing.T) {
	cfg := config.Default()
	cfg.Addr = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ADDR cannot be empty")
}

func TestValidate_StockfishDepth(t *testing.T) {
	tests := []struct {
		name  string
		depth int
		valid bool
	}{
		{"negative depth", -1, false},
		{"depth too low", 0, false},
		{"minimum depth", 1, true},
		{"maximum depth", 30, true},
		{"depth too high", 31, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.StockfishDepth = tt.depth

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), "STOCKFISH_DEPTH")
		})
	}
}

func TestValidate_LogLevel(t *testing.T) {
	for _, level := range []string{"DEBUG", "info", "Warn", "WARNING", "ERROR"} {
		cfg := config.Default()
		cfg.LogLevel = level
		assert.NoError(t, cfg.Validate(), level)
	}

	for _, level := range []string{"", "TRACE", "verbose"} {
		cfg := config.Default()
		cfg.LogLevel = level
		err := cfg.Validate()
		require.Error(t, err, level)
		assert.Contains(t, err.Error(), "LOG_LEVEL")
	}
}

func TestValidate_StockfishPath(t *testing.T) {
	cfg := config.Default()
	cfg.StockfishPath = filepath.Join(t.TempDir(), "missing-stockfish")

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STOCKFISH_PATH")

	cfg.StockfishPath = ""
	assert.NoError(t, cfg.Validate(), "empty path falls back to the default binary")

	cfg.StockfishPath = "nonexistent-stockfish-binary-12345"
	assert.NoError(t, cfg.Validate(), "bare names are resolved when the engine starts")
}

func TestValidate_CloudEval(t *testing.T) {
	cfg := config.Default()
	cfg.CloudEvalURL = "not a url"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CLOUD_EVAL_URL")

	cfg.CloudEvalEnabled = false
	assert.NoError(t, cfg.Validate(), "url is ignored when the cloud cache is disabled")
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := config.Config{LogLevel: "nope", StockfishDepth: 0}

	err := cfg.Validate()
	require.Error(t, err)

	errStr := err.Error()
	for _, key := range []string{
		"ADDR cannot be empty",
		"LOG_LEVEL",
		"STOCKFISH_DEPTH",
		"MAX_ANALYSIS_GAMES",
		"MAX_MOVES_PER_GAME",
		"MOVES_PER_STAGE",
		"ANALYSIS_WORKER_COUNT",
		"ANALYSIS_QUEUE_SIZE",
		"TASK_TTL_SECONDS",
		"MAX_CONCURRENT_ARCHIVE",
	} {
		assert.Contains(t, errStr, key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(config.FileEnv, "")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, config.Default().MaxAnalysisGames, cfg.MaxAnalysisGames)
	assert.Equal(t, config.Default().CloudEvalURL, cfg.CloudEvalURL)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv(config.FileEnv, "")
	t.Setenv("ADDR", ":9090")
	t.Setenv("STOCKFISH_NODES", "50000")
	t.Setenv("MISTAKE_ANALYSIS_ENABLED", "false")
	t.Setenv("CLOUD_EVAL_RATE_PER_SEC", "2.5")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 50000, cfg.StockfishNodes)
	assert.False(t, cfg.MistakeAnalysisEnabled)
	assert.Equal(t, 2.5, cfg.CloudEvalRatePerSec)
	assert.Equal(t, config.Default().StockfishDepth, cfg.StockfishDepth, "unset keys keep defaults")
}

func TestLoad_FileThenEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chessinsight.yaml")
	yaml := "addr: \":7070\"\nmax_analysis_games: 5\ncloud_eval_enabled: false\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv(config.FileEnv, path)
	t.Setenv("MAX_ANALYSIS_GAMES", "7")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Addr)
	assert.False(t, cfg.CloudEvalEnabled)
	assert.Equal(t, 7, cfg.MaxAnalysisGames, "environment overrides the file")
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv(config.FileEnv, filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := config.Load()
	assert.Error(t, err)
}

func TestConfig_Analysis(t *testing.T) {
	cfg := config.Default()
	cfg.MaxAnalysisGames = 4
	cfg.StockfishMoveTimeMS = 250
	cfg.StockfishFallbackMoveTimeMS = 50

	ac := cfg.Analysis()
	assert.True(t, ac.Enabled)
	assert.Equal(t, 4, ac.MaxGames)
	assert.Equal(t, cfg.StockfishDepth, ac.Budget.Depth)
	assert.Equal(t, 250*time.Millisecond, ac.Budget.MoveTime)
	assert.Equal(t, 50*time.Millisecond, ac.Budget.FallbackMoveTime)
	assert.True(t, ac.Budget.CloudPrimary)

	cloud := cfg.Cloud()
	assert.Equal(t, cfg.CloudEvalURL, cloud.BaseURL)
	assert.Equal(t, 2*time.Second, cloud.Timeout)
	assert.Equal(t, time.Hour, cfg.TaskTTL())
}

func TestValidate_NegativeCounts(t *testing.T) {
	cfg := config.Default()
	cfg.EvalCacheMaxAgeHours = -1
	cfg.PositionEngines = -2
	cfg.EvalMemoSize = -3

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EVAL_CACHE_MAX_AGE_HOURS cannot be negative (got -1)")
	assert.Contains(t, err.Error(), "POSITION_ENGINES cannot be negative (got -2)")
	assert.Contains(t, err.Error(), "EVAL_MEMO_SIZE cannot be negative (got -3)")
}

func TestConfig_EvalCacheMaxAge(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, 720*time.Hour, cfg.EvalCacheMaxAge())

	cfg.EvalCacheMaxAgeHours = 0
	assert.Zero(t, cfg.EvalCacheMaxAge())
}
