package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fakeEngineScript = `#!/bin/sh
while read line; do
  case "$line" in
    uci) echo "id name fake"; echo "uciok";;
    isready) echo "readyok";;
    "go nodes"*) echo "info depth 5 score cp 12 nodes 20000"; echo "bestmove d2d4";;
    go*) echo "info depth 1 score cp 10 nodes 100"; echo "info depth 2 score cp 35 nodes 400"; echo "bestmove e2e4";;
    quit) exit 0;;
  esac
done
`

func writeFakeEngine(t *testing.T, script string) string {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
	path := filepath.Join(t.TempDir(), "fake-engine")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestLimit_GoCommand(t *testing.T) {
	tests := []struct {
		name     string
		limit    Limit
		expected string
	}{
		{"nodes win over everything", Limit{Nodes: 50000, MoveTime: time.Second, Depth: 10}, "go nodes 50000"},
		{"depth and time", Limit{Depth: 10, MoveTime: 500 * time.Millisecond}, "go depth 10 movetime 500"},
		{"time only", Limit{MoveTime: 100 * time.Millisecond}, "go movetime 100"},
		{"depth only", Limit{Depth: 12}, "go depth 12"},
		{"zero limit", Limit{}, "go depth 18"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.limit.goCommand())
		})
	}
}

func TestLimit_Deadline(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond+deadlineSlack, Limit{MoveTime: 100 * time.Millisecond}.deadline())
	assert.Equal(t, defaultDeadline, Limit{Nodes: 1000, MoveTime: time.Second}.deadline())
	assert.Equal(t, defaultDeadline, Limit{Depth: 10}.deadline())
}

func TestParseInfo(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		ok    bool
		cp    int
		mate  *int
		depth int
		nodes int64
	}{
		{"centipawn score", "info depth 12 seldepth 18 score cp -45 nodes 123456 pv e7e5", true, -45, nil, 12, 123456},
		{"mate for side to move", "info depth 20 score mate 3 nodes 10", true, 9970, intPtr(3), 20, 10},
		{"mated side to move", "info depth 20 score mate -2 nodes 10", true, -9980, intPtr(-2), 20, 10},
		{"no score", "info depth 5 currmove e2e4", false, 0, nil, 5, 0},
		{"malformed score", "info score cp abc", false, 0, nil, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseInfo(tt.line)
			assert.Equal(t, tt.ok, ok)
			if !tt.ok {
				return
			}
			assert.Equal(t, tt.cp, got.CP)
			assert.Equal(t, tt.mate, got.Mate)
			assert.Equal(t, tt.depth, got.Depth)
			assert.Equal(t, tt.nodes, got.Nodes)
		})
	}
}

func TestMateToCP(t *testing.T) {
	assert.Equal(t, 9990, MateToCP(1))
	assert.Equal(t, -9990, MateToCP(-1))
	assert.Equal(t, -MateScore, MateToCP(0))
}

func TestStart_MissingBinary(t *testing.T) {
	_, err := Start(context.Background(), filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Error(t, err)
}

func TestEngine_EvaluateAndClose(t *testing.T) {
	path := writeFakeEngine(t, fakeEngineScript)
	ctx := context.Background()

	eng, err := Start(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, path, eng.Path())

	res, err := eng.Evaluate(ctx, "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1", Limit{MoveTime: 100 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, 35, res.CP, "last reported info line wins")
	assert.Equal(t, "e2e4", res.BestMove)
	assert.Equal(t, 2, res.Depth)

	res, err = eng.Evaluate(ctx, "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1", Limit{Nodes: 20000})
	require.NoError(t, err)
	assert.Equal(t, 12, res.CP)
	assert.Equal(t, "d2d4", res.BestMove)

	require.NoError(t, eng.Close())
	assert.NoError(t, eng.Close(), "second close is a no-op")

	_, err = eng.Evaluate(ctx, "8/8/8/8/8/8/8/8 w - - 0 1", Limit{Depth: 1})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestEngine_TimeoutWhenNoBestMove(t *testing.T) {
	script := `#!/bin/sh
while read line; do
  case "$line" in
    uci) echo "uciok";;
    isready) echo "readyok";;
    quit) exit 0;;
  esac
done
`
	path := writeFakeEngine(t, script)
	ctx := context.Background()

	eng, err := Start(ctx, path)
	require.NoError(t, err)
	defer eng.Close()

	_, err = eng.Evaluate(ctx, "8/8/8/8/8/8/8/8 w - - 0 1", Limit{MoveTime: 10 * time.Millisecond})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestEngine_ContextCancelled(t *testing.T) {
	script := `#!/bin/sh
while read line; do
  case "$line" in
    uci) echo "uciok";;
    isready) echo "readyok";;
    stop) echo "bestmove 0000";;
    quit) exit 0;;
  esac
done
`
	path := writeFakeEngine(t, script)

	eng, err := Start(context.Background(), path)
	require.NoError(t, err)
	defer eng.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = eng.Evaluate(ctx, "8/8/8/8/8/8/8/8 w - - 0 1", Limit{Depth: 30})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEngine_UnacknowledgedStopClosesEngine(t *testing.T) {
	script := `#!/bin/sh
while read line; do
  case "$line" in
    uci) echo "uciok";;
    isready) echo "readyok";;
    "go movetime"*) sleep 2; echo "info depth 30 score cp 999"; echo "bestmove a2a3";;
    "go nodes"*) echo "info depth 5 score cp 12"; echo "bestmove d2d4";;
    quit) exit 0;;
  esac
done
`
	path := writeFakeEngine(t, script)

	eng, err := Start(context.Background(), path)
	require.NoError(t, err)
	defer eng.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = eng.Evaluate(ctx, "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1", Limit{MoveTime: time.Second})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	res, err := eng.Evaluate(context.Background(), "8/8/8/8/8/8/8/8 w - - 0 1", Limit{Nodes: 1000})
	assert.ErrorIs(t, err, ErrClosed, "stale search output must not answer a new position")
	assert.Zero(t, res.CP)
	assert.NoError(t, eng.Close())
}

func intPtr(v int) *int { return &v }
