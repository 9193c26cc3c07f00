package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vytor/chessinsight/internal/logger"
)

const (
	// MateScore is the centipawn value of an immediate forced mate.
	MateScore = 10000

	defaultPath      = "stockfish"
	handshakeTimeout = 2 * time.Second
	defaultDeadline  = 8 * time.Second
	deadlineSlack    = 2 * time.Second
	quitGrace        = 2 * time.Second
	stopResyncWait   = time.Second
)

var (
	// ErrClosed is returned when querying an engine after Close.
	ErrClosed = errors.New("engine: closed")
	// ErrTimeout is returned when the engine does not answer within its deadline.
	ErrTimeout = errors.New("engine: timeout")
	// ErrNoScore is returned when the engine finished without reporting a score.
	ErrNoScore = errors.New("engine: no score reported")
)

// Limit bounds the effort of one query. Nodes takes precedence over time and depth.
type Limit struct {
	Nodes    int
	MoveTime time.Duration
	Depth    int
}

func (l Limit) goCommand() string {
	switch {
	case l.Nodes > 0:
		return fmt.Sprintf("go nodes %d", l.Nodes)
	case l.Depth > 0 && l.MoveTime > 0:
		return fmt.Sprintf("go depth %d movetime %d", l.Depth, l.MoveTime.Milliseconds())
	case l.MoveTime > 0:
		return fmt.Sprintf("go movetime %d", l.MoveTime.Milliseconds())
	case l.Depth > 0:
		return fmt.Sprintf("go depth %d", l.Depth)
	default:
		return "go depth 18"
	}
}

func (l Limit) deadline() time.Duration {
	if l.Nodes == 0 && l.MoveTime > 0 {
		return l.MoveTime + deadlineSlack
	}
	return defaultDeadline
}

// Result is the outcome of one query. CP is relative to the side to move.
type Result struct {
	BestMove string
	CP       int
	Mate     *int
	Depth    int
	Nodes    int64
}

// Engine owns one external UCI process.
type Engine struct {
	path string
	log  *logger.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	lines  chan string
	done   chan struct{}
	quit   chan struct{}
	closed bool
}

// Start launches the engine binary and completes the UCI handshake.
func Start(ctx context.Context, path string) (*Engine, error) {
	log := logger.FromContext(ctx).WithPrefix("engine")

	if path == "" {
		path = defaultPath
	}

	log.Info("starting engine: %s", path)
	cmd := exec.Command(path)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		log.Error("failed to create stdin pipe: %v", err)
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		log.Error("failed to create stdout pipe: %v", err)
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		log.Error("failed to start engine: %v", err)
		return nil, fmt.Errorf("start %s: %w", path, err)
	}

	e := &Engine{
		path:  path,
		log:   log,
		cmd:   cmd,
		stdin: stdin,
		lines: make(chan string, 64),
		done:  make(chan struct{}),
		quit:  make(chan struct{}),
	}
	go e.readLoop(stdout)

	log.Debug("initializing UCI protocol")
	if err := e.handshake(ctx); err != nil {
		log.Error("failed to initialize UCI: %v", err)
		_ = e.Close()
		return nil, err
	}

	log.Info("engine ready")
	return e, nil
}

func (e *Engine) readLoop(r io.Reader) {
	defer close(e.done)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		select {
		case e.lines <- strings.TrimSpace(scanner.Text()):
		case <-e.quit:
			return
		}
	}
}

func (e *Engine) handshake(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.sendLocked("uci"); err != nil {
		return err
	}
	if err := e.waitForLocked(ctx, "uciok", handshakeTimeout); err != nil {
		return err
	}
	if err := e.sendLocked("isready"); err != nil {
		return err
	}
	return e.waitForLocked(ctx, "readyok", handshakeTimeout)
}

// Path returns the binary the engine was started from.
func (e *Engine) Path() string {
	return e.path
}

// Evaluate searches fen within limit and returns the final reported score.
func (e *Engine) Evaluate(ctx context.Context, fen string, limit Limit) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return Result{}, ErrClosed
	}

	start := time.Now()
	goCmd := limit.goCommand()
	log := e.log.WithField("limit", goCmd)

	if err := e.sendLocked("position fen " + fen); err != nil {
		log.Error("failed to set position: %v", err)
		return Result{}, err
	}
	if err := e.sendLocked(goCmd); err != nil {
		log.Error("failed to start analysis: %v", err)
		return Result{}, err
	}

	var res Result
	var scored bool
	timer := time.NewTimer(limit.deadline())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Warn("evaluation cancelled: %v", ctx.Err())
			e.stopLocked()
			return Result{}, ctx.Err()
		case <-timer.C:
			log.Error("evaluation timed out after %v", limit.deadline())
			e.stopLocked()
			return Result{}, ErrTimeout
		case <-e.done:
			e.killLocked()
			return Result{}, fmt.Errorf("engine exited during search: %w", ErrClosed)
		case line := <-e.lines:
			if strings.HasPrefix(line, "info") {
				if info, ok := parseInfo(line); ok {
					res.CP = info.CP
					res.Mate = info.Mate
					if info.Depth > 0 {
						res.Depth = info.Depth
					}
					if info.Nodes > 0 {
						res.Nodes = info.Nodes
					}
					scored = true
				}
				continue
			}
			if strings.HasPrefix(line, "bestmove") {
				if parts := strings.Fields(line); len(parts) >= 2 {
					res.BestMove = parts[1]
				}
				if !scored {
					return Result{}, ErrNoScore
				}
				log.Debug("evaluation completed in %v: cp=%d, bestmove=%s", time.Since(start), res.CP, res.BestMove)
				return res, nil
			}
		}
	}
}

// stopLocked interrupts a running search and drains output up to its bestmove.
// An engine that does not acknowledge the stop is killed so its late output
// is never read as the answer to a later query.
func (e *Engine) stopLocked() {
	if err := e.sendLocked("stop"); err != nil {
		e.killLocked()
		return
	}
	timer := time.NewTimer(stopResyncWait)
	defer timer.Stop()
	for {
		select {
		case line := <-e.lines:
			if strings.HasPrefix(line, "bestmove") {
				return
			}
		case <-e.done:
			e.killLocked()
			return
		case <-timer.C:
			e.log.Warn("engine did not acknowledge stop, killing")
			e.killLocked()
			return
		}
	}
}

// killLocked terminates the process and marks the engine closed.
func (e *Engine) killLocked() {
	if e.closed {
		return
	}
	e.closed = true
	_ = e.stdin.Close()
	_ = e.cmd.Process.Kill()
	close(e.quit)
	go func() {
		if err := e.cmd.Wait(); err != nil {
			e.log.Debug("killed engine exited: %v", err)
		}
	}()
}

// Close asks the engine to quit and reaps the process, killing it if needed.
// It is safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	e.log.Debug("closing engine")
	_ = e.sendLocked("quit")
	_ = e.stdin.Close()

	waitErr := make(chan error, 1)
	go func() { waitErr <- e.cmd.Wait() }()

	var err error
	select {
	case err = <-waitErr:
	case <-time.After(quitGrace):
		e.log.Warn("engine did not exit after quit, killing")
		_ = e.cmd.Process.Kill()
		err = <-waitErr
	}
	close(e.quit)

	if err != nil {
		e.log.Debug("engine process exited: %v", err)
	} else {
		e.log.Debug("engine process exited cleanly")
	}
	return err
}

func (e *Engine) sendLocked(cmd string) error {
	_, err := e.stdin.Write([]byte(cmd + "\n"))
	return err
}

func (e *Engine) waitForLocked(ctx context.Context, marker string, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			e.log.Error("timeout waiting for %s", marker)
			return fmt.Errorf("waiting for %s: %w", marker, ErrTimeout)
		case <-e.done:
			return fmt.Errorf("engine exited waiting for %s: %w", marker, ErrClosed)
		case line := <-e.lines:
			if strings.Contains(line, marker) {
				return nil
			}
		}
	}
}

type info struct {
	CP    int
	Mate  *int
	Depth int
	Nodes int64
}

// parseInfo extracts the score from a UCI info line. Mate in n is mapped to
// MateScore-10*|n|, negated when the side to move is being mated.
func parseInfo(line string) (info, bool) {
	var out info
	var ok bool
	parts := strings.Fields(line)
	for i := 0; i < len(parts); i++ {
		switch parts[i] {
		case "depth":
			if i+1 < len(parts) {
				out.Depth, _ = strconv.Atoi(parts[i+1])
			}
		case "nodes":
			if i+1 < len(parts) {
				out.Nodes, _ = strconv.ParseInt(parts[i+1], 10, 64)
			}
		case "score":
			if i+2 >= len(parts) {
				continue
			}
			v, err := strconv.Atoi(parts[i+2])
			if err != nil {
				continue
			}
			switch parts[i+1] {
			case "cp":
				out.CP = v
				out.Mate = nil
				ok = true
			case "mate":
				mate := v
				out.Mate = &mate
				out.CP = MateToCP(v)
				ok = true
			}
		}
	}
	return out, ok
}

// MateToCP converts a mate distance to a centipawn value from the mating side's view.
func MateToCP(mate int) int {
	switch {
	case mate > 0:
		return MateScore - mate*10
	case mate < 0:
		return -MateScore - mate*10
	default:
		// mate 0: side to move is already mated
		return -MateScore
	}
}
