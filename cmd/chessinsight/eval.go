package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/corentings/chess/v2"
	"github.com/spf13/cobra"

	"github.com/vytor/chessinsight/internal/app"
	"github.com/vytor/chessinsight/internal/oracle"
)

var evalCmd = &cobra.Command{
	Use:   "eval [FEN]",
	Short: "Evaluate a single position",
	Long: `Evaluate a position given in FEN notation through the same caches, cloud
lookup and engine the analysis uses. The score is in centipawns from the
point of view of the side to move.

Examples:
  chessinsight eval "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1"`,
	Args: cobra.ExactArgs(1),
	RunE: runEval,
}

var (
	evalJSON    bool
	evalTimeout time.Duration
)

func init() {
	evalCmd.Flags().BoolVar(&evalJSON, "json", false, "output result as JSON")
	evalCmd.Flags().DurationVar(&evalTimeout, "timeout", 10*time.Second, "give up after this long")
	rootCmd.AddCommand(evalCmd)
}

func runEval(cmd *cobra.Command, args []string) error {
	fen := args[0]
	if _, err := chess.FEN(fen); err != nil {
		return fmt.Errorf("invalid FEN: %w", err)
	}

	stack, err := app.New(cfg, nil)
	if err != nil {
		return err
	}
	defer stack.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), evalTimeout)
	defer cancel()

	start := time.Now()
	cp, err := stack.Aggregator.EvaluatePosition(ctx, fen)
	if err != nil {
		if errors.Is(err, oracle.ErrNoEvaluation) {
			return errors.New("no evaluation available for this position")
		}
		return fmt.Errorf("evaluation failed: %w", err)
	}
	elapsed := time.Since(start)

	out := cmd.OutOrStdout()
	if evalJSON {
		fmt.Fprintf(out, `{"fen":%q,"cp":%d,"elapsed_ms":%d}`+"\n", fen, cp, elapsed.Milliseconds())
		return nil
	}
	fmt.Fprintf(out, "FEN:   %s\n", fen)
	fmt.Fprintf(out, "Score: %+d cp\n", cp)
	fmt.Fprintf(out, "Time:  %s\n", elapsed.Round(time.Millisecond))
	return nil
}
