package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vytor/chessinsight/internal/app"
	"github.com/vytor/chessinsight/internal/chesscom"
	"github.com/vytor/chessinsight/internal/models"
	"github.com/vytor/chessinsight/internal/pgn"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run a mistake analysis over a player's games",
	Long: `Run a mistake analysis over a sample of a player's games and report the
per-stage statistics, the weakest stage and the critical mistakes.

Games come either from a PGN file (--pgn) or from the player's chess.com
archives (--username). The analysis runs in the foreground; progress is
written to stderr.

Examples:
  chessinsight analyze --username hikaru --since 2025-01-01
  chessinsight analyze --pgn games.pgn --player hikaru --json`,
	Args: cobra.NoArgs,
	RunE: runAnalyze,
}

var (
	pgnPath     string
	username    string
	player      string
	since       string
	maxGames    int
	analyzeJSON bool
)

func init() {
	analyzeCmd.Flags().StringVar(&pgnPath, "pgn", "", "read games from a PGN file")
	analyzeCmd.Flags().StringVarP(&username, "username", "u", "", "download games from this chess.com account")
	analyzeCmd.Flags().StringVarP(&player, "player", "p", "", "player to analyze (defaults to --username)")
	analyzeCmd.Flags().StringVar(&since, "since", "", "only download games from this day on (YYYY-MM-DD)")
	analyzeCmd.Flags().IntVarP(&maxGames, "max-games", "n", 0, "number of games to sample (defaults to MAX_ANALYSIS_GAMES)")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "output result as JSON")
	analyzeCmd.MarkFlagsMutuallyExclusive("pgn", "username")
	analyzeCmd.MarkFlagsOneRequired("pgn", "username")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if player == "" {
		player = username
	}
	if player == "" {
		return errors.New("--player is required with --pgn")
	}

	runCfg := cfg
	if maxGames > 0 {
		runCfg.MaxAnalysisGames = maxGames
	}

	stack, err := app.New(runCfg, nil)
	if err != nil {
		return err
	}
	defer stack.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	var games []models.GameRecord
	if pgnPath != "" {
		games, err = loadPGNFile(pgnPath)
	} else {
		games, err = downloadGames(ctx, stack, username, since)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "loaded %d games\n", len(games))

	start := time.Now()
	result, err := stack.Aggregator.Aggregate(ctx, games, player, func(done, total int) {
		fmt.Fprintf(os.Stderr, "\ranalyzed %d/%d games", done, total)
	})
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	result.Duration = time.Since(start).Round(time.Millisecond).String()

	if analyzeJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	writeReport(cmd.OutOrStdout(), player, games, result)
	return nil
}

func loadPGNFile(path string) ([]models.GameRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	texts, err := pgn.SplitGames(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("no games found in %s", path)
	}

	games := make([]models.GameRecord, 0, len(texts))
	for _, text := range texts {
		games = append(games, pgn.RecordFromPGN(text))
	}
	return games, nil
}

func downloadGames(ctx context.Context, stack *app.App, username, since string) ([]models.GameRecord, error) {
	var from time.Time
	if since != "" {
		d, err := time.Parse(time.DateOnly, since)
		if err != nil {
			return nil, fmt.Errorf("--since must be formatted as YYYY-MM-DD: %w", err)
		}
		from = d
	}

	games, err := stack.GameSource(0).RecentGames(ctx, username, from)
	if errors.Is(err, chesscom.ErrNoGames) {
		return nil, fmt.Errorf("no games found for %s", username)
	}
	return games, err
}

// tally counts the player's wins, draws and losses.
func tally(player string, games []models.GameRecord) (wins, draws, losses int) {
	for _, g := range games {
		_, _, result := chesscom.DeriveResult(player, g)
		switch result {
		case "win":
			wins++
		case "draw":
			draws++
		default:
			losses++
		}
	}
	return
}

func writeReport(w io.Writer, player string, games []models.GameRecord, res *models.AggregatedAnalysis) {
	wins, draws, losses := tally(player, games)

	fmt.Fprintf(w, "Player:   %s\n", player)
	fmt.Fprintf(w, "Record:   %dW %dD %dL\n", wins, draws, losses)
	fmt.Fprintf(w, "Games:    %d analyzed of %d (%.1f%% sample), %d failed\n",
		res.AnalyzedGames, res.TotalGames, res.SamplePercentage, res.FailedGames)
	if res.EngineAvailable {
		fmt.Fprintln(w, "Engine:   available")
	} else {
		fmt.Fprintln(w, "Engine:   unavailable")
	}
	if res.Oracle.APICalls > 0 {
		fmt.Fprintf(w, "Cloud:    %d calls, %d hits (%.2f%%)\n", res.Oracle.APICalls, res.Oracle.Hits, res.Oracle.HitRate)
	}
	if res.Duration != "" {
		fmt.Fprintf(w, "Duration: %s\n", res.Duration)
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STAGE\tMOVES\tEVALUATED\tINACCURACIES\tMISTAKES\tBLUNDERS\tAVG LOSS")
	for _, s := range models.Stages {
		st := res.Stage(s)
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%.1f\n", s.DisplayName(),
			st.TotalMoves, st.EvaluatedMoves, st.Inaccuracies, st.Mistakes, st.Blunders, st.AvgCPLoss)
	}
	tw.Flush()
	fmt.Fprintln(w)

	if res.WeakestStage != "" {
		fmt.Fprintf(w, "Weakest stage: %s\n", res.WeakestStageName)
	}
	if res.WeakestStageReason != "" {
		fmt.Fprintf(w, "  %s\n", res.WeakestStageReason)
	}

	var critical []string
	for _, s := range models.Stages {
		cm := res.Stage(s).CriticalMistake
		if cm == nil {
			continue
		}
		line := fmt.Sprintf("  %s: move %d, %d cp (%s)", s.DisplayName(), cm.MoveNumber, cm.CPLoss, cm.Severity)
		if cm.Opening != "" {
			line += ", " + cm.Opening
		}
		if cm.Link != "" {
			line += "\n    " + cm.Link
		}
		critical = append(critical, line)
	}
	if len(critical) > 0 {
		fmt.Fprintln(w, "Critical mistakes:")
		fmt.Fprintln(w, strings.Join(critical, "\n"))
	}
}
