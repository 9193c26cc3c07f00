package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vytor/chessinsight/internal/config"
	"github.com/vytor/chessinsight/internal/logger"
)

var (
	// Global flags.
	configPath string
	verbose    bool

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "chessinsight",
	Short: "Find where in the game a chess player loses the most",
	Long: `chessinsight samples a player's recent games, evaluates every move with
Stockfish (backed by the Lichess cloud evaluation cache) and reports which
stage of the game costs the player the most centipawns.

Examples:
  # Analyze the last games of a chess.com player
  chessinsight analyze --username hikaru

  # Analyze a PGN export
  chessinsight analyze --pgn games.pgn --player hikaru

  # Evaluate a single position
  chessinsight eval "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1"`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configPath != "" {
			if err := os.Setenv(config.FileEnv, configPath); err != nil {
				return err
			}
		}

		loaded, err := config.Load()
		if err != nil {
			return err
		}
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = loaded

		level := logger.ParseLevel(cfg.LogLevel)
		if verbose {
			level = logger.DEBUG
		}
		logger.SetDefault(logger.New(
			logger.WithLevel(level),
			logger.WithOutput(os.Stderr),
		))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", fmt.Sprintf("YAML config file (overrides $%s)", config.FileEnv))
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
