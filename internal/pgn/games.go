package pgn

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/vytor/chessinsight/internal/models"
)

// SplitGames splits a multi-game PGN stream into one string per game.
// A header line that follows movetext starts a new game.
func SplitGames(r io.Reader) ([]string, error) {
	var games []string

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	var gameText strings.Builder
	var hasMoves bool

	flush := func() {
		if hasMoves {
			games = append(games, strings.TrimSpace(gameText.String())+"\n")
		}
		gameText.Reset()
		hasMoves = false
	}

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "[") {
			if hasMoves {
				flush()
			}
		} else if trimmed != "" {
			hasMoves = true
		}
		gameText.WriteString(line)
		gameText.WriteString("\n")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading PGN: %w", err)
	}
	flush()

	return games, nil
}

// RecordFromPGN builds a game record from PGN headers alone. Participant
// results use chess.com vocabulary so they normalise the same way as
// downloaded games.
func RecordFromPGN(text string) models.GameRecord {
	h := ParseHeaders(text)

	rec := models.GameRecord{
		URL:       h["Link"],
		PGN:       text,
		TimeClass: h["TimeControl"],
		White:     models.Participant{Username: h["White"]},
		Black:     models.Participant{Username: h["Black"]},
	}
	if rec.URL == "" && strings.HasPrefix(h["Site"], "http") {
		rec.URL = h["Site"]
	}
	rec.White.Rating = h.Int("WhiteElo")
	rec.Black.Rating = h.Int("BlackElo")

	loss := lossReason(h["Termination"])
	switch h["Result"] {
	case "1-0":
		rec.White.Result, rec.Black.Result = "win", loss
	case "0-1":
		rec.White.Result, rec.Black.Result = loss, "win"
	case "1/2-1/2":
		rec.White.Result, rec.Black.Result = "draw", "draw"
	}
	return rec
}

func lossReason(termination string) string {
	t := strings.ToLower(termination)
	switch {
	case strings.Contains(t, "resign"):
		return "resigned"
	case strings.Contains(t, "checkmate"):
		return "checkmated"
	case strings.Contains(t, "time"):
		return "timeout"
	case strings.Contains(t, "abandon"):
		return "abandoned"
	default:
		return "lose"
	}
}
