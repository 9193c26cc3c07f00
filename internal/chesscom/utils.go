package chesscom

import (
	"strconv"
	"strings"
	"time"

	"github.com/vytor/chessinsight/internal/models"
)

// NormalizeResult converts chess.com result strings to standardized values
func NormalizeResult(res string) string {
	res = strings.ToLower(res)
	switch res {
	case "win":
		return "win"
	case "stalemate", "agreed", "repetition", "timevsinsufficient", "insufficient", "fiftymove", "50move", "draw":
		return "draw"
	default:
		return "loss"
	}
}

// ToGameRecord converts an archive entry into the analysis input.
func ToGameRecord(mg MonthlyGame) models.GameRecord {
	return models.GameRecord{
		URL:       mg.URL,
		PGN:       mg.PGN,
		TimeClass: mg.TimeClass,
		EndTime:   mg.EndTime,
		White:     models.Participant{Username: mg.White.Username, Result: mg.White.Result, Rating: mg.White.Rating},
		Black:     models.Participant{Username: mg.Black.Username, Result: mg.Black.Result, Rating: mg.Black.Rating},
	}
}

// FilterArchivesSince keeps archives from the month of since onwards.
// Archive URLs look like: https://api.chess.com/pub/player/{username}/games/YYYY/MM
func FilterArchivesSince(archives []string, since time.Time) []string {
	if since.IsZero() {
		return archives
	}
	sinceMonth := time.Date(since.Year(), since.Month(), 1, 0, 0, 0, 0, time.UTC)

	var filtered []string
	for _, u := range archives {
		parts := strings.Split(strings.TrimSuffix(u, "/"), "/")
		if len(parts) < 2 {
			continue
		}
		year, err1 := strconv.Atoi(parts[len(parts)-2])
		month, err2 := strconv.Atoi(parts[len(parts)-1])
		if err1 != nil || err2 != nil {
			continue
		}
		if time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).Before(sinceMonth) {
			continue
		}
		filtered = append(filtered, u)
	}
	return filtered
}

// DeriveResult determines which color the user played, their opponent, and the result
func DeriveResult(username string, g models.GameRecord) (playedAs models.Color, opponent, result string) {
	playedAs = g.ColorOf(username)
	opponent = g.Side(opposite(playedAs)).Username
	result = NormalizeResult(g.Side(playedAs).Result)
	return
}

func opposite(c models.Color) models.Color {
	if c == models.White {
		return models.Black
	}
	return models.White
}
