package models

import "strings"

// Color is the side a player had in a game.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// Participant is one side of a finished game as reported by the game source.
// Result is the source's raw result string ("win", "resigned", "checkmated", ...).
type Participant struct {
	Username string `json:"username"`
	Result   string `json:"result"`
	Rating   int    `json:"rating,omitempty"`
}

// GameRecord is a completed game handed to the analysis pipeline.
// It is never mutated by the pipeline.
type GameRecord struct {
	URL       string      `json:"url"`
	PGN       string      `json:"pgn"`
	TimeClass string      `json:"time_class,omitempty"`
	EndTime   int64       `json:"end_time,omitempty"`
	White     Participant `json:"white"`
	Black     Participant `json:"black"`
}

// ColorOf returns the color the given username played, defaulting to black
// when the username does not match the white participant.
func (g GameRecord) ColorOf(username string) Color {
	if strings.EqualFold(g.White.Username, username) {
		return White
	}
	return Black
}

// Side returns the participant for the given color.
func (g GameRecord) Side(c Color) Participant {
	if c == White {
		return g.White
	}
	return g.Black
}
