package pgn

import (
	"regexp"
	"strconv"
	"strings"
)

// Headers are the tag pairs of a single game.
type Headers map[string]string

var tagRe = regexp.MustCompile(`^\[(\w+)\s+"((?:[^"\\]|\\.)*)"\]$`)

// ParseHeaders reads the tag pairs at the top of a game. It stops at the
// first movetext line; malformed tags are skipped.
func ParseHeaders(text string) Headers {
	h := Headers{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "[") {
			break
		}
		if m := tagRe.FindStringSubmatch(line); m != nil {
			h[m[1]] = strings.ReplaceAll(m[2], `\"`, `"`)
		}
	}
	return h
}

// Int returns the tag as a number, or 0 when it is missing or not numeric.
func (h Headers) Int(tag string) int {
	n, _ := strconv.Atoi(h[tag])
	return n
}

var gameIDRe = regexp.MustCompile(`/game/[^/]+/([0-9]+)`)

// GameID extracts the numeric id from a chess.com game URL. Anything else is
// returned unchanged.
func GameID(url string) string {
	if m := gameIDRe.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	return url
}
