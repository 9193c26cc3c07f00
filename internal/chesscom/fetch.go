package chesscom

import (
	"context"
	"errors"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vytor/chessinsight/internal/logger"
	"github.com/vytor/chessinsight/internal/models"
)

const defaultMaxConcurrent = 10

// ArchiveClient reads a player's monthly game archives.
type ArchiveClient interface {
	FetchArchives(ctx context.Context, username string) ([]string, error)
	FetchMonthly(ctx context.Context, archiveURL string) ([]MonthlyGame, error)
}

var _ ArchiveClient = (*Client)(nil)

// ErrNoGames is returned when none of the requested archives produced games.
var ErrNoGames = errors.New("chesscom: no games found")

// FetchOptions bounds a recent-games fetch. Zero values mean no limit,
// except MaxConcurrent which defaults to 10.
type FetchOptions struct {
	Since         time.Time
	ArchiveLimit  int
	MaxConcurrent int
	MaxGames      int
}

// FetchRecentGames downloads the player's monthly archives in parallel and
// returns their games oldest first. With MaxGames set only the most recent
// games are kept. Archives that fail to download are skipped.
func FetchRecentGames(ctx context.Context, client ArchiveClient, username string, opts FetchOptions) ([]models.GameRecord, error) {
	log := logger.FromContext(ctx).WithPrefix("chesscom").WithField("username", username)

	archives, err := client.FetchArchives(ctx, username)
	if err != nil {
		return nil, err
	}
	archives = FilterArchivesSince(archives, opts.Since)

	// ArchiveLimit of 0 means fetch all archives
	if opts.ArchiveLimit > 0 && len(archives) > opts.ArchiveLimit {
		archives = archives[len(archives)-opts.ArchiveLimit:]
		log.Debug("limiting to last %d archives", opts.ArchiveLimit)
	}
	if len(archives) == 0 {
		return nil, ErrNoGames
	}

	maxConc := opts.MaxConcurrent
	if maxConc <= 0 {
		maxConc = defaultMaxConcurrent
	}
	log.Info("fetching %d archives with %d concurrent workers", len(archives), maxConc)

	type archiveResult struct {
		games []MonthlyGame
		err   error
	}

	// Failed archives are skipped, so every job returns nil.
	results := make([]archiveResult, len(archives))
	var g errgroup.Group
	g.SetLimit(maxConc)
	for i, u := range archives {
		g.Go(func() error {
			monthly, err := client.FetchMonthly(ctx, u)
			results[i] = archiveResult{games: monthly, err: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		log.Warn("fetch cancelled: %v", err)
		return nil, err
	}

	var games []models.GameRecord
	var failed int
	for _, res := range results {
		if res.err != nil {
			failed++
			log.Error("failed to fetch monthly games: %v", res.err)
			continue
		}
		for _, mg := range res.games {
			games = append(games, ToGameRecord(mg))
		}
	}
	if len(games) == 0 {
		if failed > 0 {
			return nil, errors.New("chesscom: every archive request failed")
		}
		return nil, ErrNoGames
	}

	sort.SliceStable(games, func(i, j int) bool { return games[i].EndTime < games[j].EndTime })
	if opts.MaxGames > 0 && len(games) > opts.MaxGames {
		games = games[len(games)-opts.MaxGames:]
	}

	log.Info("fetched %d games (%d archives failed)", len(games), failed)
	return games, nil
}

// Source serves recent games for a player through a client.
type Source struct {
	Client  ArchiveClient
	Options FetchOptions
}

// RecentGames fetches the player's games played since the given day.
func (s Source) RecentGames(ctx context.Context, username string, since time.Time) ([]models.GameRecord, error) {
	opts := s.Options
	opts.Since = since
	return FetchRecentGames(ctx, s.Client, username, opts)
}
