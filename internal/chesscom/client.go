package chesscom

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vytor/chessinsight/internal/logger"
)

// DefaultBaseURL is the chess.com public API root.
const DefaultBaseURL = "https://api.chess.com/pub"

type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another API root, such as a test server.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        logger.Default().WithPrefix("chesscom"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type archivesResp struct {
	Archives []string `json:"archives"`
}

type MonthlyGame struct {
	URL       string `json:"url"`
	PGN       string `json:"pgn"`
	TimeClass string `json:"time_class"`
	EndTime   int64  `json:"end_time"`
	White     Player `json:"white"`
	Black     Player `json:"black"`
}

type Player struct {
	Username string `json:"username"`
	Result   string `json:"result"`
	Rating   int    `json:"rating"`
}

func (c *Client) FetchArchives(ctx context.Context, username string) ([]string, error) {
	log := logger.FromContext(ctx).WithPrefix("chesscom").WithField("username", username)
	archivesURL := fmt.Sprintf("%s/player/%s/games/archives", c.baseURL, url.PathEscape(strings.ToLower(username)))

	log.Debug("fetching archives from: %s", archivesURL)
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, archivesURL, nil)
	if err != nil {
		log.Error("failed to create request: %v", err)
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("failed to fetch archives: %v", err)
		return nil, err
	}
	defer resp.Body.Close()

	log.Debug("archives response received in %v, status=%d", time.Since(start), resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.Error("archives request failed: status=%d, body=%s", resp.StatusCode, string(body))
		return nil, fmt.Errorf("archives status %d: %s", resp.StatusCode, string(body))
	}

	var out archivesResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		log.Error("failed to decode archives response: %v", err)
		return nil, err
	}

	log.Info("fetched %d archives for user %s", len(out.Archives), username)
	return out.Archives, nil
}

func (c *Client) FetchMonthly(ctx context.Context, archiveURL string) ([]MonthlyGame, error) {
	log := logger.FromContext(ctx).WithPrefix("chesscom").WithField("archive_url", archiveURL)

	log.Debug("fetching monthly games")
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, archiveURL, nil)
	if err != nil {
		log.Error("failed to create request: %v", err)
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("failed to fetch monthly games: %v", err)
		return nil, err
	}
	defer resp.Body.Close()

	log.Debug("monthly response received in %v, status=%d", time.Since(start), resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.Error("monthly request failed: status=%d, body=%s", resp.StatusCode, string(body))
		return nil, fmt.Errorf("monthly status %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Games []MonthlyGame `json:"games"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		log.Error("failed to decode monthly response: %v", err)
		return nil, err
	}

	log.Info("fetched %d games from archive", len(payload.Games))
	return payload.Games, nil
}
