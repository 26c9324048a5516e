package neynar

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/castlens/castlens/internal/metrics"
	"github.com/castlens/castlens/internal/profile"
)

// DefaultSearchLimit bounds the number of candidates per query.
const DefaultSearchLimit = 10

const maxResponseBytes = 1 << 20

type httpDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Config carries the user directory endpoint and credentials.
type Config struct {
	BaseURL     string
	APIKey      string
	SearchLimit int
}

// Client queries the Neynar user directory for Farcaster identities.
type Client struct {
	cfg     Config
	client  httpDoer
	logger  *slog.Logger
	metrics *metrics.Recorder
}

// New builds a client. A nil doer falls back to http.DefaultClient.
func New(cfg Config, client httpDoer, logger *slog.Logger, recorder *metrics.Recorder) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = DefaultSearchLimit
	}
	return &Client{
		cfg:     cfg,
		client:  client,
		logger:  logger.With(slog.String("component", "neynar_client")),
		metrics: recorder,
	}
}

type searchResponse struct {
	Result struct {
		Users []profile.SearchUser `json:"users"`
	} `json:"result"`
}

// Search returns candidate identities matching the query. Every failure
// mode collapses to an empty slice: the search-as-you-type UI renders
// "no matches" and "search unavailable" identically.
func (c *Client) Search(ctx context.Context, query string) []profile.SearchUser {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") +
		"/v2/farcaster/user/search?q=" + url.QueryEscape(query) +
		"&limit=" + strconv.Itoa(c.cfg.SearchLimit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		c.logger.Warn("search request build failed", slog.Any("error", err))
		return nil
	}
	req.Header.Set("api_key", c.cfg.APIKey)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.metrics.ObserveUpstream("neynar_search", metrics.UpstreamOutcomeError, time.Since(start))
		c.logger.Warn("search request failed", slog.String("query", query), slog.Any("error", err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.ObserveUpstream("neynar_search", metrics.UpstreamOutcomeError, time.Since(start))
		c.logger.Warn("search request rejected", slog.String("query", query), slog.Int("status", resp.StatusCode))
		return nil
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.metrics.ObserveUpstream("neynar_search", metrics.UpstreamOutcomeError, time.Since(start))
		c.logger.Warn("search response unreadable", slog.String("query", query), slog.Any("error", err))
		return nil
	}
	var decoded searchResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		c.metrics.ObserveUpstream("neynar_search", metrics.UpstreamOutcomeError, time.Since(start))
		c.logger.Warn("search response undecodable", slog.String("query", query), slog.Any("error", err))
		return nil
	}
	c.metrics.ObserveUpstream("neynar_search", metrics.UpstreamOutcomeOK, time.Since(start))
	return decoded.Result.Users
}
