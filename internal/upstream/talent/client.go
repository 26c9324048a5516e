package talent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/castlens/castlens/internal/metrics"
	"github.com/castlens/castlens/internal/profile"
)

// Slugs the scores endpoint reports into dedicated profile fields;
// every other slug lands in AdditionalScores.
const (
	slugBuilderScore = "builder_score"
	slugTalentScore  = "talent_score"
)

const maxResponseBytes = 1 << 20

type httpDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Config carries the reputation API endpoint and credentials.
type Config struct {
	BaseURL       string
	APIKey        string
	AccountSource string
}

// Client fetches and normalizes reputation profiles from the Talent
// Protocol API.
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
	if cfg.AccountSource == "" {
		cfg.AccountSource = "farcaster"
	}
	return &Client{
		cfg:     cfg,
		client:  client,
		logger:  logger.With(slog.String("component", "talent_client")),
		metrics: recorder,
	}
}

type profileBody struct {
	PassportID   string            `json:"passport_id"`
	ID           string            `json:"id"`
	Accounts     []profile.Account `json:"accounts"`
	XUsername    string            `json:"x_username"`
	RankPosition *int              `json:"rank_position"`
}

type scoreItem struct {
	Slug   string  `json:"slug"`
	Points float64 `json:"points"`
}

// FetchProfile issues the profile and scores lookups concurrently and
// merges them into one record. ok=false means the profile endpoint had
// no usable data; a scores failure degrades to zero scores instead of
// failing the whole fetch. The returned error marks transport-level
// failure reaching the profile endpoint.
func (c *Client) FetchProfile(ctx context.Context, fid string) (profile.Profile, bool, error) {
	var (
		body   *profileBody
		scores []scoreItem
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := c.fetchProfileBody(gctx, fid)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	g.Go(func() error {
		items, err := c.fetchScores(gctx, fid)
		if err != nil {
			c.logger.Warn("scores fetch degraded", slog.String("fid", fid), slog.Any("error", err))
			return nil
		}
		scores = items
		return nil
	})
	if err := g.Wait(); err != nil {
		return profile.Profile{}, false, fmt.Errorf("talent: profile fetch: %w", err)
	}
	if body == nil {
		return profile.Profile{}, false, nil
	}

	merged := profile.Profile{
		Accounts:         mergeAccounts(body.Accounts, body.XUsername),
		PassportID:       body.PassportID,
		UserID:           body.ID,
		AdditionalScores: map[string]float64{},
		RankPosition:     body.RankPosition,
	}
	for _, score := range scores {
		switch score.Slug {
		case slugBuilderScore:
			merged.BuilderScore = score.Points
		case slugTalentScore:
			merged.TalentScore = score.Points
		default:
			merged.AdditionalScores[score.Slug] = score.Points
		}
	}
	return merged, true, nil
}

// fetchProfileBody resolves the identity half of the record. A nil
// result with nil error means upstream answered but had nothing usable.
func (c *Client) fetchProfileBody(ctx context.Context, fid string) (*profileBody, error) {
	payload, status, err := c.get(ctx, "talent_profile", "/profile", fid)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		c.logger.Warn("profile request rejected", slog.String("fid", fid), slog.Int("status", status))
		return nil, nil
	}

	// The API has served the profile both nested and at the top level.
	var envelope struct {
		Profile json.RawMessage `json:"profile"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		c.logger.Warn("profile response undecodable", slog.String("fid", fid), slog.Any("error", err))
		return nil, nil
	}
	raw := payload
	if len(envelope.Profile) > 0 && string(envelope.Profile) != "null" {
		raw = envelope.Profile
	}
	var body profileBody
	if err := json.Unmarshal(raw, &body); err != nil {
		c.logger.Warn("profile body undecodable", slog.String("fid", fid), slog.Any("error", err))
		return nil, nil
	}
	return &body, nil
}

func (c *Client) fetchScores(ctx context.Context, fid string) ([]scoreItem, error) {
	payload, status, err := c.get(ctx, "talent_scores", "/scores", fid)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("talent: scores status %d", status)
	}
	var envelope struct {
		Scores []scoreItem `json:"scores"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("talent: scores decode: %w", err)
	}
	return envelope.Scores, nil
}

func (c *Client) get(ctx context.Context, service, path, fid string) ([]byte, int, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + path +
		"?id=" + url.QueryEscape(fid) +
		"&account_source=" + url.QueryEscape(c.cfg.AccountSource)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("talent: build request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.cfg.APIKey)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.metrics.ObserveUpstream(service, metrics.UpstreamOutcomeError, time.Since(start))
		return nil, 0, fmt.Errorf("talent: request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.metrics.ObserveUpstream(service, metrics.UpstreamOutcomeError, time.Since(start))
		return nil, 0, fmt.Errorf("talent: read body: %w", err)
	}
	outcome := metrics.UpstreamOutcomeOK
	if resp.StatusCode != http.StatusOK {
		outcome = metrics.UpstreamOutcomeError
	}
	c.metrics.ObserveUpstream(service, outcome, time.Since(start))
	return payload, resp.StatusCode, nil
}

// mergeAccounts appends a synthesized X account from the profile's
// x_username attribute unless one is already listed.
func mergeAccounts(accounts []profile.Account, xUsername string) []profile.Account {
	merged := make([]profile.Account, len(accounts))
	copy(merged, accounts)
	if xUsername == "" {
		return merged
	}
	for _, account := range merged {
		source := strings.ToLower(account.Source)
		if source == "x_twitter" || source == "twitter" {
			return merged
		}
	}
	return append(merged, profile.Account{
		Source:     "x_twitter",
		Username:   xUsername,
		Identifier: xUsername,
	})
}

var errMissingAPIKey = errors.New("talent: api key required")

// Validate confirms the client can authenticate before first use.
func (c *Client) Validate() error {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return errMissingAPIKey
	}
	return nil
}
