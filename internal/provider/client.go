// Package provider is the authenticated façade over the activity provider's OAuth
// and REST APIs.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"example.com/stravasync/internal/config"
	"example.com/stravasync/internal/domain"
	"example.com/stravasync/internal/logging"
	"example.com/stravasync/internal/observability"
)

const (
	opGetActivity    = "get_activity"
	opListActivities = "list_activities"
	maxErrorBody     = 2048
)

// TokenSource yields a valid access token for an athlete.
type TokenSource interface {
	ValidToken(ctx context.Context, athleteID int64) (string, error)
}

// Option configures optional behaviour for the Client.
type Option func(*Client)

// WithLogger overrides the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logging.OrNop(logger) }
}

// WithHTTPClient replaces the HTTP client; its timeout is used as is.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// Client performs authenticated GETs against the provider REST API.
type Client struct {
	baseURL    string
	pageSize   int
	tokens     TokenSource
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient constructs a Client from the immutable provider configuration.
func NewClient(p config.ProviderConfig, tokens TokenSource, opts ...Option) *Client {
	pageSize := p.PageSize
	if pageSize <= 0 {
		pageSize = config.ProviderPageSize
	}
	c := &Client{
		baseURL:    strings.TrimRight(p.APIBaseURL, "/"),
		pageSize:   pageSize,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: p.Timeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PageSize is the fixed number of items requested per list page.
func (c *Client) PageSize() int { return c.pageSize }

// GetActivity fetches the detailed representation of one activity.
func (c *Client) GetActivity(ctx context.Context, athleteID, activityID int64) (*DetailedActivity, error) {
	var out DetailedActivity
	path := "/activities/" + strconv.FormatInt(activityID, 10)
	if err := c.get(ctx, opGetActivity, athleteID, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListActivitiesPage fetches one page (1-based) of the athlete's activities. A page
// shorter than PageSize is reported as the last one.
func (c *Client) ListActivitiesPage(ctx context.Context, athleteID int64, page int) ([]SummaryActivity, bool, error) {
	query := url.Values{}
	query.Set("per_page", strconv.Itoa(c.pageSize))
	query.Set("page", strconv.Itoa(page))

	var out []SummaryActivity
	if err := c.get(ctx, opListActivities, athleteID, "/athlete/activities", query, &out); err != nil {
		return nil, false, err
	}
	return out, len(out) < c.pageSize, nil
}

func (c *Client) get(ctx context.Context, op string, athleteID int64, path string, query url.Values, out any) error {
	token, err := c.tokens.ValidToken(ctx, athleteID)
	if err != nil {
		return err
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.RecordProviderRequest(op, 0, time.Since(start))
		c.logger.Warn("provider request failed",
			zap.String("operation", op), zap.Int64("athlete_id", athleteID), zap.Error(err))
		return &domain.ProviderError{Op: op, Body: err.Error()}
	}
	defer resp.Body.Close()
	observability.RecordProviderRequest(op, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn("provider returned non-2xx",
			zap.String("operation", op), zap.String("path", path),
			zap.Int64("athlete_id", athleteID), zap.Int("status", resp.StatusCode))
		return &domain.ProviderError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.ProviderError{Op: op, StatusCode: resp.StatusCode, Body: fmt.Sprintf("decode: %v", err)}
	}
	return nil
}
