// Package gammarecon resolves market outcomes against the Gamma markets
// REST API. It is the reconciliation collaborator the sweeper consults
// before closing an orphaned trade.
package gammarecon

import (
	"context"
	"fmt"
	"strings"
	"time"

	"polyPaperBot/internal/ports"

	"github.com/go-resty/resty/v2"
)

const defaultBaseURL = "https://gamma-api.polymarket.com"

// marketResponse is the subset of the market document we care about.
type marketResponse struct {
	ID             string   `json:"id"`
	Resolved       bool     `json:"resolved"`
	Closed         bool     `json:"closed"`
	WinningTokenID string   `json:"winning_token_id"`
	BestBid        *float64 `json:"best_bid"`
}

// Config holds the configuration for the Gamma client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
	Logger     ports.Logger
}

// Client implements ports.Reconciler over the Gamma REST API.
type Client struct {
	http   *resty.Client
	logger ports.Logger
}

// New creates a new Gamma reconciliation client.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retryCount := cfg.RetryCount
	if retryCount < 0 {
		retryCount = 0
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(retryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(4 * time.Second)

	return &Client{http: httpClient, logger: cfg.Logger}, nil
}

// Resolve fetches the market document and maps it onto a verdict. A
// resolved market yields WON or LOST depending on whether our token is
// the winner; an unresolved market yields UNRESOLVED carrying the last
// best bid when the venue published one.
func (c *Client) Resolve(ctx context.Context, marketID, tokenID string) (ports.ReconcileVerdict, error) {
	var market marketResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&market).
		Get("/markets/" + marketID)
	if err != nil {
		c.logger.Warn(ctx, "Gamma market lookup failed", map[string]interface{}{"marketID": marketID, "error": err.Error()})
		return ports.ReconcileVerdict{}, fmt.Errorf("%w: %v", ports.ErrReconcileUnavailable, err)
	}
	if resp.IsError() {
		c.logger.Warn(ctx, "Gamma market lookup returned error status", map[string]interface{}{"marketID": marketID, "status": resp.StatusCode()})
		return ports.ReconcileVerdict{}, fmt.Errorf("%w: status %d", ports.ErrReconcileUnavailable, resp.StatusCode())
	}

	if market.Resolved {
		if market.WinningTokenID == "" {
			// Resolved with no winner published yet. Treat as not yet
			// conclusive rather than guessing a side.
			return ports.ReconcileVerdict{Outcome: ports.OutcomeUnresolved, LastBid: market.BestBid}, nil
		}
		if market.WinningTokenID == tokenID {
			return ports.ReconcileVerdict{Outcome: ports.OutcomeWon}, nil
		}
		return ports.ReconcileVerdict{Outcome: ports.OutcomeLost}, nil
	}

	return ports.ReconcileVerdict{Outcome: ports.OutcomeUnresolved, LastBid: market.BestBid}, nil
}
