package stats

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"explorewithme/internal/domain"
)

const tokenTTL = 5 * time.Minute

// TokenIssuer mints the bearer token presented to the stats collector.
type TokenIssuer interface {
	Issue(ttl time.Duration) (string, error)
}

// Client reports hits to the external hit-counting collector.
//
// The collector is best-effort infrastructure: when a POST fails the hit is
// pushed onto a bounded in-memory queue instead of being lost, and the
// queue is replayed in order before the next hit that finds the collector
// healthy. When the queue is full the oldest hit is dropped.
type Client struct {
	baseURL string
	client  *http.Client
	tokens  TokenIssuer
	log     *slog.Logger

	mu      sync.Mutex
	pending []domain.Hit
	maxSize int
}

// NewClient returns a stats client. A nil http.Client falls back to
// http.DefaultClient; bufferSize bounds the replay queue.
func NewClient(baseURL string, client *http.Client, tokens TokenIssuer, bufferSize int, log *slog.Logger) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &Client{
		baseURL: baseURL,
		client:  client,
		tokens:  tokens,
		log:     log,
		maxSize: bufferSize,
	}
}

var _ domain.HitRecorder = (*Client)(nil)

// RecordHit reports one hit, replaying any previously buffered hits first.
// A delivery failure buffers the hit and returns nil: recording must never
// fail the caller's request.
func (c *Client) RecordHit(ctx context.Context, hit domain.Hit) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for len(c.pending) > 0 {
		if err := c.post(ctx, c.pending[0]); err != nil {
			// Collector still down; keep the backlog and queue the
			// new hit behind it.
			c.buffer(hit)
			c.log.DebugContext(ctx, "stats collector unavailable, hit buffered",
				"queued", len(c.pending), "error", err)
			return nil
		}
		c.pending = c.pending[1:]
	}

	if err := c.post(ctx, hit); err != nil {
		c.buffer(hit)
		c.log.DebugContext(ctx, "stats collector unavailable, hit buffered",
			"queued", len(c.pending), "error", err)
	}
	return nil
}

func (c *Client) buffer(hit domain.Hit) {
	if len(c.pending) >= c.maxSize {
		c.pending = c.pending[1:]
	}
	c.pending = append(c.pending, hit)
}

func (c *Client) post(ctx context.Context, hit domain.Hit) error {
	body, err := json.Marshal(hit)
	if err != nil {
		return fmt.Errorf("marshal hit: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/hit", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if c.tokens != nil {
		token, err := c.tokens.Issue(tokenTTL)
		if err != nil {
			return fmt.Errorf("issue service token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("post hit: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("stats collector returned status: %d", resp.StatusCode)
	}
	return nil
}
