package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/feral-kitty/fifi/errors"
	"github.com/feral-kitty/fifi/internal/httpclient"
)

// DefaultAPIBase is the Discord REST API root.
const DefaultAPIBase = "https://discord.com/api/v10"

// Discord's global REST budget is 50 req/s per bot; stay well under it since
// announcement fan-out is bursty but small.
const (
	requestsPerSecond = 10
	requestBurst      = 5
)

// Client delivers messages through the Discord REST API.
type Client struct {
	http    *http.Client
	apiBase string
	token   string
	limiter *rate.Limiter
}

// NewClient creates a Discord delivery client authenticated as a bot.
func NewClient(token string, timeout time.Duration) *Client {
	return &Client{
		http:    httpclient.NewSaferClient(timeout).Client,
		apiBase: DefaultAPIBase,
		token:   token,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), requestBurst),
	}
}

// NewClientWithHTTP creates a client with an explicit transport and API base.
// Tests point this at a local server.
func NewClientWithHTTP(httpClient *http.Client, apiBase, token string) *Client {
	return &Client{
		http:    httpClient,
		apiBase: apiBase,
		token:   token,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), requestBurst),
	}
}

// Deliver posts one rendered message to one channel. A non-2xx response is
// returned as an error; the caller owns retries and timeouts.
func (c *Client) Deliver(ctx context.Context, channelID int64, msg *Message) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "rate limiter")
	}

	body, err := json.Marshal(msg.toWire())
	if err != nil {
		return errors.Wrap(err, "encode message")
	}

	url := fmt.Sprintf("%s/channels/%d/messages", c.apiBase, channelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bot "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "post to channel %d", channelID)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusForbidden:
		return errors.Wrapf(errors.ErrForbidden, "channel %d", channelID)
	case resp.StatusCode == http.StatusNotFound:
		return errors.Wrapf(errors.ErrNotFound, "channel %d", channelID)
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Newf("channel %d: discord returned %d: %s", channelID, resp.StatusCode, snippet)
	}
}
