package embedserver

import (
	"net/http"
	"time"

	"github.com/okian/rollcall/pkg/logger"
)

// Option configures a Client.
type Option func(*Client)

// WithModel records the model name the server runs.
func WithModel(name string) Option {
	return func(c *Client) {
		if name != "" {
			c.model = name
		}
	}
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.client.Timeout = d
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

// WithMaxSide downscales images whose longest side exceeds n pixels before
// upload. Zero disables downscaling.
func WithMaxSide(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxSide = n
		}
	}
}

// WithMinScore drops faces detected with a lower score.
func WithMinScore(score float64) Option {
	return func(c *Client) {
		if score >= 0 {
			c.minScore = score
		}
	}
}

// WithLogger overrides the client logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}
