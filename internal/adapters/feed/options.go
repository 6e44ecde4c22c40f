package feed

import (
	"net/http"
	"strings"
	"time"

	"github.com/okian/creatorboard/pkg/logger"
)

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another API host.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithAPIKey sets the key sent on every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithChannel restricts campaign searches to one channel.
func WithChannel(id string) Option {
	return func(c *Client) { c.channel = id }
}

// WithSignerUUID sets the signer used for publishing.
func WithSignerUUID(id string) Option {
	return func(c *Client) { c.signer = id }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithLookback re-reads campaign posts this far behind the cursor so that
// engagement keeps updating.
func WithLookback(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.lookback = d
		}
	}
}

// WithPageSize sets the per-request item limit.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}
