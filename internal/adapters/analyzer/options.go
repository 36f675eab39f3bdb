package analyzer

import (
	"net/http"
	"time"

	"github.com/okian/facepace/pkg/logger"
)

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the hard ceiling of one analysis call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient replaces the HTTP client. Its own Timeout should be zero or
// longer than the analysis timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}
