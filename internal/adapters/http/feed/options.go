package feed

import (
	"time"

	"github.com/okian/rollcall/pkg/logger"
)

// Option configures a Hub.
type Option func(*Hub)

// WithSendBuffer sets how many notices may wait for a slow client before it
// is disconnected.
func WithSendBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

// WithPingInterval sets the keepalive ping period. Clients that miss a pong
// for twice this long are dropped.
func WithPingInterval(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.pingInterval = d
		}
	}
}

// WithLogger sets a custom logger for the hub.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}
