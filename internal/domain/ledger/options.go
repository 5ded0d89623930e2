package ledger

import (
	"time"

	"github.com/okian/rollcall/pkg/logger"
)

// Option configures a Ledger.
type Option func(*Ledger)

// WithPolicy selects the idempotency policy. Audit is the default.
func WithPolicy(p Policy) Option {
	return func(l *Ledger) {
		if p.Valid() {
			l.policy = p
		}
	}
}

// WithLocation sets the location used to derive event dates.
func WithLocation(loc *time.Location) Option {
	return func(l *Ledger) {
		if loc != nil {
			l.loc = loc
		}
	}
}

// WithIDGenerator overrides event id generation.
func WithIDGenerator(fn func() string) Option {
	return func(l *Ledger) {
		if fn != nil {
			l.newID = fn
		}
	}
}

// WithLogger overrides the ledger logger.
func WithLogger(lg logger.Logger) Option {
	return func(l *Ledger) {
		if lg != nil {
			l.logger = lg
		}
	}
}

// MarkOption tunes a single Mark call.
type MarkOption func(*markOptions)

type markOptions struct {
	source string
}

// WithSource tags the event with its origin (auto or manual).
func WithSource(source string) MarkOption {
	return func(m *markOptions) {
		if source != "" {
			m.source = source
		}
	}
}
