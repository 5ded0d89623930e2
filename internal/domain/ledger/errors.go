package ledger

import "errors"

// Sentinel kinds for ledger errors.
var (
	// ErrLedgerWrite means an append did not reach the store. The same mark
	// may be retried.
	ErrLedgerWrite = errors.New("ledger write failed")
	// ErrLedgerRead means events could not be read back.
	ErrLedgerRead = errors.New("ledger read failed")
	// ErrInvalidEvent rejects marks without an identity or course.
	ErrInvalidEvent = errors.New("invalid attendance event")
	// ErrInvalidPolicy rejects unknown idempotency policies.
	ErrInvalidPolicy = errors.New("invalid ledger policy")
)
