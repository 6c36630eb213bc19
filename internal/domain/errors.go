package domain

import "errors"

// Error kinds surfaced by the core to callers (spec.md §7). Matching-internal
// invariant violations never become one of these; they abort the operation
// with a panic recovered at the OrderManager boundary instead.
var (
	ErrInvalidOrder         = errors.New("invalid order")
	ErrSizeLimitExceeded    = errors.New("size limit exceeded")
	ErrUnsupportedCommodity = errors.New("unsupported commodity")
	ErrNotFound             = errors.New("not found")
	ErrIllegalTransition    = errors.New("illegal transition")
	ErrRejected             = errors.New("rejected")
	ErrNoLiquidity          = errors.New("no liquidity")
)
