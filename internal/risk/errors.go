package risk

import "errors"

// Error taxonomy.
// Per-position errors unprice the position only (status PARTIAL);
// per-block errors null the block (PARTIAL); market view construction
// failure, or cancellation/deadline before any block completed, is FAILED.
// ErrInternal always propagates verbatim to the host.
var (
	ErrInputValidation      = errors.New("input validation failed")
	ErrMissingMarketData    = errors.New("missing market data")
	ErrYtmNotConverged      = errors.New("ytm solver did not converge")
	ErrInsufficientHistory  = errors.New("insufficient pnl history")
	ErrStressWindowTooShort = errors.New("stress window too short")
	ErrNumericInstability   = errors.New("non-finite intermediate value")
	ErrCancelled            = errors.New("computation cancelled")
	ErrDeadlineExceeded     = errors.New("computation deadline exceeded")
	ErrInternal             = errors.New("internal engine error")
)
