package domain

import "errors"

// Sentinel errors surfaced by the valuation engine. Callers match these with
// errors.Is; the per-operation wrapping adds asset/ticker context.
var (
	// ErrInsufficientLots signals a SELL that requests more quantity than
	// remains in the FIFO queue. This is ledger corruption upstream; the
	// quantity in the queue never goes negative.
	ErrInsufficientLots = errors.New("insufficient lots for sell")

	// ErrNoPriceData means all price-resolution tiers were exhausted for a
	// ticker. Non-fatal: recorded as a per-asset ERROR status.
	ErrNoPriceData = errors.New("no price data found")

	// ErrInvalidPriceValue means a resolved price failed numeric validation.
	// Treated identically to ErrNoPriceData for the affected ticker.
	ErrInvalidPriceValue = errors.New("invalid price value")

	// ErrSnapshotAborted is returned when open positions exist but the total
	// market value is not positive, which signals missing or broken prices
	// rather than a genuinely empty portfolio. Logged, never user-facing.
	ErrSnapshotAborted = errors.New("snapshot aborted: non-positive market value with open positions")

	// ErrManualPriceMode rejects a manual price write on an AUTO-mode asset.
	ErrManualPriceMode = errors.New("asset is not in manual price mode")

	// ErrNotFound is returned by repositories when an entity does not exist.
	ErrNotFound = errors.New("not found")
)
