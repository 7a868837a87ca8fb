package engine

import "errors"

// Validation errors are raised before any state change; an operation that
// returns one has left the ledger, session, and achievements untouched.
var (
	// ErrInvalidAmount rejects non-positive trade amounts.
	ErrInvalidAmount = errors.New("trade amount must be positive")

	// ErrInvalidSymbol rejects empty trade symbols.
	ErrInvalidSymbol = errors.New("symbol is required")

	// ErrInsufficientHoldings rejects a sell that exceeds the net position.
	ErrInsufficientHoldings = errors.New("not enough holdings to sell")

	// ErrNoActiveGame marks game operations invoked with no active session.
	// Progress updates treat it as a no-op; only explicit game queries
	// surface it.
	ErrNoActiveGame = errors.New("no active game session")
)
