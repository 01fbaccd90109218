package engine

import "errors"

// Error taxonomy for the simulation core. Validation failures reject the
// order and the run continues; only setup errors abort a run.
var (
	ErrNoStrategy         = errors.New("engine: no strategy set")
	ErrNoCandles          = errors.New("engine: empty candle input")
	ErrInsufficientFunds  = errors.New("engine: insufficient funds")
	ErrInsufficientShares = errors.New("engine: insufficient shares")
	ErrOrderNotActive     = errors.New("engine: order is not active")
	ErrEngineConsumed     = errors.New("engine: instance already ran, create a new one")
)
