package strategy

// Kind tags the action variant.
type Kind int

const (
	// KindHold does nothing this step.
	KindHold Kind = iota
	// KindEnter opens or increases a long position.
	KindEnter
	// KindExit sells part or all of the held position.
	KindExit
)

// Action is the tagged result of one Decide call.
type Action struct {
	Kind Kind

	// Notional is the explicit quote-currency amount to spend on an
	// Enter. Zero lets the engine allocate capital per its concurrency
	// policy.
	Notional float64

	// Fraction scales the engine's allocation on an Enter when Notional
	// is zero. Zero means use the full allocation.
	Fraction float64

	// Quantity is the amount to sell on an Exit. Zero means the entire
	// position.
	Quantity float64

	// Reason is recorded in the trade journal for Exits.
	Reason string
}

// Hold returns the no-op action.
func Hold() Action { return Action{Kind: KindHold} }

// Enter opens a position with the engine's capital allocation.
func Enter() Action { return Action{Kind: KindEnter} }

// EnterNotional opens a position spending exactly the given notional.
func EnterNotional(notional float64) Action {
	return Action{Kind: KindEnter, Notional: notional}
}

// EnterFraction opens a position spending the given fraction of the
// engine's allocation.
func EnterFraction(f float64) Action {
	return Action{Kind: KindEnter, Fraction: f}
}

// Exit liquidates the entire position.
func Exit(reason string) Action {
	return Action{Kind: KindExit, Reason: reason}
}

// ExitQuantity sells a specific quantity.
func ExitQuantity(qty float64, reason string) Action {
	return Action{Kind: KindExit, Quantity: qty, Reason: reason}
}
