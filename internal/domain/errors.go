package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrLockHeld      = errors.New("lock already held")

	// State errors: the operation is not valid for the duel's current status
	// or the supplied as-of time.
	ErrInvalidStatus    = errors.New("invalid duel status for operation")
	ErrTooEarly         = errors.New("deadline has not passed yet")
	ErrResolvingExpired = errors.New("resolving deadline has passed")
	ErrMarketClosed     = errors.New("duel is settled or cancelled")

	// ErrThresholdMet is returned when a threshold cancellation is attempted
	// on a duel whose pool already meets the minimum wager threshold. It is
	// deliberately distinct from ErrInvalidStatus: the caller must learn the
	// duel is startable, not that the call silently did nothing.
	ErrThresholdMet = errors.New("wager threshold already met")

	// ErrThresholdNotMet is the mirror case: a start attempted on a duel
	// whose pool never reached the threshold.
	ErrThresholdNotMet = errors.New("wager threshold not met")

	// Bounds errors.
	ErrOutOfBounds     = errors.New("value outside allowed bounds")
	ErrWagerTooSmall   = errors.New("wager below minimum per trade")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrCapExceeded     = errors.New("liquidity cap exceeded")

	// Consistency errors.
	ErrInvalidOption       = errors.New("option index out of range")
	ErrTokenMismatch       = errors.New("claim token does not belong to duel")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInsufficientEscrow  = errors.New("insufficient escrowed claims")
	ErrInvalidAccount      = errors.New("empty or zero account")
)
