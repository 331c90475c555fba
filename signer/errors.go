package signer

import "errors"

var (
	// ErrAmountMismatch is returned when a segwit or taproot signing
	// request carries a spent amount that differs from the amount
	// previously committed for the input.
	ErrAmountMismatch = errors.New("spent amount does not match commitment")

	// ErrSpendPathConflict is returned when both key-path and
	// script-path material is requested for the same taproot input.
	ErrSpendPathConflict = errors.New("conflicting taproot spend paths")

	// ErrInvalidState is returned when an operation is invoked out of
	// order, for example signing before a digest has been computed or
	// mutating an input that is already signed.
	ErrInvalidState = errors.New("invalid signer state")
)
