package domain

import "errors"

var (
	// ErrCommitFailed means the local sale transaction rolled back; the
	// sale is not recorded and the POS must not print a receipt.
	ErrCommitFailed = errors.New("sale commit failed")
	// ErrDuplicateTransaction means the transaction identifier already
	// exists locally. The original record is untouched.
	ErrDuplicateTransaction = errors.New("transaction already recorded")
	ErrUnknownProduct       = errors.New("unknown product")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrInvalidTotals        = errors.New("invalid sale totals")
	ErrInvalidPayment       = errors.New("invalid payment")
	ErrInvalidQuantity      = errors.New("invalid quantity")
	// ErrReplicationFailed is only ever surfaced to operator tooling,
	// never to the cashier.
	ErrReplicationFailed = errors.New("replication failed")
	ErrPayloadCorrupt    = errors.New("outbound payload corrupt")
)
