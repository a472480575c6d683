package ledger

import "errors"

var (
	// ErrTokenNotFound indicates a lookup against an unregistered token id
	// or ticker.
	ErrTokenNotFound = errors.New("ledger: token not found")

	// ErrInsufficientBalance indicates a debit would drive a balance (net
	// of withdrawal holds) below zero. The atomic unit commits nothing.
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")

	// ErrDuplicateTicker indicates a registration collided with an
	// existing ticker.
	ErrDuplicateTicker = errors.New("ledger: ticker already registered")

	// ErrStorageConflict covers any other constraint violation surfaced
	// from the persistence layer.
	ErrStorageConflict = errors.New("ledger: storage conflict")

	// ErrNotFound indicates the referenced transaction or withdrawal
	// request does not exist.
	ErrNotFound = errors.New("ledger: not found")

	// ErrSelfTransfer rejects transfers where sender and receiver are the
	// same holder.
	ErrSelfTransfer = errors.New("ledger: sender and receiver are the same holder")

	// ErrInvalidAmount rejects amounts that are not positive whole token
	// units. Amounts are exact integers across the entire stack.
	ErrInvalidAmount = errors.New("ledger: amount must be a positive integer")

	// ErrInvalidInput rejects operations with missing required fields.
	ErrInvalidInput = errors.New("ledger: invalid input")

	// ErrInvalidDestination rejects withdrawal destinations that are not
	// valid addresses for the target blockchain.
	ErrInvalidDestination = errors.New("ledger: invalid destination address")

	// ErrUnsupportedType rejects transaction types with no entry in the
	// effect table.
	ErrUnsupportedType = errors.New("ledger: unsupported transaction type")

	// ErrInvalidStateTransition rejects withdrawal or confirmation
	// transitions not allowed by the lifecycle.
	ErrInvalidStateTransition = errors.New("ledger: invalid state transition")
)
