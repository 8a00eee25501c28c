package domain

import "errors"

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// StoreError represents a failed query against the persistent store.
// Callers treat it as "the operation did not happen".
type StoreError struct {
	Op        string // Operation that failed (e.g., "active_offers", "delete_offer")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *StoreError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *StoreError) IsRetriable() bool {
	return e.Retriable
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new retriable store error
func NewStoreError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err, Retriable: true}
}

// NewFatalStoreError creates a non-retriable store error
func NewFatalStoreError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err, Retriable: false}
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

var (
	// ErrOfferNotFound is returned when an offer row does not exist (anymore).
	// Removal paths treat it as a benign no-op.
	ErrOfferNotFound = errors.New("offer not found")

	// ErrRaceLost is returned when another worker deleted the offer first.
	ErrRaceLost = errors.New("offer already settled")

	// ErrUnknownItemType is returned when an offer references an item id
	// without a definition. The offer is archived but nothing is delivered.
	ErrUnknownItemType = errors.New("unknown item type")

	// ErrInboxFull is returned when an item does not fit into a player's inbox.
	ErrInboxFull = errors.New("inbox capacity exceeded")

	// ErrAmountUnderflow is returned when an acceptance would take more than
	// the offer still holds.
	ErrAmountUnderflow = errors.New("offer amount underflow")

	// ErrPlayerNotFound is returned when an offline player cannot be loaded.
	ErrPlayerNotFound = errors.New("player not found")

	// ErrInvalidState is returned when a non-terminal state is archived.
	ErrInvalidState = errors.New("invalid offer state")
)
