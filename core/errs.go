package core

import "errors"

var (
	// ErrPositionExists is returned when entering while a position is open.
	ErrPositionExists = errors.New("position already exists")
	// ErrNoPosition is returned when exiting without an open position.
	ErrNoPosition = errors.New("no position to exit")
	// ErrInvalidQuantity is returned for orders with non-positive quantity.
	ErrInvalidQuantity = errors.New("invalid quantity")
)

// ConfigError reports an invalid configuration value. It is raised at
// construction time and never recovered internally.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid config: " + e.Field + ": " + e.Reason
}

// NewConfigError creates a ConfigError for the given field.
func NewConfigError(field, reason string) *ConfigError {
	return &ConfigError{Field: field, Reason: reason}
}

// StateError reports an illegal lifecycle call, wrapping one of the sentinel
// errors above so callers can test with errors.Is.
type StateError struct {
	Op  string
	Err error
}

func (e *StateError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *StateError) Unwrap() error {
	return e.Err
}

// DataError reports a malformed bar. Whether the run skips the bar or aborts
// is caller policy, not decided here.
type DataError struct {
	Reason string
}

func (e *DataError) Error() string {
	return "bad bar: " + e.Reason
}

// NewDataError creates a DataError with the given reason.
func NewDataError(reason string) *DataError {
	return &DataError{Reason: reason}
}
