package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Resolution errors
const (
	// ErrCodeNotRegistered indicates no registration exists for a service identity.
	ErrCodeNotRegistered ErrorCode = "NOT_REGISTERED"
	// ErrCodeCircularChain indicates a resolution re-entered itself.
	ErrCodeCircularChain ErrorCode = "CIRCULAR_CHAIN"
	// ErrCodeConstructionFailed indicates a registered constructor returned an error.
	ErrCodeConstructionFailed ErrorCode = "CONSTRUCTION_FAILED"
)

// Validation errors
const (
	// ErrCodeInvalidConfig indicates the configuration failed validation.
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// ErrCodeInternal indicates an unexpected failure.
const ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
