package errors

var (
	ErrCheckNotFound = &DomainError{
		Code:    "NOT_FOUND",
		Message: "fraud check not found",
	}
	ErrVelocityExceeded = &DomainError{
		Code:    "LIMIT_EXCEEDED",
		Message: "transaction velocity limit exceeded",
	}
	ErrLimitInactive = &DomainError{
		Code:    "INVALID_STATE",
		Message: "velocity limit is not active",
	}
)
