package errors

var (
	ErrDisputeNotFound = &DomainError{
		Code:    "NOT_FOUND",
		Message: "dispute not found",
	}
	ErrDisputeTerminal = &DomainError{
		Code:    "INVALID_STATE",
		Message: "dispute is already resolved or closed",
	}
	ErrDisputeDuplicate = &DomainError{
		Code:    "DUPLICATE",
		Message: "an open dispute already exists for this rental",
	}
	ErrNotDisputeParty = &DomainError{
		Code:    "ACCESS_DENIED",
		Message: "user is not a party to this dispute",
	}
	ErrClosureAlreadyActive = &DomainError{
		Code:    "DUPLICATE",
		Message: "an active mutual closure proposal already exists",
	}
	ErrClosurePending = &DomainError{
		Code:    "INVALID_STATE",
		Message: "a mutual closure proposal is pending acceptance",
	}
)
