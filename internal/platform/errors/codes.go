// Package errors provides structured error handling for chirper services.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// User errors
	CodeUserIDEmpty        Code = "USER_ID_EMPTY"
	CodeUserNameEmpty      Code = "USER_NAME_EMPTY"
	CodeUserAlreadyCreated Code = "USER_ALREADY_CREATED"
	CodeUserNotCreated     Code = "USER_NOT_CREATED"

	// Chirp errors
	CodeChirpAuthorMismatch Code = "CHIRP_AUTHOR_MISMATCH"
	CodeChirpMessageEmpty   Code = "CHIRP_MESSAGE_EMPTY"
	CodeChirpUUIDEmpty      Code = "CHIRP_UUID_EMPTY"

	// Like errors
	CodeLikeLikerEmpty Code = "LIKE_LIKER_EMPTY"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeUserIDEmpty,
		CodeUserNameEmpty,
		CodeChirpAuthorMismatch,
		CodeChirpMessageEmpty,
		CodeChirpUUIDEmpty,
		CodeLikeLikerEmpty:
		return codes.InvalidArgument

	// FailedPrecondition - command invalid for current state
	case CodeUserAlreadyCreated,
		CodeUserNotCreated:
		return codes.FailedPrecondition

	// NotFound - missing records
	case CodeNotFound:
		return codes.NotFound

	default:
		return codes.Internal
	}
}
