// Package errors provides coded errors for conditions roomsync surfaces to
// the user rather than returning to a caller.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Session errors
	CodeNotReady        Code = "NOT_READY"
	CodeRoomDeleted     Code = "ROOM_DELETED"
	CodeJoinFetchFailed Code = "JOIN_FETCH_FAILED"
	CodeAuthRejected    Code = "AUTH_REJECTED"

	// Transport errors
	CodeTransportError Code = "TRANSPORT_ERROR"
	CodeInvalidFrame   Code = "INVALID_FRAME"

	// Input errors
	CodeInvalidArgument Code = "INVALID_ARGUMENT"

	// REST errors
	CodeNotFound    Code = "NOT_FOUND"
	CodeBackendDown Code = "BACKEND_UNAVAILABLE"
)

// Fatal reports whether the code ends the room session for the user.
func (c Code) Fatal() bool {
	return c == CodeRoomDeleted
}

// Retryable reports whether the user can reasonably try the action again.
func (c Code) Retryable() bool {
	switch c {
	case CodeNotReady, CodeJoinFetchFailed, CodeBackendDown, CodeTransportError:
		return true
	default:
		return false
	}
}
