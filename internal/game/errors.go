package game

import (
	"errors"
	"fmt"
)

// ErrorCode is the enumerated failure reported to clients.
type ErrorCode string

const (
	CodeInvalidSettings        ErrorCode = "INVALID_SETTINGS"
	CodeMaxRoomLimitReached    ErrorCode = "MAX_ROOM_LIMIT_REACHED"
	CodeAlreadyCreatedRoom     ErrorCode = "ALREADY_CREATED_ROOM"
	CodeRoomNotFound           ErrorCode = "ROOM_NOT_FOUND"
	CodeRoomAlreadyJoined      ErrorCode = "ROOM_ALREADY_JOINED"
	CodeAuthenticationRequired ErrorCode = "AUTHENTICATION_REQUIRED"
	CodeBanned                 ErrorCode = "BANNED"
)

var (
	ErrClosed           = errors.New("game loop closed")
	ErrNotAuthenticated = errors.New("connection not authenticated")
	ErrNotInRoom        = errors.New("connection not in a room")
)

// CodedError is a rejection carrying a client visible code.
type CodedError struct {
	Code ErrorCode
	Err  error
}

func (e *CodedError) Error() string {
	if e.Err == nil {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *CodedError) Unwrap() error { return e.Err }

func (e *CodedError) ErrorCode() string { return string(e.Code) }

func reject(code ErrorCode) *CodedError { return &CodedError{Code: code} }

// CodeOf extracts the client visible code of err. Errors from other packages
// take part by implementing ErrorCode() string.
func CodeOf(err error) (ErrorCode, bool) {
	var coded interface{ ErrorCode() string }
	if errors.As(err, &coded) {
		return ErrorCode(coded.ErrorCode()), true
	}
	return "", false
}
