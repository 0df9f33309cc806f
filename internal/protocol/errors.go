package protocol

import (
	"errors"
	"fmt"
)

// ErrMalformedFrame marks a frame that failed to decode. The session read
// loop drops the frame and continues; it never tears the connection down.
var ErrMalformedFrame = errors.New("malformed frame")

// Server error codes that loops may want to branch on. The full code space
// belongs to the server; anything not listed here is still a valid
// CallError, just one without a friendlier name.
const (
	CodeOK                int32 = 0
	CodeInsufficientFunds int32 = 1000019
	CodeContainerFull     int32 = 1003002
	CodeOperationLimit    int32 = 1004007
	CodeTargetGone        int32 = 1005001
)

// CallError is a non-zero error code in a Response envelope. It is
// recoverable: the call failed, the session did not.
type CallError struct {
	Service string
	Method  string
	Code    int32
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s.%s: server code %d", e.Service, e.Method, e.Code)
}

// IsCode reports whether err is a CallError carrying the given server code.
func IsCode(err error, code int32) bool {
	var ce *CallError
	return errors.As(err, &ce) && ce.Code == code
}
