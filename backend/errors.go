package backend

import "errors"

// RejectedError means the backend was reachable and refused the request with a
// structured message. The message is safe to surface to the user verbatim.
// Every other error from this package is connectivity-class: the caller should
// fall back to a generic message.
type RejectedError struct {
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	return e.Message
}

// AsRejected unwraps err into a *RejectedError if it carries one.
func AsRejected(err error) (*RejectedError, bool) {
	rejected := &RejectedError{}
	if errors.As(err, &rejected) {
		return rejected, true
	}
	return nil, false
}
