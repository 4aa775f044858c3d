package notes

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("note not found")
	ErrUnauthorized = errors.New("not authorized")
	ErrEmptyText    = errors.New("note text is empty")
	ErrRemoteCall   = errors.New("remote call failed")
)

// RemoteCallError wraps a transport failure or an unexpected response from
// the gateway. It matches ErrRemoteCall under errors.Is.
type RemoteCallError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *RemoteCallError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: invalid status code: %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RemoteCallError) Unwrap() error {
	return e.Err
}

func (e *RemoteCallError) Is(target error) bool {
	return target == ErrRemoteCall
}

// IsRemoteCall reports whether err is a transient gateway failure, as opposed
// to an authorization or not-found failure.
func IsRemoteCall(err error) bool {
	return errors.Is(err, ErrRemoteCall)
}
