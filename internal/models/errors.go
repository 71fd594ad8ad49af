package models

import (
	"errors"
	"fmt"
)

var (
	ErrConfigMissing     = errors.New("configuration missing")
	ErrNumberUnspecified = errors.New("issue number unspecified")
	ErrNumberOutOfRange  = errors.New("issue number out of range")
	ErrTitleUnspecified  = errors.New("issue title unspecified")
	ErrUnrecognizedState = errors.New("unrecognized issue state")
	ErrUnsupportedField  = errors.New("field not supported by provider")
)

// RemoteCallError is returned when the tracker API could not be reached or
// answered with a non-success status.
type RemoteCallError struct {
	Provider   string
	Op         string
	StatusCode int
	Err        error
}

func (e *RemoteCallError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s failed (%d): %v", e.Provider, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Provider, e.Op, e.Err)
}

func (e *RemoteCallError) Unwrap() error {
	return e.Err
}

// IsRemoteCallFailed reports whether err (or any error in its chain) is a RemoteCallError.
func IsRemoteCallFailed(err error) bool {
	var remoteErr *RemoteCallError
	return errors.As(err, &remoteErr)
}
