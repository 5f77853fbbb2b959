package media

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidGroup is returned before any I/O when the grouping label
	// cannot be used as a key prefix.
	ErrInvalidGroup = errors.New("invalid group label")

	// ErrMissingURL means the host accepted the write but did not report
	// where the asset lives.
	ErrMissingURL = errors.New("media host returned no URL")

	// ErrInsecureURL means the host reported a URL that is not absolute HTTPS.
	ErrInsecureURL = errors.New("media host returned a non-HTTPS URL")
)

// TransferError is the single failure kind of an upload. Err is the cause
// exactly as the filesystem or the media host reported it.
type TransferError struct {
	Op    string
	Group string
	Key   string
	Err   error
}

func (e *TransferError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("media %s (group %s): %v", e.Op, e.Group, e.Err)
	}
	return fmt.Sprintf("media %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}
