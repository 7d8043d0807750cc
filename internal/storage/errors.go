package storage

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned by stores whose backend connection was never established
var ErrNotConnected = errors.New("report store not connected")

// PersistenceError wraps any failure of a write against the report store
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s report: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
