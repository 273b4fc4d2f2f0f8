package interfaces

import "errors"

// Common interface errors used across components
var (
	ErrCoordinatorStopped = errors.New("session coordinator is not running")
)
