package hub

import (
	"errors"
	"fmt"

	"pollroom/pkg/interfaces"
)

// Hub lifecycle errors
var (
	ErrHubAlreadyRunning = errors.New("hub is already running")
	ErrHubNotRunning     = fmt.Errorf("hub is not running: %w", interfaces.ErrCoordinatorStopped)
)
