//go:generate go run go.uber.org/mock/mockgen -source=coordinator.go -destination=../../internal/mocks/mock_coordinator.go -package=mocks
package interfaces

import (
	"context"

	"pollroom/pkg/types"
)

// Coordinator applies commands to the classroom session
// FUNCTIONAL DISCOVERY: Dispatch blocks until the command has been applied,
// so commands from one connection are applied in arrival order
type Coordinator interface {
	// Dispatch applies cmd on behalf of connectionID and returns its reply.
	// Commands that have no reply return the zero Reply.
	Dispatch(ctx context.Context, connectionID string, cmd types.Command) (types.Reply, error)

	// Snapshot returns a read-only view of the session
	Snapshot(ctx context.Context) (types.Snapshot, error)
}
