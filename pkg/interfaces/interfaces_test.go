package interfaces_test

import (
	"context"
	"testing"

	"pollroom/pkg/interfaces"
	"pollroom/pkg/types"
)

type mockConnection struct{}

func (m *mockConnection) ID() string                    { return "" }
func (m *mockConnection) Send(v any) error              { return nil }
func (m *mockConnection) SendEncoded(data []byte) error { return nil }
func (m *mockConnection) Close() error                  { return nil }
func (m *mockConnection) CloseGracefully()              {}

type mockBroadcaster struct{}

func (m *mockBroadcaster) Broadcast(event string, payload any)                          {}
func (m *mockBroadcaster) SendTo(connectionID string, event string, payload any)        {}
func (m *mockBroadcaster) BroadcastExcept(excludedID string, event string, payload any) {}
func (m *mockBroadcaster) Disconnect(connectionID string)                               {}

type mockCoordinator struct{}

func (m *mockCoordinator) Dispatch(ctx context.Context, connectionID string, cmd types.Command) (types.Reply, error) {
	return types.OKReply(), nil
}
func (m *mockCoordinator) Snapshot(ctx context.Context) (types.Snapshot, error) {
	return types.Snapshot{}, nil
}

func TestInterfaces_ArchitecturalCompliance(t *testing.T) {
	var _ interfaces.Connection = &mockConnection{}
	var _ interfaces.Broadcaster = &mockBroadcaster{}
	var _ interfaces.Coordinator = &mockCoordinator{}
}

func TestCoordinator_InterfaceContract(t *testing.T) {
	var coordinator interfaces.Coordinator = &mockCoordinator{}
	ctx := context.Background()

	reply, err := coordinator.Dispatch(ctx, "conn-1", types.EndPoll{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !reply.OK {
		t.Error("Expected ok reply from mock coordinator")
	}
	if _, err := coordinator.Snapshot(ctx); err != nil {
		t.Errorf("Unexpected snapshot error: %v", err)
	}
}
