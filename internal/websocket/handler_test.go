package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"go.uber.org/mock/gomock"
	"pollroom/internal/mocks"
	"pollroom/pkg/interfaces"
	"pollroom/pkg/types"
)

type handlerFixture struct {
	registry    *Registry
	coordinator *mocks.MockCoordinator
	server      *httptest.Server
	url         string
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &handlerFixture{
		registry:    newTestRegistry(),
		coordinator: mocks.NewMockCoordinator(ctrl),
	}
	handler := NewHandler(f.registry, f.coordinator, DefaultSettings(), logs.GetLoggerFromLevel(slog.LevelError))
	f.server = httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	t.Cleanup(f.server.Close)
	f.url = "ws" + strings.TrimPrefix(f.server.URL, "http")
	return f
}

// expectDisconnect returns a channel closed once the handler reports the drop
func (f *handlerFixture) expectDisconnect(err error) <-chan struct{} {
	done := make(chan struct{})
	f.coordinator.EXPECT().
		Dispatch(gomock.Any(), gomock.Any(), types.Disconnect{}).
		DoAndReturn(func(_ context.Context, _ string, _ types.Command) (types.Reply, error) {
			close(done)
			return types.Reply{}, err
		}).
		Times(1)
	return done
}

func (f *handlerFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	client, _, err := websocket.DefaultDialer.Dial(f.url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	return client
}

type ackFrame struct {
	Event string      `json:"event"`
	Ack   *int64      `json:"ack"`
	Data  types.Reply `json:"data"`
}

func readAck(t *testing.T, client *websocket.Conn) ackFrame {
	t.Helper()
	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame ackFrame
	if err := client.ReadJSON(&frame); err != nil {
		t.Fatalf("Failed to read ack: %v", err)
	}
	if frame.Event != types.EventAck {
		t.Fatalf("Expected ack frame, got %s", frame.Event)
	}
	return frame
}

func waitFor(t *testing.T, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Condition not met in time")
}

// Functional Validation Tests
func TestHandler_DispatchesFramesAndAcks(t *testing.T) {
	f := newHandlerFixture(t)
	disconnected := f.expectDisconnect(nil)

	dispatchedID := make(chan string, 1)
	f.coordinator.EXPECT().
		Dispatch(gomock.Any(), gomock.Any(), types.RegisterParticipant{Name: "Alice"}).
		DoAndReturn(func(_ context.Context, id string, _ types.Command) (types.Reply, error) {
			dispatchedID <- id
			return types.Reply{OK: true, Participant: &types.Participant{Name: "Alice"}}, nil
		})

	client := f.dial(t)
	waitFor(t, func() bool { return f.registry.Count() == 1 })

	frame := `{"event":"register-participant","data":{"name":"Alice"},"ack":7}`
	if err := client.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	ack := readAck(t, client)
	if ack.Ack == nil || *ack.Ack != 7 {
		t.Errorf("Expected ack 7, got %v", ack.Ack)
	}
	if !ack.Data.OK || ack.Data.Participant == nil || ack.Data.Participant.Name != "Alice" {
		t.Errorf("Unexpected reply %+v", ack.Data)
	}
	connectionID := <-dispatchedID
	if _, exists := f.registry.GetConnection(connectionID); !exists {
		t.Errorf("Dispatch should carry the registered connection id, got %q", connectionID)
	}

	_ = client.Close()
	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("Disconnect was never dispatched")
	}
	waitFor(t, func() bool { return f.registry.Count() == 0 })
}

func TestHandler_UnknownEventNeverReachesCoordinator(t *testing.T) {
	f := newHandlerFixture(t)
	disconnected := f.expectDisconnect(nil)

	client := f.dial(t)
	defer client.Close()

	if err := client.WriteJSON(map[string]any{"event": "disconnect", "ack": 1}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	ack := readAck(t, client)
	if ack.Data.OK || ack.Data.Code != types.KindValidation {
		t.Errorf("Expected validation error, got %+v", ack.Data)
	}

	if err := client.WriteJSON(map[string]any{"event": "create-poll", "data": "not an object", "ack": 2}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	ack = readAck(t, client)
	if ack.Data.Code != types.KindValidation {
		t.Errorf("Expected validation error for bad payload, got %+v", ack.Data)
	}

	_ = client.Close()
	<-disconnected
}

func TestHandler_NoAckWithoutRequest(t *testing.T) {
	f := newHandlerFixture(t)
	disconnected := f.expectDisconnect(nil)

	dispatched := make(chan struct{})
	f.coordinator.EXPECT().
		Dispatch(gomock.Any(), gomock.Any(), types.ParticipantMessage{Text: "hi"}).
		DoAndReturn(func(_ context.Context, _ string, _ types.Command) (types.Reply, error) {
			close(dispatched)
			return types.OKReply(), nil
		})

	client := f.dial(t)
	defer client.Close()
	if err := client.WriteJSON(map[string]any{"event": "participant-message", "data": map[string]string{"text": "hi"}}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	<-dispatched

	_ = client.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, data, err := client.ReadMessage(); err == nil {
		t.Errorf("Expected no frame, got %s", data)
	}

	_ = client.Close()
	<-disconnected
}

func TestHandler_CoordinatorFailureIsInternal(t *testing.T) {
	f := newHandlerFixture(t)
	disconnected := f.expectDisconnect(interfaces.ErrCoordinatorStopped)
	f.coordinator.EXPECT().
		Dispatch(gomock.Any(), gomock.Any(), types.EndPoll{}).
		Return(types.Reply{}, errors.New("boom"))

	client := f.dial(t)
	defer client.Close()
	if err := client.WriteJSON(map[string]any{"event": "end-poll", "ack": 3}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	ack := readAck(t, client)
	if ack.Data.Code != types.KindInternal {
		t.Errorf("Expected internal error, got %+v", ack.Data)
	}

	_ = client.Close()
	<-disconnected
}

func TestHandler_RejectsPlainHTTP(t *testing.T) {
	f := newHandlerFixture(t)

	resp, err := http.Get(f.server.URL)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for non-upgrade request, got %d", resp.StatusCode)
	}
	if f.registry.Count() != 0 {
		t.Error("Failed upgrades must not register connections")
	}
}

func TestHandler_AckFrameShape(t *testing.T) {
	ack := int64(9)
	data, err := json.Marshal(types.Frame{Event: types.EventAck, Data: types.ErrorReply(types.ErrNameTaken), Ack: &ack})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	expected := `{"event":"ack","data":{"ok":false,"error":"name is already taken","code":"conflict"},"ack":9}`
	if string(data) != expected {
		t.Errorf("Expected %s, got %s", expected, data)
	}
}
