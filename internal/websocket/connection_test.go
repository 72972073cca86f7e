package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkboard/pkg/types"
)

func TestBuildEndpoint(t *testing.T) {
	tests := []struct {
		name    string
		server  string
		mode    Mode
		roomID  string
		token   string
		want    string
		wantErr error
	}{
		{
			name:   "create",
			server: "ws://localhost:8000",
			mode:   ModeCreate,
			want:   "ws://localhost:8000/ws/create",
		},
		{
			name:   "join without token",
			server: "ws://localhost:8000",
			mode:   ModeJoin,
			roomID: "AB12CD",
			want:   "ws://localhost:8000/ws/join/AB12CD",
		},
		{
			name:   "join with token",
			server: "wss://boards.example.com",
			mode:   ModeJoin,
			roomID: "AB12CD",
			token:  "tok-1",
			want:   "wss://boards.example.com/ws/join/AB12CD?token=tok-1",
		},
		{
			name:    "join without room",
			server:  "ws://localhost:8000",
			mode:    ModeJoin,
			wantErr: ErrRoomRequired,
		},
		{
			name:    "http scheme rejected",
			server:  "http://localhost:8000",
			mode:    ModeCreate,
			wantErr: ErrInvalidServerURL,
		},
		{
			name:    "garbage URL",
			server:  "://nope",
			mode:    ModeCreate,
			wantErr: ErrInvalidServerURL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildEndpoint(tt.server, tt.mode, tt.roomID, tt.token)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// testServer upgrades one connection and exposes it for scripting.
type testServer struct {
	*httptest.Server
	mu   sync.Mutex
	conn *gws.Conn
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	upgrader := gws.Upgrader{}
	ts := &testServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ts.mu.Lock()
		ts.conn = conn
		ts.mu.Unlock()
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func (ts *testServer) peer(t *testing.T) *gws.Conn {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		ts.mu.Lock()
		conn := ts.conn
		ts.mu.Unlock()
		if conn != nil {
			return conn
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("server never saw the connection")
	return nil
}

func TestDialDeliversDecodedMessages(t *testing.T) {
	ts := newTestServer(t)

	received := make(chan types.Inbound, 8)
	conn, err := Dial(ts.wsURL(), ModeCreate, "", "", time.Second, 30*time.Second,
		func(msg types.Inbound) { received <- msg }, nil)
	require.NoError(t, err)
	defer conn.Close()

	peer := ts.peer(t)
	frame := `{"type":"welcome","board_id":"AB12CD","user_id":"u1","token":"t1","nickname":"fox","role":"admin","board_state":{"board_id":"AB12CD","users":[],"strokes":[],"shapes":[],"texts":[],"layers":[],"object_count":0,"max_objects":5000,"max_users":10,"admin_online":true}}`
	require.NoError(t, peer.WriteMessage(gws.TextMessage, []byte(frame)))

	select {
	case msg := <-received:
		welcome, ok := msg.(*types.Welcome)
		require.True(t, ok)
		assert.Equal(t, "AB12CD", welcome.BoardID)
		assert.Equal(t, types.RoleAdmin, welcome.Role)
	case <-time.After(2 * time.Second):
		t.Fatal("welcome never delivered")
	}
}

func TestMalformedAndUnknownFramesAreDropped(t *testing.T) {
	ts := newTestServer(t)

	received := make(chan types.Inbound, 8)
	conn, err := Dial(ts.wsURL(), ModeCreate, "", "", time.Second, 30*time.Second,
		func(msg types.Inbound) { received <- msg }, nil)
	require.NoError(t, err)
	defer conn.Close()

	peer := ts.peer(t)
	require.NoError(t, peer.WriteMessage(gws.TextMessage, []byte(`{not json`)))
	require.NoError(t, peer.WriteMessage(gws.TextMessage, []byte(`{"type":"totally_unknown"}`)))
	require.NoError(t, peer.WriteMessage(gws.TextMessage, []byte(`{"type":"user_left","user_id":"u2"}`)))

	select {
	case msg := <-received:
		left, ok := msg.(*types.UserLeft)
		require.True(t, ok, "only the valid frame comes through")
		assert.Equal(t, "u2", left.UserID)
	case <-time.After(2 * time.Second):
		t.Fatal("valid frame never delivered")
	}
	assert.Empty(t, received)
}

func TestSendReachesServer(t *testing.T) {
	ts := newTestServer(t)

	conn, err := Dial(ts.wsURL(), ModeCreate, "", "", time.Second, 30*time.Second,
		func(types.Inbound) {}, nil)
	require.NoError(t, err)
	defer conn.Close()

	peer := ts.peer(t)
	require.NoError(t, conn.Send(types.CursorUpdateRequest{Type: types.MessageTypeCursorUpdate, X: 1, Y: 2, Tool: types.ToolPen}))

	peer.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := peer.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"cursor_update"`)
}

func TestCloseHandlerFiresExactlyOnce(t *testing.T) {
	ts := newTestServer(t)

	var mu sync.Mutex
	var closes []error
	conn, err := Dial(ts.wsURL(), ModeCreate, "", "", time.Second, 30*time.Second,
		func(types.Inbound) {},
		func(err error) {
			mu.Lock()
			closes = append(closes, err)
			mu.Unlock()
		})
	require.NoError(t, err)

	require.NoError(t, conn.Close())
	conn.Close()
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, closes, 1)
	assert.NoError(t, closes[0])
	assert.False(t, conn.IsOpen())
}

func TestSendAfterCloseFails(t *testing.T) {
	ts := newTestServer(t)

	conn, err := Dial(ts.wsURL(), ModeCreate, "", "", time.Second, 30*time.Second,
		func(types.Inbound) {}, nil)
	require.NoError(t, err)

	conn.Close()
	assert.ErrorIs(t, conn.SendRaw([]byte(`{}`)), ErrConnectionClosed)
}

func TestServerDisconnectReportsError(t *testing.T) {
	ts := newTestServer(t)

	closed := make(chan error, 1)
	conn, err := Dial(ts.wsURL(), ModeCreate, "", "", time.Second, 30*time.Second,
		func(types.Inbound) {},
		func(err error) { closed <- err })
	require.NoError(t, err)
	defer conn.Close()

	ts.peer(t).Close()

	select {
	case err := <-closed:
		assert.Error(t, err, "an unexpected drop surfaces the read error")
	case <-time.After(2 * time.Second):
		t.Fatal("close handler never fired")
	}
}
