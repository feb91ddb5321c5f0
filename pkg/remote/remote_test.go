package remote_test

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/vtedit/core/pkg/char"
	"github.com/vtedit/core/pkg/layer"
	"github.com/vtedit/core/pkg/remote"
)

func charOf(r rune) char.Character { return char.Unicode(r) }

func dialHub(t *testing.T, h *remote.Hub) (*websocket.Conn, func()) {
	t.Helper()
	srv := httptest.NewServer(h.Router())
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/frames"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn, func() {
		conn.Close()
		srv.Close()
	}
}

func TestFrameFromGridRoundTripsRunesAndColors(t *testing.T) {
	red := &layer.Color{R: 255}
	grid := [][]layer.Cell{
		{{Char: charOf('a'), Fg: red}, {Char: charOf('b')}},
	}
	frame := remote.FrameFromGrid(grid, 0, 1, 7)
	require.Equal(t, uint64(7), frame.Generation)
	require.Equal(t, 0, frame.CursorRow)
	require.Equal(t, 1, frame.CursorCol)
	require.Equal(t, 'a', frame.Rows[0][0].Rune)
	require.Equal(t, red, frame.Rows[0][0].Fg)
	require.Equal(t, 'b', frame.Rows[0][1].Rune)
}

func TestHubBroadcastsFrameToConnectedClient(t *testing.T) {
	h := remote.NewHub()
	defer h.Close()
	conn, cleanup := dialHub(t, h)
	defer cleanup()

	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, time.Millisecond)

	h.Broadcast(remote.FrameFromGrid([][]layer.Cell{{{Char: charOf('x')}}}, 0, 0, 1))

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame remote.Frame
	require.NoError(t, json.Unmarshal(data, &frame))
	require.Equal(t, uint64(1), frame.Generation)
	require.Equal(t, 'x', frame.Rows[0][0].Rune)
}

func TestHubCoalescesRapidBroadcastsIntoOneFrame(t *testing.T) {
	h := remote.NewHub()
	defer h.Close()
	conn, cleanup := dialHub(t, h)
	defer cleanup()

	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, time.Millisecond)

	for i := uint64(1); i <= 5; i++ {
		h.Broadcast(remote.FrameFromGrid(nil, 0, 0, i))
	}

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame remote.Frame
	require.NoError(t, json.Unmarshal(data, &frame))
	require.Equal(t, uint64(5), frame.Generation)
}

func TestHubForwardsInjectedKeyEvents(t *testing.T) {
	h := remote.NewHub()
	defer h.Close()
	conn, cleanup := dialHub(t, h)
	defer cleanup()

	msg := []byte(`{"type":"key","rune":105}`)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, msg))

	select {
	case k := <-h.Keys():
		require.Equal(t, 'i', k.Rune)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for injected key")
	}
}

func TestHealthzRespondsOK(t *testing.T) {
	h := remote.NewHub()
	defer h.Close()
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
}
