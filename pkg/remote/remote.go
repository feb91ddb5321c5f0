// Package remote implements an optional debug/automation bridge: a
// websocket endpoint that streams composited editor frames out and
// accepts injected key events in, so an external harness (a test
// driver, a screen-recording tool) can watch and drive the editor
// without a real terminal. Grounded on pkg/termsocket/manager.go's
// subscriber-map-plus-debounce-timer shape and pkg/api/raw_websocket.go's
// connection handling (upgrade handshake, ping/pong keepalive,
// non-blocking safeSend, a dedicated writer goroutine per connection).
package remote

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/vtedit/core/pkg/layer"
	"github.com/vtedit/core/pkg/term"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	frameDebounce  = 16 * time.Millisecond
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Cell is one frame position, a wire-friendly mirror of layer.Cell.
type Cell struct {
	Rune rune         `json:"rune"`
	Fg   *layer.Color `json:"fg,omitempty"`
	Bg   *layer.Color `json:"bg,omitempty"`
}

// Frame is one composited screen, serialized for a remote viewer.
type Frame struct {
	Rows       [][]Cell `json:"rows"`
	CursorRow  int      `json:"cursorRow"`
	CursorCol  int      `json:"cursorCol"`
	Generation uint64   `json:"generation"`
}

// FrameFromGrid builds a Frame from a compositor's flattened grid, the
// same [][]layer.Cell shape pkg/screen.DoubleBuffer.SetCurrent consumes.
func FrameFromGrid(grid [][]layer.Cell, cursorRow, cursorCol int, generation uint64) Frame {
	rows := make([][]Cell, len(grid))
	for r, row := range grid {
		out := make([]Cell, len(row))
		for c, cell := range row {
			out[c] = Cell{Rune: cell.Char.Rune(), Fg: cell.Fg, Bg: cell.Bg}
		}
		rows[r] = out
	}
	return Frame{Rows: rows, CursorRow: cursorRow, CursorCol: cursorCol, Generation: generation}
}

// inboundMessage is the wire shape of a client→hub message.
type inboundMessage struct {
	Type string `json:"type"`
	Rune rune   `json:"rune"`
	Name string `json:"name"`
	Ctrl bool   `json:"ctrl"`
	Alt  bool   `json:"alt"`
}

// safeSend writes msg to send unless done has already fired, mirroring
// pkg/api/raw_websocket.go's safeSend guard against sending on a closed
// channel during connection teardown.
func safeSend(send chan []byte, msg []byte, done chan struct{}) bool {
	select {
	case send <- msg:
		return true
	case <-done:
		return false
	}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// Hub tracks connected remote viewers and the key events they inject.
// One Hub serves the whole editor process; every connection sees the
// same frame stream, per spec.md's single-editor-instance model.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	keys    chan term.Key

	frameMu    sync.Mutex
	lastFrame  []byte
	flushTimer *time.Timer
}

// NewHub creates an empty hub with a generously buffered key channel so
// a burst of injected keys never blocks a client's reader goroutine.
func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{}), keys: make(chan term.Key, 256)}
}

// Keys returns the channel of key events injected by remote clients;
// the editor's main loop drains this alongside real terminal input.
func (h *Hub) Keys() <-chan term.Key { return h.keys }

// Router builds the HTTP routes this hub serves: a websocket endpoint at
// /frames and a liveness probe at /healthz.
func (h *Hub) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/frames", h.ServeHTTP)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

// ServeHTTP upgrades the connection and starts its reader/writer pair.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[remote] upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 64), done: make(chan struct{})}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go h.writeLoop(c)
	h.readLoop(c)
}

func (h *Hub) readLoop(c *client) {
	defer h.removeClient(c)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[remote] read error: %v", err)
			}
			return
		}
		h.handleMessage(data)
	}
}

func (h *Hub) handleMessage(data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("[remote] malformed message: %v", err)
		return
	}
	switch msg.Type {
	case "key":
		select {
		case h.keys <- term.Key{Rune: msg.Rune, Name: msg.Name, Ctrl: msg.Ctrl, Alt: msg.Alt}:
		default:
			log.Printf("[remote] key channel full, dropping injected key")
		}
	case "ping":
		// the writer loop's ticker already keeps the connection alive;
		// nothing else to do for an application-level ping.
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (h *Hub) removeClient(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

// Broadcast pushes frame to every connected client, debounced by
// frameDebounce so a burst of renders (every keystroke) collapses into
// one wire frame, the same coalescing pkg/termsocket/manager.go's
// per-session notification timer does for buffer snapshots.
func (h *Hub) Broadcast(frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		log.Printf("[remote] frame marshal failed: %v", err)
		return
	}

	h.frameMu.Lock()
	h.lastFrame = data
	if h.flushTimer != nil {
		h.flushTimer.Stop()
	}
	h.flushTimer = time.AfterFunc(frameDebounce, h.flush)
	h.frameMu.Unlock()
}

func (h *Hub) flush() {
	h.frameMu.Lock()
	data := h.lastFrame
	h.lastFrame = nil
	h.frameMu.Unlock()
	if data == nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		safeSend(c.send, data, c.done)
	}
}

// ClientCount reports how many remote viewers are currently connected.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client, for a clean editor shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		c.close()
	}
	h.clients = make(map[*client]struct{})
}
