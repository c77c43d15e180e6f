package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// liveReloadScript is injected into the served index page. It reloads the
// page whenever the server announces a finished rebuild.
const liveReloadScript = `<script>
(function () {
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var sock = new WebSocket(proto + location.host + "/livereload");
  sock.onmessage = function () { location.reload(); };
})();
</script>
`

// ReloadHub tracks connected browsers and tells them when to reload.
type ReloadHub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewReloadHub creates a new live-reload hub.
func NewReloadHub(logger *slog.Logger) *ReloadHub {
	return &ReloadHub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger.With("component", "livereload"),
		conns:  make(map[*websocket.Conn]struct{}),
	}
}

// Handler upgrades incoming connections and keeps them registered until the
// browser goes away.
func (h *ReloadHub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn("upgrade failed", "error", err)
			return
		}

		h.mu.Lock()
		h.conns[conn] = struct{}{}
		h.mu.Unlock()

		go h.readLoop(conn)
	}
}

// readLoop discards client messages; its job is noticing the disconnect.
func (h *ReloadHub) readLoop(conn *websocket.Conn) {
	defer h.drop(conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *ReloadHub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
	conn.Close()
}

// Broadcast tells every connected browser to reload.
func (h *ReloadHub) Broadcast() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"command":"reload"}`)); err != nil {
			h.drop(conn)
		}
	}
}

func (h *ReloadHub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}
