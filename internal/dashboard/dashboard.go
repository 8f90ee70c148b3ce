// Package dashboard serves a minimal live-progress page over a
// WebSocket, adapted from the same broadcast-channel-plus-client-set
// shape used for proxy health pages (spec §6 ENABLE_DASHBOARD, §4.J
// "progress").
package dashboard

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/komyaka/xraycheck/internal/xlog"
)

// Progress is one snapshot broadcast to connected dashboard clients.
type Progress struct {
	Total     int `json:"total"`
	Checked   int `json:"checked"`
	Alive     int `json:"alive"`
	Dead      int `json:"dead"`
	InFlight  int `json:"inFlight"`
	Cancelled bool `json:"cancelled"`
}

type payload struct {
	Kind string `json:"kind"`
	Body any    `json:"body"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// Server owns the set of connected clients and the broadcast channel
// feeding them (mirrors the teacher's clients-map-plus-broadcast
// pattern, scoped to one server instance instead of package globals so
// tests can spin up independent dashboards).
type Server struct {
	mu        sync.Mutex
	clients   map[*websocket.Conn]bool
	broadcast chan []byte
}

// New creates a dashboard ready to Serve.
func New() *Server {
	return &Server{
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan []byte, 64),
	}
}

// Serve starts the HTTP listener on port and blocks. Callers run it in
// its own goroutine (ENABLE_DASHBOARD gates whether it's started).
func (s *Server) Serve(port int) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.serveIndex)
	mux.HandleFunc("/ws", s.handleWS)

	go s.pump()

	xlog.Printf("dashboard: listening on :%d", port)
	return http.ListenAndServe(":"+strconv.Itoa(port), mux)
}

// Publish broadcasts a progress snapshot to every connected client.
func (s *Server) Publish(p Progress) {
	b, err := json.Marshal(payload{Kind: "progress", Body: p})
	if err != nil {
		return
	}
	select {
	case s.broadcast <- b:
	default:
		// A full channel means no client is draining fast enough;
		// drop the snapshot rather than block a worker.
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		xlog.Printf("dashboard: upgrade failed: %v", err)
		return
	}
	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()
}

func (s *Server) pump() {
	for msg := range s.broadcast {
		s.mu.Lock()
		for c := range s.clients {
			if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.Close()
				delete(s.clients, c)
			}
		}
		s.mu.Unlock()
	}
}

const indexHTML = `<!doctype html>
<html><head><title>xraycheck</title></head>
<body>
<pre id="out">connecting...</pre>
<script>
const ws = new WebSocket("ws://" + location.host + "/ws");
ws.onmessage = (ev) => {
  const msg = JSON.parse(ev.data);
  document.getElementById("out").textContent = JSON.stringify(msg.body, null, 2);
};
</script>
</body></html>`

func (s *Server) serveIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(indexHTML))
}
