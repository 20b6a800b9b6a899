package queryscope

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// liveHub tracks active live-explain WebSocket sessions.
type liveHub struct {
	mu       sync.RWMutex
	sessions map[uint64]*websocket.Conn
	nextID   uint64
}

func newLiveHub() *liveHub {
	return &liveHub{
		sessions: make(map[uint64]*websocket.Conn),
	}
}

func (h *liveHub) add(conn *websocket.Conn) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	h.sessions[id] = conn
	return id
}

func (h *liveHub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, id)
}

func (h *liveHub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// liveRequest is one client message: the query text as typed so far.
type liveRequest struct {
	Query string `json:"query"`
}

// liveResponse echoes the parse outcome and, when parsing succeeded, the
// per-node explanations for the current input.
type liveResponse struct {
	Result       ParseResult       `json:"result"`
	Explanations []NodeExplanation `json:"explanations,omitempty"`
}

// handleLive upgrades the connection and re-parses the query on every
// message, so an editor can stream keystrokes and render explanations as
// the user types. The session ends when the client disconnects.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	id := s.live.add(conn)
	defer func() {
		s.live.remove(id)
		conn.Close()
	}()

	for {
		var req liveRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}

		res := ParseQuery(req.Query)
		resp := liveResponse{Result: res}
		if res.Success {
			resp.Explanations = ExplainTree(res.AST)
		}

		if err := conn.WriteJSON(resp); err != nil {
			return
		}
	}
}

// LiveSessions reports the number of connected live-explain sessions.
func (s *Server) LiveSessions() int {
	return s.live.count()
}
