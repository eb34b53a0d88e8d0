package web

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-tracker/internal/session"
)

// hub fans session stream events out to SSE listeners and websocket relay
// clients. A slow consumer is dropped rather than allowed to stall the
// broadcast; the frame loop must never block on a browser.
type hub struct {
	logger *logrus.Entry

	mu        sync.Mutex
	listeners map[chan session.StreamEvent]struct{}
	conns     map[*relayConn]struct{}
	closed    bool
}

const listenerBuffer = 16

func newHub(logger *logrus.Entry) *hub {
	return &hub{
		logger:    logger,
		listeners: make(map[chan session.StreamEvent]struct{}),
		conns:     make(map[*relayConn]struct{}),
	}
}

func (h *hub) addListener() chan session.StreamEvent {
	ch := make(chan session.StreamEvent, listenerBuffer)
	h.mu.Lock()
	h.listeners[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *hub) removeListener(ch chan session.StreamEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.listeners[ch]; ok {
		delete(h.listeners, ch)
		close(ch)
	}
}

// broadcast delivers an event to every listener and relay client.
func (h *hub) broadcast(ev session.StreamEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for ch := range h.listeners {
		select {
		case ch <- ev:
		default:
			// Listener is not keeping up; drop it.
			delete(h.listeners, ch)
			close(ch)
		}
	}
	for c := range h.conns {
		if err := c.send(ev); err != nil {
			h.logger.WithError(err).Debug("dropping relay client")
			delete(h.conns, c)
			c.conn.Close()
		}
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for ch := range h.listeners {
		delete(h.listeners, ch)
		close(ch)
	}
	for c := range h.conns {
		delete(h.conns, c)
		c.conn.Close()
	}
}

// relayConn wraps a websocket connection with a write lock.
type relayConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

const relayWriteTimeout = 5 * time.Second

// send writes the event as a JSON text message.
func (c *relayConn) send(ev session.StreamEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(relayWriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The CORS middleware already gates browser origins.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleRelay upgrades the connection and registers it with the hub. The
// relay is one-way: inbound messages are read only to detect disconnects.
func (s *Server) handleRelay(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("could not upgrade relay connection")
		return
	}

	c := &relayConn{conn: conn}
	s.hub.mu.Lock()
	if s.hub.closed {
		s.hub.mu.Unlock()
		conn.Close()
		return
	}
	s.hub.conns[c] = struct{}{}
	s.hub.mu.Unlock()

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.hub.mu.Lock()
				delete(s.hub.conns, c)
				s.hub.mu.Unlock()
				conn.Close()
				return
			}
		}
	}()
}
