package feed

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// WebsocketSource subscribes to the detection pipeline's frame stream. The
// pipeline pushes one JSON frame object per message. A broken connection is
// redialed on the next Next call.
type WebsocketSource struct {
	url          string
	readTimeout  time.Duration
	writeTimeout time.Duration
	logger       *logrus.Entry

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// NewWebsocketSource creates a source for the given ws:// URL. The
// connection is established lazily on the first Next call.
func NewWebsocketSource(url string, logger *logrus.Entry) *WebsocketSource {
	return &WebsocketSource{
		url:          url,
		readTimeout:  10 * time.Second,
		writeTimeout: 5 * time.Second,
		logger:       logger,
	}
}

func (s *WebsocketSource) connect() (*websocket.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if s.conn != nil {
		return s.conn, nil
	}

	s.logger.WithField("url", s.url).Info("connecting to frame feed")

	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second
	conn, _, err := dialer.Dial(s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("could not connect to frame feed %q: %w", s.url, err)
	}

	conn.SetPingHandler(func(appData string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(s.writeTimeout))
	})

	s.conn = conn
	return conn, nil
}

func (s *WebsocketSource) drop(conn *websocket.Conn) {
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
	conn.Close()
}

// Next reads one frame from the pipeline, dialing first when needed.
func (s *WebsocketSource) Next() (Frame, error) {
	conn, err := s.connect()
	if err != nil {
		return Frame{}, err
	}

	if err := conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
		s.drop(conn)
		return Frame{}, fmt.Errorf("could not arm read deadline: %w", err)
	}

	_, message, err := conn.ReadMessage()
	if err != nil {
		s.drop(conn)
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return Frame{}, ErrClosed
		}
		return Frame{}, fmt.Errorf("could not read frame message: %w", err)
	}

	var w wireFrame
	if err := json.Unmarshal(message, &w); err != nil {
		return Frame{}, fmt.Errorf("could not parse frame message: %w", err)
	}
	return w.decode(), nil
}

// Close tears down the connection. Subsequent Next calls return ErrClosed.
func (s *WebsocketSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.conn != nil {
		err := s.conn.Close()
		s.conn = nil
		return err
	}
	return nil
}
