package broadcast

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"VisionGuard/pkg/utils"
)

// WSCaptureSource reads frames from an upstream camera feed over websocket.
// The connection is dialed lazily and re-dialed after a read failure, so a
// camera restart only costs the frames captured while it was away.
type WSCaptureSource struct {
	url    string
	dialer *websocket.Dialer
	utils  utils.IUtils

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewWSCaptureSource(url string) *WSCaptureSource {
	dialer := &websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	return &WSCaptureSource{
		url:    url,
		dialer: dialer,
		utils:  utils.New(),
	}
}

func (s *WSCaptureSource) Capture() ([]byte, error) {
	conn, err := s.connection()
	if err != nil {
		return nil, err
	}

	messageType, payload, err := conn.ReadMessage()
	if err != nil {
		s.dropConnection(conn)
		return nil, fmt.Errorf("error reading camera frame: %w", err)
	}

	if messageType == websocket.BinaryMessage {
		return payload, nil
	}

	frame, err := s.utils.DecodeFramePayload(payload)
	if err != nil {
		return nil, err
	}
	return frame, nil
}

func (s *WSCaptureSource) connection() (*websocket.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return s.conn, nil
	}

	conn, _, err := s.dialer.Dial(s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to camera feed %s: %w", s.url, err)
	}

	s.conn = conn
	return conn, nil
}

func (s *WSCaptureSource) dropConnection(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == conn {
		s.conn = nil
	}
	conn.Close()
}

func (s *WSCaptureSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
