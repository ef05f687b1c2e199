package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/MonteIPC/internal/domain/coordinator"
)

// StreamMessage is one frame sent on /stream.
type StreamMessage struct {
	Type      string                `json:"type"`
	Snapshot  *coordinator.Snapshot `json:"snapshot,omitempty"`
	Message   string                `json:"message,omitempty"`
	Timestamp int64                 `json:"timestamp"`
}

// Stream pushes a snapshot every interval until the run shuts down or the
// client goes away.
type Stream struct {
	handlers *Handlers
	interval time.Duration
	upgrader websocket.Upgrader
}

// NewStream creates the /stream handler. checkOrigin may be nil to accept any origin.
func (h *Handlers) NewStream(interval time.Duration, checkOrigin func(r *http.Request) bool) *Stream {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Stream{
		handlers: h,
		interval: interval,
		upgrader: websocket.Upgrader{CheckOrigin: checkOrigin},
	}
}

// HandleConnection upgrades the request and streams snapshots.
func (s *Stream) HandleConnection(c *gin.Context) {
	logger := s.handlers.logger
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	// the reader only exists to notice the client closing
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		snap := s.handlers.run.Snapshot()
		if err := send(conn, StreamMessage{Type: "snapshot", Snapshot: &snap, Timestamp: time.Now().Unix()}); err != nil {
			logger.Debug("WebSocket write failed", zap.Error(err))
			return
		}
		if snap.Phase == coordinator.PhaseShutdown {
			send(conn, StreamMessage{Type: "complete", Message: "run finished", Timestamp: time.Now().Unix()})
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}

		select {
		case <-ticker.C:
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}

func send(conn *websocket.Conn, msg StreamMessage) error {
	return conn.WriteJSON(msg)
}
