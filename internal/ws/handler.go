package ws

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/freezeguard/internal/guard/events"
	"github.com/GriffinCanCode/freezeguard/internal/infrastructure/monitoring"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	bufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // devtools pages connect from any local origin
	},
}

// Message is one frame sent to a client.
type Message struct {
	Type      string        `json:"type"`
	Event     *events.Event `json:"event,omitempty"`
	Message   string        `json:"message,omitempty"`
	Timestamp int64         `json:"timestamp"`
}

// Handler streams guard events to WebSocket clients.
type Handler struct {
	bus     *events.Bus
	metrics *monitoring.Metrics
	logger  *zap.Logger

	mu      sync.Mutex
	clients int
}

// NewHandler creates a new WebSocket handler. metrics may be nil.
func NewHandler(bus *events.Bus, metrics *monitoring.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{bus: bus, metrics: metrics, logger: logger}
}

// Clients returns the number of connected clients.
func (h *Handler) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clients
}

// HandleConnection upgrades the request and streams events until the
// client goes away. The optional kinds query parameter is a comma
// separated filter, e.g. ?kinds=soft_recovery,hard_recovery.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ch := make(chan events.Event, bufferSize)
	subID, err := h.bus.SubscribeChan(ch, parseKinds(c.Query("kinds"))...)
	if err != nil {
		h.sendError(conn, err.Error())
		return
	}
	defer h.bus.Unsubscribe(subID)

	h.track(1)
	defer h.track(-1)

	h.send(conn, Message{Type: "system", Message: "connected to freezeguard"})

	done := make(chan struct{})
	go h.readLoop(conn, done)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev := <-ch:
			if err := h.send(conn, Message{Type: "event", Event: &ev}); err != nil {
				h.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}

// readLoop drains client frames so pongs and close frames are processed.
func (h *Handler) readLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg struct {
			Type string `json:"type"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if h.metrics != nil {
			h.metrics.RecordWSMessage("in", msg.Type)
		}
		if msg.Type == "ping" {
			// WriteControl may run alongside the writer loop
			_ = conn.WriteControl(websocket.PongMessage, []byte("pong"), time.Now().Add(writeWait))
		}
	}
}

func (h *Handler) track(delta int) {
	h.mu.Lock()
	h.clients += delta
	h.mu.Unlock()

	if h.metrics == nil {
		return
	}
	if delta > 0 {
		h.metrics.IncWSConnections()
	} else {
		h.metrics.DecWSConnections()
	}
}

func (h *Handler) send(conn *websocket.Conn, msg Message) error {
	msg.Timestamp = time.Now().Unix()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		return err
	}
	if h.metrics != nil {
		h.metrics.RecordWSMessage("out", msg.Type)
	}
	return nil
}

func (h *Handler) sendError(conn *websocket.Conn, message string) {
	_ = h.send(conn, Message{Type: "error", Message: message})
}

func parseKinds(raw string) []events.Kind {
	if raw == "" {
		return nil
	}
	var kinds []events.Kind
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			kinds = append(kinds, events.Kind(k))
		}
	}
	return kinds
}
