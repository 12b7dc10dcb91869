package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/devesh1011/vyloc-backend-api/internal/domain"
	"github.com/devesh1011/vyloc-backend-api/internal/metrics"
	"github.com/devesh1011/vyloc-backend-api/internal/status"
)

const wsWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development; restrict in production
	},
}

// WebSocketHandler streams job status updates to subscribed clients.
type WebSocketHandler struct {
	manager *status.Manager
	logger  *zap.Logger
}

// NewWebSocketHandler creates a new WebSocketHandler.
func NewWebSocketHandler(manager *status.Manager, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		manager: manager,
		logger:  logger,
	}
}

// wsObserver adapts one websocket connection to the status.Observer
// interface. The manager serializes Send/Heartbeat per job, but the mutex
// keeps writes safe regardless of who calls.
type wsObserver struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (o *wsObserver) Send(evt *domain.StatusEvent) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return o.conn.WriteJSON(evt)
}

func (o *wsObserver) Heartbeat() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return o.conn.WriteMessage(websocket.PingMessage, nil)
}

// pong answers a client liveness probe. Browser clients cannot send
// protocol-level ping frames, so a text "ping" is answered with "pong".
func (o *wsObserver) pong() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return o.conn.WriteMessage(websocket.TextMessage, []byte("pong"))
}

// Stream handles GET /ws/jobs/:id (WebSocket upgrade). The client first
// receives the current snapshot, then every subsequent event. The server
// closes the connection after the terminal event.
func (h *WebSocketHandler) Stream(c *gin.Context) {
	id, ok := parseJobID(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	metrics.SubscribersActive.Inc()
	defer metrics.SubscribersActive.Dec()

	h.logger.Debug("WebSocket connection opened", zap.String("job_id", id.String()))

	obs := &wsObserver{conn: conn}
	handle, err := h.manager.Subscribe(c.Request.Context(), id, obs)
	if err != nil {
		h.logger.Error("WebSocket subscription failed", zap.Error(err), zap.String("job_id", id.String()))
		obs.Send(&domain.StatusEvent{JobID: id, Error: "subscription failed"})
		return
	}

	// Read pump: surfaces disconnects and pong frames, and answers the
	// client's text "ping" liveness probe.
	go func() {
		for {
			msgType, data, readErr := conn.ReadMessage()
			if readErr != nil {
				h.manager.Unsubscribe(handle)
				return
			}
			if msgType == websocket.TextMessage && string(data) == "ping" {
				if pongErr := obs.pong(); pongErr != nil {
					h.manager.Unsubscribe(handle)
					return
				}
			}
		}
	}()

	<-handle.Done()

	h.logger.Debug("WebSocket subscription closed", zap.String("job_id", id.String()))
	obs.mu.Lock()
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	obs.mu.Unlock()
}
