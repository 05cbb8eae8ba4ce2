// Package live pushes chat events to connected participants over a
// websocket or a Server-Sent Events stream.
package live

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zhouzirui/penpal/backend/internal/auth"
	"github.com/zhouzirui/penpal/backend/internal/events"
	"github.com/zhouzirui/penpal/backend/pkg/utils"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 54 * time.Second
)

// Subscriber hands out per-user event streams.
type Subscriber interface {
	Subscribe(uid string) (<-chan events.Event, func())
}

// Handler serves the live event feeds.
type Handler struct {
	hub       Subscriber
	logger    *zap.Logger
	upgrader  websocket.Upgrader
	keepalive time.Duration
}

func New(hub Subscriber, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		keepalive: pingInterval,
	}
}

// RegisterRoutes registers the feeds. They must sit behind the auth
// middleware with query tokens allowed.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
	r.Get("/events", h.handleEventStream)
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	uid := auth.UserID(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("uid", uid), zap.Error(err))
		return
	}
	defer conn.Close()

	stream, cancel := h.hub.Subscribe(uid)
	defer cancel()

	h.logger.Info("websocket connected", zap.String("uid", uid))
	defer h.logger.Info("websocket closed", zap.String("uid", uid))

	ctx, stop := context.WithCancel(r.Context())
	defer stop()
	go h.readLoop(conn, stop)

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	// gorilla connections allow one concurrent writer, so events and pings
	// are both written from this loop.
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case evt, ok := <-stream:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(evt); err != nil {
				h.logger.Warn("websocket write failed", zap.String("uid", uid), zap.Error(err))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop drains client frames so pongs and close frames are processed,
// and stops the writer once the peer goes away.
func (h *Handler) readLoop(conn *websocket.Conn, stop context.CancelFunc) {
	defer stop()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Info("websocket read error", zap.Error(err))
			}
			return
		}
	}
}

func (h *Handler) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	uid := auth.UserID(r.Context())
	stream, cancel := h.hub.Subscribe(uid)
	defer cancel()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	if err := utils.SendSSEComment(w, flusher, "connected"); err != nil {
		return
	}

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-stream:
			if !ok {
				return
			}
			if err := utils.SendSSEEvent(w, flusher, string(evt.Type), evt); err != nil {
				h.logger.Info("event stream write failed", zap.String("uid", uid), zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "keepalive"); err != nil {
				return
			}
		}
	}
}
