// Package ws streams metrics and status updates to dashboard clients over
// WebSocket.
//
// Protocol: every frame is a JSON envelope {"type": "...", "data": ...}. On
// connect the client receives a status frame, then the latest metrics frame
// if a scrape has completed. Metrics frames follow every scrape; status
// frames repeat on a fixed interval.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/brilliant-almazov/railway-exporter/pkg/models/api"
	"github.com/brilliant-almazov/railway-exporter/pkg/services/broadcast"
	"github.com/coder/websocket"
	"github.com/rs/zerolog"
)

const (
	statusInterval = 5 * time.Second
	writeTimeout   = 5 * time.Second
)

// StatusProvider supplies the periodic status payload.
type StatusProvider interface {
	WsStatus() api.WsStatus
}

type Handler struct {
	caster *broadcast.Broadcaster
	status StatusProvider
}

func NewHandler(caster *broadcast.Broadcaster, status StatusProvider) *Handler {
	return &Handler{caster: caster, status: status}
}

// Serve upgrades the request and runs the push loop until the client
// disconnects.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		logger.Warn().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "connection closed")

	sub := h.caster.Subscribe()
	defer sub.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Drain client frames so pings are answered and closure is noticed.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	logger.Debug().Msg("websocket client connected")

	if err := h.writeStatus(ctx, conn); err != nil {
		return
	}

	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("websocket client disconnected")
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case msg, ok := <-sub.C():
			if !ok {
				conn.Close(websocket.StatusGoingAway, "shutting down")
				return
			}
			if err := h.write(ctx, conn, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := h.writeStatus(ctx, conn); err != nil {
				return
			}
		}
	}
}

func (h *Handler) writeStatus(ctx context.Context, conn *websocket.Conn) error {
	payload, err := json.Marshal(api.NewStatusMessage(h.status.WsStatus()))
	if err != nil {
		return err
	}
	return h.write(ctx, conn, payload)
}

func (h *Handler) write(ctx context.Context, conn *websocket.Conn, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, msg)
}
