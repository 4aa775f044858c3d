package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/mrshanahan/notetaker/pkg/notes"
)

var (
	StreamPingInterval = 30 * time.Second
	StreamWriteTimeout = 10 * time.Second
)

// RequireEventStream rejects unknown kinds and plain HTTP requests before the
// WebSocket upgrade.
func (s *Server) RequireEventStream(c *fiber.Ctx) error {
	if _, err := notes.ParseEventKind(c.Params("kind")); err != nil {
		c.Status(fiber.StatusNotFound)
		return c.SendString(err.Error())
	}
	if !websocket.IsWebSocketUpgrade(c) {
		return c.SendStatus(fiber.StatusUpgradeRequired)
	}
	return c.Next()
}

// EventStream pushes the caller's events of one kind as JSON text frames
// until the client disconnects.
func (s *Server) EventStream() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		kind, _ := notes.ParseEventKind(conn.Params("kind"))
		owner, _ := conn.Locals(OwnerLocalName).(string)
		log := slog.With("owner", owner, "kind", kind)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sub, err := s.broker.Subscribe(ctx, owner)
		if err != nil {
			log.Error("failed to subscribe to note events", "err", err)
			closeStream(conn, websocket.CloseInternalServerErr, "subscription failed")
			return
		}
		defer sub.Close()
		log.Info("event stream opened")

		// Clients never send anything meaningful; reading only detects
		// disconnects and services control frames.
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ping := time.NewTicker(StreamPingInterval)
		defer ping.Stop()
		errs := sub.Errors()
		for {
			select {
			case <-ctx.Done():
				log.Info("event stream closed")
				return
			case err, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				log.Warn("note event subscription error", "err", err)
			case e, ok := <-sub.Events():
				if !ok {
					closeStream(conn, websocket.CloseGoingAway, "subscription ended")
					return
				}
				if e.Kind != kind {
					continue
				}
				conn.SetWriteDeadline(time.Now().Add(StreamWriteTimeout))
				if err := conn.WriteJSON(e); err != nil {
					log.Warn("failed to write note event", "err", err)
					return
				}
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(StreamWriteTimeout)); err != nil {
					return
				}
			}
		}
	})
}

func closeStream(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(StreamWriteTimeout))
}
