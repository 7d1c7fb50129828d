package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tradepost/negotiation/internal/core/domain"
	"github.com/tradepost/negotiation/internal/relay"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsSendBuffer   = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Cross-origin policy is enforced by the CORS middleware on the API;
	// the socket carries no state beyond the authenticated subscription.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ConversationFeed upgrades the request to a websocket and streams the
// conversation's relay events to the client as JSON envelopes until the
// client disconnects.
func (h *HTTPHandler) ConversationFeed(c *gin.Context) {
	conversationID := c.Param("id")
	userID := c.GetString(userIDKey)

	if _, err := h.chat.EnsureParticipant(c.Request.Context(), conversationID, userID); err != nil {
		h.fail(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	events := make(chan domain.Event, wsSendBuffer)
	forward := func(event domain.Event) {
		select {
		case events <- event:
		default:
			// Slow consumer: drop rather than block the feed goroutine. The
			// client reconciles by row identity on its next thread reload.
			h.logger.Warn("dropping event for slow websocket",
				zap.String("conversation_id", conversationID))
		}
	}

	unsubscribe, err := h.relay.Subscribe(c.Request.Context(), conversationID, relay.Handlers{
		OnMessageInsert: func(msg domain.Message) {
			forward(domain.Event{Kind: domain.EventMessageInsert, ConversationID: conversationID, Message: &msg})
		},
		OnOfferInsert: func(offer domain.Offer) {
			forward(domain.Event{Kind: domain.EventOfferInsert, ConversationID: conversationID, Offer: &offer})
		},
		OnOfferUpdate: func(offer domain.Offer) {
			forward(domain.Event{Kind: domain.EventOfferUpdate, ConversationID: conversationID, Offer: &offer})
		},
	})
	if err != nil {
		h.logger.Error("relay subscribe failed", zap.String("conversation_id", conversationID), zap.Error(err))
		conn.Close()
		return
	}

	done := make(chan struct{})

	// Reader only detects disconnects; clients do not send anything.
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	go func() {
		defer func() {
			unsubscribe()
			conn.Close()
		}()
		for {
			select {
			case event := <-events:
				conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteJSON(event); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()
}
