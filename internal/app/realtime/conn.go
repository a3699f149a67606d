package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"veilchat/internal/app/chat"
	"veilchat/internal/pkg/errs"
	"veilchat/internal/pkg/logx"
)

const (
	// timeout for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed to wait for a Pong from the client.
	pongWait = 60 * time.Second

	// frequency of outgoing Ping messages.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of an inbound frame.
	maxFrameSize = 16384

	// commandTimeout bounds a single inbound command against the store.
	commandTimeout = 10 * time.Second
)

// Conn represents one authenticated WebSocket connection.
type Conn struct {
	hub *Hub

	// underlying WebSocket connection object.
	ws *websocket.Conn

	// userID is the authenticated owner of this connection.
	userID string

	// send queues outbound frames for WritePump.
	send chan []byte

	// closeOnce guards the send channel against double close.
	closeOnce sync.Once

	logger zerolog.Logger
}

// NewConn wraps an upgraded WebSocket connection for the given user and
// registers it with the hub.
func NewConn(hub *Hub, ws *websocket.Conn, userID string) *Conn {
	c := &Conn{
		hub:    hub,
		ws:     ws,
		userID: userID,
		send:   make(chan []byte, 256),
		logger: logx.Logger().With().Str("user_id", userID).Logger(),
	}

	select {
	case hub.register <- c:
	case <-hub.stopChan:
	}

	return c
}

// closeSend closes the send channel exactly once, which terminates WritePump.
func (c *Conn) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

// ReadPump reads frames from the connection until it drops, handling
// heartbeats and inbound commands. It unregisters the connection on exit.
func (c *Conn) ReadPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.stopChan:
		}

		if err := c.ws.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Connection close error.")
		}
	}()

	c.ws.SetReadLimit(maxFrameSize)

	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline.")
		return
	}

	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Unexpected connection close.")
			}
			break
		}

		c.processInbound(frame)
	}
}

// processInbound dispatches a raw inbound frame.
func (c *Conn) processInbound(frame []byte) {
	var ev Event
	if err := json.Unmarshal(frame, &ev); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid JSON.")
		return
	}

	switch ev.Type {
	case TypeSendMessage:
		c.handleSendMessage(ev.Payload, ev.TempID)

	case TypeMarkRead:
		c.handleMarkRead(ev.Payload)

	default:
		c.logger.Warn().Str("event_type", string(ev.Type)).Msg("Client sent unsupported event type.")
	}
}

// handleSendMessage appends a message through the chat service. The hub's
// Notifier hook pushes the message itself; this path only sends the ACK.
func (c *Conn) handleSendMessage(payload json.RawMessage, tempID string) {
	var p SendMessagePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid SEND_MESSAGE payload.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	msg, err := c.hub.chats.SendMessage(ctx, c.userID, p.ChatID, p.Content)
	if err != nil {
		c.SendError(sendMessageError(err))
		return
	}

	c.sendConfirmation(tempID, msg)
}

// handleMarkRead clears the unread state for a conversation.
func (c *Conn) handleMarkRead(payload json.RawMessage) {
	var p MarkReadPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid MARK_READ payload.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := c.hub.chats.MarkChatRead(ctx, c.userID, p.ChatID); err != nil {
		c.SendError(sendMessageError(err))
	}
}

// sendMessageError maps chat service errors to the wire error taxonomy.
func sendMessageError(err error) *errs.CustomError {
	switch {
	case errors.Is(err, chat.ErrChatNotFound):
		return errs.NewError(errs.ErrChatNotFound)
	case errors.Is(err, chat.ErrEmptyContent):
		return errs.NewError(errs.ErrMessageContentEmpty)
	case errors.Is(err, chat.ErrContentTooLong):
		return errs.NewError(errs.ErrMessageContentTooLong)
	case errors.Is(err, chat.ErrNotAuthenticated):
		return errs.NewError(errs.ErrUnauthorized)
	default:
		return errs.NewError(errs.ErrUnknown)
	}
}

// WritePump writes queued frames and heartbeat pings to the connection.
func (c *Conn) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := c.ws.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Connection close error in WritePump.")
		}
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error().Err(err).Msg("Failed to set write deadline.")
				return
			}

			if !ok {
				if err := c.ws.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					c.logger.Debug().Err(err).Msg("Error writing close message.")
				}
				return
			}

			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Error().Err(err).Msg("Error writing frame.")
				return
			}

		case <-ticker.C:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error().Err(err).Msg("Failed to set write deadline on ping.")
				return
			}

			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Error().Err(err).Msg("Error writing ping.")
				return
			}
		}
	}
}

// queue marshals and enqueues a frame for this connection only.
func (c *Conn) queue(ev Event) {
	frame, err := json.Marshal(ev)
	if err != nil {
		c.logger.Error().Err(err).Msg("Error marshaling frame.")
		return
	}

	select {
	case c.send <- frame:
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Send queue full, dropping frame.")
	}
}

// SendError pushes an ERROR frame to this connection.
func (c *Conn) SendError(customErr *errs.CustomError) {
	ev, err := NewEvent(TypeError, ErrorPayload{
		Code:    customErr.Code,
		Message: customErr.Message,
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to build ERROR frame.")
		return
	}

	c.queue(ev)
}

// sendConfirmation ACKs an inbound SEND_MESSAGE with the authoritative id and
// timestamp. Commands without a tempId get no ACK.
func (c *Conn) sendConfirmation(tempID string, msg *chat.Message) {
	if tempID == "" {
		return
	}

	ev, err := NewEvent(TypeConfirm, ConfirmPayload{
		MessageID: msg.ID,
		Timestamp: msg.Timestamp,
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to build CONFIRM frame.")
		return
	}

	ev.TempID = tempID
	c.queue(ev)
}
