package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"veilchat/internal/app/chat"
	"veilchat/internal/app/store"
	"veilchat/internal/app/user"
	"veilchat/internal/pkg/logx"
)

// presenceWriteTimeout bounds the store write performed on connect and
// disconnect, which run outside any request context.
const presenceWriteTimeout = 5 * time.Second

// Hub is the central registry of live connections, keyed by user id. It
// implements chat.Notifier so conversation mutations fan out to every
// connection both participants hold.
type Hub struct {
	// conns maps a user id to that user's open connections.
	conns map[string]map[*Conn]struct{}

	// store receives the presence writes on first connect and last disconnect.
	store store.Store

	// chats serves the inbound SEND_MESSAGE and MARK_READ commands.
	chats *chat.Service

	// register and unregister queue connection lifecycle events for the run loop.
	register   chan *Conn
	unregister chan *Conn

	// outbound queues fan-out work for the run loop.
	outbound chan targetedEvent

	// stopChan signals the run loop to terminate.
	stopChan chan struct{}

	// wg waits for the run loop during shutdown.
	wg sync.WaitGroup

	// mu protects the conns map.
	mu sync.RWMutex

	logger zerolog.Logger
}

// targetedEvent is a marshaled frame addressed to a set of user ids.
type targetedEvent struct {
	userIDs []string
	frame   []byte
}

// NewHub constructs a Hub and starts its run loop.
func NewHub(s store.Store, chats *chat.Service) *Hub {
	h := &Hub{
		conns:      make(map[string]map[*Conn]struct{}),
		store:      s,
		chats:      chats,
		register:   make(chan *Conn),
		unregister: make(chan *Conn),
		outbound:   make(chan targetedEvent, 1024),
		stopChan:   make(chan struct{}),
		logger:     logx.Logger().With().Str("component", "Hub").Logger(),
	}

	h.wg.Add(1)
	go h.run()

	return h
}

// run is the hub's event loop: registration, deregistration, and fan-out all
// funnel through here so presence transitions observe a consistent registry.
func (h *Hub) run() {
	defer h.wg.Done()

	h.logger.Info().Msg("Hub run loop started.")

	for {
		select {
		case c := <-h.register:
			h.addConn(c)

		case c := <-h.unregister:
			h.removeConn(c)

		case ev := <-h.outbound:
			h.deliver(ev)

		case <-h.stopChan:
			h.logger.Info().Msg("Hub run loop stopped.")
			return
		}
	}
}

// addConn records the connection and flips presence online when it is the
// user's first.
func (h *Hub) addConn(c *Conn) {
	h.mu.Lock()
	set, ok := h.conns[c.userID]
	if !ok {
		set = make(map[*Conn]struct{})
		h.conns[c.userID] = set
	}
	first := len(set) == 0
	set[c] = struct{}{}
	total := len(set)
	h.mu.Unlock()

	h.logger.Info().
		Str("user_id", c.userID).
		Int("connections", total).
		Msg("Connection registered.")

	if first {
		h.writePresence(c.userID, true)
	}
}

// removeConn drops the connection and flips presence offline when it was the
// user's last. Unknown connections are ignored.
func (h *Hub) removeConn(c *Conn) {
	h.mu.Lock()
	set, ok := h.conns[c.userID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := set[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(set, c)
	last := len(set) == 0
	if last {
		delete(h.conns, c.userID)
	}
	h.mu.Unlock()

	c.closeSend()

	h.logger.Info().
		Str("user_id", c.userID).
		Bool("last_connection", last).
		Msg("Connection unregistered.")

	if last {
		h.writePresence(c.userID, false)
	}
}

// writePresence stamps the user's online flag and last-seen time. Best-effort:
// a failed write leaves stale presence until the next transition.
func (h *Hub) writePresence(userID string, online bool) {
	ctx, cancel := context.WithTimeout(context.Background(), presenceWriteTimeout)
	defer cancel()

	err := h.store.Update(ctx, user.Collection, userID, store.Fields{
		"isOnline": online,
		"lastSeen": store.ServerTimestamp,
	})
	if err != nil {
		h.logger.Warn().Err(err).
			Str("user_id", userID).
			Bool("online", online).
			Msg("Presence write failed.")
	}
}

// deliver pushes a frame to every connection of every addressed user. A
// connection with a full send queue is scheduled for removal rather than
// blocking the loop.
func (h *Hub) deliver(ev targetedEvent) {
	h.mu.RLock()
	var stalled []*Conn
	for _, id := range ev.userIDs {
		for c := range h.conns[id] {
			select {
			case c.send <- ev.frame:
			default:
				h.logger.Warn().
					Str("user_id", id).
					Msg("Connection send queue full, dropping connection.")
				stalled = append(stalled, c)
			}
		}
	}
	h.mu.RUnlock()

	for _, c := range stalled {
		h.removeConn(c)
	}
}

// push marshals the event and queues it for the addressed users.
func (h *Hub) push(t EventType, payload any, userIDs []string) {
	ev, err := NewEvent(t, payload)
	if err != nil {
		h.logger.Error().Err(err).Str("event_type", string(t)).Msg("Failed to build event.")
		return
	}

	frame, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error().Err(err).Str("event_type", string(t)).Msg("Failed to marshal event.")
		return
	}

	select {
	case h.outbound <- targetedEvent{userIDs: userIDs, frame: frame}:
	default:
		h.logger.Warn().Str("event_type", string(t)).Msg("Outbound channel full, dropping event.")
	}
}

// MessageCreated pushes the new message to both participants. The sender's
// other devices need it as much as the counterpart does.
func (h *Hub) MessageCreated(chatID string, participants []string, msg *chat.Message) {
	h.push(TypeMessageNew, MessageNewPayload{ChatID: chatID, Message: msg}, participants)
}

// ChatUpdated tells both participants the conversation record changed.
func (h *Hub) ChatUpdated(chatID string, participants []string) {
	h.push(TypeChatUpdated, ChatEventPayload{ChatID: chatID}, participants)
}

// ChatDeleted tells both participants the conversation is gone.
func (h *Hub) ChatDeleted(chatID string, participants []string) {
	h.push(TypeChatDeleted, ChatEventPayload{ChatID: chatID}, participants)
}

// Online reports whether the user has at least one live connection.
func (h *Hub) Online(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID]) > 0
}

// Shutdown stops the run loop and closes every connection's send queue.
func (h *Hub) Shutdown() {
	h.logger.Info().Msg("Shutting down Hub...")

	select {
	case <-h.stopChan:
	default:
		close(h.stopChan)
	}
	h.wg.Wait()

	h.mu.Lock()
	for _, set := range h.conns {
		for c := range set {
			c.closeSend()
		}
	}
	h.conns = make(map[string]map[*Conn]struct{})
	h.mu.Unlock()

	h.logger.Info().Msg("Hub shutdown complete.")
}
