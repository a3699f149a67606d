/*
Package chat implements the conversation and message core: membership
resolution, message append with denormalized previews, per-conversation flags,
and the destructive bulk operations.

A conversation exists between exactly two participants. The participant pair is
kept in canonical sorted order and the conversation document id is derived
deterministically from that pair, so any two clients resolving the same pair
converge on the same conversation without coordination.
*/
package chat

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"veilchat/internal/app/store"
	"veilchat/internal/app/user"
)

const (
	// ChatsCollection holds conversation records.
	ChatsCollection = "chats"

	// MessagesCollection holds message records across all conversations,
	// filtered by the chatId field.
	MessagesCollection = "messages"

	// MaxContentRunes is the maximum length of a text message.
	MaxContentRunes = 5000

	// DefaultVanishTimer is the vanish-mode timer applied when the caller
	// enables vanish mode without supplying one (one hour).
	DefaultVanishTimer = 3600

	// DefaultPageSize is the message history page size when the caller does
	// not specify a limit.
	DefaultPageSize = 50

	// MaxPageSize caps a single message history read.
	MaxPageSize = 200
)

// chatNamespace is the UUIDv5 namespace for deriving conversation ids from
// participant pairs. Changing it would orphan every existing conversation.
var chatNamespace = uuid.MustParse("8cbf5b2e-44a1-4f23-9d6b-7a1e0c2f9d44")

// MessageType tags the payload kind of a message. Only text is produced by
// the current send path; the media tags exist for stored records written by
// future upload flows.
type MessageType string

const (
	TypeText  MessageType = "text"
	TypeImage MessageType = "image"
	TypeVideo MessageType = "video"
	TypeFile  MessageType = "file"
)

// Message is a single immutable entry in a conversation's log.
type Message struct {
	ID       string      `json:"id"`
	ChatID   string      `json:"chatId"`
	SenderID string      `json:"senderId"`
	Content  string      `json:"content"`
	Type     MessageType `json:"type"`

	// Timestamp is assigned by the store at append time. Ordering within a
	// conversation is by this value ascending.
	Timestamp time.Time `json:"timestamp"`

	Read bool `json:"isRead"`

	// VanishAt, when non-zero, is the moment the sweeper removes this message.
	VanishAt time.Time `json:"vanishAt,omitempty"`
}

// LastMessage is the denormalized preview of the most recent message, stored
// directly on the conversation record so list rendering never reads the log.
type LastMessage struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"senderId"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Chat is a two-party conversation record.
type Chat struct {
	ID string `json:"id"`

	// Participants holds the two user ids in canonical sorted order.
	Participants []string `json:"participants"`

	LastMessage *LastMessage `json:"lastMessage,omitempty"`

	// UnreadCount counts messages not yet read by their recipient.
	UnreadCount int `json:"unreadCount"`

	Locked     bool `json:"isLocked"`
	Pinned     bool `json:"isPinned"`
	Archived   bool `json:"isArchived"`
	Hidden     bool `json:"isHidden"`
	VanishMode bool `json:"isVanishMode"`

	// VanishTimer is the disappearing-message delay in seconds, 0 = disabled.
	VanishTimer int `json:"vanishTimer"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Preview is a conversation joined with the counterpart's profile, the unit
// the conversation list renders.
type Preview struct {
	Chat
	User *user.User `json:"user"`
}

// Counterpart returns the participant other than me, or "" when me is not a
// participant.
func (c *Chat) Counterpart(me string) string {
	for _, p := range c.Participants {
		if p != me {
			return p
		}
	}
	return ""
}

// HasParticipant reports whether the given user is part of the conversation.
func (c *Chat) HasParticipant(id string) bool {
	for _, p := range c.Participants {
		if p == id {
			return true
		}
	}
	return false
}

// ParticipantPair returns the canonical sorted form of a two-party pair.
func ParticipantPair(a, b string) []string {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair
}

// ChatIDForPair derives the deterministic conversation id for a canonical
// pair. Both sides of a racing create resolve to the same id, which turns the
// membership invariant into a plain primary-key constraint at the store.
func ChatIDForPair(pair []string) string {
	return uuid.NewSHA1(chatNamespace, []byte(pair[0]+"\x00"+pair[1])).String()
}

// fields converts the chat to its stored document representation.
func (c *Chat) fields() store.Fields {
	f := store.Fields{
		"participants": c.Participants,
		"unreadCount":  c.UnreadCount,
		"isLocked":     c.Locked,
		"isPinned":     c.Pinned,
		"isArchived":   c.Archived,
		"isHidden":     c.Hidden,
		"isVanishMode": c.VanishMode,
		"vanishTimer":  c.VanishTimer,
		"createdAt":    store.ServerTimestamp,
		"updatedAt":    store.ServerTimestamp,
	}
	if c.LastMessage != nil {
		f["lastMessage"] = lastMessageFields(c.LastMessage)
	}
	return f
}

// lastMessageFields carries the message's own timestamp so the preview and the
// log entry are byte-identical.
func lastMessageFields(lm *LastMessage) store.Fields {
	return store.Fields{
		"id":        lm.ID,
		"senderId":  lm.SenderID,
		"content":   lm.Content,
		"timestamp": lm.Timestamp,
	}
}

// chatFromDocument rebuilds a Chat from its stored document.
func chatFromDocument(doc store.Document) *Chat {
	c := &Chat{
		ID:           doc.ID,
		Participants: store.AsStringSlice(doc.Fields["participants"]),
		UnreadCount:  store.AsInt(doc.Fields["unreadCount"]),
		Locked:       store.AsBool(doc.Fields["isLocked"]),
		Pinned:       store.AsBool(doc.Fields["isPinned"]),
		Archived:     store.AsBool(doc.Fields["isArchived"]),
		Hidden:       store.AsBool(doc.Fields["isHidden"]),
		VanishMode:   store.AsBool(doc.Fields["isVanishMode"]),
		VanishTimer:  store.AsInt(doc.Fields["vanishTimer"]),
		CreatedAt:    store.AsTime(doc.Fields["createdAt"]),
		UpdatedAt:    store.AsTime(doc.Fields["updatedAt"]),
	}

	if lm := store.AsFields(doc.Fields["lastMessage"]); lm != nil {
		c.LastMessage = &LastMessage{
			ID:        store.AsString(lm["id"]),
			SenderID:  store.AsString(lm["senderId"]),
			Content:   store.AsString(lm["content"]),
			Timestamp: store.AsTime(lm["timestamp"]),
		}
	}

	return c
}

// messageFromDocument rebuilds a Message from its stored document.
func messageFromDocument(doc store.Document) *Message {
	return &Message{
		ID:        doc.ID,
		ChatID:    store.AsString(doc.Fields["chatId"]),
		SenderID:  store.AsString(doc.Fields["senderId"]),
		Content:   store.AsString(doc.Fields["content"]),
		Type:      MessageType(store.AsString(doc.Fields["type"])),
		Timestamp: store.AsTime(doc.Fields["timestamp"]),
		Read:      store.AsBool(doc.Fields["isRead"]),
		VanishAt:  store.AsTime(doc.Fields["vanishAt"]),
	}
}
