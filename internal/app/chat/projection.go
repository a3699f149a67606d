package chat

import (
	"sort"
	"sync"
)

// ChatList is the in-memory projection of a user's conversation list: the one
// piece of shared mutable state a connected client session owns. It is rebuilt
// from ListChats on load and mutated optimistically as operations complete or
// push events arrive.
//
// Mutations referencing an unknown conversation id are silent no-ops, and a
// closed projection ignores everything: a response that arrives after its
// consumer went away must not fail, it must disappear.
type ChatList struct {
	mu     sync.RWMutex
	chats  map[string]*Preview
	closed bool
}

// NewChatList creates an empty projection.
func NewChatList() *ChatList {
	return &ChatList{chats: make(map[string]*Preview)}
}

// Load replaces the entire projection with a freshly fetched list.
func (l *ChatList) Load(previews []*Preview) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}

	l.chats = make(map[string]*Preview, len(previews))
	for _, p := range previews {
		cp := *p
		l.chats[p.Chat.ID] = &cp
	}
}

// Upsert inserts or replaces a single conversation entry.
func (l *ChatList) Upsert(p *Preview) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}

	cp := *p
	l.chats[p.Chat.ID] = &cp
}

// Apply mutates the entry for chatID in place. Unknown ids are no-ops.
func (l *ChatList) Apply(chatID string, mutate func(*Preview)) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}

	if p, ok := l.chats[chatID]; ok {
		mutate(p)
	}
}

// SetLastMessage updates the denormalized preview for chatID and bumps the
// unread counter by delta. Unknown ids are no-ops.
func (l *ChatList) SetLastMessage(chatID string, msg *Message, unreadDelta int) {
	l.Apply(chatID, func(p *Preview) {
		p.LastMessage = &LastMessage{
			ID:        msg.ID,
			SenderID:  msg.SenderID,
			Content:   msg.Content,
			Timestamp: msg.Timestamp,
		}
		p.UpdatedAt = msg.Timestamp
		p.UnreadCount += unreadDelta
	})
}

// Remove drops a conversation from the projection. Unknown ids are no-ops.
func (l *ChatList) Remove(chatID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}

	delete(l.chats, chatID)
}

// Clear empties the projection, mirroring a panic wipe.
func (l *ChatList) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}

	l.chats = make(map[string]*Preview)
}

// Snapshot returns the current list in render order: pinned conversations
// first, then by most recent activity.
func (l *ChatList) Snapshot() []*Preview {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*Preview, 0, len(l.chats))
	for _, p := range l.chats {
		cp := *p
		out = append(out, &cp)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Pinned != out[j].Pinned {
			return out[i].Pinned
		}
		ai, aj := lastActivity(&out[i].Chat), lastActivity(&out[j].Chat)
		if !ai.Equal(aj) {
			return ai.After(aj)
		}
		return out[i].Chat.ID < out[j].Chat.ID
	})

	return out
}

// Close marks the projection as abandoned. Every later mutation is a no-op.
func (l *ChatList) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
}
