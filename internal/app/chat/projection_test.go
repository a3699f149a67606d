package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func previewAt(id string, at time.Time) *Preview {
	return &Preview{Chat: Chat{ID: id, CreatedAt: at, UpdatedAt: at}}
}

// TestChatList_LoadAndSnapshot verifies a load round-trips through Snapshot
// in activity order.
func TestChatList_LoadAndSnapshot(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewChatList()

	l.Load([]*Preview{
		previewAt("old", base),
		previewAt("new", base.Add(time.Hour)),
	})

	snap := l.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "new", snap[0].Chat.ID)
	assert.Equal(t, "old", snap[1].Chat.ID)
}

// TestChatList_PinnedFirst verifies pinned entries sort ahead of more recent
// unpinned ones.
func TestChatList_PinnedFirst(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewChatList()

	pinned := previewAt("pinned", base)
	pinned.Pinned = true
	l.Load([]*Preview{
		previewAt("recent", base.Add(time.Hour)),
		pinned,
	})

	snap := l.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "pinned", snap[0].Chat.ID)
}

// TestChatList_SetLastMessage verifies the preview mutation updates content,
// activity, and the unread counter.
func TestChatList_SetLastMessage(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewChatList()
	l.Load([]*Preview{previewAt("c1", base)})

	msg := &Message{
		ID:        "m1",
		ChatID:    "c1",
		SenderID:  "bob",
		Content:   "ping",
		Timestamp: base.Add(time.Minute),
	}
	l.SetLastMessage("c1", msg, 1)

	snap := l.Snapshot()
	require.Len(t, snap, 1)
	require.NotNil(t, snap[0].LastMessage)
	assert.Equal(t, "ping", snap[0].LastMessage.Content)
	assert.Equal(t, 1, snap[0].UnreadCount)
	assert.True(t, snap[0].UpdatedAt.Equal(msg.Timestamp))

	// Unknown ids are silent no-ops.
	l.SetLastMessage("nope", msg, 1)
	assert.Len(t, l.Snapshot(), 1)
}

// TestChatList_RemoveAndClear verifies entry removal and the wipe mirror.
func TestChatList_RemoveAndClear(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewChatList()
	l.Load([]*Preview{previewAt("c1", base), previewAt("c2", base)})

	l.Remove("c1")
	assert.Len(t, l.Snapshot(), 1)

	l.Remove("c1")
	assert.Len(t, l.Snapshot(), 1, "removing twice is a no-op")

	l.Clear()
	assert.Empty(t, l.Snapshot())
}

// TestChatList_ClosedIgnoresMutations verifies a closed projection drops
// every late mutation instead of failing.
func TestChatList_ClosedIgnoresMutations(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewChatList()
	l.Load([]*Preview{previewAt("c1", base)})

	l.Close()

	l.Upsert(previewAt("c2", base))
	l.Remove("c1")
	l.SetLastMessage("c1", &Message{ID: "m1", Timestamp: base}, 1)
	l.Clear()
	l.Load([]*Preview{previewAt("c3", base)})

	snap := l.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "c1", snap[0].Chat.ID)
	assert.Nil(t, snap[0].LastMessage)
}

// TestChatList_SnapshotIsCopy verifies callers cannot mutate the projection
// through snapshot entries.
func TestChatList_SnapshotIsCopy(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewChatList()
	l.Load([]*Preview{previewAt("c1", base)})

	snap := l.Snapshot()
	snap[0].UnreadCount = 99

	again := l.Snapshot()
	assert.Equal(t, 0, again[0].UnreadCount)
}
