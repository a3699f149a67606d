package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veilchat/internal/app/store"
	"veilchat/internal/app/user"
)

// recordingNotifier captures push events for assertions.
type recordingNotifier struct {
	messages []string
	updates  []string
	deletes  []string
}

func (n *recordingNotifier) MessageCreated(chatID string, participants []string, msg *Message) {
	n.messages = append(n.messages, chatID)
}

func (n *recordingNotifier) ChatUpdated(chatID string, participants []string) {
	n.updates = append(n.updates, chatID)
}

func (n *recordingNotifier) ChatDeleted(chatID string, participants []string) {
	n.deletes = append(n.deletes, chatID)
}

func newTestService(t *testing.T) (*Service, *store.MemoryStore, *recordingNotifier) {
	t.Helper()
	s := store.NewMemoryStore()
	n := &recordingNotifier{}
	svc := NewService(s, n)
	seedProfile(t, s, "alice", "@alice", "Alice")
	seedProfile(t, s, "bob", "@bob", "Bob")
	return svc, s, n
}

func seedProfile(t *testing.T, s store.Store, id, handle, name string) {
	t.Helper()
	u := &user.User{ID: id, Handle: handle, Name: name}
	require.NoError(t, s.Put(context.Background(), user.Collection, id, u.Fields()))
}

// TestChatIDForPair_Symmetric verifies both orderings of a participant pair
// derive the same conversation id.
func TestChatIDForPair_Symmetric(t *testing.T) {
	id1 := ChatIDForPair(ParticipantPair("alice", "bob"))
	id2 := ChatIDForPair(ParticipantPair("bob", "alice"))
	assert.Equal(t, id1, id2)

	other := ChatIDForPair(ParticipantPair("alice", "carol"))
	assert.NotEqual(t, id1, other)
}

// TestCreateOrGetChat_Idempotent verifies repeated resolution from either
// side lands on one conversation.
func TestCreateOrGetChat_Idempotent(t *testing.T) {
	svc, s, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.CreateOrGetChat(ctx, "alice", "bob")
	require.NoError(t, err)

	second, err := svc.CreateOrGetChat(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	docs, err := s.Query(ctx, ChatsCollection, store.Query{})
	require.NoError(t, err)
	assert.Len(t, docs, 1, "exactly one conversation per pair")
}

// TestCreateOrGetChat_Invalid verifies the self and empty counterpart cases.
func TestCreateOrGetChat_Invalid(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateOrGetChat(ctx, "alice", "alice")
	assert.ErrorIs(t, err, ErrInvalidCounterpart)

	_, err = svc.CreateOrGetChat(ctx, "alice", "")
	assert.ErrorIs(t, err, ErrInvalidCounterpart)

	_, err = svc.CreateOrGetChat(ctx, "", "bob")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

// TestSendMessage_PreviewDenormalization verifies the conversation record's
// last-message preview matches the appended log entry exactly and the unread
// counter increments.
func TestSendMessage_PreviewDenormalization(t *testing.T) {
	svc, s, n := newTestService(t)
	ctx := context.Background()

	chatID, err := svc.CreateOrGetChat(ctx, "alice", "bob")
	require.NoError(t, err)

	msg, err := svc.SendMessage(ctx, "alice", chatID, "hello bob")
	require.NoError(t, err)
	assert.Equal(t, TypeText, msg.Type)
	assert.False(t, msg.Timestamp.IsZero())

	doc, err := s.Get(ctx, ChatsCollection, chatID)
	require.NoError(t, err)
	c := chatFromDocument(doc)

	require.NotNil(t, c.LastMessage)
	assert.Equal(t, msg.ID, c.LastMessage.ID)
	assert.Equal(t, msg.SenderID, c.LastMessage.SenderID)
	assert.Equal(t, msg.Content, c.LastMessage.Content)
	assert.True(t, msg.Timestamp.Equal(c.LastMessage.Timestamp),
		"preview timestamp must equal the log entry's")
	assert.True(t, msg.Timestamp.Equal(c.UpdatedAt))
	assert.Equal(t, 1, c.UnreadCount)

	assert.Equal(t, []string{chatID}, n.messages)
}

// TestSendMessage_Validation verifies content rules.
func TestSendMessage_Validation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	chatID, err := svc.CreateOrGetChat(ctx, "alice", "bob")
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, "alice", chatID, "   ")
	assert.ErrorIs(t, err, ErrEmptyContent)

	long := make([]rune, MaxContentRunes+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err = svc.SendMessage(ctx, "alice", chatID, string(long))
	assert.ErrorIs(t, err, ErrContentTooLong)

	_, err = svc.SendMessage(ctx, "alice", "no-such-chat", "hi")
	assert.ErrorIs(t, err, ErrChatNotFound)

	// Non-participants cannot write into a conversation.
	seedProfile(t, svc.store, "eve", "@eve", "Eve")
	_, err = svc.SendMessage(ctx, "eve", chatID, "hi")
	assert.ErrorIs(t, err, ErrChatNotFound)
}

// TestSendMessage_VanishModeStampsExpiry verifies messages in a vanish-mode
// conversation carry an expiry derived from the timer.
func TestSendMessage_VanishModeStampsExpiry(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return at }

	chatID, err := svc.CreateOrGetChat(ctx, "alice", "bob")
	require.NoError(t, err)

	_, err = svc.ToggleVanishMode(ctx, "alice", chatID, 120)
	require.NoError(t, err)

	msg, err := svc.SendMessage(ctx, "alice", chatID, "this will vanish")
	require.NoError(t, err)
	assert.True(t, msg.VanishAt.Equal(at.Add(120*time.Second)))

	// Disabling vanish mode stops stamping.
	_, err = svc.ToggleVanishMode(ctx, "alice", chatID, 0)
	require.NoError(t, err)

	msg, err = svc.SendMessage(ctx, "alice", chatID, "this stays")
	require.NoError(t, err)
	assert.True(t, msg.VanishAt.IsZero())
}

// TestListChats verifies the counterpart join and the pinned-first ordering.
func TestListChats(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	seedProfile(t, svc.store, "carol", "@carol", "Carol")

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	withBob, err := svc.CreateOrGetChat(ctx, "alice", "bob")
	require.NoError(t, err)
	withCarol, err := svc.CreateOrGetChat(ctx, "alice", "carol")
	require.NoError(t, err)

	// Bob's conversation is the most recently active.
	_, err = svc.SendMessage(ctx, "alice", withCarol, "hi carol")
	require.NoError(t, err)
	now = now.Add(time.Minute)
	_, err = svc.SendMessage(ctx, "alice", withBob, "hi bob")
	require.NoError(t, err)

	previews, err := svc.ListChats(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, previews, 2)
	assert.Equal(t, withBob, previews[0].Chat.ID, "most recent activity first")
	assert.Equal(t, "Bob", previews[0].User.Name)
	assert.Equal(t, "Carol", previews[1].User.Name)

	// Pinning the older conversation moves it to the top.
	_, err = svc.TogglePin(ctx, "alice", withCarol)
	require.NoError(t, err)

	previews, err = svc.ListChats(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, withCarol, previews[0].Chat.ID, "pinned conversations sort first")
}

// TestListMessages_Pagination verifies ascending presentation and backward
// paging with the before cursor.
func TestListMessages_Pagination(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	step := 0
	svc.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Second)
	}

	chatID, err := svc.CreateOrGetChat(ctx, "alice", "bob")
	require.NoError(t, err)

	contents := []string{"one", "two", "three", "four", "five"}
	for _, c := range contents {
		_, err := svc.SendMessage(ctx, "alice", chatID, c)
		require.NoError(t, err)
	}

	// Latest page of two, oldest-first within the page.
	page, err := svc.ListMessages(ctx, "alice", chatID, time.Time{}, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "four", page[0].Content)
	assert.Equal(t, "five", page[1].Content)

	// Walk backwards from the oldest message of that page.
	older, err := svc.ListMessages(ctx, "alice", chatID, page[0].Timestamp, 2)
	require.NoError(t, err)
	require.Len(t, older, 2)
	assert.Equal(t, "two", older[0].Content)
	assert.Equal(t, "three", older[1].Content)
}

// TestMarkChatRead verifies the unread counter resets and only messages from
// the other side flip to read.
func TestMarkChatRead(t *testing.T) {
	svc, s, _ := newTestService(t)
	ctx := context.Background()

	chatID, err := svc.CreateOrGetChat(ctx, "alice", "bob")
	require.NoError(t, err)

	fromAlice, err := svc.SendMessage(ctx, "alice", chatID, "from alice")
	require.NoError(t, err)
	fromBob, err := svc.SendMessage(ctx, "bob", chatID, "from bob")
	require.NoError(t, err)

	require.NoError(t, svc.MarkChatRead(ctx, "alice", chatID))

	doc, err := s.Get(ctx, ChatsCollection, chatID)
	require.NoError(t, err)
	assert.Equal(t, 0, store.AsInt(doc.Fields["unreadCount"]))

	bobDoc, err := s.Get(ctx, MessagesCollection, fromBob.ID)
	require.NoError(t, err)
	assert.True(t, store.AsBool(bobDoc.Fields["isRead"]), "counterpart's message becomes read")

	aliceDoc, err := s.Get(ctx, MessagesCollection, fromAlice.ID)
	require.NoError(t, err)
	assert.False(t, store.AsBool(aliceDoc.Fields["isRead"]), "own message stays as delivered")
}

// TestToggleFlags_Involution verifies toggling twice restores the original
// state for every flag.
func TestToggleFlags_Involution(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	chatID, err := svc.CreateOrGetChat(ctx, "alice", "bob")
	require.NoError(t, err)

	toggles := []struct {
		name string
		call func() (*Chat, error)
		get  func(c *Chat) bool
	}{
		{"lock", func() (*Chat, error) { return svc.ToggleLock(ctx, "alice", chatID) }, func(c *Chat) bool { return c.Locked }},
		{"pin", func() (*Chat, error) { return svc.TogglePin(ctx, "alice", chatID) }, func(c *Chat) bool { return c.Pinned }},
		{"archive", func() (*Chat, error) { return svc.ToggleArchive(ctx, "alice", chatID) }, func(c *Chat) bool { return c.Archived }},
		{"hide", func() (*Chat, error) { return svc.ToggleHide(ctx, "alice", chatID) }, func(c *Chat) bool { return c.Hidden }},
	}

	for _, tt := range toggles {
		t.Run(tt.name, func(t *testing.T) {
			on, err := tt.call()
			require.NoError(t, err)
			require.NotNil(t, on)
			assert.True(t, tt.get(on))

			off, err := tt.call()
			require.NoError(t, err)
			require.NotNil(t, off)
			assert.False(t, tt.get(off))
		})
	}
}

// TestToggleVanishMode_TimerRule verifies enabling sets the timer and
// disabling always clears it.
func TestToggleVanishMode_TimerRule(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	chatID, err := svc.CreateOrGetChat(ctx, "alice", "bob")
	require.NoError(t, err)

	on, err := svc.ToggleVanishMode(ctx, "alice", chatID, 300)
	require.NoError(t, err)
	assert.True(t, on.VanishMode)
	assert.Equal(t, 300, on.VanishTimer)

	off, err := svc.ToggleVanishMode(ctx, "alice", chatID, 300)
	require.NoError(t, err)
	assert.False(t, off.VanishMode)
	assert.Equal(t, 0, off.VanishTimer, "disabling resets the timer")

	// Enabling without a timer picks the default.
	on, err = svc.ToggleVanishMode(ctx, "alice", chatID, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultVanishTimer, on.VanishTimer)
}

// TestToggle_UnknownChatIsSilentNoOp verifies toggling a conversation that
// does not resolve for the caller succeeds with a nil chat.
func TestToggle_UnknownChatIsSilentNoOp(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	c, err := svc.TogglePin(ctx, "alice", "no-such-chat")
	assert.NoError(t, err)
	assert.Nil(t, c)
}

// TestDeleteChat_CascadesMessages verifies the message log goes with the
// conversation record.
func TestDeleteChat_CascadesMessages(t *testing.T) {
	svc, s, n := newTestService(t)
	ctx := context.Background()

	chatID, err := svc.CreateOrGetChat(ctx, "alice", "bob")
	require.NoError(t, err)

	for _, c := range []string{"one", "two", "three"} {
		_, err := svc.SendMessage(ctx, "alice", chatID, c)
		require.NoError(t, err)
	}

	require.NoError(t, svc.DeleteChat(ctx, "alice", chatID))

	_, err = s.Get(ctx, ChatsCollection, chatID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	msgs, err := s.Query(ctx, MessagesCollection, store.Query{
		Filters: []store.Filter{store.Eq("chatId", chatID)},
	})
	require.NoError(t, err)
	assert.Empty(t, msgs)

	assert.Equal(t, []string{chatID}, n.deletes)

	// Deleting again is a no-op.
	assert.NoError(t, svc.DeleteChat(ctx, "alice", chatID))
}

// TestPanicWipe verifies every conversation the caller participates in is
// destroyed, and nobody else's survive the blast.
func TestPanicWipe(t *testing.T) {
	svc, s, _ := newTestService(t)
	ctx := context.Background()
	seedProfile(t, s, "carol", "@carol", "Carol")

	withBob, err := svc.CreateOrGetChat(ctx, "alice", "bob")
	require.NoError(t, err)
	withCarol, err := svc.CreateOrGetChat(ctx, "alice", "carol")
	require.NoError(t, err)
	bystander, err := svc.CreateOrGetChat(ctx, "bob", "carol")
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, "alice", withBob, "gone soon")
	require.NoError(t, err)

	require.NoError(t, svc.PanicWipe(ctx, "alice"))

	for _, id := range []string{withBob, withCarol} {
		_, err := s.Get(ctx, ChatsCollection, id)
		assert.ErrorIs(t, err, store.ErrNotFound)
	}

	_, err = s.Get(ctx, ChatsCollection, bystander)
	assert.NoError(t, err, "conversations without the caller survive")

	previews, err := svc.ListChats(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, previews)
}

// TestConversationLifecycle walks the full flow: resolve, message both ways,
// read, toggle, and wipe.
func TestConversationLifecycle(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	step := 0
	svc.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Second)
	}

	chatID, err := svc.CreateOrGetChat(ctx, "alice", "bob")
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, "alice", chatID, "hey bob")
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, "bob", chatID, "hey alice")
	require.NoError(t, err)

	// Bob sees the conversation with Alice's profile attached.
	previews, err := svc.ListChats(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, previews, 1)
	assert.Equal(t, "Alice", previews[0].User.Name)
	assert.Equal(t, "hey alice", previews[0].LastMessage.Content)
	assert.Equal(t, 2, previews[0].UnreadCount)

	require.NoError(t, svc.MarkChatRead(ctx, "bob", chatID))

	msgs, err := svc.ListMessages(ctx, "bob", chatID, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hey bob", msgs[0].Content)
	assert.Equal(t, "hey alice", msgs[1].Content)
	assert.True(t, msgs[0].Timestamp.Before(msgs[1].Timestamp))

	_, err = svc.ToggleLock(ctx, "bob", chatID)
	require.NoError(t, err)

	require.NoError(t, svc.PanicWipe(ctx, "alice"))

	previews, err = svc.ListChats(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, previews, "wipe removes the conversation for both sides")
}
