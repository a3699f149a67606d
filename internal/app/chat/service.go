package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"veilchat/internal/app/store"
	"veilchat/internal/app/user"
	"veilchat/internal/pkg/logx"
	"veilchat/internal/pkg/randx"
)

var (
	// ErrNotAuthenticated indicates an operation attempted without a session user.
	ErrNotAuthenticated = errors.New("chat: not authenticated")

	// ErrChatNotFound indicates the conversation does not exist or the caller
	// is not a participant.
	ErrChatNotFound = errors.New("chat: conversation not found")

	// ErrInvalidCounterpart indicates a create-or-get against an empty id or
	// the caller themselves.
	ErrInvalidCounterpart = errors.New("chat: invalid counterpart")

	// ErrEmptyContent indicates a send with no content after trimming.
	ErrEmptyContent = errors.New("chat: empty message content")

	// ErrContentTooLong indicates a send exceeding MaxContentRunes.
	ErrContentTooLong = errors.New("chat: message content too long")
)

// Notifier receives change events after successful mutations, typically to
// push them to connected clients. A nil Notifier disables push.
type Notifier interface {
	MessageCreated(chatID string, participants []string, msg *Message)
	ChatUpdated(chatID string, participants []string)
	ChatDeleted(chatID string, participants []string)
}

// Service implements the conversation operations against the document store.
// Every operation takes the acting user id; an empty id fails with
// ErrNotAuthenticated before any store traffic.
type Service struct {
	store    store.Store
	notifier Notifier

	// now supplies message timestamps; the service is the store's peer on the
	// server, so one clock read per append keeps the log entry and the
	// denormalized preview identical.
	now func() time.Time
}

// NewService creates a chat Service. notifier may be nil.
func NewService(s store.Store, notifier Notifier) *Service {
	return &Service{store: s, notifier: notifier, now: time.Now}
}

// SetNotifier attaches the push notifier after construction. The hub consumes
// the service for inbound commands, so the two are wired in stages.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// CreateOrGetChat resolves the conversation for (me, other), creating it with
// default flags on first contact. The id is deterministic in the canonical
// pair, so repeated and concurrent calls all land on the same conversation.
func (s *Service) CreateOrGetChat(ctx context.Context, me, other string) (string, error) {
	if me == "" {
		return "", ErrNotAuthenticated
	}
	if other == "" || other == me {
		return "", ErrInvalidCounterpart
	}

	pair := ParticipantPair(me, other)
	chatID := ChatIDForPair(pair)

	_, err := s.store.Get(ctx, ChatsCollection, chatID)
	if err == nil {
		return chatID, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("chat: resolve %s: %w", chatID, err)
	}

	fresh := &Chat{
		ID:           chatID,
		Participants: pair,
	}

	err = s.store.Create(ctx, ChatsCollection, chatID, fresh.fields())
	if errors.Is(err, store.ErrExists) {
		// Lost the creation race; the winner wrote the same record.
		return chatID, nil
	}
	if err != nil {
		return "", fmt.Errorf("chat: create %s: %w", chatID, err)
	}

	if s.notifier != nil {
		s.notifier.ChatUpdated(chatID, pair)
	}
	return chatID, nil
}

// SendMessage appends a message to the conversation log and updates the
// denormalized last-message preview, unread counter, and updated-at stamp.
// The append and the preview update commit as a unit when the store supports
// transactions.
func (s *Service) SendMessage(ctx context.Context, me, chatID, content string) (*Message, error) {
	if me == "" {
		return nil, ErrNotAuthenticated
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > MaxContentRunes {
		return nil, ErrContentTooLong
	}

	msg := &Message{
		ID:        randx.NewID(),
		ChatID:    chatID,
		SenderID:  me,
		Content:   content,
		Type:      TypeText,
		Timestamp: s.now().UTC(),
	}

	var participants []string

	err := store.InTransaction(ctx, s.store, func(tx store.Store) error {
		doc, err := tx.Get(ctx, ChatsCollection, chatID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrChatNotFound
		}
		if err != nil {
			return fmt.Errorf("chat: load %s: %w", chatID, err)
		}

		c := chatFromDocument(doc)
		if !c.HasParticipant(me) {
			return ErrChatNotFound
		}
		participants = c.Participants

		if c.VanishMode && c.VanishTimer > 0 {
			msg.VanishAt = msg.Timestamp.Add(time.Duration(c.VanishTimer) * time.Second)
		}

		if err := tx.Create(ctx, MessagesCollection, msg.ID, messageCreateFields(msg)); err != nil {
			return fmt.Errorf("chat: append message: %w", err)
		}

		return tx.Update(ctx, ChatsCollection, chatID, store.Fields{
			"lastMessage": lastMessageFields(&LastMessage{
				ID:        msg.ID,
				SenderID:  msg.SenderID,
				Content:   msg.Content,
				Timestamp: msg.Timestamp,
			}),
			"unreadCount": c.UnreadCount + 1,
			"updatedAt":   msg.Timestamp,
		})
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.MessageCreated(chatID, participants, msg)
	}
	return msg, nil
}

// ListChats rebuilds the caller's conversation list: every conversation the
// caller participates in, joined with the counterpart's profile, pinned
// conversations first and the rest by most recent activity.
func (s *Service) ListChats(ctx context.Context, me string) ([]*Preview, error) {
	if me == "" {
		return nil, ErrNotAuthenticated
	}

	docs, err := s.store.Query(ctx, ChatsCollection, store.Query{
		Filters: []store.Filter{store.ArrayContains("participants", me)},
	})
	if err != nil {
		return nil, fmt.Errorf("chat: list for %s: %w", me, err)
	}

	previews := make([]*Preview, 0, len(docs))
	for _, doc := range docs {
		c := chatFromDocument(doc)

		otherID := c.Counterpart(me)
		if otherID == "" {
			continue
		}

		userDoc, err := s.store.Get(ctx, user.Collection, otherID)
		if errors.Is(err, store.ErrNotFound) {
			// Counterpart account vanished; hide the conversation rather
			// than failing the whole list.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("chat: load counterpart %s: %w", otherID, err)
		}

		previews = append(previews, &Preview{Chat: *c, User: user.FromDocument(userDoc)})
	}

	sort.SliceStable(previews, func(i, j int) bool {
		if previews[i].Pinned != previews[j].Pinned {
			return previews[i].Pinned
		}
		return lastActivity(&previews[i].Chat).After(lastActivity(&previews[j].Chat))
	})

	return previews, nil
}

// ListMessages reads a page of the conversation log, ordered by timestamp
// ascending. A non-zero before timestamp returns the page ending just before
// it, which walking backwards through history uses.
func (s *Service) ListMessages(ctx context.Context, me, chatID string, before time.Time, limit int) ([]*Message, error) {
	if me == "" {
		return nil, ErrNotAuthenticated
	}
	if _, err := s.requireParticipant(ctx, s.store, me, chatID); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	q := store.Query{
		Filters:    []store.Filter{store.Eq("chatId", chatID)},
		OrderBy:    "timestamp",
		Descending: true,
		Limit:      limit,
	}
	if !before.IsZero() {
		q.StartAfter = store.EncodeTime(before)
	}

	docs, err := s.store.Query(ctx, MessagesCollection, q)
	if err != nil {
		return nil, fmt.Errorf("chat: list messages %s: %w", chatID, err)
	}

	// The query walks newest-first for pagination; present oldest-first.
	msgs := make([]*Message, len(docs))
	for i, doc := range docs {
		msgs[len(docs)-1-i] = messageFromDocument(doc)
	}
	return msgs, nil
}

// MarkChatRead resets the unread counter and flips the read flag on messages
// the caller received.
func (s *Service) MarkChatRead(ctx context.Context, me, chatID string) error {
	if me == "" {
		return ErrNotAuthenticated
	}
	if _, err := s.requireParticipant(ctx, s.store, me, chatID); err != nil {
		return err
	}

	if err := s.store.Update(ctx, ChatsCollection, chatID, store.Fields{"unreadCount": 0}); err != nil {
		return fmt.Errorf("chat: reset unread %s: %w", chatID, err)
	}

	docs, err := s.store.Query(ctx, MessagesCollection, store.Query{
		Filters: []store.Filter{
			store.Eq("chatId", chatID),
			store.Eq("isRead", false),
		},
	})
	if err != nil {
		return fmt.Errorf("chat: find unread %s: %w", chatID, err)
	}

	for _, doc := range docs {
		if store.AsString(doc.Fields["senderId"]) == me {
			continue
		}
		if err := s.store.Update(ctx, MessagesCollection, doc.ID, store.Fields{"isRead": true}); err != nil {
			return fmt.Errorf("chat: mark read %s: %w", doc.ID, err)
		}
	}
	return nil
}

// Flag identifies a toggleable conversation setting.
type Flag string

const (
	FlagLocked     Flag = "isLocked"
	FlagPinned     Flag = "isPinned"
	FlagArchived   Flag = "isArchived"
	FlagHidden     Flag = "isHidden"
	FlagVanishMode Flag = "isVanishMode"
)

// ToggleLock flips the locked flag.
func (s *Service) ToggleLock(ctx context.Context, me, chatID string) (*Chat, error) {
	return s.toggleFlag(ctx, me, chatID, FlagLocked, 0)
}

// TogglePin flips the pinned flag.
func (s *Service) TogglePin(ctx context.Context, me, chatID string) (*Chat, error) {
	return s.toggleFlag(ctx, me, chatID, FlagPinned, 0)
}

// ToggleArchive flips the archived flag.
func (s *Service) ToggleArchive(ctx context.Context, me, chatID string) (*Chat, error) {
	return s.toggleFlag(ctx, me, chatID, FlagArchived, 0)
}

// ToggleHide flips the hidden flag.
func (s *Service) ToggleHide(ctx context.Context, me, chatID string) (*Chat, error) {
	return s.toggleFlag(ctx, me, chatID, FlagHidden, 0)
}

// ToggleVanishMode flips vanish mode. Enabling sets the timer to timerSeconds
// (DefaultVanishTimer when <= 0); disabling always resets it to 0.
func (s *Service) ToggleVanishMode(ctx context.Context, me, chatID string, timerSeconds int) (*Chat, error) {
	if timerSeconds <= 0 {
		timerSeconds = DefaultVanishTimer
	}
	return s.toggleFlag(ctx, me, chatID, FlagVanishMode, timerSeconds)
}

// toggleFlag reads the current flag value and writes its negation. A chat id
// that does not resolve for the caller is a silent no-op, returning (nil, nil).
func (s *Service) toggleFlag(ctx context.Context, me, chatID string, flag Flag, vanishTimer int) (*Chat, error) {
	if me == "" {
		return nil, ErrNotAuthenticated
	}

	c, err := s.requireParticipant(ctx, s.store, me, chatID)
	if errors.Is(err, ErrChatNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	fields := store.Fields{}
	switch flag {
	case FlagLocked:
		c.Locked = !c.Locked
		fields[string(flag)] = c.Locked
	case FlagPinned:
		c.Pinned = !c.Pinned
		fields[string(flag)] = c.Pinned
	case FlagArchived:
		c.Archived = !c.Archived
		fields[string(flag)] = c.Archived
	case FlagHidden:
		c.Hidden = !c.Hidden
		fields[string(flag)] = c.Hidden
	case FlagVanishMode:
		c.VanishMode = !c.VanishMode
		if c.VanishMode {
			c.VanishTimer = vanishTimer
		} else {
			c.VanishTimer = 0
		}
		fields[string(flag)] = c.VanishMode
		fields["vanishTimer"] = c.VanishTimer
	default:
		return nil, fmt.Errorf("chat: unknown flag %q", flag)
	}

	if err := s.store.Update(ctx, ChatsCollection, chatID, fields); err != nil {
		return nil, fmt.Errorf("chat: toggle %s on %s: %w", flag, chatID, err)
	}

	if s.notifier != nil {
		s.notifier.ChatUpdated(chatID, c.Participants)
	}
	return c, nil
}

// DeleteChat removes a conversation and its message log. The message cascade
// is explicit and best-effort: the first failure aborts with the conversation
// record still intact.
func (s *Service) DeleteChat(ctx context.Context, me, chatID string) error {
	if me == "" {
		return ErrNotAuthenticated
	}

	c, err := s.requireParticipant(ctx, s.store, me, chatID)
	if errors.Is(err, ErrChatNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	docs, err := s.store.Query(ctx, MessagesCollection, store.Query{
		Filters: []store.Filter{store.Eq("chatId", chatID)},
	})
	if err != nil {
		return fmt.Errorf("chat: collect messages of %s: %w", chatID, err)
	}

	for _, doc := range docs {
		if err := s.store.Delete(ctx, MessagesCollection, doc.ID); err != nil {
			return fmt.Errorf("chat: cascade delete %s: %w", doc.ID, err)
		}
	}

	if err := s.store.Delete(ctx, ChatsCollection, chatID); err != nil {
		return fmt.Errorf("chat: delete %s: %w", chatID, err)
	}

	if s.notifier != nil {
		s.notifier.ChatDeleted(chatID, c.Participants)
	}
	return nil
}

// PanicWipe deletes every conversation the caller participates in,
// sequentially and best-effort. Only whole-batch success or failure is
// reported; a failure partway leaves the remaining conversations untouched.
func (s *Service) PanicWipe(ctx context.Context, me string) error {
	if me == "" {
		return ErrNotAuthenticated
	}

	docs, err := s.store.Query(ctx, ChatsCollection, store.Query{
		Filters: []store.Filter{store.ArrayContains("participants", me)},
	})
	if err != nil {
		return fmt.Errorf("chat: wipe query for %s: %w", me, err)
	}

	for _, doc := range docs {
		if err := s.DeleteChat(ctx, me, doc.ID); err != nil {
			logx.Error(err, "panic wipe aborted", "chat_id", doc.ID)
			return fmt.Errorf("chat: wipe aborted at %s: %w", doc.ID, err)
		}
	}
	return nil
}

// requireParticipant loads the conversation and verifies the caller belongs
// to it, folding "absent" and "not yours" into ErrChatNotFound.
func (s *Service) requireParticipant(ctx context.Context, st store.Store, me, chatID string) (*Chat, error) {
	doc, err := st.Get(ctx, ChatsCollection, chatID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("chat: load %s: %w", chatID, err)
	}

	c := chatFromDocument(doc)
	if !c.HasParticipant(me) {
		return nil, ErrChatNotFound
	}
	return c, nil
}

// messageCreateFields builds the stored representation of a new message.
func messageCreateFields(msg *Message) store.Fields {
	f := store.Fields{
		"chatId":    msg.ChatID,
		"senderId":  msg.SenderID,
		"content":   msg.Content,
		"type":      string(msg.Type),
		"timestamp": msg.Timestamp,
		"isRead":    false,
	}
	if !msg.VanishAt.IsZero() {
		f["vanishAt"] = msg.VanishAt
		f["vanishes"] = true
	}
	return f
}

// lastActivity is the sort key for the conversation list.
func lastActivity(c *Chat) time.Time {
	if c.LastMessage != nil {
		return c.LastMessage.Timestamp
	}
	return c.CreatedAt
}
