package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// TestMemoryStore_GetNotFound verifies absent documents return ErrNotFound.
func TestMemoryStore_GetNotFound(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	_, err := m.Get(ctx, "users", "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestMemoryStore_PutGet verifies a round trip through Put and Get.
func TestMemoryStore_PutGet(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, "users", "u1", Fields{"name": "Ada", "isOnline": true}))

	doc, err := m.Get(ctx, "users", "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", doc.ID)
	assert.Equal(t, "Ada", AsString(doc.Fields["name"]))
	assert.True(t, AsBool(doc.Fields["isOnline"]))
}

// TestMemoryStore_CreateConflict verifies Create is put-if-absent.
func TestMemoryStore_CreateConflict(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, m.Create(ctx, "users", "u1", Fields{"name": "Ada"}))

	err := m.Create(ctx, "users", "u1", Fields{"name": "Bob"})
	assert.ErrorIs(t, err, ErrExists)

	doc, err := m.Get(ctx, "users", "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", AsString(doc.Fields["name"]), "losing create must not overwrite")
}

// TestMemoryStore_UpdateMergesFields verifies Update is a shallow merge that
// leaves untouched fields intact.
func TestMemoryStore_UpdateMergesFields(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, "users", "u1", Fields{"name": "Ada", "bio": "hi"}))
	require.NoError(t, m.Update(ctx, "users", "u1", Fields{"bio": "bye"}))

	doc, err := m.Get(ctx, "users", "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", AsString(doc.Fields["name"]))
	assert.Equal(t, "bye", AsString(doc.Fields["bio"]))

	err = m.Update(ctx, "users", "missing", Fields{"bio": "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestMemoryStore_DeleteIdempotent verifies deleting an absent document succeeds.
func TestMemoryStore_DeleteIdempotent(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, "users", "u1", Fields{"name": "Ada"}))
	require.NoError(t, m.Delete(ctx, "users", "u1"))
	require.NoError(t, m.Delete(ctx, "users", "u1"))

	_, err := m.Get(ctx, "users", "u1")
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestMemoryStore_ServerTimestamp verifies the sentinel resolves to the store
// clock, including inside nested field maps.
func TestMemoryStore_ServerTimestamp(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 123456789, time.UTC)
	m := NewMemoryStoreWithClock(fixedClock(at))
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, "chats", "c1", Fields{
		"createdAt": ServerTimestamp,
		"lastMessage": Fields{
			"timestamp": ServerTimestamp,
		},
	}))

	doc, err := m.Get(ctx, "chats", "c1")
	require.NoError(t, err)

	assert.Equal(t, EncodeTime(at), AsString(doc.Fields["createdAt"]))
	nested := AsFields(doc.Fields["lastMessage"])
	require.NotNil(t, nested)
	assert.Equal(t, EncodeTime(at), AsString(nested["timestamp"]))
	assert.Equal(t, at, AsTime(doc.Fields["createdAt"]))
}

// TestMemoryStore_QueryFilters verifies equality and array-contains filters.
func TestMemoryStore_QueryFilters(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, "chats", "c1", Fields{"participants": []string{"a", "b"}, "isHidden": false}))
	require.NoError(t, m.Put(ctx, "chats", "c2", Fields{"participants": []string{"a", "c"}, "isHidden": true}))
	require.NoError(t, m.Put(ctx, "chats", "c3", Fields{"participants": []string{"b", "c"}, "isHidden": false}))

	docs, err := m.Query(ctx, "chats", Query{
		Filters: []Filter{ArrayContains("participants", "a")},
	})
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	docs, err = m.Query(ctx, "chats", Query{
		Filters: []Filter{
			ArrayContains("participants", "a"),
			Eq("isHidden", true),
		},
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "c2", docs[0].ID)
}

// TestMemoryStore_QueryOrderAndPage verifies ordered descending reads with
// StartAfter pagination and a limit.
func TestMemoryStore_QueryOrderAndPage(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		ts := base.Add(time.Duration(i) * time.Second)
		require.NoError(t, m.Put(ctx, "messages", string(rune('a'+i)), Fields{
			"chatId":    "c1",
			"timestamp": ts,
		}))
	}

	// Newest two.
	docs, err := m.Query(ctx, "messages", Query{
		Filters:    []Filter{Eq("chatId", "c1")},
		OrderBy:    "timestamp",
		Descending: true,
		Limit:      2,
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "e", docs[0].ID)
	assert.Equal(t, "d", docs[1].ID)

	// Next page, strictly older than the last one seen.
	docs, err = m.Query(ctx, "messages", Query{
		Filters:    []Filter{Eq("chatId", "c1")},
		OrderBy:    "timestamp",
		Descending: true,
		StartAfter: EncodeTime(base.Add(3 * time.Second)),
		Limit:      2,
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "c", docs[0].ID)
	assert.Equal(t, "b", docs[1].ID)
}

// TestEncodeTime_LexicalOrder verifies the canonical encoding sorts
// lexically in chronological order, which ordered queries depend on.
func TestEncodeTime_LexicalOrder(t *testing.T) {
	times := []time.Time{
		time.Date(2024, 12, 31, 23, 59, 59, 999999999, time.UTC),
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 1, 0, 0, 0, 1, time.UTC),
		time.Date(2025, 10, 5, 8, 30, 0, 500, time.UTC),
	}

	for i := 1; i < len(times); i++ {
		assert.Less(t, EncodeTime(times[i-1]), EncodeTime(times[i]))
	}
}

// TestMemoryStore_TransactionCommit verifies buffered writes apply on success.
func TestMemoryStore_TransactionCommit(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	err := m.RunTransaction(ctx, func(tx Store) error {
		if err := tx.Create(ctx, "accounts", "a@x.com", Fields{"userId": "u1"}); err != nil {
			return err
		}
		return tx.Put(ctx, "users", "u1", Fields{"name": "Ada"})
	})
	require.NoError(t, err)

	_, err = m.Get(ctx, "accounts", "a@x.com")
	assert.NoError(t, err)
	_, err = m.Get(ctx, "users", "u1")
	assert.NoError(t, err)
}

// TestMemoryStore_TransactionRollback verifies no write survives a failed
// transaction function.
func TestMemoryStore_TransactionRollback(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	boom := errors.New("boom")
	err := m.RunTransaction(ctx, func(tx Store) error {
		if err := tx.Put(ctx, "users", "u1", Fields{"name": "Ada"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = m.Get(ctx, "users", "u1")
	assert.ErrorIs(t, err, ErrNotFound, "buffered write must not leak out of a failed transaction")
}

// TestMemoryStore_TransactionReadsPreState verifies transaction reads see the
// state as of transaction start, not buffered writes.
func TestMemoryStore_TransactionReadsPreState(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, "chats", "c1", Fields{"unreadCount": 1}))

	err := m.RunTransaction(ctx, func(tx Store) error {
		doc, err := tx.Get(ctx, "chats", "c1")
		if err != nil {
			return err
		}
		return tx.Update(ctx, "chats", "c1", Fields{"unreadCount": AsInt(doc.Fields["unreadCount"]) + 1})
	})
	require.NoError(t, err)

	doc, err := m.Get(ctx, "chats", "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, AsInt(doc.Fields["unreadCount"]))
}

// TestMemoryStore_DeepCopies verifies callers cannot mutate stored state
// through returned documents.
func TestMemoryStore_DeepCopies(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, "chats", "c1", Fields{"participants": []string{"a", "b"}}))

	doc, err := m.Get(ctx, "chats", "c1")
	require.NoError(t, err)
	AsStringSlice(doc.Fields["participants"])[0] = "mutated"

	again, err := m.Get(ctx, "chats", "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, AsStringSlice(again.Fields["participants"]))
}
