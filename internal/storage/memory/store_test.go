package memory

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedbox/backend/internal/domain"
)

func saveTestInbox(t *testing.T, store *Store, id, signature string, expiresAt time.Time) *domain.Inbox {
	t.Helper()
	inbox := &domain.Inbox{
		ID:             id,
		Topic:          "Topic " + id,
		OwnerSignature: signature,
		ExpiresAt:      expiresAt,
		AllowAnonymous: true,
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, store.SaveInbox(inbox))
	return inbox
}

func TestStore_SaveAndGetInbox(t *testing.T) {
	store := NewStore()

	t.Run("保存后可按ID读取", func(t *testing.T) {
		saved := saveTestInbox(t, store, "inbox-1", "alice!0123456789", time.Now().UTC().Add(time.Hour))

		got, err := store.GetInbox("inbox-1")

		assert.NoError(t, err)
		assert.Equal(t, saved.Topic, got.Topic)
		assert.Equal(t, saved.OwnerSignature, got.OwnerSignature)
	})

	t.Run("读取不存在的收件箱返回NotFound", func(t *testing.T) {
		_, err := store.GetInbox("nonexistent")

		assert.ErrorIs(t, err, domain.ErrInboxNotFound)
	})

	t.Run("过期的收件箱依然可读", func(t *testing.T) {
		saveTestInbox(t, store, "inbox-expired", "alice!0123456789", time.Now().UTC().Add(-time.Hour))

		got, err := store.GetInbox("inbox-expired")

		assert.NoError(t, err)
		assert.True(t, got.IsExpired())
	})

	t.Run("返回的是副本而非内部对象", func(t *testing.T) {
		saveTestInbox(t, store, "inbox-copy", "alice!0123456789", time.Now().UTC().Add(time.Hour))

		got, err := store.GetInbox("inbox-copy")
		require.NoError(t, err)
		got.Topic = "mutated"

		again, err := store.GetInbox("inbox-copy")
		require.NoError(t, err)
		assert.Equal(t, "Topic inbox-copy", again.Topic)
	})
}

func TestStore_ListInboxesBySignature(t *testing.T) {
	store := NewStore()

	for i := 0; i < 5; i++ {
		inbox := &domain.Inbox{
			ID:             fmt.Sprintf("inbox-%d", i),
			Topic:          fmt.Sprintf("Topic %d", i),
			OwnerSignature: "alice!0123456789",
			ExpiresAt:      time.Now().UTC().Add(time.Hour),
			AllowAnonymous: true,
			CreatedAt:      time.Now().UTC().Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, store.SaveInbox(inbox))
	}
	saveTestInbox(t, store, "other", "bob!abcdef0123", time.Now().UTC().Add(time.Hour))

	t.Run("只返回该签名的收件箱且按创建时间倒序", func(t *testing.T) {
		items, err := store.ListInboxesBySignature("alice!0123456789", 10, 0)

		assert.NoError(t, err)
		require.Len(t, items, 5)
		assert.Equal(t, "inbox-4", items[0].ID)
		assert.Equal(t, "inbox-0", items[4].ID)
	})

	t.Run("分页参数生效", func(t *testing.T) {
		items, err := store.ListInboxesBySignature("alice!0123456789", 2, 2)

		assert.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "inbox-2", items[0].ID)
		assert.Equal(t, "inbox-1", items[1].ID)
	})

	t.Run("偏移越界返回空列表", func(t *testing.T) {
		items, err := store.ListInboxesBySignature("alice!0123456789", 10, 100)

		assert.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("未知签名返回空列表", func(t *testing.T) {
		items, err := store.ListInboxesBySignature("nobody!0000000000", 10, 0)

		assert.NoError(t, err)
		assert.Empty(t, items)
	})
}

func TestStore_Messages(t *testing.T) {
	store := NewStore()
	saveTestInbox(t, store, "inbox-1", "alice!0123456789", time.Now().UTC().Add(time.Hour))

	t.Run("新收件箱没有回复", func(t *testing.T) {
		has, err := store.HasMessages("inbox-1")
		assert.NoError(t, err)
		assert.False(t, has)

		items, err := store.ListMessages("inbox-1", 20, 0)
		assert.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("保存回复时分配ID", func(t *testing.T) {
		msg := &domain.Message{
			InboxID:   "inbox-1",
			Body:      "first reply",
			CreatedAt: time.Now().UTC(),
		}

		err := store.SaveMessage(msg)

		assert.NoError(t, err)
		assert.NotEmpty(t, msg.ID)
	})

	t.Run("向不存在的收件箱保存回复返回NotFound", func(t *testing.T) {
		err := store.SaveMessage(&domain.Message{InboxID: "nonexistent", Body: "x"})

		assert.ErrorIs(t, err, domain.ErrInboxNotFound)
	})

	t.Run("回复按创建时间倒序分页", func(t *testing.T) {
		base := time.Now().UTC()
		for i := 1; i <= 3; i++ {
			msg := &domain.Message{
				InboxID:   "inbox-1",
				Body:      fmt.Sprintf("reply %d", i),
				CreatedAt: base.Add(time.Duration(i) * time.Second),
			}
			require.NoError(t, store.SaveMessage(msg))
		}

		items, err := store.ListMessages("inbox-1", 2, 0)

		assert.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "reply 3", items[0].Body)
		assert.Equal(t, "reply 2", items[1].Body)

		has, err := store.HasMessages("inbox-1")
		assert.NoError(t, err)
		assert.True(t, has)
	})
}

func TestStore_PurgeExpiredInboxes(t *testing.T) {
	store := NewStore()

	// 过期超过保留期的收件箱
	old := saveTestInbox(t, store, "inbox-old", "alice!0123456789", time.Now().UTC().Add(-48*time.Hour))
	require.NoError(t, store.SaveMessage(&domain.Message{InboxID: old.ID, Body: "stale", CreatedAt: time.Now().UTC()}))
	// 刚过期但仍在保留期内的收件箱
	saveTestInbox(t, store, "inbox-recent", "alice!0123456789", time.Now().UTC().Add(-time.Minute))
	// 未过期的收件箱
	saveTestInbox(t, store, "inbox-live", "alice!0123456789", time.Now().UTC().Add(time.Hour))

	count, err := store.PurgeExpiredInboxes(24 * time.Hour)

	assert.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = store.GetInbox("inbox-old")
	assert.ErrorIs(t, err, domain.ErrInboxNotFound)

	_, err = store.GetInbox("inbox-recent")
	assert.NoError(t, err)

	_, err = store.GetInbox("inbox-live")
	assert.NoError(t, err)

	items, err := store.ListInboxesBySignature("alice!0123456789", 10, 0)
	assert.NoError(t, err)
	assert.Len(t, items, 2)
}
