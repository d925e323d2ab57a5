package chat

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/realty-assistant/backend/internal/model/chat"
)

func TestGetOrCreateMintsIdentifier(t *testing.T) {
	store := NewStore(StoreConfig{})

	id, created := store.GetOrCreate("")
	require.NotEmpty(t, id)
	assert.True(t, created)

	again, created := store.GetOrCreate(id)
	assert.Equal(t, id, again)
	assert.False(t, created)

	other, _ := store.GetOrCreate("")
	assert.NotEqual(t, id, other)
}

func TestGetOrCreateAcceptsUnknownIdentifier(t *testing.T) {
	store := NewStore(StoreConfig{})

	id, created := store.GetOrCreate("client-supplied")
	assert.Equal(t, "client-supplied", id)
	assert.True(t, created)
	assert.Empty(t, store.History(id))
}

func TestAppendUnknownSession(t *testing.T) {
	store := NewStore(StoreConfig{})

	err := store.Append("missing", chat.NewTurn(chat.RoleUser, "hi"))
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestAppendKeepsInsertionOrder(t *testing.T) {
	store := NewStore(StoreConfig{})
	id, _ := store.GetOrCreate("")

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Append(id, chat.NewTurn(chat.RoleUser, fmt.Sprintf("q%d", i))))
		require.NoError(t, store.Append(id, chat.NewTurn(chat.RoleAssistant, fmt.Sprintf("a%d", i))))
	}

	history := store.History(id)
	require.Len(t, history, 6)
	for i, turn := range history {
		wantRole := chat.RoleUser
		if i%2 == 1 {
			wantRole = chat.RoleAssistant
		}
		assert.Equal(t, wantRole, turn.Role)
		assert.False(t, turn.CreatedAt.IsZero())
	}
	assert.Equal(t, "q0", history[0].Content)
	assert.Equal(t, "a2", history[5].Content)
}

func TestRecentWindowReturnsLatestTurns(t *testing.T) {
	store := NewStore(StoreConfig{})
	id, _ := store.GetOrCreate("")

	for i := 0; i < 14; i++ {
		require.NoError(t, store.Append(id, chat.NewTurn(chat.RoleUser, fmt.Sprintf("m%d", i))))
	}

	window := store.RecentWindow(id, 10)
	require.Len(t, window, 10)
	assert.Equal(t, "m4", window[0].Content)
	assert.Equal(t, "m13", window[9].Content)

	short := store.RecentWindow(id, 50)
	assert.Len(t, short, 14)

	assert.Empty(t, store.RecentWindow(id, 0))
	assert.Empty(t, store.RecentWindow("missing", 10))
}

func TestHistoryReturnsCopy(t *testing.T) {
	store := NewStore(StoreConfig{})
	id, _ := store.GetOrCreate("")
	require.NoError(t, store.Append(id, chat.NewTurn(chat.RoleUser, "original")))

	first := store.History(id)
	first[0].Content = "mutated"

	second := store.History(id)
	assert.Equal(t, "original", second[0].Content)
	assert.Equal(t, store.History(id), second)
}

func TestHistoryUnknownSessionIsEmpty(t *testing.T) {
	store := NewStore(StoreConfig{})

	history := store.History("nonexistent")
	require.NotNil(t, history)
	assert.Empty(t, history)
}

func TestClear(t *testing.T) {
	store := NewStore(StoreConfig{})
	id, _ := store.GetOrCreate("")
	require.NoError(t, store.Append(id, chat.NewTurn(chat.RoleUser, "hi")))

	assert.True(t, store.Clear(id))
	assert.Empty(t, store.History(id))
	assert.False(t, store.Clear(id))
	assert.False(t, store.Clear("never-existed"))
	assert.Equal(t, 0, store.Stats().Sessions)
}

func TestAppendAfterClearFails(t *testing.T) {
	store := NewStore(StoreConfig{})
	id, _ := store.GetOrCreate("")
	sess := store.lookup(id)

	store.Clear(id)

	// A request that resolved the session before the clear must not resurrect it.
	sess.mu.Lock()
	closed := sess.closed
	sess.mu.Unlock()
	assert.True(t, closed)
	assert.ErrorIs(t, store.Append(id, chat.NewTurn(chat.RoleUser, "late")), ErrSessionNotFound)
}

func TestMaxTurnsDropsOldest(t *testing.T) {
	store := NewStore(StoreConfig{MaxTurns: 4})
	id, _ := store.GetOrCreate("")

	for i := 0; i < 7; i++ {
		require.NoError(t, store.Append(id, chat.NewTurn(chat.RoleUser, fmt.Sprintf("m%d", i))))
	}

	history := store.History(id)
	require.Len(t, history, 4)
	assert.Equal(t, "m3", history[0].Content)
	assert.Equal(t, "m6", history[3].Content)
}

func TestCleanupExpired(t *testing.T) {
	store := NewStore(StoreConfig{TTL: time.Hour})
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	stale, _ := store.GetOrCreate("stale")
	fresh, _ := store.GetOrCreate("fresh")
	require.NoError(t, store.Append(stale, chat.NewTurn(chat.RoleUser, "old")))

	now = now.Add(50 * time.Minute)
	require.NoError(t, store.Append(fresh, chat.NewTurn(chat.RoleUser, "new")))

	now = now.Add(20 * time.Minute)
	assert.Equal(t, 1, store.CleanupExpired())
	assert.Empty(t, store.History(stale))
	assert.Len(t, store.History(fresh), 1)
	assert.Equal(t, Stats{Sessions: 1, Turns: 1}, store.Stats())
}

func TestCleanupExpiredDisabledWithoutTTL(t *testing.T) {
	store := NewStore(StoreConfig{})
	store.GetOrCreate("a")
	store.now = func() time.Time { return time.Now().Add(1000 * time.Hour) }

	assert.Equal(t, 0, store.CleanupExpired())
	assert.Equal(t, 1, store.Stats().Sessions)
}

func TestConcurrentAppendsSameSession(t *testing.T) {
	store := NewStore(StoreConfig{})
	id, _ := store.GetOrCreate("")

	const writers, perWriter = 16, 50
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_ = store.Append(id, chat.NewTurn(chat.RoleUser, fmt.Sprintf("%d-%d", w, i)))
				_ = store.RecentWindow(id, 10)
			}
		}(w)
	}
	wg.Wait()

	assert.Len(t, store.History(id), writers*perWriter)
}

func TestConcurrentSessionsAreIndependent(t *testing.T) {
	store := NewStore(StoreConfig{})

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		ids[i], _ = store.GetOrCreate("")
	}
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				_ = store.Append(id, chat.NewTurn(chat.RoleUser, "x"))
			}
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Len(t, store.History(id), 20)
	}
}
