package session

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storeContract(t *testing.T, store Store) {
	t.Helper()

	s := &Session{
		ID:            "sess-1",
		UserID:        "alice",
		LoginTime:     time.Now().UTC().Truncate(time.Second),
		LastActivity:  time.Now().UTC().Truncate(time.Second),
		ClientIP:      "203.0.113.7",
		UserAgent:     desktopUA,
		Permissions:   []string{"read", "write"},
		MaxInactivity: DefaultMaxInactivity,
		MaxDuration:   DefaultMaxDuration,
		LoginMethod:   LoginPassword,
		RiskScore:     50,
	}
	store.Put(s)

	got, ok := store.Get("sess-1")
	require.True(t, ok)
	assert.Equal(t, s.UserID, got.UserID)
	assert.Equal(t, s.Permissions, got.Permissions)
	assert.Equal(t, s.RiskScore, got.RiskScore)
	assert.True(t, s.LoginTime.Equal(got.LoginTime))

	// Update in place.
	got.RiskScore = 80
	store.Put(got)
	again, ok := store.Get("sess-1")
	require.True(t, ok)
	assert.Equal(t, 80, again.RiskScore)

	store.Put(&Session{ID: "sess-2", UserID: "alice"})
	store.Put(&Session{ID: "sess-3", UserID: "bob"})
	assert.Len(t, store.ByUser("alice"), 2)
	assert.Len(t, store.ByUser("bob"), 1)
	assert.Empty(t, store.ByUser("carol"))
	assert.Len(t, store.All(), 3)
	assert.Equal(t, 3, store.Len())

	store.Delete("sess-1")
	_, ok = store.Get("sess-1")
	assert.False(t, ok)
	assert.Equal(t, 2, store.Len())

	// Deleting a missing session is a no-op.
	store.Delete("sess-1")
}

func TestMemoryStore_Contract(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestBoltStore_Contract(t *testing.T) {
	store, err := NewBoltStoreFromFile(filepath.Join(t.TempDir(), "sessions.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	storeContract(t, store)
}

func TestBoltStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")

	store, err := NewBoltStoreFromFile(path, nil)
	require.NoError(t, err)
	store.Put(&Session{ID: "sess-1", UserID: "alice", RiskScore: 50})
	require.NoError(t, store.Close())

	reopened, err := NewBoltStoreFromFile(path, nil)
	require.NoError(t, err)
	defer reopened.Close()

	got, ok := reopened.Get("sess-1")
	require.True(t, ok)
	assert.Equal(t, "alice", got.UserID)
	assert.Equal(t, 50, got.RiskScore)
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	store.Put(&Session{ID: "sess-1", RiskScore: 10})

	got, _ := store.Get("sess-1")
	got.RiskScore = 99

	again, _ := store.Get("sess-1")
	assert.Equal(t, 10, again.RiskScore)
}
