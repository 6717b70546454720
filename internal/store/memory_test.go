package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatnova/backend/internal/models"
)

func TestMemoryStore_CreateAndFetch(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	id, err := st.Create(ctx, "u1", "New Chat")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	conv, err := st.FetchByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, conv.ID)
	assert.Equal(t, "u1", conv.UserID)
	assert.Equal(t, "New Chat", conv.Title)
	assert.Empty(t, conv.Messages)
	assert.True(t, conv.CreatedAt.Equal(conv.UpdatedAt))
}

func TestMemoryStore_FetchMissing(t *testing.T) {
	st := NewMemoryStore()

	_, err := st.FetchByID(context.Background(), "missing")
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestMemoryStore_ListFiltersAndSorts(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	first, err := st.Create(ctx, "u1", "first")
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	_, err = st.Create(ctx, "u1", "second")
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	_, err = st.Create(ctx, "u2", "other owner")
	require.NoError(t, err)

	// Touching the oldest conversation moves it to the front.
	time.Sleep(time.Millisecond)
	msg := models.Message{Role: models.RoleUser, Content: "hi", Timestamp: time.Now()}
	require.NoError(t, st.ReplaceMessages(ctx, first, []models.Message{msg}))

	conversations, err := st.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, conversations, 2)
	assert.Equal(t, "first", conversations[0].Title)
	assert.Equal(t, "second", conversations[1].Title)
}

func TestMemoryStore_ReplaceMessages(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	id, err := st.Create(ctx, "u1", "New Chat")
	require.NoError(t, err)
	created, err := st.FetchByID(ctx, id)
	require.NoError(t, err)

	time.Sleep(time.Millisecond)
	msgs := []models.Message{
		{Role: models.RoleUser, Content: "hi", Timestamp: time.Now()},
		{Role: models.RoleAssistant, Content: "hello", Timestamp: time.Now()},
	}
	require.NoError(t, st.ReplaceMessages(ctx, id, msgs))

	conv, err := st.FetchByID(ctx, id)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	assert.True(t, conv.UpdatedAt.After(created.UpdatedAt))
	assert.True(t, conv.CreatedAt.Equal(created.CreatedAt))
}

func TestMemoryStore_ReplaceMessagesMissing(t *testing.T) {
	st := NewMemoryStore()

	err := st.ReplaceMessages(context.Background(), "missing", nil)
	require.ErrorIs(t, err, models.ErrNotFound)
}

// The store has no concurrency token: the later of two read-modify-write
// sequences silently wins. This documents the accepted lost-update behavior.
func TestMemoryStore_LastWriterWins(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	id, err := st.Create(ctx, "u1", "New Chat")
	require.NoError(t, err)

	base, err := st.FetchByID(ctx, id)
	require.NoError(t, err)

	writerA := append([]models.Message{}, base.Messages...)
	writerA = append(writerA, models.Message{Role: models.RoleUser, Content: "from A", Timestamp: time.Now()})
	writerB := append([]models.Message{}, base.Messages...)
	writerB = append(writerB, models.Message{Role: models.RoleUser, Content: "from B", Timestamp: time.Now()})

	require.NoError(t, st.ReplaceMessages(ctx, id, writerA))
	require.NoError(t, st.ReplaceMessages(ctx, id, writerB))

	conv, err := st.FetchByID(ctx, id)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, "from B", conv.Messages[0].Content)
}

func TestMemoryStore_Delete(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	id, err := st.Create(ctx, "u1", "New Chat")
	require.NoError(t, err)

	require.NoError(t, st.Delete(ctx, id))

	_, err = st.FetchByID(ctx, id)
	require.ErrorIs(t, err, models.ErrNotFound)

	err = st.Delete(ctx, id)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestMemoryStore_FetchReturnsCopy(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	id, err := st.Create(ctx, "u1", "New Chat")
	require.NoError(t, err)
	require.NoError(t, st.ReplaceMessages(ctx, id, []models.Message{
		{Role: models.RoleUser, Content: "hi", Timestamp: time.Now()},
	}))

	conv, err := st.FetchByID(ctx, id)
	require.NoError(t, err)
	conv.Messages[0].Content = "mutated"

	fresh, err := st.FetchByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "hi", fresh.Messages[0].Content)
}
