package collector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelStore(t *testing.T) {
	ctx := context.Background()
	store := newLevelStore(t)

	now := time.Now().UTC().Truncate(time.Second)
	for _, c := range []StoredChunk{
		{Session: "b", Name: "f_chunk_0001.txt", Content: "two", ReceivedAt: now},
		{Session: "a", Name: "f_chunk_0000.txt", Content: "one", ReceivedAt: now},
		{Session: "ab", Name: "f_chunk_0000.txt", Content: "three", ReceivedAt: now},
		{Session: "a", Name: "f_chunk_0002.txt", Content: "four", ReceivedAt: now},
	} {
		stored, err := store.Put(ctx, c)
		require.NoError(t, err)
		require.True(t, stored)
	}

	sessions, err := store.Sessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "ab", "b"}, sessions)

	// "a" must not pick up entries of session "ab"
	chunks, err := store.SessionChunks(ctx, "a")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "one", chunks[0].Content)
	assert.Equal(t, "four", chunks[1].Content)
	assert.True(t, now.Equal(chunks[0].ReceivedAt))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	require.NoError(t, store.Clear(ctx))

	count, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	chunks, err = store.SessionChunks(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestLevelStore_PutKeepsFirst(t *testing.T) {
	ctx := context.Background()
	store := newLevelStore(t)

	c := StoredChunk{Session: "s", Name: "n", Content: "old"}
	stored, err := store.Put(ctx, c)
	require.NoError(t, err)
	assert.True(t, stored)

	c.Content = "new"
	stored, err = store.Put(ctx, c)
	require.NoError(t, err)
	assert.False(t, stored)

	chunks, err := store.SessionChunks(ctx, "s")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "old", chunks[0].Content)
}

func TestSortByReceipt(t *testing.T) {
	now := time.Now().UTC()
	chunks := []StoredChunk{
		{Session: "b", Name: "f_chunk_0000.txt", ReceivedAt: now.Add(time.Second)},
		{Session: "a", Name: "f_chunk_0000_0123456789ab.txt", ReceivedAt: now},
		{Session: "a", Name: "f_chunk_0000.txt", ReceivedAt: now},
	}

	sortByReceipt(chunks)

	assert.Equal(t, "f_chunk_0000.txt", chunks[0].Name)
	assert.Equal(t, "f_chunk_0000_0123456789ab.txt", chunks[1].Name)
	assert.Equal(t, "b", chunks[2].Session)
}
