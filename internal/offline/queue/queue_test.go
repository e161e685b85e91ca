package queue_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kpisonic1/puppyclass/internal/models"
	"github.com/kpisonic1/puppyclass/internal/offline/queue"
)

func openQueue(t *testing.T, dir string) *queue.Queue {
	t.Helper()
	q, err := queue.Open(dir, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func TestPutEntriesRoundTrip(t *testing.T) {
	q := openQueue(t, t.TempDir())

	want := models.QueuedSession{
		ID:        "s1",
		TS:        "2026-08-29T10:00:00Z",
		Breed:     "corgi",
		Notes:     "good puppy",
		ImageBlob: []byte{0x89, 0x50, 0x4e, 0x47, 0x00, 0xff},
	}
	require.NoError(t, q.Put("k1", want))

	entries, err := q.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "k1", entries[0].Key)
	assert.Equal(t, want, entries[0].Session)
}

func TestEntriesEmpty(t *testing.T) {
	q := openQueue(t, t.TempDir())

	entries, err := q.Entries()
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestEntriesKeyOrder(t *testing.T) {
	q := openQueue(t, t.TempDir())

	require.NoError(t, q.Put("b", models.QueuedSession{ID: "second"}))
	require.NoError(t, q.Put("a", models.QueuedSession{ID: "first"}))

	entries, err := q.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Key)
	assert.Equal(t, "b", entries[1].Key)
}

func TestDelete(t *testing.T) {
	q := openQueue(t, t.TempDir())

	require.NoError(t, q.Put("k1", models.QueuedSession{ID: "s1"}))
	require.NoError(t, q.Delete("k1"))

	entries, err := q.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)

	// Deleting an absent key is not an error.
	assert.NoError(t, q.Delete("k1"))
}

func TestReopenKeepsRecords(t *testing.T) {
	dir := t.TempDir()

	q, err := queue.Open(dir, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, q.Put("k1", models.QueuedSession{ID: "s1", ImageBlob: []byte{1, 2, 3}}))
	require.NoError(t, q.Close())

	q = openQueue(t, dir)
	entries, err := q.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "s1", entries[0].Session.ID)
	assert.Equal(t, []byte{1, 2, 3}, entries[0].Session.ImageBlob)
}

func TestNewKeySortsByCreationTime(t *testing.T) {
	now := time.Now()
	earlier := queue.NewKey(now)
	later := queue.NewKey(now.Add(time.Second))
	assert.Less(t, earlier, later)
}
