package drain_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kpisonic1/puppyclass/internal/models"
	"github.com/kpisonic1/puppyclass/internal/offline/drain"
	"github.com/kpisonic1/puppyclass/internal/offline/queue"
)

// sessionServer accepts uploads for whitelisted ids and rejects the rest,
// counting every request it sees.
type sessionServer struct {
	mu       sync.Mutex
	accept   map[string]bool
	requests int
}

func (s *sessionServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests++
		s.mu.Unlock()

		if err := r.ParseMultipartForm(10 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		id := r.FormValue("id")
		if !s.accept[id] {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "id": id})
	}
}

func (s *sessionServer) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

func openQueue(t *testing.T) *queue.Queue {
	t.Helper()
	q, err := queue.Open(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func queuedIDs(t *testing.T, q *queue.Queue) []string {
	t.Helper()
	entries, err := q.Entries()
	require.NoError(t, err)
	ids := []string{}
	for _, e := range entries {
		ids = append(ids, e.Session.ID)
	}
	return ids
}

func TestDrainKeepsRejectedRecords(t *testing.T) {
	srv := &sessionServer{accept: map[string]bool{"s1": true, "s2": true}}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	q := openQueue(t)
	for i, id := range []string{"s1", "s2", "s3"} {
		key := queue.NewKey(time.Now().Add(time.Duration(i) * time.Second))
		require.NoError(t, q.Put(key, models.QueuedSession{ID: id, ImageBlob: []byte{1}}))
	}

	d := drain.New(q, ts.Client(), ts.URL, time.Second, zap.NewNop())
	require.NoError(t, d.Drain(context.Background(), drain.TagSyncSessions))

	assert.Equal(t, []string{"s3"}, queuedIDs(t, q))
	assert.Equal(t, 3, srv.count())
}

func TestDrainIdempotence(t *testing.T) {
	srv := &sessionServer{accept: map[string]bool{"s1": true}}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	q := openQueue(t)
	require.NoError(t, q.Put(queue.NewKey(time.Now()), models.QueuedSession{ID: "s1"}))

	d := drain.New(q, ts.Client(), ts.URL, time.Second, zap.NewNop())
	require.NoError(t, d.Drain(context.Background(), drain.TagSyncSessions))
	require.Empty(t, queuedIDs(t, q))

	// A second signal with nothing queued performs zero deliveries.
	require.NoError(t, d.Drain(context.Background(), drain.TagSyncSessions))
	assert.Equal(t, 1, srv.count())
}

func TestDrainIgnoresOtherTags(t *testing.T) {
	srv := &sessionServer{accept: map[string]bool{"s1": true}}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	q := openQueue(t)
	require.NoError(t, q.Put(queue.NewKey(time.Now()), models.QueuedSession{ID: "s1"}))

	d := drain.New(q, ts.Client(), ts.URL, time.Second, zap.NewNop())
	require.NoError(t, d.Drain(context.Background(), "sync-somethingelse"))

	assert.Equal(t, 0, srv.count())
	assert.Equal(t, []string{"s1"}, queuedIDs(t, q))
}

func TestDrainAckMismatchLeavesRecordQueued(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseMultipartForm(10 << 20)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "id": "someone-else"})
	}))
	defer ts.Close()

	q := openQueue(t)
	require.NoError(t, q.Put(queue.NewKey(time.Now()), models.QueuedSession{ID: "s1"}))

	d := drain.New(q, ts.Client(), ts.URL, time.Second, zap.NewNop())
	require.NoError(t, d.Drain(context.Background(), drain.TagSyncSessions))

	assert.Equal(t, []string{"s1"}, queuedIDs(t, q))
}

func TestSubmitOnline(t *testing.T) {
	srv := &sessionServer{accept: map[string]bool{"s1": true}}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	q := openQueue(t)
	d := drain.New(q, ts.Client(), ts.URL, time.Second, zap.NewNop())

	queued, err := d.Submit(context.Background(), models.QueuedSession{ID: "s1"})
	require.NoError(t, err)
	assert.False(t, queued)
	assert.Empty(t, queuedIDs(t, q))
}

func TestSubmitOfflineQueues(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close() // unreachable from the start

	q := openQueue(t)
	d := drain.New(q, &http.Client{}, ts.URL, time.Second, zap.NewNop())

	queued, err := d.Submit(context.Background(), models.QueuedSession{ID: "s1", ImageBlob: []byte{9}})
	require.NoError(t, err)
	assert.True(t, queued)
	assert.Equal(t, []string{"s1"}, queuedIDs(t, q))
}

func TestSubmitRejectionSurfaces(t *testing.T) {
	srv := &sessionServer{accept: map[string]bool{}} // rejects everything
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	q := openQueue(t)
	d := drain.New(q, ts.Client(), ts.URL, time.Second, zap.NewNop())

	queued, err := d.Submit(context.Background(), models.QueuedSession{ID: "s1"})
	require.Error(t, err)
	assert.False(t, queued)
	// A rejection from a reachable server is surfaced, not queued.
	assert.Empty(t, queuedIDs(t, q))
}

func TestDrainDeliversAllFields(t *testing.T) {
	var got struct {
		id, ts, breed, notes string
		photo                []byte
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(10<<20))
		got.id = r.FormValue("id")
		got.ts = r.FormValue("ts")
		got.breed = r.FormValue("breed")
		got.notes = r.FormValue("notes")
		f, _, err := r.FormFile("sessionPhoto")
		require.NoError(t, err)
		defer f.Close()
		buf := make([]byte, 4)
		n, _ := f.Read(buf)
		got.photo = buf[:n]

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "id": got.id})
	}))
	defer ts.Close()

	q := openQueue(t)
	session := models.QueuedSession{
		ID:        "s1",
		TS:        "2026-08-29T10:00:00Z",
		Breed:     "corgi",
		Notes:     "sat on command",
		ImageBlob: []byte{1, 2, 3},
	}
	require.NoError(t, q.Put(queue.NewKey(time.Now()), session))

	d := drain.New(q, ts.Client(), ts.URL, time.Second, zap.NewNop())
	require.NoError(t, d.Drain(context.Background(), drain.TagSyncSessions))

	assert.Equal(t, session.ID, got.id)
	assert.Equal(t, session.TS, got.ts)
	assert.Equal(t, session.Breed, got.breed)
	assert.Equal(t, session.Notes, got.notes)
	assert.Equal(t, session.ImageBlob, got.photo)
}
