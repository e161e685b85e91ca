// Package drain delivers queued offline sessions to the server once
// connectivity returns. One bad record never aborts a batch, and queue
// deletion is the only source of truth for "still pending".
package drain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kpisonic1/puppyclass/internal/models"
	"github.com/kpisonic1/puppyclass/internal/offline/queue"
)

// TagSyncSessions is the background-sync tag this subsystem answers to.
// Signals carrying any other tag are ignored.
const TagSyncSessions = "sync-sessions"

// ErrUnreachable reports a transport-level failure: the server never saw the
// request, so the session is safe to queue.
var ErrUnreachable = errors.New("server unreachable")

const sessionsPath = "/api/sessions"

// Store is the durable queue surface the drainer needs.
type Store interface {
	Put(key string, session models.QueuedSession) error
	Delete(key string) error
	Entries() ([]queue.Entry, error)
}

// Drainer drains the offline queue to the server's session endpoint.
type Drainer struct {
	store   Store
	client  *http.Client
	baseURL string
	timeout time.Duration
	log     *zap.Logger
	group   singleflight.Group
}

// New builds a Drainer posting to baseURL. Every network call is bounded by
// timeout.
func New(store Store, client *http.Client, baseURL string, timeout time.Duration, log *zap.Logger) *Drainer {
	if client == nil {
		client = http.DefaultClient
	}
	return &Drainer{
		store:   store,
		client:  client,
		baseURL: baseURL,
		timeout: timeout,
		log:     log,
	}
}

// Drain runs one drain pass when tag matches TagSyncSessions. Duplicate
// signals arriving while a pass is in flight coalesce into that pass, so
// drains are serialized and records are not double-submitted.
func (d *Drainer) Drain(ctx context.Context, tag string) error {
	if tag != TagSyncSessions {
		return nil
	}
	_, err, _ := d.group.Do(tag, func() (any, error) {
		return nil, d.drainOnce(ctx)
	})
	return err
}

// drainOnce snapshots the queue and attempts delivery of each record in key
// order. Failed records stay queued for the next signal.
func (d *Drainer) drainOnce(ctx context.Context) error {
	entries, err := d.store.Entries()
	if err != nil {
		return fmt.Errorf("snapshot queue: %w", err)
	}

	for _, e := range entries {
		if err := d.deliver(ctx, e); err != nil {
			d.log.Warn("session left queued",
				zap.String("key", e.Key),
				zap.String("id", e.Session.ID),
				zap.Error(err),
			)
			continue
		}
		d.log.Info("session synced", zap.String("id", e.Session.ID))
	}
	return nil
}

// deliver posts one queued record and deletes it only after the server
// acknowledges the matching identifier.
func (d *Drainer) deliver(ctx context.Context, e queue.Entry) error {
	ack, err := d.post(ctx, e.Session)
	if err != nil {
		return err
	}
	if ack != e.Session.ID {
		return fmt.Errorf("ack id %q does not match queued session %q", ack, e.Session.ID)
	}
	return d.store.Delete(e.Key)
}

// post submits a session as a multipart form and returns the acknowledged
// identifier.
func (d *Drainer) post(ctx context.Context, s models.QueuedSession) (string, error) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	fields := map[string]string{
		"id":    s.ID,
		"ts":    s.TS,
		"breed": s.Breed,
		"notes": s.Notes,
	}
	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			return "", fmt.Errorf("write field %s: %w", name, err)
		}
	}
	fw, err := mw.CreateFormFile("sessionPhoto", s.ID+".png")
	if err != nil {
		return "", fmt.Errorf("create photo part: %w", err)
	}
	if _, err := fw.Write(s.ImageBlob); err != nil {
		return "", fmt.Errorf("write photo: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close form: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+sessionsPath, body)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("upload failed: status %d", resp.StatusCode)
	}

	var result struct {
		Success bool   `json:"success"`
		ID      string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode ack: %w", err)
	}
	if !result.Success {
		return "", fmt.Errorf("server did not acknowledge session %s", s.ID)
	}
	return result.ID, nil
}

// Submit posts a session immediately. When the server is unreachable the
// session is written to the durable queue instead; queued reports which path
// was taken. A non-2xx response from a reachable server is returned as an
// error so the user can retry.
func (d *Drainer) Submit(ctx context.Context, s models.QueuedSession) (queued bool, err error) {
	ack, err := d.post(ctx, s)
	if err == nil {
		if ack != s.ID {
			return false, fmt.Errorf("ack id %q does not match session %q", ack, s.ID)
		}
		return false, nil
	}

	if !errors.Is(err, ErrUnreachable) {
		return false, err
	}

	key := queue.NewKey(time.Now())
	if putErr := d.store.Put(key, s); putErr != nil {
		return false, putErr
	}
	d.log.Info("session queued for sync", zap.String("id", s.ID), zap.String("key", key))
	return true, nil
}

// Monitor probes the server on an interval and fires a drain signal each
// time connectivity returns after an outage. The first successful probe
// after startup also drains, picking up records queued in a previous run.
func (d *Drainer) Monitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()

		online := false
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ok := d.ping(ctx)
				if ok && !online {
					d.log.Info("connectivity restored")
					if err := d.Drain(ctx, TagSyncSessions); err != nil {
						d.log.Error("drain failed", zap.Error(err))
					}
				}
				online = ok
			}
		}
	}()
}

// ping performs one liveness probe. Only reachability matters; the body is
// ignored.
func (d *Drainer) ping(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/api/ping", nil)
	if err != nil {
		return false
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
