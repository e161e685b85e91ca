package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/kpisonic1/puppyclass/internal/models"
)

// FileSubscriptionRepository persists push subscriptions in a single JSON
// file, unique by endpoint. A mutex guards the read-modify-write cycle.
type FileSubscriptionRepository struct {
	path string
	mu   sync.Mutex
}

// NewFileSubscriptionRepository ensures the subscriptions file exists
// (created empty when absent) and returns a repository over it.
func NewFileSubscriptionRepository(path string) (*FileSubscriptionRepository, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, []byte("[]"), 0o644); err != nil {
			return nil, fmt.Errorf("create subscriptions file: %w", err)
		}
	}
	return &FileSubscriptionRepository{path: path}, nil
}

// All returns every stored subscription. A corrupt file yields an empty
// list, mirroring a fresh install.
func (r *FileSubscriptionRepository) All(ctx context.Context) ([]models.PushSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.readLocked()
}

// Add stores a subscription unless one with the same endpoint already
// exists.
func (r *FileSubscriptionRepository) Add(ctx context.Context, sub models.PushSubscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs, err := r.readLocked()
	if err != nil {
		return err
	}
	for _, s := range subs {
		if s.Endpoint == sub.Endpoint {
			return nil
		}
	}
	return r.writeLocked(append(subs, sub))
}

// Replace overwrites the stored set, used after pruning dead subscriptions.
func (r *FileSubscriptionRepository) Replace(ctx context.Context, subs []models.PushSubscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writeLocked(subs)
}

func (r *FileSubscriptionRepository) readLocked() ([]models.PushSubscription, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("read subscriptions: %w", err)
	}
	subs := []models.PushSubscription{}
	if err := json.Unmarshal(data, &subs); err != nil {
		return []models.PushSubscription{}, nil
	}
	return subs, nil
}

func (r *FileSubscriptionRepository) writeLocked(subs []models.PushSubscription) error {
	data, err := json.MarshalIndent(subs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal subscriptions: %w", err)
	}
	if err := os.WriteFile(r.path, data, 0o644); err != nil {
		return fmt.Errorf("write subscriptions: %w", err)
	}
	return nil
}
