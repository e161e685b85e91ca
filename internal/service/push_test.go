package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/kpisonic1/puppyclass/internal/models"
)

type mockSubscriptionRepo struct {
	AllFunc     func(ctx context.Context) ([]models.PushSubscription, error)
	AddFunc     func(ctx context.Context, sub models.PushSubscription) error
	ReplaceFunc func(ctx context.Context, subs []models.PushSubscription) error
}

func (m *mockSubscriptionRepo) All(ctx context.Context) ([]models.PushSubscription, error) {
	return m.AllFunc(ctx)
}

func (m *mockSubscriptionRepo) Add(ctx context.Context, sub models.PushSubscription) error {
	return m.AddFunc(ctx, sub)
}

func (m *mockSubscriptionRepo) Replace(ctx context.Context, subs []models.PushSubscription) error {
	return m.ReplaceFunc(ctx, subs)
}

func TestSubscribeRejectsMissingEndpoint(t *testing.T) {
	svc := NewPushService(&mockSubscriptionRepo{}, "pub", "priv", "mailto:a@b.c", zap.NewNop())

	err := svc.Subscribe(context.Background(), models.PushSubscription{})
	if !errors.Is(err, ErrInvalidSubscription) {
		t.Errorf("got error %v; want ErrInvalidSubscription", err)
	}
}

func TestSubscribeStores(t *testing.T) {
	var added models.PushSubscription
	repo := &mockSubscriptionRepo{
		AddFunc: func(ctx context.Context, sub models.PushSubscription) error {
			added = sub
			return nil
		},
	}
	svc := NewPushService(repo, "pub", "priv", "mailto:a@b.c", zap.NewNop())

	sub := models.PushSubscription{
		Endpoint: "https://push.example/abc",
		Keys:     models.SubscriptionKeys{P256dh: "p", Auth: "a"},
	}
	if err := svc.Subscribe(context.Background(), sub); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if added.Endpoint != sub.Endpoint {
		t.Errorf("stored endpoint = %q; want %q", added.Endpoint, sub.Endpoint)
	}
}

func TestSendToAllUnconfiguredIsNoop(t *testing.T) {
	repo := &mockSubscriptionRepo{
		AllFunc: func(ctx context.Context) ([]models.PushSubscription, error) {
			t.Fatal("subscriptions must not be loaded without VAPID keys")
			return nil, nil
		},
	}
	svc := NewPushService(repo, "", "", "mailto:a@b.c", zap.NewNop())

	svc.SendToAll(context.Background(), "Session synced (corgi)")
}

func TestSendToAllDeliversPayload(t *testing.T) {
	repo := &mockSubscriptionRepo{
		AllFunc: func(ctx context.Context) ([]models.PushSubscription, error) {
			return []models.PushSubscription{
				{Endpoint: "https://push.example/one"},
			}, nil
		},
	}
	svc := NewPushService(repo, "pub", "priv", "mailto:a@b.c", zap.NewNop())

	var gotPayload []byte
	svc.send = func(sub models.PushSubscription, payload []byte) error {
		gotPayload = payload
		return nil
	}

	svc.SendToAll(context.Background(), "Session synced (corgi)")

	var payload models.NotificationPayload
	if err := json.Unmarshal(gotPayload, &payload); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if payload.Title != "Puppy Yoga" {
		t.Errorf("title = %q; want %q", payload.Title, "Puppy Yoga")
	}
	if payload.Body != "Session synced (corgi)" {
		t.Errorf("body = %q; want %q", payload.Body, "Session synced (corgi)")
	}
	if payload.RedirectURL != "/index.html" {
		t.Errorf("redirectUrl = %q; want %q", payload.RedirectURL, "/index.html")
	}
}

func TestSendToAllPrunesFailedSubscriptions(t *testing.T) {
	var replaced []models.PushSubscription
	repo := &mockSubscriptionRepo{
		AllFunc: func(ctx context.Context) ([]models.PushSubscription, error) {
			return []models.PushSubscription{
				{Endpoint: "https://push.example/good"},
				{Endpoint: "https://push.example/gone"},
			}, nil
		},
		ReplaceFunc: func(ctx context.Context, subs []models.PushSubscription) error {
			replaced = subs
			return nil
		},
	}
	svc := NewPushService(repo, "pub", "priv", "mailto:a@b.c", zap.NewNop())

	svc.send = func(sub models.PushSubscription, payload []byte) error {
		if sub.Endpoint == "https://push.example/gone" {
			return errors.New("push endpoint returned 410")
		}
		return nil
	}

	svc.SendToAll(context.Background(), "hello")

	if len(replaced) != 1 || replaced[0].Endpoint != "https://push.example/good" {
		t.Errorf("replaced = %v; want only the working subscription", replaced)
	}
}

func TestSendToAllKeepsAllWhenHealthy(t *testing.T) {
	repo := &mockSubscriptionRepo{
		AllFunc: func(ctx context.Context) ([]models.PushSubscription, error) {
			return []models.PushSubscription{
				{Endpoint: "https://push.example/one"},
				{Endpoint: "https://push.example/two"},
			}, nil
		},
		ReplaceFunc: func(ctx context.Context, subs []models.PushSubscription) error {
			t.Fatal("no prune expected when every send succeeds")
			return nil
		},
	}
	svc := NewPushService(repo, "pub", "priv", "mailto:a@b.c", zap.NewNop())

	var sent int
	svc.send = func(sub models.PushSubscription, payload []byte) error {
		sent++
		return nil
	}

	svc.SendToAll(context.Background(), "hello")

	if sent != 2 {
		t.Errorf("sent = %d pushes; want 2", sent)
	}
}

func TestPublicKey(t *testing.T) {
	svc := NewPushService(&mockSubscriptionRepo{}, "pub", "priv", "mailto:a@b.c", zap.NewNop())
	if got := svc.PublicKey(); got != "pub" {
		t.Errorf("got = %q; want %q", got, "pub")
	}
}
