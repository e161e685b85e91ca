package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	webpush "github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"github.com/kpisonic1/puppyclass/internal/models"
)

// SubscriptionRepository defines the persistence operations needed by the
// PushService.
type SubscriptionRepository interface {
	All(ctx context.Context) ([]models.PushSubscription, error)
	Add(ctx context.Context, sub models.PushSubscription) error
	Replace(ctx context.Context, subs []models.PushSubscription) error
}

// ErrInvalidSubscription reports a subscription without an endpoint.
var ErrInvalidSubscription = errors.New("invalid subscription")

// PushService stores subscriptions and fans out web-push notifications.
// When VAPID keys are not configured, sends become no-ops.
type PushService struct {
	repo    SubscriptionRepository
	public  string
	private string
	contact string
	log     *zap.Logger

	// send delivers one encrypted message; replaceable in tests.
	send func(sub models.PushSubscription, payload []byte) error
}

// NewPushService constructs a PushService with the given VAPID key pair.
func NewPushService(repo SubscriptionRepository, publicKey, privateKey, contact string, log *zap.Logger) *PushService {
	s := &PushService{
		repo:    repo,
		public:  publicKey,
		private: privateKey,
		contact: contact,
		log:     log,
	}
	s.send = s.webpushSend
	if !s.configured() {
		log.Warn("VAPID keys missing, push notifications disabled")
	}
	return s
}

func (s *PushService) configured() bool {
	return s.public != "" && s.private != ""
}

// PublicKey returns the VAPID public key handed to subscribing clients.
func (s *PushService) PublicKey() string {
	return s.public
}

// Subscribe stores a subscription, deduplicated by endpoint.
func (s *PushService) Subscribe(ctx context.Context, sub models.PushSubscription) error {
	if sub.Endpoint == "" {
		return ErrInvalidSubscription
	}
	return s.repo.Add(ctx, sub)
}

// SendToAll delivers message to every subscriber and prunes subscriptions
// the push endpoint no longer accepts. Best effort throughout.
func (s *PushService) SendToAll(ctx context.Context, message string) {
	if !s.configured() {
		return
	}

	subs, err := s.repo.All(ctx)
	if err != nil {
		s.log.Error("load subscriptions", zap.Error(err))
		return
	}

	payload, err := json.Marshal(models.NotificationPayload{
		Title:       "Puppy Yoga",
		Body:        message,
		RedirectURL: "/index.html",
	})
	if err != nil {
		s.log.Error("marshal push payload", zap.Error(err))
		return
	}

	stillValid := make([]models.PushSubscription, 0, len(subs))
	for _, sub := range subs {
		if err := s.send(sub, payload); err != nil {
			s.log.Warn("push failed, dropping subscription",
				zap.String("endpoint", sub.Endpoint),
				zap.Error(err),
			)
			continue
		}
		stillValid = append(stillValid, sub)
	}

	if len(stillValid) != len(subs) {
		if err := s.repo.Replace(ctx, stillValid); err != nil {
			s.log.Error("prune subscriptions", zap.Error(err))
		}
	}
}

func (s *PushService) webpushSend(sub models.PushSubscription, payload []byte) error {
	resp, err := webpush.SendNotification(payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.Keys.P256dh,
			Auth:   sub.Keys.Auth,
		},
	}, &webpush.Options{
		Subscriber:      s.contact,
		VAPIDPublicKey:  s.public,
		VAPIDPrivateKey: s.private,
		TTL:             30,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("push endpoint returned %d", resp.StatusCode)
	}
	return nil
}
