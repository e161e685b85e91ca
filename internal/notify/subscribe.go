package notify

import (
	"bytes"
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/kpisonic1/puppyclass/internal/models"
)

const (
	publicKeyPath     = "/api/publicKey"
	subscriptionsPath = "/api/subscriptions"
)

// Subscriber manages this client's push subscription: creating it, saving it
// to the server and keeping a local copy so Enable is idempotent.
type Subscriber struct {
	client  *http.Client
	baseURL string
	path    string // local file remembering the current subscription
	log     *zap.Logger
}

// NewSubscriber builds a Subscriber. path is where the active subscription is
// remembered between runs.
func NewSubscriber(client *http.Client, baseURL, path string, log *zap.Logger) *Subscriber {
	if client == nil {
		client = http.DefaultClient
	}
	return &Subscriber{client: client, baseURL: baseURL, path: path, log: log}
}

// Current returns the active subscription, or nil when not subscribed.
func (s *Subscriber) Current() (*models.PushSubscription, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read subscription: %w", err)
	}
	var sub models.PushSubscription
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, fmt.Errorf("parse subscription: %w", err)
	}
	return &sub, nil
}

// Enable subscribes this client for push delivered to endpoint. Calling it
// while already subscribed is a no-op. It fetches the server's VAPID public
// key first and fails when the server has none configured.
func (s *Subscriber) Enable(ctx context.Context, endpoint string) error {
	cur, err := s.Current()
	if err != nil {
		return err
	}
	if cur != nil {
		s.log.Info("already subscribed", zap.String("endpoint", cur.Endpoint))
		return nil
	}

	key, err := s.fetchPublicKey(ctx)
	if err != nil {
		return err
	}
	if key == "" {
		return errors.New("server has no VAPID key configured")
	}

	sub, err := newSubscription(endpoint)
	if err != nil {
		return fmt.Errorf("build subscription: %w", err)
	}

	if err := s.save(ctx, sub); err != nil {
		return err
	}

	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshal subscription: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("remember subscription: %w", err)
	}

	s.log.Info("push enabled", zap.String("endpoint", endpoint))
	return nil
}

// Disable forgets the local subscription. Already being unsubscribed is not
// an error.
func (s *Subscriber) Disable() error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove subscription: %w", err)
	}
	s.log.Info("push disabled")
	return nil
}

func (s *Subscriber) fetchPublicKey(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+publicKeyPath, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch public key: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("public key endpoint failed: status %d", resp.StatusCode)
	}
	var body struct {
		PublicKey string `json:"publicKey"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode public key: %w", err)
	}
	return body.PublicKey, nil
}

func (s *Subscriber) save(ctx context.Context, sub models.PushSubscription) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshal subscription: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+subscriptionsPath, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("save subscription: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("save subscription failed: status %d", resp.StatusCode)
	}
	return nil
}

// newSubscription generates the key material a push subscription carries:
// an uncompressed P-256 public key and a 16-byte auth secret, both
// base64url-encoded.
func newSubscription(endpoint string) (models.PushSubscription, error) {
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return models.PushSubscription{}, fmt.Errorf("generate key: %w", err)
	}
	auth := make([]byte, 16)
	if _, err := rand.Read(auth); err != nil {
		return models.PushSubscription{}, fmt.Errorf("generate auth secret: %w", err)
	}

	return models.PushSubscription{
		Endpoint: endpoint,
		Keys: models.SubscriptionKeys{
			P256dh: base64.RawURLEncoding.EncodeToString(priv.PublicKey().Bytes()),
			Auth:   base64.RawURLEncoding.EncodeToString(auth),
		},
	}, nil
}
