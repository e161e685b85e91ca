// Package service provides business logic for session storage and push
// notification fan-out, delegating persistence to repository interfaces.
package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kpisonic1/puppyclass/internal/models"
)

// SessionRepository defines the persistence operations needed by the
// SessionService.
type SessionRepository interface {
	// Save stores a session together with its photo bytes and returns the
	// stored record including its photo path.
	Save(ctx context.Context, session models.Session, photoName string, photo []byte) (models.Session, error)
	// List returns all stored sessions, newest first.
	List(ctx context.Context) ([]models.Session, error)
}

// Announcer notifies subscribers that something happened.
type Announcer interface {
	// SendToAll delivers a push message to every subscriber, best effort.
	SendToAll(ctx context.Context, message string)
}

// SessionInput is one incoming session submission.
type SessionInput struct {
	ID        string
	TS        string
	Breed     string
	Notes     string
	PhotoName string
	Photo     []byte
}

// SessionService implements session creation and listing.
type SessionService struct {
	repo SessionRepository
	push Announcer
	log  *zap.Logger
}

// NewSessionService constructs a SessionService with the given repository and
// push announcer.
func NewSessionService(repo SessionRepository, push Announcer, log *zap.Logger) *SessionService {
	return &SessionService{repo: repo, push: push, log: log}
}

// Create stores a new session, filling in defaults for missing fields, and
// announces the sync to push subscribers. The announcement is best effort;
// a push failure never fails the stored session.
func (s *SessionService) Create(ctx context.Context, in SessionInput) (models.Session, error) {
	session := models.Session{
		ID:    in.ID,
		TS:    in.TS,
		Breed: in.Breed,
		Notes: in.Notes,
	}
	if session.TS == "" {
		session.TS = time.Now().UTC().Format(time.RFC3339)
	}
	if session.Breed == "" {
		session.Breed = "Unknown breed"
	}

	saved, err := s.repo.Save(ctx, session, in.PhotoName, in.Photo)
	if err != nil {
		return models.Session{}, fmt.Errorf("save session: %w", err)
	}

	s.push.SendToAll(ctx, fmt.Sprintf("Session synced (%s)", saved.Breed))

	s.log.Info("session stored", zap.String("id", saved.ID), zap.String("breed", saved.Breed))
	return saved, nil
}

// List returns all stored sessions, newest first.
func (s *SessionService) List(ctx context.Context) ([]models.Session, error) {
	return s.repo.List(ctx)
}
