// Package repository provides filesystem persistence for sessions and push
// subscriptions.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/kpisonic1/puppyclass/internal/models"
)

// sessionIDSanitizer strips everything but safe filename characters from a
// session id before it becomes part of a filename.
var sessionIDSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// FileSessionRepository stores each session as a JSON file and its photo as a
// plain file on disk.
type FileSessionRepository struct {
	sessionsDir string
	photosDir   string
}

// NewFileSessionRepository creates the sessions and photos directories if
// absent and returns a repository over them. Creation is idempotent.
func NewFileSessionRepository(sessionsDir, photosDir string) (*FileSessionRepository, error) {
	for _, dir := range []string{sessionsDir, photosDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return &FileSessionRepository{sessionsDir: sessionsDir, photosDir: photosDir}, nil
}

// PhotosDir returns the directory uploaded photos are written to.
func (r *FileSessionRepository) PhotosDir() string {
	return r.photosDir
}

// Save writes the photo and then the session record. The stored session gets
// its PhotoPath pointing at the served photo location.
func (r *FileSessionRepository) Save(ctx context.Context, session models.Session, photoName string, photo []byte) (models.Session, error) {
	filename := strings.ReplaceAll(photoName, ":", "-")
	if filename == "" {
		filename = session.ID + ".png"
	}
	if err := os.WriteFile(filepath.Join(r.photosDir, filename), photo, 0o644); err != nil {
		return models.Session{}, fmt.Errorf("write photo: %w", err)
	}
	session.PhotoPath = "/puppyClass/" + filename

	name := fmt.Sprintf("%d_%s.json", time.Now().UnixMilli(), sessionIDSanitizer.ReplaceAllString(session.ID, ""))
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return models.Session{}, fmt.Errorf("marshal session: %w", err)
	}
	if err := os.WriteFile(filepath.Join(r.sessionsDir, name), data, 0o644); err != nil {
		return models.Session{}, fmt.Errorf("write session: %w", err)
	}
	return session, nil
}

// List returns all stored sessions, newest first by timestamp. Unreadable
// files are skipped rather than failing the whole listing.
func (r *FileSessionRepository) List(ctx context.Context) ([]models.Session, error) {
	files, err := os.ReadDir(r.sessionsDir)
	if err != nil {
		return nil, fmt.Errorf("read sessions dir: %w", err)
	}

	sessions := []models.Session{}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(r.sessionsDir, f.Name()))
		if err != nil {
			continue
		}
		var s models.Session
		if err := json.Unmarshal(data, &s); err != nil {
			continue
		}
		sessions = append(sessions, s)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].TS > sessions[j].TS
	})
	return sessions, nil
}
