// Package notify surfaces push notifications on the client and manages the
// push subscription lifecycle against the server.
package notify

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/kpisonic1/puppyclass/internal/models"
)

// defaultPayload is substituted when a push event carries no payload or a
// malformed one. A push event is never dropped silently.
var defaultPayload = models.NotificationPayload{
	Title:       "Puppy Yoga",
	Body:        "Hello!",
	RedirectURL: "/index.html",
}

// Notification is a surfaced user-visible notification. Data carries the
// redirect target; it is never shown to the user, only used on click.
type Notification struct {
	Title string
	Body  string
	Data  map[string]string
}

// Notifier displays and closes user-visible notifications.
type Notifier interface {
	Show(n Notification) error
	Close(n Notification) error
}

// WindowOpener opens or focuses a window at a URL after a notification click.
type WindowOpener interface {
	Open(url string) error
}

// Dispatcher turns push events into notifications and handles clicks.
type Dispatcher struct {
	notifier Notifier
	opener   WindowOpener
	log      *zap.Logger
}

// NewDispatcher builds a Dispatcher. Nil notifier or opener fall back to
// logging implementations.
func NewDispatcher(notifier Notifier, opener WindowOpener, log *zap.Logger) *Dispatcher {
	if notifier == nil {
		notifier = &LogNotifier{Log: log}
	}
	if opener == nil {
		opener = &LogOpener{Log: log}
	}
	return &Dispatcher{notifier: notifier, opener: opener, log: log}
}

// HandlePush parses a push payload and surfaces a notification. A missing or
// malformed payload falls back to the default payload.
func (d *Dispatcher) HandlePush(payload []byte) error {
	data := defaultPayload
	if len(payload) > 0 {
		var parsed models.NotificationPayload
		if err := json.Unmarshal(payload, &parsed); err != nil {
			d.log.Warn("malformed push payload, using default", zap.Error(err))
		} else {
			data = parsed
		}
	}

	return d.notifier.Show(Notification{
		Title: data.Title,
		Body:  data.Body,
		Data:  map[string]string{"redirectUrl": data.RedirectURL},
	})
}

// HandleClick closes the notification and opens a window at its stored
// redirect target, defaulting to the home page when missing.
func (d *Dispatcher) HandleClick(n Notification) error {
	url := n.Data["redirectUrl"]
	if url == "" {
		url = "/index.html"
	}
	if err := d.notifier.Close(n); err != nil {
		d.log.Warn("close notification", zap.Error(err))
	}
	return d.opener.Open(url)
}

// LogNotifier surfaces notifications through the structured log. It stands in
// for a desktop notification backend.
type LogNotifier struct {
	Log *zap.Logger
}

func (l *LogNotifier) Show(n Notification) error {
	l.Log.Info("notification",
		zap.String("title", n.Title),
		zap.String("body", n.Body),
		zap.String("redirectUrl", n.Data["redirectUrl"]),
	)
	return nil
}

func (l *LogNotifier) Close(n Notification) error {
	return nil
}

// LogOpener records window-open requests in the log.
type LogOpener struct {
	Log *zap.Logger
}

func (l *LogOpener) Open(url string) error {
	l.Log.Info("open window", zap.String("url", url))
	return nil
}
