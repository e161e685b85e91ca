// Package models defines the core data structures for puppy class sessions,
// the offline queue and push notifications.
package models

// Session represents one logged puppy class session as stored on the server.
type Session struct {
	// ID is the unique identifier for the session.
	ID string `json:"id"`
	// TS is the ISO-8601 creation timestamp.
	TS string `json:"ts"`
	// Breed is the free-text breed name.
	Breed string `json:"breed"`
	// Notes holds user-provided notes about the session.
	Notes string `json:"notes"`
	// PhotoPath is the server path of the uploaded session photo.
	PhotoPath string `json:"photoPath"`
}

// QueuedSession is a session captured while offline. It lives in the local
// durable store until the drainer receives a success acknowledgement for it
// from the server.
type QueuedSession struct {
	// ID is the unique identifier for the session.
	ID string `json:"id"`
	// TS is the ISO-8601 creation timestamp.
	TS string `json:"ts"`
	// Breed is the free-text breed name.
	Breed string `json:"breed"`
	// Notes holds user-provided notes about the session.
	Notes string `json:"notes"`
	// ImageBlob is the raw photo payload, owned by this record until synced.
	ImageBlob []byte `json:"imageBlob"`
}

// PushSubscription mirrors the browser push subscription object.
// Subscriptions are unique by Endpoint.
type PushSubscription struct {
	Endpoint string           `json:"endpoint"`
	Keys     SubscriptionKeys `json:"keys"`
}

// SubscriptionKeys carries the client key material used to encrypt push
// payloads for this subscription.
type SubscriptionKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// NotificationPayload is the decoded push message. It is transient and exists
// only while a single push event is handled.
type NotificationPayload struct {
	Title       string `json:"title"`
	Body        string `json:"body"`
	RedirectURL string `json:"redirectUrl"`
}
