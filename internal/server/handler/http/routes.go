package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kpisonic1/puppyclass/internal/middleware"
)

// NewRouter constructs the HTTP handler serving the puppy class API and
// static files.
//
// Routes:
//
//	GET  /api/ping           → liveness probe
//	GET  /api/publicKey      → pushHandler.PublicKey
//	POST /api/subscriptions  → pushHandler.Subscribe
//	GET  /api/testPush       → pushHandler.TestPush
//	GET  /api/sessions       → sessionHandler.List
//	POST /api/sessions       → sessionHandler.Create
//	GET  /puppyClass/*       → uploaded photos
//	GET  /*                  → static web root
func NewRouter(
	sessionHandler *SessionHandler,
	pushHandler *PushHandler,
	webRoot string,
	photosDir string,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Log each request and its metadata
	r.Use(middleware.WithRequestLogging(logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", Ping)
		r.Get("/publicKey", pushHandler.PublicKey)
		r.Post("/subscriptions", pushHandler.Subscribe)
		r.Get("/testPush", pushHandler.TestPush)
		r.Get("/sessions", sessionHandler.List)
		r.Post("/sessions", sessionHandler.Create)
	})

	// Uploaded photos and the static app shell
	r.Handle("/puppyClass/*", http.StripPrefix("/puppyClass/", http.FileServer(http.Dir(photosDir))))
	r.Handle("/*", http.FileServer(http.Dir(webRoot)))

	return r
}
