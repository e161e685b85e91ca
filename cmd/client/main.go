// Package main runs the offline-first client agent: a local gateway proxying
// the app's requests to the server with per-class caching strategies, a
// durable queue for sessions submitted while offline, and an interactive
// shell for working with sessions.
package main

import (
	"bufio"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	nethttp "net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kpisonic1/puppyclass/internal/config"
	"github.com/kpisonic1/puppyclass/internal/logger"
	"github.com/kpisonic1/puppyclass/internal/models"
	"github.com/kpisonic1/puppyclass/internal/notify"
	"github.com/kpisonic1/puppyclass/internal/offline/cache"
	"github.com/kpisonic1/puppyclass/internal/offline/drain"
	"github.com/kpisonic1/puppyclass/internal/offline/gateway"
	"github.com/kpisonic1/puppyclass/internal/offline/queue"
)

var (
	version   string
	buildDate string
)

// agent bundles the client-side subsystems the shell commands operate on.
type agent struct {
	queue      *queue.Queue
	drainer    *drain.Drainer
	subscriber *notify.Subscriber
	gatewayURL string
	client     *nethttp.Client
	log        *zap.Logger
}

// repl runs the interactive shell loop, accepting commands to manage
// sessions.
func repl(a *agent) {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("puppyclass> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		switch args[0] {
		case "help":
			fmt.Println("Available commands: help, add, list, pending, sync, push on|off, exit")
		case "add":
			a.addSession(scanner)
		case "list":
			a.listSessions()
		case "pending":
			a.listPending()
		case "sync":
			if err := a.drainer.Drain(context.Background(), drain.TagSyncSessions); err != nil {
				fmt.Println("sync failed:", err)
			} else {
				fmt.Println("sync done")
			}
		case "push":
			if len(args) < 2 {
				fmt.Println("Usage: push on|off")
				continue
			}
			a.togglePush(args[1])
		case "exit":
			fmt.Println("Bye")
			return
		default:
			fmt.Println("Unknown command. Type 'help' for a list of commands.")
		}
	}
}

// addSession prompts for the session fields and submits it, queueing when the
// server is unreachable.
func (a *agent) addSession(scanner *bufio.Scanner) {
	breed := prompt(scanner, "Breed: ")
	notes := prompt(scanner, "Notes: ")
	photoPath := prompt(scanner, "Photo path: ")

	photo, err := os.ReadFile(photoPath)
	if err != nil {
		fmt.Println("cannot read photo:", err)
		return
	}

	session := models.QueuedSession{
		ID:        uuid.NewString(),
		TS:        time.Now().UTC().Format(time.RFC3339),
		Breed:     breed,
		Notes:     notes,
		ImageBlob: photo,
	}

	queued, err := a.drainer.Submit(context.Background(), session)
	switch {
	case err != nil:
		fmt.Println("submission failed:", err)
	case queued:
		fmt.Println("offline: session queued, will sync when connectivity returns")
	default:
		fmt.Println("session stored:", session.ID)
	}
}

// listSessions fetches the session list through the local gateway, so the
// cached copy is served while offline.
func (a *agent) listSessions() {
	resp, err := a.client.Get(a.gatewayURL + "/api/sessions")
	if err != nil {
		fmt.Println("list failed:", err)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Println("list failed:", err)
		return
	}

	var sessions []models.Session
	if err := json.Unmarshal(body, &sessions); err != nil {
		fmt.Println("list failed:", err)
		return
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions yet")
		return
	}
	for _, s := range sessions {
		fmt.Printf("ID: %s\nTime: %s\nBreed: %s\nNotes: %s\nPhoto: %s\n---\n",
			s.ID, s.TS, s.Breed, s.Notes, s.PhotoPath)
	}
}

// listPending prints the sessions still waiting in the offline queue.
func (a *agent) listPending() {
	entries, err := a.queue.Entries()
	if err != nil {
		fmt.Println("cannot read queue:", err)
		return
	}
	if len(entries) == 0 {
		fmt.Println("No pending sessions")
		return
	}
	for _, e := range entries {
		fmt.Printf("ID: %s (%s, queued as %s)\n", e.Session.ID, e.Session.Breed, e.Key)
	}
}

func (a *agent) togglePush(mode string) {
	switch mode {
	case "on":
		endpoint := a.gatewayURL + "/push"
		if err := a.subscriber.Enable(context.Background(), endpoint); err != nil {
			fmt.Println("enable push failed:", err)
		} else {
			fmt.Println("push enabled")
		}
	case "off":
		if err := a.subscriber.Disable(); err != nil {
			fmt.Println("disable push failed:", err)
		} else {
			fmt.Println("push disabled")
		}
	default:
		fmt.Println("Usage: push on|off")
	}
}

func prompt(scanner *bufio.Scanner, label string) string {
	fmt.Print(label)
	if !scanner.Scan() {
		return ""
	}
	return strings.TrimSpace(scanner.Text())
}

// main wires the queue, cache, gateway, drainer and push dispatcher, then
// runs either the headless agent or the interactive shell.
func main() {
	options := config.Parse()

	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init("Info"); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Durable offline queue.
	q, err := queue.Open(filepath.Join(options.DataDir, "queue"), zapLogger)
	if err != nil {
		zapLogger.Fatal("cannot open offline queue", zap.Error(err))
	}
	defer func() { _ = q.Close() }()
	q.StartGC(ctx, time.Hour)

	client := &nethttp.Client{}
	timeout := options.NetworkTimeout()

	// Gateway with the response cache.
	store := cache.New()
	gw, err := gateway.New(options.ServerURL, store, options.CacheName, client, timeout, zapLogger)
	if err != nil {
		zapLogger.Fatal("cannot build gateway", zap.Error(err))
	}
	if err := gw.Install(ctx); err != nil {
		// Starting offline is fine; the cache fills once the server is back.
		zapLogger.Warn("precache skipped", zap.Error(err))
	}

	drainer := drain.New(q, client, options.ServerURL, timeout, zapLogger)
	drainer.Monitor(ctx, 15*time.Second)

	dispatcher := notify.NewDispatcher(nil, nil, zapLogger)
	subscriber := notify.NewSubscriber(client, options.ServerURL,
		filepath.Join(options.DataDir, "subscription.json"), zapLogger)

	// Local gateway endpoint: push deliveries plus the proxied app surface.
	r := chi.NewRouter()
	r.Post("/push", func(w nethttp.ResponseWriter, req *nethttp.Request) {
		payload, err := io.ReadAll(req.Body)
		if err != nil {
			nethttp.Error(w, "bad payload", nethttp.StatusBadRequest)
			return
		}
		if err := dispatcher.HandlePush(payload); err != nil {
			nethttp.Error(w, "notification failed", nethttp.StatusInternalServerError)
			return
		}
		w.WriteHeader(nethttp.StatusCreated)
	})
	r.Handle("/*", gw)

	server := &nethttp.Server{Addr: options.GatewayAddr, Handler: r}
	go func() {
		zapLogger.Info("starting gateway", zap.String("addr", options.GatewayAddr))
		if err := server.ListenAndServe(); err != nil && err != nethttp.ErrServerClosed {
			zapLogger.Fatal("failed to start gateway", zap.Error(err))
		}
	}()

	a := &agent{
		queue:      q,
		drainer:    drainer,
		subscriber: subscriber,
		gatewayURL: "http://" + options.GatewayAddr,
		client:     client,
		log:        zapLogger,
	}

	repl(a)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
}
