// Package gateway implements the request interception layer of the offline
// client: every request from the app passes through it and is served from
// network, cache or a fallback depending on its class. A request must always
// resolve to some response; no network failure escapes to the caller.
package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kpisonic1/puppyclass/internal/offline/cache"
)

const (
	pathPing  = "/api/ping"
	apiPrefix = "/api/"

	pageHome     = "/index.html"
	pageOffline  = "/offline.html"
	pageNotFound = "/404.html"
)

// AppShell lists the pages and assets precached into every new cache
// generation at install time.
var AppShell = []string{
	"/",
	"/index.html",
	"/addsession.html",
	"/offline.html",
	"/404.html",
	"/manifest.json",
	"/styles/styles.css",
	"/img/android/android-launchericon-192-192.png",
	"/img/android/android-launchericon-512-512.png",
}

// Gateway proxies the application's requests to the remote server, applying
// one caching strategy per request class.
type Gateway struct {
	server  *url.URL
	store   *cache.Store
	gen     *cache.Generation
	client  *http.Client
	timeout time.Duration
	log     *zap.Logger
}

// New builds a Gateway targeting serverURL, writing into the named cache
// generation. Every network call is bounded by timeout so a hung connection
// cannot stall a fallback indefinitely.
func New(serverURL string, store *cache.Store, generation string, client *http.Client, timeout time.Duration, log *zap.Logger) (*Gateway, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Gateway{
		server:  u,
		store:   store,
		gen:     store.Open(generation),
		client:  client,
		timeout: timeout,
		log:     log,
	}, nil
}

// Install precaches the app shell into the gateway's generation and then
// activates it, deleting every other generation. Returns an error if any
// shell asset cannot be fetched, leaving old generations in place.
func (g *Gateway) Install(ctx context.Context) error {
	for _, path := range AppShell {
		u := &url.URL{Path: path}
		res, err := g.fetch(ctx, u, nil)
		if err != nil {
			return fmt.Errorf("precache %s: %w", path, err)
		}
		if !res.OK() {
			return fmt.Errorf("precache %s: status %d", path, res.Status)
		}
		g.gen.Put(u, res)
	}

	deleted := g.store.Activate(g.gen.Name())
	g.log.Info("cache generation activated",
		zap.String("name", g.gen.Name()),
		zap.Strings("deleted", deleted),
	)
	return nil
}

// ServeHTTP routes each request to exactly one strategy. Non-GET requests
// are never intercepted; they pass through to the network unmodified.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		g.passthrough(w, r)
		return
	}

	var res *cache.Response
	switch {
	case r.URL.Path == pathPing:
		res = g.networkOnly(r)
	case strings.HasPrefix(r.URL.Path, apiPrefix):
		res = g.networkFirst(r)
	case isNavigation(r):
		res = g.navigate(r)
	default:
		res = g.cacheFirst(r)
	}
	writeResponse(w, res)
}

// networkOnly serves liveness probes. A probe must never lie about
// connectivity, so a cached value is never substituted for a failed fetch.
func (g *Gateway) networkOnly(r *http.Request) *cache.Response {
	res, err := g.fetch(r.Context(), r.URL, r.Header)
	if err != nil {
		return syntheticJSON(http.StatusServiceUnavailable, `{"ok":false}`)
	}
	return res
}

// networkFirst serves API calls: live response when reachable (cached for
// later), previously cached response ignoring query strings otherwise, and
// an empty-but-parseable list on a total miss.
func (g *Gateway) networkFirst(r *http.Request) *cache.Response {
	res, err := g.fetch(r.Context(), r.URL, r.Header)
	if err == nil {
		if res.OK() {
			g.gen.Put(r.URL, res)
		}
		return res
	}

	if cached, ok := g.store.Match(r.URL, true); ok {
		return cached
	}
	return syntheticJSON(http.StatusOK, "[]")
}

// navigate serves page navigations. On a non-ok network result the cached
// page, then the cached not-found page, then the raw network result are
// tried in order; a real 404 is never converted into an offline page. On a
// network failure the cached page, the offline page, the home page and
// finally a synthetic 503 are tried in order.
func (g *Gateway) navigate(r *http.Request) *cache.Response {
	cachedPage, haveCached := g.store.Match(r.URL, true)
	if !haveCached {
		cachedPage, haveCached = g.store.MatchPath(r.URL.Path)
	}

	res, err := g.fetch(r.Context(), r.URL, r.Header)
	if err == nil {
		if res.OK() {
			g.gen.Put(r.URL, res)
			return res
		}
		if haveCached {
			return cachedPage
		}
		if notFound, ok := g.store.MatchPath(pageNotFound); ok {
			return notFound
		}
		return res
	}

	if haveCached {
		return cachedPage
	}
	if offline, ok := g.store.MatchPath(pageOffline); ok {
		return offline
	}
	if home, ok := g.store.MatchPath(pageHome); ok {
		return home
	}
	return syntheticText(http.StatusServiceUnavailable, "Offline")
}

// cacheFirst serves static assets: cached copy when present, otherwise a
// network fetch that refills the cache, otherwise the offline page.
func (g *Gateway) cacheFirst(r *http.Request) *cache.Response {
	if cached, ok := g.store.Match(r.URL, false); ok {
		return cached
	}

	res, err := g.fetch(r.Context(), r.URL, r.Header)
	if err == nil {
		if res.OK() {
			g.gen.Put(r.URL, res)
		}
		return res
	}

	if offline, ok := g.store.MatchPath(pageOffline); ok {
		return offline
	}
	return syntheticText(http.StatusServiceUnavailable, "Offline")
}

// fetch performs one bounded network GET against the remote server and reads
// the full response.
func (g *Gateway) fetch(ctx context.Context, u *url.URL, header http.Header) (*cache.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	out := *u
	out.Scheme = g.server.Scheme
	out.Host = g.server.Host

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, out.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range header {
		req.Header[k] = vs
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", u.Path, err)
	}
	return &cache.Response{Status: resp.StatusCode, Header: resp.Header.Clone(), Body: body}, nil
}

// passthrough forwards a mutating request verbatim. Cache entries are never
// used to serve writes.
func (g *Gateway) passthrough(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), g.timeout)
	defer cancel()

	out := *r.URL
	out.Scheme = g.server.Scheme
	out.Host = g.server.Host

	req, err := http.NewRequestWithContext(ctx, r.Method, out.String(), r.Body)
	if err != nil {
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	for k, vs := range r.Header {
		req.Header[k] = vs
	}

	resp, err := g.client.Do(req)
	if err != nil {
		g.log.Warn("passthrough failed", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "server unreachable", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	for k, vs := range resp.Header {
		w.Header()[k] = vs
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

// isNavigation reports whether the request would replace the displayed page,
// the HTTP-observable equivalent of a browser navigation.
func isNavigation(r *http.Request) bool {
	if r.Header.Get("Sec-Fetch-Mode") == "navigate" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func syntheticJSON(status int, body string) *cache.Response {
	return &cache.Response{
		Status: status,
		Header: http.Header{"Content-Type": []string{"application/json"}},
		Body:   []byte(body),
	}
}

func syntheticText(status int, body string) *cache.Response {
	return &cache.Response{
		Status: status,
		Header: http.Header{"Content-Type": []string{"text/plain"}},
		Body:   []byte(body),
	}
}

func writeResponse(w http.ResponseWriter, res *cache.Response) {
	for k, vs := range res.Header {
		w.Header()[k] = vs
	}
	w.WriteHeader(res.Status)
	_, _ = w.Write(res.Body)
}
