// Package cache implements the versioned response cache behind the offline
// gateway: named generations of previously observed GET responses, replaced
// wholesale when a new generation is activated.
package cache

import (
	"net/http"
	"net/url"
	"strings"
	"sync"

	gocache "github.com/patrickmn/go-cache"
)

// Response is a cached HTTP response: status, headers and body.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// OK reports whether the response carries a success status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Clone returns a deep copy, so the cached value and the value returned to
// the caller stay independently consumable.
func (r *Response) Clone() *Response {
	body := make([]byte, len(r.Body))
	copy(body, r.Body)

	header := make(http.Header, len(r.Header))
	for k, vs := range r.Header {
		header[k] = append([]string(nil), vs...)
	}
	return &Response{Status: r.Status, Header: header, Body: body}
}

// Store holds all cache generations. Reads and writes are safe for
// concurrent use from independent request tasks.
type Store struct {
	mu   sync.RWMutex
	gens map[string]*gocache.Cache
}

// New returns an empty Store.
func New() *Store {
	return &Store{gens: make(map[string]*gocache.Cache)}
}

// Generation is one named cache generation that responses are written into.
type Generation struct {
	name string
	c    *gocache.Cache
}

// Name returns the generation's name.
func (g *Generation) Name() string { return g.name }

// Open returns the generation with the given name, creating it if absent.
func (s *Store) Open(name string) *Generation {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.gens[name]
	if !ok {
		c = gocache.New(gocache.NoExpiration, 0)
		s.gens[name] = c
	}
	return &Generation{name: name, c: c}
}

// Names returns the names of all existing generations.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.gens))
	for name := range s.gens {
		names = append(names, name)
	}
	return names
}

// Activate deletes every generation except keep and returns the deleted
// names. From a consumer's point of view the cutover is atomic: once
// Activate returns, no stale generation can serve a match.
func (s *Store) Activate(keep string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := make([]string, 0, len(s.gens))
	for name := range s.gens {
		if name == keep {
			continue
		}
		delete(s.gens, name)
		deleted = append(deleted, name)
	}
	return deleted
}

// Put stores a clone of resp for the request URL. Only idempotent GET
// responses belong here; the gateway never routes mutating requests through
// the cache.
func (g *Generation) Put(u *url.URL, resp *Response) {
	g.c.Set(entryKey(u), resp.Clone(), gocache.NoExpiration)
}

// Match looks up a cached response for the request URL across all
// generations. With ignoreSearch set, query strings on both the request and
// the stored entries are disregarded.
func (s *Store) Match(u *url.URL, ignoreSearch bool) (*Response, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.gens {
		if v, ok := c.Get(entryKey(u)); ok {
			return v.(*Response).Clone(), true
		}
		if !ignoreSearch {
			continue
		}
		for key, item := range c.Items() {
			if keyPath(key) == u.Path {
				return item.Object.(*Response).Clone(), true
			}
		}
	}
	return nil, false
}

// MatchPath looks up a cached response stored under the bare path, with no
// query string.
func (s *Store) MatchPath(path string) (*Response, bool) {
	return s.Match(&url.URL{Path: path}, false)
}

func entryKey(u *url.URL) string {
	if u.RawQuery == "" {
		return u.Path
	}
	return u.Path + "?" + u.RawQuery
}

func keyPath(key string) string {
	if i := strings.IndexByte(key, '?'); i >= 0 {
		return key[:i]
	}
	return key
}
