package users

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cgif-games/octothorpe/pkg/world"
)

var (
	// ErrInvalidUsername rejects empty usernames.
	ErrInvalidUsername = errors.New("users: invalid username")
	// ErrUsernameActive rejects a username already bound to a live session.
	ErrUsernameActive = errors.New("users: username already logged in")
)

// Registry owns every persistent User record plus the index of which
// session currently holds which user. All mutation happens under one lock.
type Registry struct {
	mu     sync.Mutex
	store  Store
	spawn  world.Point
	byID   map[string]*User
	byName map[string]*User
	active map[int]*User // session id -> bound user
	nextID int

	stopSave chan struct{}
	saveOnce sync.Once
}

// NewRegistry loads the persisted users from store. Loaded users get the
// spawn position; it is reassigned on every login anyway.
func NewRegistry(store Store, spawn world.Point) (*Registry, error) {
	records, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("users: load registry: %w", err)
	}

	r := &Registry{
		store:    store,
		spawn:    spawn,
		byID:     make(map[string]*User),
		byName:   make(map[string]*User),
		active:   make(map[int]*User),
		stopSave: make(chan struct{}),
	}
	for id, rec := range records {
		u := &User{id: id, username: rec.Username, score: rec.Score, pos: spawn}
		r.byID[id] = u
		r.byName[rec.Username] = u
		if n := idNumber(id); n >= r.nextID {
			r.nextID = n + 1
		}
	}
	return r, nil
}

// idNumber extracts the sequence number from an id like "u0012".
func idNumber(id string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(id, "u"))
	if err != nil {
		return -1
	}
	return n
}

// Login binds username to sessionID, creating the User on first sight.
// New users start at the spawn point with score 0; returning users keep
// their score but respawn. The second return reports whether the user was
// newly created.
func (r *Registry) Login(sessionID int, username string) (*User, bool, error) {
	if username == "" {
		return nil, false, ErrInvalidUsername
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.active {
		if u.username == username {
			return nil, false, ErrUsernameActive
		}
	}

	u, ok := r.byName[username]
	if !ok {
		u = &User{
			id:       fmt.Sprintf("u%04d", r.nextID),
			username: username,
			pos:      r.spawn,
		}
		r.nextID++
		r.byID[u.id] = u
		r.byName[username] = u
	} else {
		u.SetPosition(r.spawn)
	}
	r.active[sessionID] = u
	return u, !ok, nil
}

// Logout unbinds the session. The persistent record survives; the caller
// is expected to have broadcast the departure already. Every logout
// flushes the registry to the store.
func (r *Registry) Logout(sessionID int) {
	r.mu.Lock()
	_, bound := r.active[sessionID]
	delete(r.active, sessionID)
	r.mu.Unlock()

	if bound {
		if err := r.Save(); err != nil {
			log.Printf("users: save on logout: %v", err)
		}
	}
}

// Active returns the user bound to sessionID, or nil.
func (r *Registry) Active(sessionID int) *User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active[sessionID]
}

// ByUsername returns the persistent user for username, or nil.
func (r *Registry) ByUsername(username string) *User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byName[username]
}

// ActiveUsers returns a snapshot of users bound to live sessions, in
// session-id order for stable output.
func (r *Registry) ActiveUsers() []*User {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int, 0, len(r.active))
	for id := range r.active {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	us := make([]*User, 0, len(ids))
	for _, id := range ids {
		us = append(us, r.active[id])
	}
	return us
}

// ActiveCount returns the number of logged-in sessions.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// Save rewrites the whole registry to the backing store.
func (r *Registry) Save() error {
	r.mu.Lock()
	records := make(map[string]Record, len(r.byID))
	for id, u := range r.byID {
		records[id] = Record{Username: u.username, Score: u.Score()}
	}
	r.mu.Unlock()
	return r.store.Save(records)
}

// StartAutoSave flushes the registry every interval until StopAutoSave.
func (r *Registry) StartAutoSave(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := r.Save(); err != nil {
					log.Printf("users: periodic save: %v", err)
				}
			case <-r.stopSave:
				return
			}
		}
	}()
}

// StopAutoSave halts the periodic save loop.
func (r *Registry) StopAutoSave() {
	r.saveOnce.Do(func() { close(r.stopSave) })
}
