// Package users holds the persistent user records and the active-session
// index that binds connections to users.
package users

import (
	"sync"

	"github.com/cgif-games/octothorpe/pkg/world"
)

// User is a persistent player record. Score survives across sessions;
// position is reset to the spawn point on every login and is never
// persisted. Fields are guarded because the session's own goroutines and
// the writer goroutines of other sessions both read them.
type User struct {
	mu       sync.Mutex
	id       string
	username string
	score    int
	pos      world.Point
}

// ID returns the opaque stable identifier.
func (u *User) ID() string {
	return u.id
}

// Username returns the unique case-sensitive username.
func (u *User) Username() string {
	return u.username
}

// Score returns the current score.
func (u *User) Score() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.score
}

// AddScore credits points and returns the new total.
func (u *User) AddScore(n int) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.score += n
	return u.score
}

// Position returns the current map position.
func (u *User) Position() world.Point {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.pos
}

// SetPosition moves the user to p.
func (u *User) SetPosition(p world.Point) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.pos = p
}

// Record is the persisted form of a User.
type Record struct {
	Username string `json:"username"`
	Score    int    `json:"score"`
}

// Store persists the user registry as a map of user id to Record.
type Store interface {
	// Load returns the persisted registry. A missing backing file yields
	// an empty map, not an error.
	Load() (map[string]Record, error)
	// Save rewrites the full registry wholesale.
	Save(map[string]Record) error
	Close() error
}
