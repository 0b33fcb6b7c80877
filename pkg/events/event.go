// Package events defines the closed set of game events, the per-session
// outbound queues, and the global broadcaster that fans notifications out
// to every other connected session.
package events

import (
	"github.com/cgif-games/octothorpe/pkg/users"
	"github.com/cgif-games/octothorpe/pkg/world"
)

// Type classifies events for exhaustive dispatch in the session writer.
type Type int

const (
	// Session-private events, pushed by the session's own command handling.
	EvLoginSync   Type = iota // send full map + active-user snapshot
	EvMapReq                  // render map with own position marker
	EvCheatMapReq             // map plus treasure score overlay
	EvNearby                  // treasure proximity hint (102)
	EvFound                   // treasure collected by this session (103)
	EvMoveAck                 // successful move acknowledgment (200)
	EvMoveFail                // blocked move rejection (400)

	// Broadcast-derived notifications, pushed by the Broadcaster.
	EvJoined // another user logged in (101 + suffix)
	EvLeft   // a user logged out (101 + sentinel position)
	EvMoved  // another user moved (101)
	EvTaken  // another user collected a treasure (103)
)

// String returns a human-readable name for the event type.
func (t Type) String() string {
	switch t {
	case EvLoginSync:
		return "login-sync"
	case EvMapReq:
		return "map"
	case EvCheatMapReq:
		return "cheatmap"
	case EvNearby:
		return "treasure-nearby"
	case EvFound:
		return "treasure-found"
	case EvMoveAck:
		return "move-ack"
	case EvMoveFail:
		return "move-fail"
	case EvJoined:
		return "joined"
	case EvLeft:
		return "left"
	case EvMoved:
		return "moved"
	case EvTaken:
		return "treasure-taken"
	default:
		return "unknown"
	}
}

// Event is a tagged variant flowing through a session's outbound queue.
// User is the acting user (the session's own user for private events).
// Treasure is set for the treasure event kinds; Text carries the move
// direction for EvMoveAck/EvMoveFail.
type Event struct {
	Type     Type
	User     *users.User
	Treasure world.Treasure
	Text     string
}
