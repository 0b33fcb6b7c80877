package events

import (
	"testing"
	"time"

	"github.com/cgif-games/octothorpe/pkg/world"
)

func TestQueueOrder(t *testing.T) {
	q := NewQueue()
	q.Push(Event{Type: EvMapReq})
	q.Push(Event{Type: EvMoveAck, Text: "north"})
	q.Push(Event{Type: EvNearby})

	want := []Type{EvMapReq, EvMoveAck, EvNearby}
	for i, wt := range want {
		ev, ok := q.Pop()
		if !ok {
			t.Fatalf("Pop %d: queue closed early", i)
		}
		if ev.Type != wt {
			t.Errorf("Pop %d: type = %v, want %v", i, ev.Type, wt)
		}
	}
}

func TestQueueBlockingPop(t *testing.T) {
	q := NewQueue()
	got := make(chan Event, 1)
	go func() {
		ev, _ := q.Pop()
		got <- ev
	}()

	time.Sleep(10 * time.Millisecond)
	q.Push(Event{Type: EvFound})

	select {
	case ev := <-got:
		if ev.Type != EvFound {
			t.Errorf("blocked Pop got %v, want EvFound", ev.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake on Push")
	}
}

func TestQueueClose(t *testing.T) {
	q := NewQueue()
	q.Push(Event{Type: EvMoveAck})
	q.Close()

	// Remaining items drain, then Pop reports closed.
	if ev, ok := q.Pop(); !ok || ev.Type != EvMoveAck {
		t.Errorf("Pop after Close = (%v, %v), want queued item", ev.Type, ok)
	}
	if _, ok := q.Pop(); ok {
		t.Error("Pop on drained closed queue should report closed")
	}

	// Push after close is a no-op.
	q.Push(Event{Type: EvMapReq})
	if q.Len() != 0 {
		t.Error("Push after Close should not enqueue")
	}
}

func TestQueueCloseWakesBlockedPop(t *testing.T) {
	q := NewQueue()
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Pop()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		if ok {
			t.Error("Pop on closed empty queue should return false")
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not wake blocked Pop")
	}
}

// drain collects everything currently deliverable to q within the window.
func drain(q *Queue, window time.Duration) []Event {
	var evs []Event
	deadline := time.After(window)
	got := make(chan Event, 16)
	go func() {
		for {
			ev, ok := q.Pop()
			if !ok {
				return
			}
			got <- ev
		}
	}()
	for {
		select {
		case ev := <-got:
			evs = append(evs, ev)
		case <-deadline:
			q.Close()
			return evs
		}
	}
}

func TestBroadcasterExcludesOrigin(t *testing.T) {
	b := NewBroadcaster()
	defer b.Stop()
	go b.Run()

	q1 := NewQueue()
	q2 := NewQueue()
	b.Register(1, q1)
	b.Register(2, q2)

	b.Login(1, nil)
	b.Move(1, nil)
	t3 := world.Treasure{ID: 3, Pos: world.Point{X: 4, Y: 4}, Score: 7}
	b.Collected(1, nil, t3)

	evs2 := drain(q2, 200*time.Millisecond)
	if len(evs2) != 3 {
		t.Fatalf("session 2 got %d events, want 3", len(evs2))
	}
	want := []Type{EvJoined, EvMoved, EvTaken}
	for i, wt := range want {
		if evs2[i].Type != wt {
			t.Errorf("session 2 event %d = %v, want %v", i, evs2[i].Type, wt)
		}
	}
	if evs2[2].Treasure.ID != 3 || evs2[2].Treasure.Score != 7 {
		t.Errorf("EvTaken treasure = %+v, want id 3 score 7", evs2[2].Treasure)
	}

	if evs1 := drain(q1, 100*time.Millisecond); len(evs1) != 0 {
		t.Errorf("originating session got %d events, want 0", len(evs1))
	}
}

func TestBroadcasterLogoutReachesEveryone(t *testing.T) {
	b := NewBroadcaster()
	defer b.Stop()
	go b.Run()

	q1 := NewQueue()
	q2 := NewQueue()
	b.Register(1, q1)
	b.Register(2, q2)

	b.Logout(nil)

	for i, q := range []*Queue{q1, q2} {
		evs := drain(q, 200*time.Millisecond)
		if len(evs) != 1 || evs[0].Type != EvLeft {
			t.Errorf("session %d: events = %v, want one EvLeft", i+1, evs)
		}
	}
}

func TestBroadcasterUnregister(t *testing.T) {
	b := NewBroadcaster()
	defer b.Stop()
	go b.Run()

	q1 := NewQueue()
	b.Register(1, q1)
	b.Unregister(1)

	b.Logout(nil)

	if evs := drain(q1, 100*time.Millisecond); len(evs) != 0 {
		t.Errorf("unregistered session got %d events, want 0", len(evs))
	}
}

func TestTypeString(t *testing.T) {
	tests := []struct {
		t    Type
		want string
	}{
		{EvLoginSync, "login-sync"},
		{EvCheatMapReq, "cheatmap"},
		{EvTaken, "treasure-taken"},
		{Type(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.t.String(); got != tt.want {
			t.Errorf("Type(%d).String() = %q, want %q", tt.t, got, tt.want)
		}
	}
}
