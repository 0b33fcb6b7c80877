// Package world holds the static map grid and the mutable treasure set.
package world

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"strings"
	"sync"
)

// Point is a map coordinate. X is the column, Y is the row.
type Point struct {
	X int
	Y int
}

// Treasure is a hidden collectible placed on a walkable cell.
// Immutable once generated; it only ever leaves the active set.
type Treasure struct {
	ID    int
	Pos   Point
	Score int
}

// TreasureDistance pairs a treasure with its distance from a query point.
type TreasureDistance struct {
	Treasure Treasure
	Distance float64
}

// World is the map grid plus the active treasure set. The grid and spawn
// point are immutable after load; the treasure set shrinks under the lock
// as treasures are collected.
type World struct {
	grid  []string
	spawn Point

	mu        sync.Mutex
	treasures map[int]Treasure
	nextID    int
}

// New builds a World from pre-loaded map rows. The spawn point is the
// first 'S' cell scanning row-major, defaulting to (1,1).
func New(rows []string) *World {
	w := &World{
		grid:      rows,
		spawn:     Point{1, 1},
		treasures: make(map[int]Treasure),
	}
	for y, row := range rows {
		if x := strings.IndexByte(row, 'S'); x >= 0 {
			w.spawn = Point{x, y}
			break
		}
	}
	return w
}

// Load reads the map file into a World. The map is a plain-text grid, one
// row per line. A missing or unreadable file is a startup-only failure.
func Load(path string) (*World, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("world: load map %s: %w", path, err)
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	rows := strings.Split(strings.TrimRight(text, "\n"), "\n")
	return New(rows), nil
}

// Spawn returns the spawn point.
func (w *World) Spawn() Point {
	return w.spawn
}

// Rows returns the immutable map rows. Callers must not modify them.
func (w *World) Rows() []string {
	return w.grid
}

// Size returns the map dimensions as (rows, cols).
func (w *World) Size() (int, int) {
	if len(w.grid) == 0 {
		return 0, 0
	}
	return len(w.grid), len(w.grid[0])
}

// IsWalkable reports whether p is in bounds and on a blank or spawn cell.
func (w *World) IsWalkable(p Point) bool {
	if p.Y < 0 || p.Y >= len(w.grid) {
		return false
	}
	row := w.grid[p.Y]
	if p.X < 0 || p.X >= len(row) {
		return false
	}
	return row[p.X] == ' ' || row[p.X] == 'S'
}

// GenerateTreasures places count treasures on uniform-random blank cells
// away from the border, each farther than minSep from every earlier one.
// IDs are assigned in placement order starting at 0; scores are uniform
// in [1, count]. Fails rather than looping forever on maps with too few
// valid cells.
func (w *World) GenerateTreasures(count int, minSep float64, rng *rand.Rand) error {
	rows, cols := w.Size()
	if rows < 3 || cols < 3 {
		return fmt.Errorf("world: map %dx%d too small for treasures", rows, cols)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	attempts := 0
	maxAttempts := count * 1000
	placed := 0
	for placed < count {
		if attempts >= maxAttempts {
			return fmt.Errorf("world: gave up placing treasures after %d attempts (%d of %d placed)",
				attempts, placed, count)
		}
		attempts++

		p := Point{X: 1 + rng.Intn(cols-2), Y: 1 + rng.Intn(rows-2)}
		if w.grid[p.Y][p.X] != ' ' {
			continue
		}
		if d, ok := w.nearestLocked(p); ok && d <= minSep {
			continue
		}
		w.treasures[w.nextID] = Treasure{
			ID:    w.nextID,
			Pos:   p,
			Score: 1 + rng.Intn(count),
		}
		w.nextID++
		placed++
	}
	return nil
}

// Place adds a treasure directly to the active set, keeping ID assignment
// consistent with generation order.
func (w *World) Place(t Treasure) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.treasures[t.ID] = t
	if t.ID >= w.nextID {
		w.nextID = t.ID + 1
	}
}

// Nearby returns every active treasure strictly closer than radius to p,
// paired with its distance. Comparison uses the unrounded distance.
func (w *World) Nearby(p Point, radius float64) []TreasureDistance {
	w.mu.Lock()
	defer w.mu.Unlock()
	var near []TreasureDistance
	for _, t := range w.treasures {
		if d := distance(t.Pos, p); d < radius {
			near = append(near, TreasureDistance{Treasure: t, Distance: d})
		}
	}
	return near
}

// NearestDistance returns the distance to the closest active treasure.
// The second return is false when no treasures remain.
func (w *World) NearestDistance(p Point) (float64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.nearestLocked(p)
}

func (w *World) nearestLocked(p Point) (float64, bool) {
	min := -1.0
	for _, t := range w.treasures {
		if d := distance(t.Pos, p); min < 0 || d < min {
			min = d
		}
	}
	return min, min >= 0
}

// Collect removes a treasure from the active set. It returns true only
// for the call that performed the removal, so concurrent claimants of the
// same cell resolve to exactly one winner.
func (w *World) Collect(id int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.treasures[id]; !ok {
		return false
	}
	delete(w.treasures, id)
	return true
}

// Remove permanently drops a treasure. Removing an unknown id is a no-op.
func (w *World) Remove(id int) {
	w.Collect(id)
}

// Treasures returns a snapshot of the active set.
func (w *World) Treasures() []Treasure {
	w.mu.Lock()
	defer w.mu.Unlock()
	ts := make([]Treasure, 0, len(w.treasures))
	for _, t := range w.treasures {
		ts = append(ts, t)
	}
	return ts
}

// Count returns the number of active treasures.
func (w *World) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.treasures)
}

func distance(a, b Point) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// RoundDistance rounds a distance to 2 decimal places for display.
func RoundDistance(d float64) float64 {
	return math.Round(d*100) / 100
}
