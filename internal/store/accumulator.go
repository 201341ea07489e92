package store

import (
	"sort"
	"sync"

	"karriere-harvester/internal/models"
)

// Accumulator holds the records of one run keyed by their position in the
// crawl. Writing an occupied position replaces the record there.
type Accumulator struct {
	mu      sync.RWMutex
	records map[int]models.JobRecord
	end     int
}

// NewAccumulator returns an empty store.
func NewAccumulator() *Accumulator {
	return &Accumulator{records: map[int]models.JobRecord{}}
}

// Put writes rec at pos.
func (a *Accumulator) Put(pos int, rec models.JobRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records[pos] = rec
	if pos >= a.end {
		a.end = pos + 1
	}
}

// Len returns the number of records held.
func (a *Accumulator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.records)
}

// End returns one past the highest position ever written. Positions skipped
// by failed rows leave it above Len.
func (a *Accumulator) End() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.end
}

// Records returns a copy of the records ordered by position.
func (a *Accumulator) Records() []models.JobRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()
	positions := a.sortedPositions()
	out := make([]models.JobRecord, 0, len(positions))
	for _, pos := range positions {
		out = append(out, a.records[pos])
	}
	return out
}

// Dedup drops every record whose ID appears again at a later position, so
// the last write of an ID wins. Kept records stay in position order. It
// returns the number of records removed.
func (a *Accumulator) Dedup() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	positions := a.sortedPositions()
	last := make(map[string]int, len(positions))
	for _, pos := range positions {
		last[a.records[pos].ID] = pos
	}
	removed := 0
	for _, pos := range positions {
		if last[a.records[pos].ID] != pos {
			delete(a.records, pos)
			removed++
		}
	}
	return removed
}

// Reset empties the store.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = map[int]models.JobRecord{}
	a.end = 0
}

func (a *Accumulator) sortedPositions() []int {
	positions := make([]int, 0, len(a.records))
	for pos := range a.records {
		positions = append(positions, pos)
	}
	sort.Ints(positions)
	return positions
}
