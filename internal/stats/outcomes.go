package stats

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"bluetray/internal/coordinator"
)

const DefaultOutcomeHistory = 100

type OutcomeEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Command   string    `json:"command"`
	Address   string    `json:"address,omitempty"`
	Result    string    `json:"result"`
	Error     string    `json:"error,omitempty"`
}

// Outcomes keeps the latest command outcomes plus running totals per result.
type Outcomes struct {
	ring *Ring[OutcomeEntry]

	mu     sync.Mutex
	totals map[string]int
}

func NewOutcomes(size int) *Outcomes {
	return &Outcomes{
		ring:   NewRing[OutcomeEntry](size),
		totals: make(map[string]int),
	}
}

// Record converts o and stores it. It never blocks on I/O, so it is safe to
// use as a coordinator.OutcomeFunc.
func (s *Outcomes) Record(o coordinator.Outcome) OutcomeEntry {
	now := time.Now()
	entry := OutcomeEntry{
		ID:        ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		Timestamp: now,
		Command:   o.Command.Kind.String(),
		Address:   o.Command.Addr,
		Result:    o.Result.String(),
	}
	if o.Err != nil {
		entry.Error = o.Err.Error()
	}
	s.ring.Add(entry)

	s.mu.Lock()
	s.totals[entry.Result]++
	s.mu.Unlock()
	return entry
}

func (s *Outcomes) Recent(n int) []OutcomeEntry {
	return s.ring.Recent(n)
}

func (s *Outcomes) Totals() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.totals))
	for k, v := range s.totals {
		out[k] = v
	}
	return out
}
