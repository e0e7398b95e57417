package device

import (
	"bytes"
	"sort"
	"sync"
)

// Registry maps addresses to records. It is written by the coordinator and
// its discovery session and read by the foreground. The lock is held only
// for the map operation or the copy, never across an adapter call.
type Registry struct {
	mu      sync.RWMutex
	records map[Address]Record
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		records: make(map[Address]Record),
	}
}

// Upsert inserts or replaces the record for r.Address.
func (r *Registry) Upsert(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.Address] = rec
}

// Remove deletes addr and reports whether it was present. Removing an
// unknown address is a no-op.
func (r *Registry) Remove(addr Address) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[addr]; !ok {
		return false
	}
	delete(r.records, addr)
	return true
}

// SetConnected updates the connection status of an existing record and
// reports whether the record exists.
func (r *Registry) SetConnected(addr Address, connected bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[addr]
	if !ok {
		return false
	}
	rec.Connected = Known(connected)
	r.records[addr] = rec
	return true
}

// Get returns the record for addr.
func (r *Registry) Get(addr Address) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[addr]
	return rec, ok
}

// Len returns the number of records.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Snapshot returns a copy of all records ordered by address.
func (r *Registry) Snapshot() []Record {
	r.mu.RLock()
	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Address[:], out[j].Address[:]) < 0
	})
	return out
}
