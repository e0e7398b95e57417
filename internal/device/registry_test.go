package device

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestField_Or(t *testing.T) {
	assert.Equal(t, "headset", Known("headset").Or(UnknownName))
	assert.Equal(t, UnknownName, Unknown[string]().Or(UnknownName))

	// An adapter-reported empty name is still "known".
	empty := Known("")
	assert.True(t, empty.Known)
	assert.Equal(t, "", empty.Or(UnknownName))
}

func TestRecord_JSON(t *testing.T) {
	rec := Record{Address: MustParseAddress("48:73:CB:41:50:F5")}
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"mac_addr":"48:73:CB:41:50:F5","name":"unknown","is_connected":false}`, string(data))

	rec.Name = Known("Buds")
	rec.Connected = Known(true)
	data, err = json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"mac_addr":"48:73:CB:41:50:F5","name":"Buds","is_connected":true}`, string(data))

	var back Record
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, rec, back)
}

func TestRegistry_UpsertRemove(t *testing.T) {
	r := NewRegistry()
	a := MustParseAddress("AA:BB:CC:DD:EE:FF")

	r.Upsert(Record{Address: a, Name: Known("one")})
	r.Upsert(Record{Address: a, Name: Known("two")})
	assert.Equal(t, 1, r.Len())

	got, ok := r.Get(a)
	require.True(t, ok)
	assert.Equal(t, "two", got.DisplayName())

	assert.True(t, r.Remove(a))
	assert.False(t, r.Remove(a), "second remove is a no-op")
	assert.False(t, r.Remove(MustParseAddress("00:00:00:00:00:01")))
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_SetConnected(t *testing.T) {
	r := NewRegistry()
	a := MustParseAddress("AA:BB:CC:DD:EE:FF")

	assert.False(t, r.SetConnected(a, true), "absent records are not created")
	assert.Equal(t, 0, r.Len())

	r.Upsert(Record{Address: a})
	assert.True(t, r.SetConnected(a, true))
	got, _ := r.Get(a)
	assert.Equal(t, Known(true), got.Connected)
}

func TestRegistry_SnapshotIsSortedCopy(t *testing.T) {
	r := NewRegistry()
	r.Upsert(Record{Address: MustParseAddress("CC:00:00:00:00:00")})
	r.Upsert(Record{Address: MustParseAddress("AA:00:00:00:00:00")})
	r.Upsert(Record{Address: MustParseAddress("BB:00:00:00:00:00")})

	snap := r.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "AA:00:00:00:00:00", snap[0].Address.String())
	assert.Equal(t, "BB:00:00:00:00:00", snap[1].Address.String())
	assert.Equal(t, "CC:00:00:00:00:00", snap[2].Address.String())

	snap[0].Name = Known("mutated")
	got, _ := r.Get(snap[0].Address)
	assert.False(t, got.Name.Known)
}

func TestRegistry_ConcurrentDistinctKeys(t *testing.T) {
	r := NewRegistry()
	const n = 64

	// Each address gets add, remove, add in order; distinct addresses
	// interleave freely. The last event per address must win.
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			addr := Address{0x10, 0, 0, 0, 0, byte(i)}
			r.Upsert(Record{Address: addr, Name: Known("first")})
			r.Remove(addr)
			if i%2 == 0 {
				r.Upsert(Record{Address: addr, Name: Known(fmt.Sprintf("dev-%d", i))})
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, n/2, r.Len())
	for i := 0; i < n; i++ {
		addr := Address{0x10, 0, 0, 0, 0, byte(i)}
		got, ok := r.Get(addr)
		if i%2 == 0 {
			require.True(t, ok)
			assert.Equal(t, fmt.Sprintf("dev-%d", i), got.DisplayName())
		} else {
			assert.False(t, ok)
		}
	}
}
