package coordinator

import "sync/atomic"

// refreshFlag records whether a discovery session is live. Only the
// coordinator sets it and only the session that was started clears it.
type refreshFlag struct {
	v atomic.Bool
}

// tryStart sets the flag and reports whether it was clear.
func (f *refreshFlag) tryStart() bool {
	return f.v.CompareAndSwap(false, true)
}

func (f *refreshFlag) finish() {
	f.v.Store(false)
}

func (f *refreshFlag) active() bool {
	return f.v.Load()
}
