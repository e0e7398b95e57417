//go:build !linux

package ble

import (
	"errors"

	"bluetray/internal/adapter"
)

// Adapter is unavailable on this platform.
type Adapter struct {
	adapter.Adapter
}

// Open always fails outside linux.
func Open(opts Options) (*Adapter, error) {
	return nil, errors.New("ble: backend is only built for linux")
}
