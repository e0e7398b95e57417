// Package ble implements adapter.Adapter on top of tinygo.org/x/bluetooth.
// It scans LE advertisements only; classic (BR/EDR) discovery is rejected.
package ble

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Options configures the LE backend.
type Options struct {
	// ConnectTimeout bounds Connect. Zero leaves it to the stack.
	ConnectTimeout time.Duration

	Logger logrus.FieldLogger
}
