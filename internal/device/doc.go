// Package device holds the Bluetooth address type, the cached device record
// and the registry shared between the coordinator and the foreground.
package device
