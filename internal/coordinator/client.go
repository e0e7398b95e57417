package coordinator

import (
	"context"

	"bluetray/internal/device"
)

// Client is the foreground side of the coordinator. Enqueue methods return
// false when the command could not be queued; they never report whether
// the command later succeeded.
type Client struct {
	queue *Queue
	reg   *device.Registry
	flag  *refreshFlag
}

// GetDevices returns a snapshot of the registry.
func (c *Client) GetDevices() []device.Record {
	return c.reg.Snapshot()
}

func (c *Client) RefreshDevices(ctx context.Context) bool {
	return c.queue.Send(ctx, Command{Kind: RefreshDevices})
}

func (c *Client) StopRefreshDevices(ctx context.Context) bool {
	return c.queue.Send(ctx, Command{Kind: StopRefreshDevices})
}

func (c *Client) ConnectDevice(ctx context.Context, addr string) bool {
	return c.queue.Send(ctx, Command{Kind: ConnectDevice, Addr: addr})
}

func (c *Client) DisconnectDevice(ctx context.Context, addr string) bool {
	return c.queue.Send(ctx, Command{Kind: DisconnectDevice, Addr: addr})
}

// Send enqueues an arbitrary command.
func (c *Client) Send(ctx context.Context, cmd Command) bool {
	return c.queue.Send(ctx, cmd)
}

// GetDeviceState is reserved for per-device detail and does nothing yet.
func (c *Client) GetDeviceState() {}

// Refreshing reports whether a discovery session is live.
func (c *Client) Refreshing() bool {
	return c.flag.active()
}

// Close shuts the queue; the coordinator loop exits.
func (c *Client) Close() {
	c.queue.Close()
}
