// Package coordinator runs the single control loop that owns the device
// registry and mediates every interaction with the Bluetooth adapter.
//
// The foreground talks to it only through a Client, which enqueues commands
// and reads registry snapshots. Discovery runs as a cancelable session in
// its own goroutine; at most one session is live at a time.
package coordinator

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"bluetray/internal/adapter"
	"bluetray/internal/device"
)

// Options configures the coordinator.
type Options struct {
	QueueCapacity   int
	SendTimeout     time.Duration
	Transport       adapter.Transport
	KeepDiscovering bool
	Registry        *device.Registry
	Notifier        Notifier
	OnOutcome       OutcomeFunc
	Logger          logrus.FieldLogger
}

// Option mutates Options.
type Option func(*Options)

// DefaultOptions returns the defaults used when no option overrides them.
func DefaultOptions() Options {
	return Options{
		QueueCapacity: DefaultQueueCapacity,
		Transport:     adapter.TransportAuto,
	}
}

// WithQueue sets the command queue capacity and the enqueue timeout.
func WithQueue(capacity int, sendTimeout time.Duration) Option {
	return func(o *Options) {
		o.QueueCapacity = capacity
		o.SendTimeout = sendTimeout
	}
}

// WithTransport selects the discovery transport filter.
func WithTransport(t adapter.Transport) Option {
	return func(o *Options) {
		o.Transport = t
	}
}

// WithKeepDiscovering leaves adapter discovery running when a session that
// started it ends.
func WithKeepDiscovering(keep bool) Option {
	return func(o *Options) {
		o.KeepDiscovering = keep
	}
}

// WithRegistry supplies the registry; defaults to a fresh one.
func WithRegistry(r *device.Registry) Option {
	return func(o *Options) {
		o.Registry = r
	}
}

// WithNotifier receives update_devices notifications.
func WithNotifier(n Notifier) Option {
	return func(o *Options) {
		o.Notifier = n
	}
}

// WithOutcomes observes the outcome of every command.
func WithOutcomes(fn OutcomeFunc) Option {
	return func(o *Options) {
		o.OnOutcome = fn
	}
}

// WithLogger supplies a logger; defaults to a discard logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// Coordinator is the running control loop.
type Coordinator struct {
	gw     *adapter.Gateway
	reg    *device.Registry
	queue  *Queue
	opts   Options
	log    logrus.FieldLogger
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	flag     refreshFlag
	mu       sync.Mutex
	active   *session
	sessions sync.WaitGroup
}

// Start launches the coordinator loop over gw. The loop ends when parent is
// cancelled, Stop is called or the queue is closed.
func Start(parent context.Context, gw *adapter.Gateway, opts ...Option) *Coordinator {
	cfg := DefaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}

	logger := cfg.Logger
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	reg := cfg.Registry
	if reg == nil {
		reg = device.NewRegistry()
	}

	ctx, cancel := context.WithCancel(parent)
	c := &Coordinator{
		gw:     gw,
		reg:    reg,
		queue:  NewQueue(cfg.QueueCapacity, cfg.SendTimeout),
		opts:   cfg,
		log:    logger.WithField("component", "coordinator"),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go c.run()
	return c
}

// Client returns the foreground facade.
func (c *Coordinator) Client() *Client {
	return &Client{queue: c.queue, reg: c.reg, flag: &c.flag}
}

// Stop ends the loop, cancels any live session and waits for both.
func (c *Coordinator) Stop() {
	c.cancel()
	<-c.done
}

// Done is closed once the loop and any session have exited.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

func (c *Coordinator) run() {
	defer close(c.done)
	defer c.sessions.Wait()
	defer c.stopSession()
	defer c.queue.Close()

	c.log.WithFields(logrus.Fields{
		"queue_capacity": c.queue.Cap(),
		"transport":      c.opts.Transport,
	}).Info("coordinator started")

	for {
		select {
		case <-c.ctx.Done():
			c.log.Info("coordinator stopping: context cancelled")
			return
		case <-c.queue.done:
			c.log.Info("coordinator stopping: queue closed")
			return
		case cmd := <-c.queue.ch:
			c.report(c.handle(cmd))
		}
	}
}

func (c *Coordinator) handle(cmd Command) Outcome {
	switch cmd.Kind {
	case RefreshDevices:
		if !c.flag.tryStart() {
			return Outcome{Command: cmd, Result: Absorbed}
		}
		c.startSession()
		return Outcome{Command: cmd, Result: Accepted}

	case GetCurrentDevices:
		return Outcome{Command: cmd, Result: Accepted}

	case StopRefreshDevices:
		c.stopSession()
		return Outcome{Command: cmd, Result: Accepted}

	case ConnectDevice, DisconnectDevice:
		if err := c.setConnection(cmd.Addr, cmd.Kind == ConnectDevice); err != nil {
			return Outcome{Command: cmd, Result: Rejected, Err: err}
		}
		return Outcome{Command: cmd, Result: Accepted}
	}
	return Outcome{Command: cmd, Result: Rejected, Err: fmt.Errorf("unknown command %s", cmd)}
}

func (c *Coordinator) report(out Outcome) {
	entry := c.log.WithFields(logrus.Fields{"command": out.Command.String(), "result": out.Result.String()})
	switch out.Result {
	case Rejected:
		entry.WithError(out.Err).Warn("command rejected")
	case Absorbed:
		entry.Debug("command absorbed")
	default:
		entry.Debug("command handled")
	}
	if c.opts.OnOutcome != nil {
		c.opts.OnOutcome(out)
	}
}

// setConnection runs connect or disconnect to completion on the loop
// goroutine. The device handle is used outside the gateway lock.
func (c *Coordinator) setConnection(raw string, connect bool) error {
	addr, err := device.ParseAddress(raw)
	if err != nil {
		return err
	}

	dev, err := c.gw.Device(c.ctx, addr)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", addr, err)
	}

	if connect {
		err = dev.Connect(c.ctx)
	} else {
		err = dev.Disconnect(c.ctx)
	}
	if err != nil {
		return err
	}

	c.reg.SetConnected(addr, connect)
	c.log.WithField("addr", addr.String()).Infof("connected=%v", connect)
	if c.opts.Notifier != nil {
		c.opts.Notifier.DevicesChanged()
	}
	return nil
}

func (c *Coordinator) startSession() {
	sctx, cancel := context.WithCancel(c.ctx)
	s := &session{
		gw:              c.gw,
		reg:             c.reg,
		transport:       c.opts.Transport,
		keepDiscovering: c.opts.KeepDiscovering,
		log:             c.log.WithField("component", "discovery"),
		cancel:          cancel,
	}

	c.mu.Lock()
	c.active = s
	c.mu.Unlock()

	c.sessions.Add(1)
	go func() {
		defer c.sessions.Done()
		defer cancel()
		defer c.flag.finish()
		defer func() {
			c.mu.Lock()
			if c.active == s {
				c.active = nil
			}
			c.mu.Unlock()
		}()
		s.run(sctx)
	}()
}

// stopSession is advisory: the session notices at its next wait point and
// clears the flag itself.
func (c *Coordinator) stopSession() {
	c.mu.Lock()
	s := c.active
	c.mu.Unlock()
	if s != nil {
		s.cancel()
	}
}
