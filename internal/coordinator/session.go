package coordinator

import (
	"context"

	"github.com/sirupsen/logrus"

	"bluetray/internal/adapter"
	"bluetray/internal/device"
)

// session is one discovery run: bootstrap the adapter, seed the registry
// from devices the adapter already knows, then apply live events until
// cancelled or the stream ends.
type session struct {
	gw              *adapter.Gateway
	reg             *device.Registry
	transport       adapter.Transport
	keepDiscovering bool
	log             logrus.FieldLogger
	cancel          context.CancelFunc
}

func (s *session) run(ctx context.Context) {
	s.log.Info("discovery session started")
	defer s.log.Info("discovery session ended")

	discovering, err := s.gw.IsDiscovering(ctx)
	if err != nil {
		s.log.WithError(err).Warn("query discovering state")
		return
	}

	if err := s.gw.SetDiscoveryFilter(ctx, adapter.Filter{Transport: s.transport}); err != nil {
		s.log.WithError(err).Warnf("set discovery filter %s", s.transport)
	}

	if !discovering {
		if err := s.gw.StartDiscovery(ctx); err != nil {
			s.log.WithError(err).Warn("start discovery")
		} else if !s.keepDiscovering {
			defer s.stopDiscovery(ctx)
		}
	}

	s.seed(ctx)

	events, err := s.gw.Events(ctx)
	if err != nil {
		s.log.WithError(err).Warn("subscribe to adapter events")
		return
	}

	for {
		select {
		case <-ctx.Done():
			s.log.Debug("discovery cancelled")
			return
		case ev, ok := <-events:
			if !ok {
				s.log.Debug("adapter event stream ended")
				return
			}
			if ctx.Err() != nil {
				return
			}
			s.apply(ctx, ev)
		}
	}
}

// stopDiscovery runs on exit, usually after ctx is already cancelled.
func (s *session) stopDiscovery(ctx context.Context) {
	if err := s.gw.StopDiscovery(context.WithoutCancel(ctx)); err != nil {
		s.log.WithError(err).Warn("stop discovery")
	}
}

func (s *session) seed(ctx context.Context) {
	addrs, err := s.gw.DeviceAddresses(ctx)
	if err != nil {
		s.log.WithError(err).Warn("list known devices")
		return
	}
	for _, addr := range addrs {
		if ctx.Err() != nil {
			return
		}
		s.upsert(ctx, addr)
	}
	s.log.Debugf("seeded %d known devices", len(addrs))
}

// apply translates one adapter event into a registry mutation.
func (s *session) apply(ctx context.Context, ev adapter.Event) {
	switch ev.Kind {
	case adapter.DeviceAdded:
		s.upsert(ctx, ev.Address)
	case adapter.DeviceRemoved:
		if s.reg.Remove(ev.Address) {
			s.log.WithField("addr", ev.Address.String()).Debug("device removed")
		}
	case adapter.PropertyChanged:
		s.log.Debugf("adapter %s", ev)
	}
}

func (s *session) upsert(ctx context.Context, addr device.Address) {
	d, err := s.gw.Device(ctx, addr)
	if err != nil {
		s.log.WithError(err).WithField("addr", addr.String()).Debug("skip device")
		return
	}
	rec := adapter.Resolve(ctx, d)
	s.reg.Upsert(rec)
	s.log.WithFields(logrus.Fields{"addr": addr.String(), "name": rec.DisplayName()}).Debug("device updated")
}
