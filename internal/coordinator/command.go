package coordinator

import "fmt"

// Kind is the closed set of commands the foreground can enqueue.
type Kind int

const (
	RefreshDevices Kind = iota
	GetCurrentDevices
	StopRefreshDevices
	ConnectDevice
	DisconnectDevice
)

func (k Kind) String() string {
	switch k {
	case RefreshDevices:
		return "refresh_devices"
	case GetCurrentDevices:
		return "get_current_devices"
	case StopRefreshDevices:
		return "stop_refresh_devices"
	case ConnectDevice:
		return "connect_device"
	case DisconnectDevice:
		return "disconnect_device"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Command is one queued request. Addr is only read for ConnectDevice and
// DisconnectDevice and is parsed by the coordinator, not the sender.
type Command struct {
	Kind Kind
	Addr string
}

func (c Command) String() string {
	if c.Kind == ConnectDevice || c.Kind == DisconnectDevice {
		return fmt.Sprintf("%s(%s)", c.Kind, c.Addr)
	}
	return c.Kind.String()
}

// Result classifies how the coordinator handled a command.
type Result int

const (
	// Accepted means the command took effect (or was a valid no-op).
	Accepted Result = iota
	// Absorbed means the command was dropped without error, e.g. a refresh
	// while a discovery session is already running.
	Absorbed
	// Rejected means the command failed; Outcome.Err says why.
	Rejected
)

func (r Result) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case Absorbed:
		return "absorbed"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Outcome reports the handling of one command.
type Outcome struct {
	Command Command
	Result  Result
	Err     error
}

// OutcomeFunc observes outcomes. It runs on the coordinator goroutine and
// must not block.
type OutcomeFunc func(Outcome)

// Notifier tells the foreground that device state changed.
type Notifier interface {
	DevicesChanged()
}
