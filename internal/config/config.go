package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mcuadros/go-defaults"
	"gopkg.in/yaml.v3"

	"bluetray/internal/adapter"
)

const (
	BackendBlueZ = "bluez"
	BackendBLE   = "ble"
)

type Config struct {
	Bluetooth BluetoothConfig `yaml:"bluetooth" json:"bluetooth"`
	Web       WebConfig       `yaml:"web" json:"web"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// BluetoothConfig selects the adapter backend and tunes the coordinator.
type BluetoothConfig struct {
	Backend   string `yaml:"backend" json:"backend" default:"bluez"`
	Adapter   string `yaml:"adapter" json:"adapter" default:"hci0"`
	Transport string `yaml:"transport" json:"transport" default:"auto"`

	QueueCapacity int `yaml:"queue_capacity" json:"queue_capacity" default:"1"`

	// SendTimeout bounds how long an enqueue waits for a free queue slot.
	// Zero waits until the request context ends.
	SendTimeout time.Duration `yaml:"send_timeout" json:"send_timeout"`

	// CallTimeout bounds each D-Bus call. Zero means no timeout.
	CallTimeout time.Duration `yaml:"call_timeout" json:"call_timeout"`

	KeepDiscovering bool `yaml:"keep_discovering" json:"keep_discovering"`
}

type WebConfig struct {
	Port int `yaml:"port" json:"port" default:"8787"`
}

type LoggingConfig struct {
	FilePath   string `yaml:"file_path" json:"file_path"`
	MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb" default:"10"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups" default:"3"`
	Debug      bool   `yaml:"debug" json:"debug"`
}

type Manager struct {
	mu       sync.RWMutex
	config   *Config
	filePath string
}

func NewManager(filePath string) *Manager {
	return &Manager{
		filePath: filePath,
	}
}

// Load reads the config file, creating it with defaults when missing.
// Fields absent from the file take their defaults.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			m.config = DefaultConfig()
			return m.saveUnsafe()
		}
		return err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse %s: %w", m.filePath, err)
	}
	defaults.SetDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.config = &cfg
	return nil
}

func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveUnsafe()
}

func (m *Manager) saveUnsafe() error {
	if m.config == nil {
		m.config = DefaultConfig()
	}
	data, err := yaml.Marshal(m.config)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(m.filePath), 0755); err != nil {
		return err
	}
	return os.WriteFile(m.filePath, data, 0644)
}

func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.config == nil {
		return *DefaultConfig()
	}
	return *m.config
}

func (m *Manager) Update(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config = &cfg
	return m.saveUnsafe()
}

// SetDebug persists the logging debug flag.
func (m *Manager) SetDebug(enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.config == nil {
		m.config = DefaultConfig()
	}
	m.config.Logging.Debug = enabled
	return m.saveUnsafe()
}

// Validate checks if the configuration is valid and returns detailed errors
func (c *Config) Validate() error {
	var errors []string

	switch c.Bluetooth.Backend {
	case BackendBlueZ, BackendBLE:
	default:
		errors = append(errors, fmt.Sprintf("bluetooth backend %q is invalid (must be %s or %s)", c.Bluetooth.Backend, BackendBlueZ, BackendBLE))
	}

	if strings.TrimSpace(c.Bluetooth.Adapter) == "" || strings.Contains(c.Bluetooth.Adapter, "/") {
		errors = append(errors, fmt.Sprintf("bluetooth adapter %q is invalid", c.Bluetooth.Adapter))
	}

	transport, err := adapter.ParseTransport(c.Bluetooth.Transport)
	if err != nil {
		errors = append(errors, fmt.Sprintf("bluetooth transport %q is invalid (must be auto, le or bredr)", c.Bluetooth.Transport))
	} else if c.Bluetooth.Backend == BackendBLE && transport == adapter.TransportBREDR {
		errors = append(errors, "bluetooth transport bredr is not available with the ble backend")
	}

	if c.Bluetooth.QueueCapacity < 1 {
		errors = append(errors, fmt.Sprintf("queue capacity %d is invalid (must be at least 1)", c.Bluetooth.QueueCapacity))
	}
	if c.Bluetooth.SendTimeout < 0 {
		errors = append(errors, "send timeout must not be negative")
	}
	if c.Bluetooth.CallTimeout < 0 {
		errors = append(errors, "call timeout must not be negative")
	}

	if c.Web.Port < 1 || c.Web.Port > 65535 {
		errors = append(errors, fmt.Sprintf("Web port %d is invalid (must be 1-65535)", c.Web.Port))
	}

	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 {
		errors = append(errors, "log rotation sizes must not be negative")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// TransportFilter returns the parsed discovery transport.
func (c *Config) TransportFilter() adapter.Transport {
	t, err := adapter.ParseTransport(c.Bluetooth.Transport)
	if err != nil {
		return adapter.TransportAuto
	}
	return t
}

func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}
