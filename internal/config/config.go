// Package config loads the mixerpanel configuration.
//
// Precedence, lowest first: DefaultConfig, the YAML file, MIXERPANEL_* environment
// variables, command-line flags. Only overrides that were actually set are applied.
package config

import (
	"bytes"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"mixerpanel/internal/logging"
	"mixerpanel/internal/panel"
	"mixerpanel/internal/remote"
	"mixerpanel/internal/transport"
	"mixerpanel/internal/wire"
)

// Config is the top-level YAML configuration.
type Config struct {
	// Target is where panel datagrams go.
	Target TargetConfig `yaml:"target"`

	Panel PanelConfig `yaml:"panel"`

	// Remote is the optional websocket control endpoint.
	Remote RemoteConfig `yaml:"remote"`

	// Listen configures the debug receiver (mixerpanel listen).
	Listen ListenConfig `yaml:"listen"`

	Logging LoggingConfig `yaml:"logging"`
}

type TargetConfig struct {
	Address string `yaml:"address"`
}

type PanelConfig struct {
	Step        int    `yaml:"step"`
	CoarseStep  int    `yaml:"coarse_step"`
	MuteButtons string `yaml:"mute_buttons"` // "inert" or "send"
}

type RemoteConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Listen    string `yaml:"listen"`
	Path      string `yaml:"path"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

type ListenConfig struct {
	Address   string `yaml:"address"`
	ReusePort bool   `yaml:"reuse_port"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file,omitempty"`
}

// DefaultConfig returns a fully-populated Config with defaults.
func DefaultConfig() Config {
	return Config{
		Target: TargetConfig{
			Address: wire.DefaultAddress,
		},
		Panel: PanelConfig{
			Step:        16,
			CoarseStep:  128,
			MuteButtons: string(panel.MuteInert),
		},
		Remote: RemoteConfig{
			Enabled:   false,
			Listen:    remote.DefaultListen,
			Path:      remote.DefaultPath,
			TimeoutMS: int(remote.DefaultTimeout / time.Millisecond),
		},
		Listen: ListenConfig{
			Address:   wire.DefaultAddress,
			ReusePort: transport.ReusePortSupported,
		},
		Logging: LoggingConfig{
			Level:  string(logging.LevelInfo),
			Format: string(logging.FormatConsole),
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of DefaultConfig.
//
// Unknown fields are rejected (helps catch typos) and only one document is allowed.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, errors.Wrap(err, "read config file")
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "decode config yaml")
	}

	// Only whitespace/comments are allowed after the document.
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return Config{}, errors.New("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// Load builds the effective config: defaults, then path (if non-empty), then o
// (if non-nil), then validation.
func Load(path string, o *Overrides) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = LoadConfigFile(path); err != nil {
			return Config{}, err
		}
	}
	if o != nil {
		if err := o.Apply(&cfg); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

// Validate checks config invariants and returns a user-friendly error.
func (c *Config) Validate() error {
	if err := validateHostPort(c.Target.Address, true); err != nil {
		return errors.Wrap(err, "target.address")
	}

	if c.Panel.Step <= 0 {
		return errors.New("panel.step must be > 0")
	}
	if c.Panel.CoarseStep < c.Panel.Step {
		return errors.New("panel.coarse_step must be >= panel.step")
	}
	if _, err := panel.ParseMuteMode(c.Panel.MuteButtons); err != nil {
		return errors.Wrap(err, "panel.mute_buttons")
	}

	if c.Remote.Enabled {
		if err := validateHostPort(c.Remote.Listen, false); err != nil {
			return errors.Wrap(err, "remote.listen")
		}
		if !strings.HasPrefix(c.Remote.Path, "/") {
			return errors.New("remote.path must start with /")
		}
		if c.Remote.TimeoutMS <= 0 {
			return errors.New("remote.timeout_ms must be > 0")
		}
	}

	if err := validateHostPort(c.Listen.Address, false); err != nil {
		return errors.Wrap(err, "listen.address")
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return errors.Wrap(err, "logging.level")
	}
	if _, err := logging.ParseFormat(c.Logging.Format); err != nil {
		return errors.Wrap(err, "logging.format")
	}

	return nil
}

// validateHostPort accepts host:port with port 1-65535. Listening addresses may
// leave the host empty (all interfaces); send targets may not.
func validateHostPort(addr string, needHost bool) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return errors.Errorf("invalid address %q: %v", addr, err)
	}
	if needHost && host == "" {
		return errors.Errorf("address %q has no host", addr)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return errors.Errorf("address %q: port must be between 1 and 65535", addr)
	}
	return nil
}

// MuteMode returns the parsed panel.mute_buttons (call after Validate).
func (c *Config) MuteMode() panel.MuteMode {
	m, _ := panel.ParseMuteMode(c.Panel.MuteButtons)
	return m
}

// RemoteServerConfig converts the remote section for remote.NewServer.
func (c *Config) RemoteServerConfig() remote.Config {
	return remote.Config{
		Listen:  c.Remote.Listen,
		Path:    c.Remote.Path,
		Timeout: time.Duration(c.Remote.TimeoutMS) * time.Millisecond,
	}
}

// LoggingOptions converts the logging section (call after Validate).
func (c *Config) LoggingOptions() logging.Options {
	level, _ := logging.ParseLevel(c.Logging.Level)
	format, _ := logging.ParseFormat(c.Logging.Format)
	return logging.Options{
		Level:  level,
		Format: format,
		File:   ExpandPath(c.Logging.File),
	}
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
