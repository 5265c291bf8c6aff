package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mixerpanel/internal/logging"
	"mixerpanel/internal/panel"
	"mixerpanel/internal/transport"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mixerpanel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "127.0.0.1:16990", cfg.Target.Address)
	assert.Equal(t, panel.MuteInert, cfg.MuteMode())
	assert.False(t, cfg.Remote.Enabled)
	assert.Equal(t, transport.ReusePortSupported, cfg.Listen.ReusePort)
	assert.Equal(t, time.Second, cfg.RemoteServerConfig().Timeout)
	assert.Equal(t, logging.LevelInfo, cfg.LoggingOptions().Level)
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
target:
  address: "192.168.1.20:16990"
panel:
  step: 8
  mute_buttons: send
remote:
  enabled: true
  listen: ":9000"
logging:
  level: debug
  format: json
`)
	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "192.168.1.20:16990", cfg.Target.Address)
	assert.Equal(t, 8, cfg.Panel.Step)
	assert.Equal(t, 128, cfg.Panel.CoarseStep, "unset keys keep their defaults")
	assert.Equal(t, panel.MuteSend, cfg.MuteMode())
	assert.True(t, cfg.Remote.Enabled)
	assert.Equal(t, ":9000", cfg.Remote.Listen)
	assert.Equal(t, "/ws", cfg.Remote.Path)
	assert.Equal(t, logging.FormatJSON, cfg.LoggingOptions().Format)
}

func TestLoadConfigFile_Errors(t *testing.T) {
	tt := []struct {
		name string
		body string
	}{
		{"unknown field", "target:\n  adress: \"127.0.0.1:1\"\n"},
		{"trailing document", "panel:\n  step: 4\n---\npanel:\n  step: 5\n"},
		{"trailing empty map", "panel:\n  step: 4\n---\n{}\n"},
		{"trailing scalar", "panel:\n  step: 4\n---\nhello\n"},
		{"bad yaml", "panel: [\n"},
		{"wrong type", "panel:\n  step: lots\n"},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfigFile(writeConfig(t, tc.body))
			assert.Error(t, err)
		})
	}

	// Comments after the only document are fine.
	cfg, err := LoadConfigFile(writeConfig(t, "panel:\n  step: 4\n# done\n"))
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Panel.Step)

	_, err = LoadConfigFile("")
	assert.Error(t, err)
	_, err = LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tt := []struct {
		name   string
		mutate func(*Config)
	}{
		{"target without port", func(c *Config) { c.Target.Address = "127.0.0.1" }},
		{"target without host", func(c *Config) { c.Target.Address = ":16990" }},
		{"target port zero", func(c *Config) { c.Target.Address = "127.0.0.1:0" }},
		{"target port too big", func(c *Config) { c.Target.Address = "127.0.0.1:70000" }},
		{"zero step", func(c *Config) { c.Panel.Step = 0 }},
		{"coarse below step", func(c *Config) { c.Panel.CoarseStep = 8 }},
		{"mute mode", func(c *Config) { c.Panel.MuteButtons = "loud" }},
		{"remote path", func(c *Config) { c.Remote.Enabled = true; c.Remote.Path = "ws" }},
		{"remote timeout", func(c *Config) { c.Remote.Enabled = true; c.Remote.TimeoutMS = 0 }},
		{"remote listen", func(c *Config) { c.Remote.Enabled = true; c.Remote.Listen = "nope" }},
		{"listen address", func(c *Config) { c.Listen.Address = "16990" }},
		{"log level", func(c *Config) { c.Logging.Level = "trace" }},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	// Remote settings are only checked when the endpoint is enabled.
	cfg := DefaultConfig()
	cfg.Remote.Path = "ws"
	assert.NoError(t, cfg.Validate())
}

func TestOverrides_EnvAndFlags(t *testing.T) {
	path := writeConfig(t, "target:\n  address: \"10.0.0.5:16990\"\npanel:\n  step: 4\n")

	t.Setenv("MIXERPANEL_TARGET_ADDRESS", "10.0.0.6:16990")
	t.Setenv("MIXERPANEL_PANEL_MUTE_BUTTONS", "send")
	t.Setenv("MIXERPANEL_REMOTE_ENABLED", "true")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("target", "127.0.0.1:16990", "")
	fs.Int("step", 16, "")
	fs.String("log-level", "info", "")
	require.NoError(t, fs.Parse([]string{"--target", "10.0.0.7:16990", "--log-level", "debug"}))

	o := NewOverrides()
	require.NoError(t, o.BindFlag("target.address", fs.Lookup("target")))
	require.NoError(t, o.BindFlag("panel.step", fs.Lookup("step")))
	require.NoError(t, o.BindFlag("logging.level", fs.Lookup("log-level")))

	cfg, err := Load(path, o)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.7:16990", cfg.Target.Address, "flag beats env and file")
	assert.Equal(t, 4, cfg.Panel.Step, "unchanged flag does not mask the file")
	assert.Equal(t, panel.MuteSend, cfg.MuteMode())
	assert.True(t, cfg.Remote.Enabled)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestOverrides_BadValues(t *testing.T) {
	t.Setenv("MIXERPANEL_PANEL_STEP", "many")
	_, err := Load("", NewOverrides())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panel.step")
}

func TestOverrides_BindUnknownKey(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("x", "", "")

	o := NewOverrides()
	assert.Error(t, o.BindFlag("panel.volume", fs.Lookup("x")))
	assert.Error(t, o.BindFlag("panel.step", nil))
}

func TestLoad_ValidatesResult(t *testing.T) {
	t.Setenv("MIXERPANEL_LOGGING_LEVEL", "chatty")
	_, err := Load("", NewOverrides())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, "", ExpandPath(""))
	assert.Equal(t, "/etc/mixerpanel.yaml", ExpandPath("/etc/mixerpanel.yaml"))
	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, filepath.Join(home, "logs/panel.log"), ExpandPath("~/logs/panel.log"))
	assert.Equal(t, "~other/x", ExpandPath("~other/x"))
}
