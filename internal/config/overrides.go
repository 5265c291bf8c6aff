package config

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides: target.address is read from
// MIXERPANEL_TARGET_ADDRESS.
const EnvPrefix = "MIXERPANEL"

// Overrides layers environment variables and command-line flags on top of a
// loaded config. Flags win over the environment.
//
// A key is only applied when it was actually set; a flag left at its default
// never masks the file.
type Overrides struct {
	v *viper.Viper
}

// NewOverrides reads MIXERPANEL_* from the environment.
func NewOverrides() *Overrides {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Overrides{v: v}
}

// BindFlag maps a config key (e.g. "target.address") to a flag.
func (o *Overrides) BindFlag(key string, f *pflag.Flag) error {
	if f == nil {
		return errors.Errorf("bind %s: flag is nil", key)
	}
	if _, ok := overrideSetters[key]; !ok {
		return errors.Errorf("bind %s: unknown config key", key)
	}
	return errors.Wrapf(o.v.BindPFlag(key, f), "bind %s", key)
}

type setter func(cfg *Config, raw string) error

func setString(dst func(*Config) *string) setter {
	return func(cfg *Config, raw string) error {
		*dst(cfg) = raw
		return nil
	}
}

func setInt(dst func(*Config) *int) setter {
	return func(cfg *Config, raw string) error {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return errors.Errorf("not an integer: %q", raw)
		}
		*dst(cfg) = n
		return nil
	}
}

func setBool(dst func(*Config) *bool) setter {
	return func(cfg *Config, raw string) error {
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return errors.Errorf("not a boolean: %q", raw)
		}
		*dst(cfg) = b
		return nil
	}
}

// overrideSetters lists every key that can be overridden.
var overrideSetters = map[string]setter{
	"target.address": setString(func(c *Config) *string { return &c.Target.Address }),

	"panel.step":         setInt(func(c *Config) *int { return &c.Panel.Step }),
	"panel.coarse_step":  setInt(func(c *Config) *int { return &c.Panel.CoarseStep }),
	"panel.mute_buttons": setString(func(c *Config) *string { return &c.Panel.MuteButtons }),

	"remote.enabled":    setBool(func(c *Config) *bool { return &c.Remote.Enabled }),
	"remote.listen":     setString(func(c *Config) *string { return &c.Remote.Listen }),
	"remote.path":       setString(func(c *Config) *string { return &c.Remote.Path }),
	"remote.timeout_ms": setInt(func(c *Config) *int { return &c.Remote.TimeoutMS }),

	"listen.address":    setString(func(c *Config) *string { return &c.Listen.Address }),
	"listen.reuse_port": setBool(func(c *Config) *bool { return &c.Listen.ReusePort }),

	"logging.level":  setString(func(c *Config) *string { return &c.Logging.Level }),
	"logging.format": setString(func(c *Config) *string { return &c.Logging.Format }),
	"logging.file":   setString(func(c *Config) *string { return &c.Logging.File }),
}

// Apply merges every set override into cfg.
func (o *Overrides) Apply(cfg *Config) error {
	if cfg == nil {
		return nil
	}
	for key, set := range overrideSetters {
		if !o.v.IsSet(key) {
			continue
		}
		if err := set(cfg, o.v.GetString(key)); err != nil {
			return errors.Wrapf(err, "override %s", key)
		}
	}
	return nil
}
