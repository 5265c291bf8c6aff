package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/xlab/closer"
	"go.uber.org/zap"

	"mixerpanel/internal/config"
	"mixerpanel/internal/logging"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configPath string
	cfg        config.Config
}

// flagKeys maps flag names to the config keys they override.
var flagKeys = map[string]string{
	"target":        "target.address",
	"log-level":     "logging.level",
	"log-format":    "logging.format",
	"log-file":      "logging.file",
	"mute-buttons":  "panel.mute_buttons",
	"remote":        "remote.enabled",
	"remote-listen": "remote.listen",
	"address":       "listen.address",
	"reuse-port":    "listen.reuse_port",
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var headless bool

	root := &cobra.Command{
		Use:   "mixerpanel",
		Short: "Five-slider mixer panel that sends UDP datagrams",
		Long: `mixerpanel shows five volume sliders, a "Send slider values" button, two mute
buttons and an output toggle. Every change is sent as one text datagram
(Sliders|v0|v1|v2|v3|v4, SwitchOutput|n, MuteButtons|b0|b1) to the mixer
backend, 127.0.0.1:16990 by default. Nothing is read back.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runPanel(cmd.Context(), headless)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "Path to YAML config file")
	pf.String("target", config.DefaultConfig().Target.Address, "Mixer backend address (host:port)")
	pf.String("log-level", "info", "Log level: error, warn, info, debug")
	pf.String("log-format", "console", "Log format: console, json")
	pf.String("log-file", "", "Write logs to this file (the terminal panel discards logs otherwise)")

	f := root.Flags()
	f.String("mute-buttons", "inert", "Mute button behaviour: inert, send")
	f.Bool("remote", false, "Enable the websocket remote control endpoint")
	f.String("remote-listen", config.DefaultConfig().Remote.Listen, "Remote endpoint listen address")
	f.BoolVar(&headless, "headless", false, "Run without the terminal panel (requires --remote)")

	root.AddCommand(
		newSendCmd(a),
		newCtlCmd(a),
		newListenCmd(a),
		newVersionCmd(),
	)
	return root
}

// load resolves the effective config for cmd: defaults, file, env, flags.
func (a *app) load(cmd *cobra.Command) error {
	o := config.NewOverrides()
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := o.BindFlag(key, f); err != nil {
			return err
		}
	}

	cfg, err := config.Load(a.configPath, o)
	if err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

// logger builds the configured logger. quiet drops output unless logging.file is set.
func (a *app) logger(quiet bool) (*zap.SugaredLogger, func(), error) {
	opts := a.cfg.LoggingOptions()
	opts.Discard = quiet
	logger, cleanup, err := logging.New(opts)
	if err != nil {
		return nil, nil, errors.Wrap(err, "setup logger")
	}
	return logger, cleanup, nil
}

// withShutdown returns a context canceled on SIGINT/SIGTERM. On a signal the
// process exits only after the returned release func has been called.
func withShutdown(parent context.Context) (context.Context, func()) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	closer.Bind(func() {
		cancel()
		<-done
	})
	return ctx, func() {
		cancel()
		close(done)
	}
}
