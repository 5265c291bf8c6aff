package main

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"mixerpanel/internal/panel"
	"mixerpanel/internal/transport"
	"mixerpanel/internal/wire"
)

func newSendCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a single datagram to the mixer backend and exit",
		Long: `Send one panel datagram without opening the panel.

  mixerpanel send sliders 1023 512 0 0 1023
  mixerpanel send switch-output 1
  mixerpanel send mute true false
  mixerpanel send raw 'Sliders|1|2|3'`,
	}

	kinds := []struct {
		use, short string
		args       cobra.PositionalArgs
	}{
		{"sliders V1 V2 V3 V4 V5", "Send five slider values (0-1023)", cobra.ExactArgs(panel.NumSliders)},
		{"switch-output DEVICE", "Send the selected output device (0 or 1)", cobra.ExactArgs(1)},
		{"mute B1 B2", "Send both mute flags", cobra.ExactArgs(panel.NumMuteButtons)},
		{"raw PAYLOAD", "Send PAYLOAD verbatim", cobra.ExactArgs(1)},
	}
	for _, k := range kinds {
		kind := strings.Fields(k.use)[0]
		cmd.AddCommand(&cobra.Command{
			Use:   k.use,
			Short: k.short,
			Args:  k.args,
			RunE: func(cmd *cobra.Command, args []string) error {
				payload, err := buildPayload(kind, args)
				if err != nil {
					return err
				}
				return a.sendOnce(cmd, payload)
			},
		})
	}
	return cmd
}

// buildPayload turns a send subcommand into the datagram text. Everything but
// raw is parsed back so only well-formed messages leave.
func buildPayload(kind string, args []string) (string, error) {
	var text string
	switch kind {
	case "sliders":
		if len(args) != panel.NumSliders {
			return "", errors.Errorf("sliders: expected %d values, got %d", panel.NumSliders, len(args))
		}
		text = wire.TagSliders + wire.Delimiter + strings.Join(args, wire.Delimiter)
	case "switch-output":
		if len(args) != 1 {
			return "", errors.Errorf("switch-output: expected 1 value, got %d", len(args))
		}
		text = wire.TagSwitchOutput + wire.Delimiter + args[0]
	case "mute":
		if len(args) != panel.NumMuteButtons {
			return "", errors.Errorf("mute: expected %d values, got %d", panel.NumMuteButtons, len(args))
		}
		text = wire.TagMuteButtons + wire.Delimiter + strings.Join(args, wire.Delimiter)
	case "raw":
		if len(args) != 1 || args[0] == "" {
			return "", errors.New("raw: expected one non-empty payload")
		}
		return args[0], nil
	default:
		return "", errors.Errorf("unknown message kind %q", kind)
	}

	m, err := wire.Parse(text)
	if err != nil {
		return "", err
	}
	return m.String(), nil
}

func (a *app) sendOnce(cmd *cobra.Command, payload string) error {
	logger, cleanup, err := a.logger(true)
	if err != nil {
		return err
	}
	defer cleanup()

	s, err := transport.Dial(cmd.Context(), a.cfg.Target.Address, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Send(payload); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "sent %s to %s\n", payload, s.Remote())
	return nil
}
