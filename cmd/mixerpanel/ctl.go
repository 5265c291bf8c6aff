package main

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"mixerpanel/internal/panel"
	"mixerpanel/internal/remote"
)

// ============================================================================
// ctl - drive a running panel through its remote endpoint
// ============================================================================
//   mixerpanel ctl set-slider 0 512
//   mixerpanel ctl nudge 2 -64
//   mixerpanel ctl send-sliders
//   mixerpanel ctl switch-output
//   mixerpanel ctl mute 1
//   mixerpanel ctl press toggle_output
// ============================================================================

const ctlTimeout = 5 * time.Second

func newCtlCmd(a *app) *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "ctl COMMAND [ARGS...]",
		Short: "Send one action to a running panel's remote endpoint",
		Long: `Send one action to a running mixerpanel (started with --remote).

Commands:
  set-slider INDEX VALUE   Set slider INDEX (0-4) to VALUE (0-1023)
  nudge INDEX DELTA        Move slider INDEX by DELTA
  send-sliders             Resend all slider values
  switch-output            Press "Toggle Output"
  mute INDEX               Toggle mute button INDEX (0-1)
  press CONTROL            Press a button by id or label`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := parseCtlArgs(args)
			if err != nil {
				return err
			}
			if url == "" {
				url = a.remoteURL()
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), ctlTimeout)
			defer cancel()

			c, err := remote.Dial(ctx, url)
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.Do(ctx, action); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "Remote endpoint URL (default from remote.listen and remote.path)")
	return cmd
}

// remoteURL points at the configured endpoint; an empty listen host means loopback.
func (a *app) remoteURL() string {
	host, port, err := net.SplitHostPort(a.cfg.Remote.Listen)
	if err != nil {
		return "ws://" + a.cfg.Remote.Listen + a.cfg.Remote.Path
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "ws://" + net.JoinHostPort(host, port) + a.cfg.Remote.Path
}

// parseCtlArgs maps a ctl command line onto a panel action.
func parseCtlArgs(args []string) (panel.Action, error) {
	if len(args) == 0 {
		return nil, errors.New("missing command")
	}
	cmd, rest := args[0], args[1:]

	want := func(n int) error {
		if len(rest) != n {
			return errors.Errorf("%s: expected %d argument(s), got %d", cmd, n, len(rest))
		}
		return nil
	}
	atoi := func(name, s string) (int, error) {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, errors.Errorf("%s: invalid %s %q", cmd, name, s)
		}
		return v, nil
	}

	switch cmd {
	case "set-slider", "set":
		if err := want(2); err != nil {
			return nil, err
		}
		i, err := atoi("index", rest[0])
		if err != nil {
			return nil, err
		}
		v, err := atoi("value", rest[1])
		if err != nil {
			return nil, err
		}
		return panel.SetSlider{Index: i, Value: v}, nil

	case "nudge":
		if err := want(2); err != nil {
			return nil, err
		}
		i, err := atoi("index", rest[0])
		if err != nil {
			return nil, err
		}
		d, err := atoi("delta", rest[1])
		if err != nil {
			return nil, err
		}
		return panel.NudgeSlider{Index: i, Delta: d}, nil

	case "send-sliders", "send":
		if err := want(0); err != nil {
			return nil, err
		}
		return panel.SendSliders{}, nil

	case "switch-output", "toggle-output":
		if err := want(0); err != nil {
			return nil, err
		}
		return panel.SwitchOutput{}, nil

	case "mute", "toggle-mute":
		if err := want(1); err != nil {
			return nil, err
		}
		i, err := atoi("index", rest[0])
		if err != nil {
			return nil, err
		}
		return panel.ToggleMute{Index: i}, nil

	case "press":
		if err := want(1); err != nil {
			return nil, err
		}
		return panel.Press{Control: rest[0]}, nil

	default:
		return nil, errors.Errorf("unknown command: %s", cmd)
	}
}
