package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mixerpanel/internal/config"
	"mixerpanel/internal/transport"
)

func newListenCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Print panel datagrams arriving at the listen address",
		Long: `Bind the listen address (the mixer backend's, by default) and print every
datagram with its source and how it parsed. With --reuse-port the socket can
share the port with a running backend; the kernel then splits the traffic
between the two.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.listen(cmd)
		},
	}
	cmd.Flags().String("address", "", "UDP address to bind (default listen.address)")
	cmd.Flags().Bool("reuse-port", config.DefaultConfig().Listen.ReusePort, "Share the port with other sockets (SO_REUSEPORT)")
	return cmd
}

func (a *app) listen(cmd *cobra.Command) error {
	ctx, release := withShutdown(cmd.Context())
	defer release()

	logger, cleanup, err := a.logger(false)
	if err != nil {
		return err
	}
	defer cleanup()

	r, err := transport.Listen(ctx, a.cfg.Listen.Address, transport.ListenOptions{ReusePort: a.cfg.Listen.ReusePort}, logger)
	if err != nil {
		return err
	}
	defer r.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "listening on %s (Ctrl+C to stop)\n", r.Addr())
	return r.Serve(ctx, func(dg transport.Datagram) {
		fmt.Fprintln(out, formatDatagram(dg))
	})
}

// formatDatagram renders one line: time, source, payload and the parse result.
func formatDatagram(dg transport.Datagram) string {
	from := "?"
	if dg.From != nil {
		from = dg.From.String()
	}
	status := "ok"
	if dg.Err != nil {
		status = "error: " + dg.Err.Error()
	} else if dg.Message != nil {
		status = dg.Message.Tag()
	}
	return fmt.Sprintf("%s %s %q -> %s", dg.At.Format("15:04:05.000"), from, dg.Payload, status)
}
