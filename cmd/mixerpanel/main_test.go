package main

import (
	"bytes"
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mixerpanel/internal/config"
	"mixerpanel/internal/panel"
	"mixerpanel/internal/transport"
	"mixerpanel/internal/wire"
)

func TestBuildPayload(t *testing.T) {
	tt := []struct {
		kind string
		args []string
		want string
	}{
		{"sliders", []string{"1023", "512", "0", "0", "1023"}, "Sliders|1023|512|0|0|1023"},
		{"switch-output", []string{"1"}, "SwitchOutput|1"},
		{"mute", []string{"true", "false"}, "MuteButtons|true|false"},
		{"mute", []string{"1", "0"}, "MuteButtons|true|false"},
		{"raw", []string{"Hello|there"}, "Hello|there"},
	}
	for _, tc := range tt {
		t.Run(tc.kind+" "+tc.want, func(t *testing.T) {
			got, err := buildPayload(tc.kind, tc.args)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestBuildPayload_Errors(t *testing.T) {
	tt := []struct {
		name string
		kind string
		args []string
	}{
		{"too few sliders", "sliders", []string{"1", "2"}},
		{"slider out of range", "sliders", []string{"1", "2", "3", "4", "2000"}},
		{"slider not a number", "sliders", []string{"1", "2", "3", "4", "x"}},
		{"bad device", "switch-output", []string{"2"}},
		{"one mute flag", "mute", []string{"true"}},
		{"bad mute flag", "mute", []string{"yes", "no"}},
		{"empty raw", "raw", []string{""}},
		{"unknown kind", "volume", []string{"1"}},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			_, err := buildPayload(tc.kind, tc.args)
			assert.Error(t, err)
		})
	}
}

func TestParseCtlArgs(t *testing.T) {
	tt := []struct {
		args []string
		want panel.Action
	}{
		{[]string{"set-slider", "0", "512"}, panel.SetSlider{Index: 0, Value: 512}},
		{[]string{"set", "4", "1023"}, panel.SetSlider{Index: 4, Value: 1023}},
		{[]string{"nudge", "2", "-64"}, panel.NudgeSlider{Index: 2, Delta: -64}},
		{[]string{"send-sliders"}, panel.SendSliders{}},
		{[]string{"switch-output"}, panel.SwitchOutput{}},
		{[]string{"mute", "1"}, panel.ToggleMute{Index: 1}},
		{[]string{"press", "toggle_output"}, panel.Press{Control: "toggle_output"}},
	}
	for _, tc := range tt {
		t.Run(tc.args[0], func(t *testing.T) {
			got, err := parseCtlArgs(tc.args)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseCtlArgs_Errors(t *testing.T) {
	for _, args := range [][]string{
		nil,
		{"volume-up"},
		{"set-slider", "0"},
		{"set-slider", "zero", "1"},
		{"nudge", "1", "lots"},
		{"send-sliders", "now"},
		{"mute"},
		{"press"},
	} {
		_, err := parseCtlArgs(args)
		assert.Error(t, err, "%v", args)
	}
}

func TestRemoteURL(t *testing.T) {
	a := &app{cfg: config.DefaultConfig()}
	assert.Equal(t, "ws://127.0.0.1:16992/ws", a.remoteURL())

	a.cfg.Remote.Listen = ":9000"
	a.cfg.Remote.Path = "/panel"
	assert.Equal(t, "ws://127.0.0.1:9000/panel", a.remoteURL())

	a.cfg.Remote.Listen = "192.168.1.4:9000"
	assert.Equal(t, "ws://192.168.1.4:9000/panel", a.remoteURL())
}

func TestFormatDatagram(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 30, 45, 123000000, time.UTC)
	from := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000}

	line := formatDatagram(transport.Datagram{
		From:    from,
		Payload: "SwitchOutput|1",
		Message: wire.SwitchOutput{Device: 1},
		At:      at,
	})
	assert.Equal(t, `12:30:45.123 127.0.0.1:40000 "SwitchOutput|1" -> SwitchOutput`, line)

	line = formatDatagram(transport.Datagram{
		Payload: "Volume|3",
		Err:     errors.New("unknown message kind"),
		At:      at,
	})
	assert.Equal(t, `12:30:45.123 ? "Volume|3" -> error: unknown message kind`, line)
}

func TestSendCommand(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	r, err := transport.Listen(ctx, "127.0.0.1:0", transport.ListenOptions{}, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer r.Close()

	got := make(chan string, 1)
	go func() {
		_ = r.Serve(ctx, func(dg transport.Datagram) { got <- dg.Payload })
	}()

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"send", "mute", "true", "false", "--target", r.Addr().String()})
	require.NoError(t, root.Execute())

	select {
	case p := <-got:
		assert.Equal(t, "MuteButtons|true|false", p)
	case <-time.After(2 * time.Second):
		t.Fatal("datagram not received")
	}
	assert.Contains(t, out.String(), "sent MuteButtons|true|false")
}

func TestRootCommand_ConfigErrors(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"send", "switch-output", "1", "--target", "nowhere"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target.address")

	root = newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"--headless"})
	err = root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--headless")
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Equal(t, "mixerpanel v"+version+"\n", out.String())
}

func TestListenCommand_ReusePortDefault(t *testing.T) {
	cmd := newListenCmd(&app{})
	f := cmd.Flags().Lookup("reuse-port")
	require.NotNil(t, f)
	assert.Equal(t, strconv.FormatBool(config.DefaultConfig().Listen.ReusePort), f.DefValue)
	assert.Equal(t, strconv.FormatBool(transport.ReusePortSupported), f.DefValue)
}
