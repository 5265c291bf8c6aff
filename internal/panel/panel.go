// Package panel holds the mixer panel state and its controls.
//
// A Panel owns five sliders, the output device selector, two mute flags and the
// UDP sender. It is not safe for concurrent use: exactly one goroutine (the
// terminal UI's update loop or a Loop) may touch it.
package panel

import (
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"mixerpanel/internal/wire"
)

const (
	NumSliders     = 5
	NumMuteButtons = 2

	// InitialSliderValue is where every slider starts.
	InitialSliderValue = wire.SliderMax

	LabelSendSliders  = "Send slider values"
	LabelToggleOutput = "Toggle Output"
)

var (
	ErrUnknownAction   = errors.New("unknown action")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrUnknownControl  = errors.New("unknown control")
)

// Sender delivers one datagram. *transport.Sender implements it.
type Sender interface {
	Send(text string) error
}

// MuteMode selects what the "Mute N" buttons do.
type MuteMode string

const (
	// MuteInert buttons exist but do nothing.
	MuteInert MuteMode = "inert"
	// MuteSend buttons toggle their flag and send MuteButtons|b0|b1.
	MuteSend MuteMode = "send"
)

// ParseMuteMode validates s. An empty string means MuteInert.
func ParseMuteMode(s string) (MuteMode, error) {
	switch MuteMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", MuteInert:
		return MuteInert, nil
	case MuteSend:
		return MuteSend, nil
	default:
		return "", errors.Errorf("invalid mute mode %q (want %q or %q)", s, MuteInert, MuteSend)
	}
}

// Options configures a Panel.
type Options struct {
	MuteMode MuteMode
}

// Control is an element of the panel layout: a *Slider or a *Button.
type Control interface {
	Label() string
}

// Slider is an integer control bounded to [wire.SliderMin, wire.SliderMax].
type Slider struct {
	label    string
	value    int
	onChange func(value int) error
}

func (s *Slider) Label() string { return s.label }

func (s *Slider) Value() int { return s.value }

// Set clamps v into range and stores it. The change callback fires only when the
// stored value actually changes; its error is returned, the new value is kept.
func (s *Slider) Set(v int) error {
	v = wire.ClampSliderValue(v)
	if v == s.value {
		return nil
	}
	s.value = v
	if s.onChange == nil {
		return nil
	}
	return s.onChange(v)
}

// Nudge moves the slider by delta (clamped).
func (s *Slider) Nudge(delta int) error {
	return s.Set(s.value + delta)
}

// Button is a clickable control bound to a zero-argument action.
type Button struct {
	label   string
	id      string
	onClick func() error
}

func (b *Button) Label() string { return b.label }

// ID is the label in lower snake case ("Toggle Output" -> "toggle_output").
func (b *Button) ID() string { return b.id }

// Inert reports whether clicking the button does nothing.
func (b *Button) Inert() bool { return b.onClick == nil }

// Click runs the bound action.
func (b *Button) Click() error {
	if b.onClick == nil {
		return nil
	}
	return b.onClick()
}

// Snapshot is a copy of the panel state.
type Snapshot struct {
	Sliders  []int  `json:"sliders"`
	Output   int    `json:"output"`
	Mutes    []bool `json:"mutes"`
	LastSent string `json:"last_sent,omitempty"`
}

// Panel is the mixer panel state.
type Panel struct {
	sender   Sender
	muteMode MuteMode
	logger   *zap.SugaredLogger

	sliders  []*Slider
	buttons  []*Button
	controls []Control

	output   int
	mutes    [NumMuteButtons]bool
	lastSent string
}

// New builds the panel layout: five sliders, the send button, the mute buttons and
// the output toggle, in that order. Every handler is bound here.
func New(sender Sender, opts Options, logger *zap.SugaredLogger) *Panel {
	if opts.MuteMode == "" {
		opts.MuteMode = MuteInert
	}
	p := &Panel{
		sender:   sender,
		muteMode: opts.MuteMode,
		logger:   logger.Named("panel"),
	}

	for i := 0; i < NumSliders; i++ {
		p.CreateSlider("Slider "+strconv.Itoa(i+1), func(int) error {
			return p.SendSliderValues()
		})
	}

	p.CreateButton(LabelSendSliders, p.SendSliderValues)

	for i := 0; i < NumMuteButtons; i++ {
		var onClick func() error
		if p.muteMode == MuteSend {
			idx := i
			onClick = func() error { return p.ToggleMute(idx) }
		}
		p.CreateButton("Mute "+strconv.Itoa(i+1), onClick)
	}

	p.CreateButton(LabelToggleOutput, p.SwitchOutput)

	p.logger.Debugw("Panel created", "sliders", NumSliders, "muteMode", p.muteMode)
	return p
}

// CreateSlider adds a slider at InitialSliderValue to the layout.
func (p *Panel) CreateSlider(label string, onChange func(value int) error) *Slider {
	s := &Slider{
		label:    label,
		value:    InitialSliderValue,
		onChange: onChange,
	}
	p.sliders = append(p.sliders, s)
	p.controls = append(p.controls, s)
	return s
}

// CreateButton adds a button to the layout. A nil onClick makes it inert.
func (p *Panel) CreateButton(label string, onClick func() error) *Button {
	b := &Button{
		label:   label,
		id:      buttonID(label),
		onClick: onClick,
	}
	p.buttons = append(p.buttons, b)
	p.controls = append(p.controls, b)
	return b
}

func buttonID(label string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(label)), " ", "_")
}

// SendSliderValues sends Sliders|v0|v1|v2|v3|v4.
func (p *Panel) SendSliderValues() error {
	values := make([]int, len(p.sliders))
	for i, s := range p.sliders {
		values[i] = s.value
	}
	return p.SendUDPData(wire.Sliders{Values: values}.String())
}

// SwitchOutput sends the current selector value, then flips it.
// The selector is left alone when the send fails.
func (p *Panel) SwitchOutput() error {
	if err := p.SendUDPData(wire.SwitchOutput{Device: p.output}.String()); err != nil {
		return err
	}
	p.output = (p.output + 1) % 2
	p.logger.Debugw("Output selector flipped", "next", p.output)
	return nil
}

// ToggleMute flips mute flag i and sends MuteButtons|b0|b1.
// With MuteInert it only validates i. The flag is restored when the send fails.
func (p *Panel) ToggleMute(i int) error {
	if i < 0 || i >= NumMuteButtons {
		return errors.Wrapf(ErrIndexOutOfRange, "mute button %d", i)
	}
	if p.muteMode != MuteSend {
		return nil
	}

	p.mutes[i] = !p.mutes[i]
	if err := p.SendUDPData(wire.MuteButtons{Muted: p.mutes[:]}.String()); err != nil {
		p.mutes[i] = !p.mutes[i]
		return err
	}
	return nil
}

// SendUDPData sends text as a single datagram. Nothing is awaited.
func (p *Panel) SendUDPData(text string) error {
	if p.sender == nil {
		return errors.New("panel has no sender")
	}
	if err := p.sender.Send(text); err != nil {
		p.logger.Warnw("Failed to send datagram", "payload", text, "error", err)
		return err
	}
	p.lastSent = text
	return nil
}

// Slider returns slider i.
func (p *Panel) Slider(i int) (*Slider, error) {
	if i < 0 || i >= len(p.sliders) {
		return nil, errors.Wrapf(ErrIndexOutOfRange, "slider %d", i)
	}
	return p.sliders[i], nil
}

// Button looks a button up by ID or label.
func (p *Panel) Button(name string) (*Button, error) {
	for _, b := range p.buttons {
		if b.id == name || b.label == name {
			return b, nil
		}
	}
	return nil, errors.Wrapf(ErrUnknownControl, "%q", name)
}

// Controls returns the layout in display order.
func (p *Panel) Controls() []Control {
	out := make([]Control, len(p.controls))
	copy(out, p.controls)
	return out
}

func (p *Panel) Sliders() []*Slider { return p.sliders }

func (p *Panel) Output() int { return p.output }

func (p *Panel) MuteMode() MuteMode { return p.muteMode }

func (p *Panel) LastSent() string { return p.lastSent }

// Snapshot copies the current state.
func (p *Panel) Snapshot() Snapshot {
	s := Snapshot{
		Sliders:  make([]int, len(p.sliders)),
		Output:   p.output,
		Mutes:    make([]bool, NumMuteButtons),
		LastSent: p.lastSent,
	}
	for i, sl := range p.sliders {
		s.Sliders[i] = sl.value
	}
	copy(s.Mutes, p.mutes[:])
	return s
}

// Close releases the sender if it holds a resource.
func (p *Panel) Close() error {
	c, ok := p.sender.(io.Closer)
	p.sender = nil
	if !ok {
		return nil
	}
	if err := c.Close(); err != nil {
		return errors.Wrap(err, "close panel sender")
	}
	p.logger.Debug("Panel closed")
	return nil
}
