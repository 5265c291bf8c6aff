// Package wire implements the pipe-delimited text messages the panel sends to the
// mixer backend.
//
// Every message is a single UDP datagram of the form
//
//	<Tag>|<v0>|<v1>|...
//
// There is no escaping, no length prefix and no checksum: values are decimal
// integers or booleans, so the delimiter can never appear inside one.
package wire

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	// Delimiter separates the tag and every value.
	Delimiter = "|"

	TagSliders      = "Sliders"
	TagSwitchOutput = "SwitchOutput"
	TagMuteButtons  = "MuteButtons"

	SliderMin = 0
	SliderMax = 1023

	// DefaultAddress is where the mixer backend listens for panel datagrams.
	DefaultAddress = "127.0.0.1:16990"

	// MaxDatagramSize bounds what a receiver reads per packet.
	MaxDatagramSize = 4096
)

var (
	ErrMalformed   = errors.New("malformed message")
	ErrUnknownKind = errors.New("unknown message kind")
)

// Message is one of Sliders, SwitchOutput or MuteButtons.
type Message interface {
	Tag() string
	String() string
}

// Sliders carries the raw value of every slider, in index order.
type Sliders struct {
	Values []int
}

func (Sliders) Tag() string { return TagSliders }

func (m Sliders) String() string {
	parts := make([]string, 0, len(m.Values)+1)
	parts = append(parts, TagSliders)
	for _, v := range m.Values {
		parts = append(parts, strconv.Itoa(v))
	}
	return strings.Join(parts, Delimiter)
}

// SwitchOutput reports the output device the panel currently has selected.
type SwitchOutput struct {
	Device int
}

func (SwitchOutput) Tag() string { return TagSwitchOutput }

func (m SwitchOutput) String() string {
	return TagSwitchOutput + Delimiter + strconv.Itoa(m.Device)
}

// MuteButtons carries one mute flag per button.
type MuteButtons struct {
	Muted []bool
}

func (MuteButtons) Tag() string { return TagMuteButtons }

func (m MuteButtons) String() string {
	parts := make([]string, 0, len(m.Muted)+1)
	parts = append(parts, TagMuteButtons)
	for _, b := range m.Muted {
		parts = append(parts, strconv.FormatBool(b))
	}
	return strings.Join(parts, Delimiter)
}

// ClampSliderValue forces v into [SliderMin, SliderMax].
func ClampSliderValue(v int) int {
	if v < SliderMin {
		return SliderMin
	}
	if v > SliderMax {
		return SliderMax
	}
	return v
}

// Parse decodes a datagram payload into a Message.
// Trailing CR/LF is tolerated since hand-written test packets often carry one.
func Parse(payload string) (Message, error) {
	payload = strings.TrimRight(payload, "\r\n")
	if payload == "" {
		return nil, errors.Wrap(ErrMalformed, "empty payload")
	}

	parts := strings.Split(payload, Delimiter)
	tag, args := parts[0], parts[1:]

	switch tag {
	case TagSliders:
		return parseSliders(args)
	case TagSwitchOutput:
		return parseSwitchOutput(args)
	case TagMuteButtons:
		return parseMuteButtons(args)
	default:
		return nil, errors.Wrapf(ErrUnknownKind, "tag %q", tag)
	}
}

func parseSliders(args []string) (Message, error) {
	if len(args) == 0 {
		return nil, errors.Wrap(ErrMalformed, "sliders: no values")
	}
	values := make([]int, len(args))
	for i, s := range args {
		v, err := parseDecimal(s)
		if err != nil {
			return nil, errors.Wrapf(ErrMalformed, "sliders: value %d: %v", i, err)
		}
		if v < SliderMin || v > SliderMax {
			return nil, errors.Wrapf(ErrMalformed, "sliders: value %d out of range: %d", i, v)
		}
		values[i] = v
	}
	return Sliders{Values: values}, nil
}

func parseSwitchOutput(args []string) (Message, error) {
	if len(args) != 1 {
		return nil, errors.Wrapf(ErrMalformed, "switch output: expected 1 value, got %d", len(args))
	}
	v, err := parseDecimal(args[0])
	if err != nil {
		return nil, errors.Wrapf(ErrMalformed, "switch output: %v", err)
	}
	if v != 0 && v != 1 {
		return nil, errors.Wrapf(ErrMalformed, "switch output: device must be 0 or 1, got %d", v)
	}
	return SwitchOutput{Device: v}, nil
}

func parseMuteButtons(args []string) (Message, error) {
	if len(args) == 0 {
		return nil, errors.Wrap(ErrMalformed, "mute buttons: no values")
	}
	muted := make([]bool, len(args))
	for i, s := range args {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, errors.Wrapf(ErrMalformed, "mute buttons: value %d: %q", i, s)
		}
		muted[i] = b
	}
	return MuteButtons{Muted: muted}, nil
}

// parseDecimal accepts plain unsigned decimal digits only ("+5", "-1" and " 7" are rejected).
func parseDecimal(s string) (int, error) {
	if s == "" {
		return 0, errors.New("empty value")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, errors.Errorf("not a decimal integer: %q", s)
		}
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Wrapf(err, "value %q", s)
	}
	return v, nil
}
