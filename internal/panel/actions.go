package panel

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// ============================================================================
// Actions
// ============================================================================
// Actions are the closed set of requests a panel handles. They come from key
// presses in the terminal panel and from the remote control endpoint, and are
// all applied on the goroutine that owns the Panel.
// ============================================================================

// Action is a marker interface for panel requests.
type Action interface {
	actionMarker()
}

// SetSlider moves slider Index to Value (clamped).
type SetSlider struct {
	Index int `json:"index"`
	Value int `json:"value"`
}

func (SetSlider) actionMarker() {}

// NudgeSlider moves slider Index by Delta (clamped).
type NudgeSlider struct {
	Index int `json:"index"`
	Delta int `json:"delta"`
}

func (NudgeSlider) actionMarker() {}

// SendSliders re-sends the current slider values.
type SendSliders struct{}

func (SendSliders) actionMarker() {}

// SwitchOutput sends the selector and flips it.
type SwitchOutput struct{}

func (SwitchOutput) actionMarker() {}

// ToggleMute is the same as clicking "Mute <Index+1>".
type ToggleMute struct {
	Index int `json:"index"`
}

func (ToggleMute) actionMarker() {}

// Press clicks a button by ID or label.
type Press struct {
	Control string `json:"control"`
}

func (Press) actionMarker() {}

// Apply runs the handler bound to a.
func (p *Panel) Apply(a Action) error {
	switch a := a.(type) {
	case SetSlider:
		s, err := p.Slider(a.Index)
		if err != nil {
			return err
		}
		return s.Set(a.Value)

	case NudgeSlider:
		s, err := p.Slider(a.Index)
		if err != nil {
			return err
		}
		return s.Nudge(a.Delta)

	case SendSliders:
		return p.SendSliderValues()

	case SwitchOutput:
		return p.SwitchOutput()

	case ToggleMute:
		return p.ToggleMute(a.Index)

	case Press:
		b, err := p.Button(a.Control)
		if err != nil {
			return err
		}
		return b.Click()

	default:
		return errors.Wrapf(ErrUnknownAction, "%T", a)
	}
}

// ============================================================================
// JSON Encoding/Decoding Support
// ============================================================================

// ActionEnvelope wraps an action with a type discriminator.
type ActionEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

const (
	typeSetSlider    = "set_slider"
	typeNudgeSlider  = "nudge_slider"
	typeSendSliders  = "send_sliders"
	typeSwitchOutput = "switch_output"
	typeToggleMute   = "toggle_mute"
	typePress        = "press"
)

// UnmarshalAction decodes a JSON envelope into a concrete Action.
func UnmarshalAction(data []byte) (Action, error) {
	var env ActionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.Wrap(err, "unmarshal envelope")
	}

	switch env.Type {
	case typeSetSlider:
		var a SetSlider
		if err := unmarshalData(env.Data, &a); err != nil {
			return nil, errors.Wrap(err, "unmarshal SetSlider")
		}
		return a, nil

	case typeNudgeSlider:
		var a NudgeSlider
		if err := unmarshalData(env.Data, &a); err != nil {
			return nil, errors.Wrap(err, "unmarshal NudgeSlider")
		}
		return a, nil

	case typeSendSliders:
		return SendSliders{}, nil

	case typeSwitchOutput:
		return SwitchOutput{}, nil

	case typeToggleMute:
		var a ToggleMute
		if err := unmarshalData(env.Data, &a); err != nil {
			return nil, errors.Wrap(err, "unmarshal ToggleMute")
		}
		return a, nil

	case typePress:
		var a Press
		if err := unmarshalData(env.Data, &a); err != nil {
			return nil, errors.Wrap(err, "unmarshal Press")
		}
		if a.Control == "" {
			return nil, errors.New("press: control is required")
		}
		return a, nil

	default:
		return nil, errors.Wrapf(ErrUnknownAction, "type %q", env.Type)
	}
}

// unmarshalData requires a payload; a missing index would silently mean 0.
func unmarshalData(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return errors.New("missing data")
	}
	return json.Unmarshal(data, v)
}

// MarshalAction encodes a into a JSON envelope.
func MarshalAction(a Action) ([]byte, error) {
	var env ActionEnvelope

	switch a := a.(type) {
	case SetSlider:
		env.Type = typeSetSlider
		data, err := json.Marshal(a)
		if err != nil {
			return nil, errors.Wrap(err, "marshal SetSlider")
		}
		env.Data = data

	case NudgeSlider:
		env.Type = typeNudgeSlider
		data, err := json.Marshal(a)
		if err != nil {
			return nil, errors.Wrap(err, "marshal NudgeSlider")
		}
		env.Data = data

	case SendSliders:
		env.Type = typeSendSliders

	case SwitchOutput:
		env.Type = typeSwitchOutput

	case ToggleMute:
		env.Type = typeToggleMute
		data, err := json.Marshal(a)
		if err != nil {
			return nil, errors.Wrap(err, "marshal ToggleMute")
		}
		env.Data = data

	case Press:
		env.Type = typePress
		data, err := json.Marshal(a)
		if err != nil {
			return nil, errors.Wrap(err, "marshal Press")
		}
		env.Data = data

	default:
		return nil, errors.Wrapf(ErrUnknownAction, "%T", a)
	}

	return json.Marshal(env)
}
