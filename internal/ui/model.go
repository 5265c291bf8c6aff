// Package ui is the terminal rendition of the mixer panel.
//
// The bubbletea Update loop is the panel's event loop: key presses and actions
// injected by the remote endpoint (through Bridge) are applied there, one at a
// time, and nothing else touches the Panel while the program runs.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"mixerpanel/internal/panel"
	"mixerpanel/internal/wire"
)

const (
	DefaultStep       = 16
	DefaultCoarseStep = 128

	minBarWidth = 20
	labelWidth  = 10
)

// Options tunes key handling and the header.
type Options struct {
	Step       int
	CoarseStep int
	// Target is shown in the header only.
	Target string
}

// actionMsg carries an action from another goroutine into Update.
type actionMsg struct {
	action panel.Action
	result chan<- error
}

// Model is the bubbletea model over a *panel.Panel.
type Model struct {
	panel    *panel.Panel
	opts     Options
	controls []panel.Control

	focus   int
	bar     progress.Model
	width   int
	lastErr error
}

// New builds the model. The panel must already have its layout.
func New(p *panel.Panel, opts Options) Model {
	if opts.Step <= 0 {
		opts.Step = DefaultStep
	}
	if opts.CoarseStep <= 0 {
		opts.CoarseStep = DefaultCoarseStep
	}
	bar := progress.New(
		progress.WithGradient(string(nord10), string(nord8)),
		progress.WithoutPercentage(),
		progress.WithWidth(40),
	)
	return Model{
		panel:    p,
		opts:     opts,
		controls: p.Controls(),
		bar:      bar,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(minBarWidth, msg.Width-labelWidth-16)

	case actionMsg:
		err := m.apply(msg.action)
		msg.result <- err
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "up", "k":
		if m.focus > 0 {
			m.focus--
		}
	case "down", "j":
		if m.focus < len(m.controls)-1 {
			m.focus++
		}
	case "tab":
		m.focus = (m.focus + 1) % len(m.controls)
	case "shift+tab":
		m.focus = (m.focus + len(m.controls) - 1) % len(m.controls)

	case "left", "h":
		m.nudge(-m.opts.Step)
	case "right", "l":
		m.nudge(m.opts.Step)
	case "pgdown":
		m.nudge(-m.opts.CoarseStep)
	case "pgup":
		m.nudge(m.opts.CoarseStep)
	case "home":
		m.set(wire.SliderMin)
	case "end":
		m.set(wire.SliderMax)

	case "enter", " ":
		if b, ok := m.controls[m.focus].(*panel.Button); ok {
			_ = m.apply(panel.Press{Control: b.ID()})
		}
	}
	return m, nil
}

// focusedSlider returns the index of the focused slider, or -1.
func (m *Model) focusedSlider() int {
	s, ok := m.controls[m.focus].(*panel.Slider)
	if !ok {
		return -1
	}
	for i, candidate := range m.panel.Sliders() {
		if candidate == s {
			return i
		}
	}
	return -1
}

func (m *Model) nudge(delta int) {
	if i := m.focusedSlider(); i >= 0 {
		_ = m.apply(panel.NudgeSlider{Index: i, Delta: delta})
	}
}

func (m *Model) set(v int) {
	if i := m.focusedSlider(); i >= 0 {
		_ = m.apply(panel.SetSlider{Index: i, Value: v})
	}
}

// apply runs a on the panel and records the outcome for the status line.
func (m *Model) apply(a panel.Action) error {
	err := m.panel.Apply(a)
	m.lastErr = err
	return err
}

// Focus returns the label of the focused control.
func (m Model) Focus() string {
	return m.controls[m.focus].Label()
}

// Err returns the error from the most recent action, if any.
func (m Model) Err() error {
	return m.lastErr
}

// ============================================================================
// View
// ============================================================================

var (
	nord0  = lipgloss.Color("#2E3440")
	nord2  = lipgloss.Color("#434C5E")
	nord3  = lipgloss.Color("#4C566A")
	nord4  = lipgloss.Color("#D8DEE9")
	nord8  = lipgloss.Color("#88C0D0")
	nord9  = lipgloss.Color("#81A1C1")
	nord10 = lipgloss.Color("#5E81AC")
	nord11 = lipgloss.Color("#BF616A")
	nord13 = lipgloss.Color("#EBCB8B")
	nord14 = lipgloss.Color("#A3BE8C")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(nord8)
	sectionStyle = lipgloss.NewStyle().MarginTop(1).Foreground(nord9)
	focusStyle   = lipgloss.NewStyle().Foreground(nord13)
	btnStyle     = lipgloss.NewStyle().Padding(0, 1).Foreground(nord4).Background(nord2)
	btnOnStyle   = lipgloss.NewStyle().Padding(0, 1).Foreground(nord0).Background(nord10)
	btnFocus     = lipgloss.NewStyle().Padding(0, 1).Foreground(nord0).Background(nord13)
	inertStyle   = lipgloss.NewStyle().Padding(0, 1).Foreground(nord3).Background(nord2)
	okStyle      = lipgloss.NewStyle().Foreground(nord14)
	errStyle     = lipgloss.NewStyle().Foreground(nord11)
	helpStyle    = lipgloss.NewStyle().Faint(true)
)

func (m Model) View() string {
	b := &strings.Builder{}

	title := "Mixer Panel"
	if m.opts.Target != "" {
		title += " -> " + m.opts.Target
	}
	fmt.Fprintln(b, titleStyle.Render(title))

	fmt.Fprintln(b, sectionStyle.Render("Sliders"))
	for i, c := range m.controls {
		s, ok := c.(*panel.Slider)
		if !ok {
			continue
		}
		fmt.Fprintln(b, m.renderSlider(s, i == m.focus))
	}

	fmt.Fprintln(b, sectionStyle.Render("Controls"))
	snap := m.panel.Snapshot()
	var buttons []string
	for i, c := range m.controls {
		btn, ok := c.(*panel.Button)
		if !ok {
			continue
		}
		buttons = append(buttons, m.renderButton(btn, snap, i == m.focus), " ")
	}
	fmt.Fprintln(b, " "+lipgloss.JoinHorizontal(lipgloss.Top, buttons...))
	fmt.Fprintf(b, " Output: %d\n", snap.Output)

	fmt.Fprintln(b, "")
	fmt.Fprintln(b, m.renderStatus(snap))
	fmt.Fprintln(b, helpStyle.Render("↑/↓ navigate  ←/→ adjust  PgUp/PgDn coarse  Home/End min/max  Enter press  q quit"))
	return b.String()
}

func (m Model) renderSlider(s *panel.Slider, focused bool) string {
	marker := "  "
	label := fmt.Sprintf("%-*s", labelWidth, s.Label())
	if focused {
		marker = focusStyle.Render("› ")
		label = focusStyle.Render(label)
	}
	ratio := float64(s.Value()) / float64(wire.SliderMax)
	return fmt.Sprintf("%s%s %s %4d", marker, label, m.bar.ViewAs(ratio), s.Value())
}

func (m Model) renderButton(btn *panel.Button, snap panel.Snapshot, focused bool) string {
	label := btn.Label()
	style := btnStyle

	if idx := muteIndex(btn); idx >= 0 && !btn.Inert() && idx < len(snap.Mutes) && snap.Mutes[idx] {
		style = btnOnStyle
		label += " [x]"
	}
	if btn.Inert() {
		style = inertStyle
	}
	if focused {
		style = btnFocus
	}
	return style.Render(label)
}

// muteIndex maps "mute_1" to 0, or returns -1 for other buttons.
func muteIndex(btn *panel.Button) int {
	var n int
	if _, err := fmt.Sscanf(btn.ID(), "mute_%d", &n); err != nil {
		return -1
	}
	return n - 1
}

func (m Model) renderStatus(snap panel.Snapshot) string {
	if m.lastErr != nil {
		return errStyle.Render("✗ " + m.lastErr.Error())
	}
	if snap.LastSent == "" {
		return helpStyle.Render("nothing sent yet")
	}
	return okStyle.Render("✓ sent " + snap.LastSent)
}
