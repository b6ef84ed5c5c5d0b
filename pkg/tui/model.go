// Package tui implements the terminal user interface
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/oisee/wavesynth/pkg/audio"
	"github.com/oisee/wavesynth/pkg/keyboard"
	"github.com/oisee/wavesynth/pkg/patch"
	"github.com/oisee/wavesynth/pkg/preset"
	"github.com/oisee/wavesynth/pkg/wavemath"
)

// Terminals send no key-up events, so a key counts as released once its
// autorepeat stops for this long.
const holdTimeout = 600 * time.Millisecond

// Synth is the engine surface the panel drives
type Synth interface {
	preset.Target
	NoteOn(id string, frequency float64)
	NoteOff(id string)
	SetPitchBend(bend float64)
	SetTempo(bpm float64)
	AnalyserHandle() audio.Analyser
	ActiveVoiceCount() int
	GainReduction() float64
	Shutdown()
}

// Model is the main TUI model
type Model struct {
	Synth   Synth
	Presets []patch.Preset

	// Panel state, mirrored into the synth on every change
	Patch       patch.Preset
	PresetIndex int
	Tempo       float64
	Transpose   int
	Bend        float64
	ShapeIndex  [patch.SlotCount]int

	// View state
	Width    int
	Height   int
	ShowHelp bool
	Slot     int // Selected oscillator slot
	Cursor   int // Selected control

	// SavePath receives the user presets on ctrl+s when set; the first
	// Builtin presets are the factory library and are not written.
	SavePath  string
	Builtin   int
	StatusMsg string

	held     map[string]time.Time
	bendHeld time.Time
	scope    []float32
	now      func() time.Time
}

// NewModel creates a panel with the first preset loaded
func NewModel(synth Synth, presets []patch.Preset) Model {
	m := Model{
		Synth:   synth,
		Presets: presets,
		Tempo:   120,
		Width:   100,
		Height:  30,
		held:    make(map[string]time.Time),
		scope:   make([]float32, 2048),
		now:     time.Now,
	}
	if len(presets) > 0 {
		m.LoadPreset(0)
	} else {
		m.Patch = preset.Library()[0]
	}
	synth.SetTempo(m.Tempo)
	return m
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tea.EnterAltScreen,
		tickCmd(),
	)
}

// tickMsg drives key release and the scope
type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(33*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		return m, nil

	case tickMsg:
		m.releaseStale(time.Time(msg))
		if a := m.Synth.AnalyserHandle(); a != nil {
			a.TimeDomainData(m.scope)
		}
		return m, tickCmd()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

// releaseStale sends note offs for keys whose autorepeat has stopped
func (m *Model) releaseStale(now time.Time) {
	for id, last := range m.held {
		if now.Sub(last) > holdTimeout {
			m.Synth.NoteOff(id)
			delete(m.held, id)
		}
	}
	if m.Bend != 0 && now.Sub(m.bendHeld) > holdTimeout {
		m.Bend = 0
		m.Synth.SetPitchBend(0)
	}
}

func (m *Model) releaseAll() {
	for id := range m.held {
		m.Synth.NoteOff(id)
		delete(m.held, id)
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if k, ok := keyboard.Lookup(key); ok {
		if _, down := m.held[k.Char]; !down {
			m.Synth.NoteOn(k.Char, k.Frequency(m.Transpose))
		}
		m.held[k.Char] = m.now()
		return m, nil
	}

	switch key {
	case "ctrl+c", "esc":
		m.releaseAll()
		m.Synth.Shutdown()
		return m, tea.Quit

	case "f1":
		m.ShowHelp = !m.ShowHelp

	// Navigation
	case "up":
		if m.Cursor > 0 {
			m.Cursor--
		}
	case "down":
		if m.Cursor < len(controls)-1 {
			m.Cursor++
		}
	case "left":
		m.adjust(-1)
	case "right":
		m.adjust(1)
	case "tab":
		m.Slot = (m.Slot + 1) % patch.SlotCount
	case "shift+tab":
		m.Slot = (m.Slot + patch.SlotCount - 1) % patch.SlotCount

	// Presets
	case "[":
		m.stepPreset(-1)
	case "]":
		m.stepPreset(1)
	case "ctrl+s":
		m.savePreset()

	// Pitch
	case "-":
		if m.Transpose > keyboard.MinTranspose {
			m.releaseAll()
			m.Transpose--
		}
	case "=":
		if m.Transpose < keyboard.MaxTranspose {
			m.releaseAll()
			m.Transpose++
		}
	case ",":
		m.bend(-1)
	case ".":
		m.bend(1)

	// Waveform of the selected slot
	case "f2":
		m.ShapeIndex[m.Slot] = (m.ShapeIndex[m.Slot] + 1) % len(wavemath.Shapes)
		shape := wavemath.Shapes[m.ShapeIndex[m.Slot]]
		if samples, ok := wavemath.Generate(shape); ok {
			m.setWaveform(samples)
			m.StatusMsg = fmt.Sprintf("%s: %s", patch.SlotLabel(m.Slot), shape)
		}
	case "f3":
		m.modifyWaveform("smooth", wavemath.Smooth)
	case "f4":
		m.modifyWaveform("drive", wavemath.Drive)
	case "f5":
		m.modifyWaveform("fold", wavemath.Fold)
	case "f6":
		m.modifyWaveform("reverse", wavemath.Reverse)
	case "f7":
		m.modifyWaveform("invert", wavemath.Invert)
	case "f8":
		m.modifyWaveform("quantize", wavemath.Quantize)
	case "f9":
		m.modifyWaveform("normalize", wavemath.Normalize)
	}

	return m, nil
}

func (m *Model) bend(dir float64) {
	m.Bend = patch.Clamp(m.Bend+dir*0.25, -1, 1)
	m.bendHeld = m.now()
	m.Synth.SetPitchBend(m.Bend)
}

func (m *Model) adjust(dir int) {
	c := controls[m.Cursor]
	c.step(m, dir)
	m.StatusMsg = fmt.Sprintf("%s %s", c.name, c.show(m))
}

func (m *Model) setWaveform(samples []float64) {
	m.Patch.Oscillators[m.Slot].Samples = samples
	m.Synth.UpdateWaveform(m.Slot, samples)
}

func (m *Model) modifyWaveform(name string, fn func([]float64) []float64) {
	m.setWaveform(fn(m.Patch.Oscillators[m.Slot].Samples))
	m.StatusMsg = fmt.Sprintf("%s: %s", patch.SlotLabel(m.Slot), name)
}

// LoadPreset applies preset index to the synth and the panel
func (m *Model) LoadPreset(index int) {
	if index < 0 || index >= len(m.Presets) {
		return
	}
	m.PresetIndex = index
	m.Patch = m.Presets[index].Clone()
	preset.Apply(m.Synth, m.Patch)
	m.StatusMsg = "Loaded " + m.Patch.Name
}

func (m *Model) stepPreset(dir int) {
	if len(m.Presets) == 0 {
		return
	}
	n := len(m.Presets)
	m.LoadPreset((m.PresetIndex + dir + n) % n)
}

func (m *Model) savePreset() {
	p := preset.UserPreset(m.Patch, len(m.Presets), m.now())
	m.Presets = append(m.Presets, p)
	m.PresetIndex = len(m.Presets) - 1
	m.Patch = p.Clone()
	m.StatusMsg = "Saved " + p.Name

	if m.SavePath == "" {
		return
	}
	if err := preset.SaveFile(m.SavePath, m.Presets[min(m.Builtin, len(m.Presets)):]); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "savePreset",
			"path":     m.SavePath,
			"error":    err.Error(),
		}).Error("Failed to save presets")
		m.StatusMsg = "Save failed: " + err.Error()
	}
}

// View implements tea.Model
func (m Model) View() string {
	if m.ShowHelp {
		return m.helpView()
	}

	var b strings.Builder
	b.WriteString(m.headerView())
	b.WriteString("\n")
	b.WriteString(m.slotTabsView())
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, m.controlsView(), "  ", m.waveView()))
	b.WriteString("\n")
	b.WriteString(m.scopeView())
	b.WriteString("\n")
	b.WriteString(m.pianoView())
	b.WriteString("\n")
	b.WriteString(m.footerView())
	return b.String()
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	cursorStyle = lipgloss.NewStyle().Background(lipgloss.Color("6")).Foreground(lipgloss.Color("0"))
	waveStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	scopeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
)

func (m Model) headerView() string {
	info := fmt.Sprintf(" │ %02d %-16s │ BPM:%3.0f │ Tr:%+d │ Bend:%+.2f │ Voices:%d │ GR:%4.1fdB",
		m.PresetIndex+1, m.Patch.Name, m.Tempo, m.Transpose, m.Bend,
		m.Synth.ActiveVoiceCount(), m.Synth.GainReduction())
	return titleStyle.Render("WAVESYNTH") + info
}

func (m Model) slotTabsView() string {
	var parts []string
	for slot := 0; slot < patch.SlotCount; slot++ {
		o := m.Patch.Oscillators[slot]
		label := fmt.Sprintf(" %s vol:%3.0f ", o.Label, o.Volume)
		if !o.Enabled {
			label = fmt.Sprintf(" %s  off    ", o.Label)
		}
		if slot == m.Slot {
			parts = append(parts, activeStyle.Render("["+label+"]"))
		} else {
			parts = append(parts, dimStyle.Render(" "+label+" "))
		}
	}
	return strings.Join(parts, "│")
}

func (m Model) controlsView() string {
	lines := make([]string, len(controls))
	for i, c := range controls {
		line := fmt.Sprintf("%-14s %10s", c.name, c.show(&m))
		if i == m.Cursor {
			line = cursorStyle.Render(line)
		} else if c.slot {
			line = activeStyle.Render(line[:1]) + line[1:]
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}

func (m Model) waveView() string {
	samples := m.Patch.Oscillators[m.Slot].Samples
	rows := plot(len(samples), func(i int) float64 { return samples[i] }, 48, 9)
	return waveStyle.Render(strings.Join(rows, "\n"))
}

func (m Model) scopeView() string {
	width := max(m.Width-2, 16)
	// Last 1024 samples are about 23ms at 44.1 kHz
	data := m.scope[len(m.scope)-1024:]
	rows := plot(len(data), func(i int) float64 { return float64(data[i]) }, width, 5)
	return scopeStyle.Render(strings.Join(rows, "\n"))
}

// plot draws n values in [-1, 1] as a column chart of width x height
func plot(n int, at func(int) float64, width, height int) []string {
	grid := make([][]rune, height)
	for r := range grid {
		grid[r] = []rune(strings.Repeat(" ", width))
	}
	if n == 0 {
		return toLines(grid)
	}
	mid := (height - 1) / 2
	for col := 0; col < width; col++ {
		v := patch.Clamp(at(col*n/width), -1, 1)
		row := int((1 - v) / 2 * float64(height-1))
		lo, hi := min(row, mid), max(row, mid)
		for r := lo; r <= hi; r++ {
			grid[r][col] = '│'
		}
		grid[row][col] = '•'
	}
	return toLines(grid)
}

func toLines(grid [][]rune) []string {
	lines := make([]string, len(grid))
	for i, r := range grid {
		lines[i] = string(r)
	}
	return lines
}

func (m Model) pianoView() string {
	var b strings.Builder
	for _, k := range keyboard.Keys {
		label := strings.ToUpper(k.Char)
		style := lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
		if k.Black {
			style = style.Foreground(lipgloss.Color("8"))
		}
		if _, down := m.held[k.Char]; down {
			style = style.Background(lipgloss.Color("4")).Bold(true)
		}
		b.WriteString(style.Render(label))
		b.WriteString(" ")
	}
	if len(m.held) > 0 {
		for _, k := range keyboard.Keys {
			if _, down := m.held[k.Char]; down {
				b.WriteString(dimStyle.Render(" " + keyboard.PitchName(k.Pitch+12*m.Transpose)))
			}
		}
	}
	return b.String()
}

func (m Model) footerView() string {
	keys := " [Z-P]Play [←→]Edit [↑↓]Select [Tab]Slot [[ ]]Preset [-=]Transpose [,.]Bend [^S]Save [F1]Help [Esc]Quit"
	status := ""
	if m.StatusMsg != "" {
		status = "\n " + activeStyle.Render(m.StatusMsg)
	}
	return dimStyle.Render(keys) + status
}

func (m Model) helpView() string {
	help := `
╔══════════════════════════════════════════════════════════════════╗
║                       WAVESYNTH HELP                             ║
╠══════════════════════════════════════════════════════════════════╣
║ PLAYING                                                          ║
║   Z S X D C V G B H N J M  - C4 to B4                            ║
║   Q 2 W 3 E R 5 T 6 Y 7 U  - C5 to B5                            ║
║   I 9 O 0 P                - C6 to E6                            ║
║   - =       Transpose down/up one octave                         ║
║   , .       Bend down/up (springs back on release)               ║
║                                                                  ║
║ EDITING                                                          ║
║   ↑↓        Select control                                       ║
║   ←→        Change value                                         ║
║   Tab       Next oscillator slot                                 ║
║                                                                  ║
║ WAVEFORM (selected slot)                                         ║
║   F2        Next shape      F6  Reverse                          ║
║   F3        Smooth          F7  Invert                           ║
║   F4        Drive           F8  Quantize                         ║
║   F5        Fold            F9  Normalize                        ║
║                                                                  ║
║ PRESETS                                                          ║
║   [ ]       Previous/next preset                                 ║
║   Ctrl+S    Save current patch as a user preset                  ║
║                                                                  ║
║                              [F1] Close help                     ║
╚══════════════════════════════════════════════════════════════════╝
`
	return titleStyle.Render(help)
}
