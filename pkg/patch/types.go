// Package patch implements the plain data records that describe a synth patch
package patch

import "math"

// Engine-wide constants
const (
	SlotCount     = 3   // Oscillator slots per voice
	WaveSamples   = 512 // Samples in a drawn waveform
	HarmonicCount = 256 // Harmonic coefficients per spectrum (index 0 is DC)
	MaxUnison     = 9
	MinOctave     = -2
	MaxOctave     = 2
	MaxFineDetune = 100.0 // Cents
	MaxFeedback   = 0.95
	MaxDelayTime  = 10.0 // Seconds
	MaxReverbSize = 10.0 // Seconds
	MinDelayTime  = 0.001
)

// UnisonMode selects how unison instances are detuned
type UnisonMode string

const (
	UnisonClassic UnisonMode = "classic"
	UnisonUniform UnisonMode = "uniform"
	UnisonFifth   UnisonMode = "fifth"
	UnisonOctave  UnisonMode = "octave"
)

// Valid reports whether m is a known mode
func (m UnisonMode) Valid() bool {
	switch m {
	case UnisonClassic, UnisonUniform, UnisonFifth, UnisonOctave:
		return true
	}
	return false
}

// UnisonConfig defines the unison stack of one slot
type UnisonConfig struct {
	Voices int        `yaml:"voices"` // 1-9
	Detune float64    `yaml:"detune"` // 0-100
	Spread float64    `yaml:"spread"` // 0-100
	Blend  float64    `yaml:"blend"`  // 0-100
	Mode   UnisonMode `yaml:"mode"`
}

// DefaultUnison returns a single-voice stack
func DefaultUnison() UnisonConfig {
	return UnisonConfig{Voices: 1, Detune: 25, Spread: 50, Blend: 100, Mode: UnisonClassic}
}

// Clamped returns a copy with every field in range
func (u UnisonConfig) Clamped() UnisonConfig {
	u.Voices = ClampInt(u.Voices, 1, MaxUnison)
	u.Detune = ClampPercent(u.Detune)
	u.Spread = ClampPercent(u.Spread)
	u.Blend = ClampPercent(u.Blend)
	if !u.Mode.Valid() {
		u.Mode = UnisonClassic
	}
	return u
}

// OscillatorConfig holds one oscillator slot
type OscillatorConfig struct {
	ID      int          `yaml:"id"`      // 0, 1, 2
	Label   string       `yaml:"label"`   // "OSC A"...
	Volume  float64      `yaml:"volume"`  // 0-100
	Detune  float64      `yaml:"detune"`  // -100 to 100 cents
	Octave  int          `yaml:"octave"`  // -2 to +2
	Samples []float64    `yaml:"samples"` // Waveform, WaveSamples values in [-1,1]
	Enabled bool         `yaml:"enabled"`
	Unison  UnisonConfig `yaml:"unison"`
}

// EnvelopeSettings holds the amplitude contour and output level
type EnvelopeSettings struct {
	Attack       float64 `yaml:"attack"`       // Seconds
	Release      float64 `yaml:"release"`      // Seconds
	MasterVolume float64 `yaml:"masterVolume"` // 0-100
}

// FilterType selects the filter response
type FilterType string

const (
	Lowpass  FilterType = "lowpass"
	Bandpass FilterType = "bandpass"
	Highpass FilterType = "highpass"
)

// Valid reports whether t is a known filter type
func (t FilterType) Valid() bool {
	return t == Lowpass || t == Bandpass || t == Highpass
}

// FilterSettings holds the filter section
type FilterSettings struct {
	Cutoff    float64    `yaml:"cutoff"`    // 0 to 1, exponential in the engine
	Resonance float64    `yaml:"resonance"` // 0 to 100
	Type      FilterType `yaml:"type"`
}

// FilterOpen is a lowpass that passes everything
var FilterOpen = FilterSettings{Cutoff: 1, Resonance: 0, Type: Lowpass}

// FXSettings holds delay and reverb settings as the panel shows them
type FXSettings struct {
	DelayTime      float64 `yaml:"delayTime"`      // Seconds
	DelayFeedback  float64 `yaml:"delayFeedback"`  // 0-100
	DelayMix       float64 `yaml:"delayMix"`       // 0-100
	ReverbSize     float64 `yaml:"reverbSize"`     // Seconds
	ReverbMix      float64 `yaml:"reverbMix"`      // 0-100
	IsDelaySynced  bool    `yaml:"isDelaySynced"`
	DelaySyncIndex int     `yaml:"delaySyncIndex"` // Index into SyncOptions
}

// Preset is a complete patch
type Preset struct {
	ID          string                      `yaml:"id"`
	Name        string                      `yaml:"name"`
	Oscillators [SlotCount]OscillatorConfig `yaml:"oscillators"`
	Envelope    EnvelopeSettings            `yaml:"envelope"`
	Filter      FilterSettings              `yaml:"filter"`
	FX          FXSettings                  `yaml:"fx"`
}

// Clone returns a deep copy that shares no sample slices with p
func (p Preset) Clone() Preset {
	c := p
	for i := range c.Oscillators {
		if p.Oscillators[i].Samples != nil {
			c.Oscillators[i].Samples = append([]float64(nil), p.Oscillators[i].Samples...)
		}
	}
	return c
}

// SyncOption is one tempo-synced note division
type SyncOption struct {
	Label      string
	Multiplier float64 // Beats
}

// SyncOptions lists the delay note divisions, longest first
var SyncOptions = [8]SyncOption{
	{"1/1", 4.0},
	{"1/2.", 3.0},
	{"1/2", 2.0},
	{"1/4.", 1.5},
	{"1/4", 1.0},
	{"1/8.", 0.75},
	{"1/8", 0.5},
	{"1/16", 0.25},
}

// DefaultSyncIndex selects a quarter note
const DefaultSyncIndex = 4

// SyncedDelayTime converts a tempo and division index to seconds
func SyncedDelayTime(bpm float64, index int) float64 {
	if bpm <= 0 || math.IsNaN(bpm) {
		return 0
	}
	index = ClampInt(index, 0, len(SyncOptions)-1)
	return 60 / bpm * SyncOptions[index].Multiplier
}

// CutoffToHz maps a normalized cutoff to 20 Hz..20 kHz exponentially
func CutoffToHz(cutoff float64) float64 {
	return 20 * math.Pow(20000.0/20.0, Clamp(cutoff, 0, 1))
}

// ResonanceToQ maps resonance 0-100 to a Q of 0-20
func ResonanceToQ(resonance float64) float64 {
	return ClampPercent(resonance) / 100 * 20
}

// Clamp limits v to [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampPercent limits v to [0, 100]
func ClampPercent(v float64) float64 {
	return Clamp(v, 0, 100)
}

// ClampInt limits v to [lo, hi]
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SlotLabel returns the panel label for a slot
func SlotLabel(slot int) string {
	return "OSC " + string(rune('A'+slot))
}
