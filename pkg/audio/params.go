package audio

import (
	"math"

	"github.com/oisee/wavesynth/pkg/patch"
	"github.com/oisee/wavesynth/pkg/wavemath"
)

// HeadroomFactor attenuates each slot so 3 slots of 9 unison voices can sum
// without clipping the bus.
const HeadroomFactor = 0.3

// Smoothing time constants, in seconds
const (
	paramSmoothing  = 0.05
	masterSmoothing = 0.02
	disposeGrace    = 0.1
	releaseFloor    = 0.001
)

// SlotState is the live state of one oscillator slot
type SlotState struct {
	Volume   float64 // 0-100
	Detune   float64 // Cents, -100 to 100
	Octave   int     // -2 to +2
	Enabled  bool
	Unison   patch.UnisonConfig
	Waveform []float64
	Spectrum HarmonicSpectrum
	tone     *Tone
}

// ParameterStore holds the current value of every slot and global parameter.
// It never references voices; the engine pushes changes to them.
type ParameterStore struct {
	Slots [patch.SlotCount]SlotState

	Attack       float64 // Seconds
	Release      float64 // Seconds
	MasterVolume float64 // 0-1
	PitchBend    float64 // -1 to 1

	FilterType      patch.FilterType
	FilterCutoff    float64 // 0-1
	FilterResonance float64 // 0-100

	DelaySeconds   float64
	DelaySynced    bool
	DelaySyncIndex int
	Tempo          float64 // BPM
	DelayFeedback  float64 // 0-0.95
	DelayMix       float64 // 0-1

	ReverbSize float64 // Seconds
	ReverbMix  float64 // 0-1
}

// NewParameterStore returns the power-on state: a sine on slot A only, an
// open filter and dry effects.
func NewParameterStore() *ParameterStore {
	s := &ParameterStore{
		Attack:          0.1,
		Release:         0.4,
		MasterVolume:    0.5,
		FilterType:      patch.Lowpass,
		FilterCutoff:    1,
		DelaySeconds:    0.3,
		DelaySyncIndex:  patch.DefaultSyncIndex,
		Tempo:           120,
		DelayFeedback:   0.3,
		ReverbSize:      2.0,
		ReverbMix:       0,
		FilterResonance: 0,
	}
	sine := wavemath.Sine()
	spectrum := ComputeSpectrum(sine)
	tone := BuildTone(spectrum)
	for i := range s.Slots {
		s.Slots[i] = SlotState{
			Enabled:  true,
			Unison:   patch.DefaultUnison(),
			Waveform: append([]float64(nil), sine...),
			Spectrum: spectrum,
			tone:     tone,
		}
	}
	s.Slots[0].Volume = 80
	return s
}

// Tone returns the wavetable of slot
func (s *ParameterStore) Tone(slot int) *Tone {
	return s.Slots[slot].tone
}

// BaseDetune returns fine + octave + pitch bend of slot, in cents
func (s *ParameterStore) BaseDetune(slot int) float64 {
	sl := &s.Slots[slot]
	return sl.Detune + float64(sl.Octave)*1200 + s.PitchBend*200
}

// MixGain returns the slot gain after headroom; disabled slots are silent
func (s *ParameterStore) MixGain(slot int) float64 {
	sl := &s.Slots[slot]
	if !sl.Enabled {
		return 0
	}
	return sl.Volume / 100 * HeadroomFactor
}

// EffectiveDelayTime returns the delay in seconds, tempo-derived when synced
func (s *ParameterStore) EffectiveDelayTime() float64 {
	t := s.DelaySeconds
	if s.DelaySynced {
		t = patch.SyncedDelayTime(s.Tempo, s.DelaySyncIndex)
	}
	return patch.Clamp(t, patch.MinDelayTime, patch.MaxDelayTime)
}

func validSlot(slot int) bool {
	return slot >= 0 && slot < patch.SlotCount
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
