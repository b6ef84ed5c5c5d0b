// Package preset implements the built-in patch library and preset files
package preset

import (
	"math/rand/v2"

	"github.com/oisee/wavesynth/pkg/patch"
	"github.com/oisee/wavesynth/pkg/wavemath"
)

// osc builds a slot with the default single-voice unison
func osc(id int, volume, detune float64, octave int, samples []float64) patch.OscillatorConfig {
	return patch.OscillatorConfig{
		ID:      id,
		Label:   patch.SlotLabel(id),
		Volume:  volume,
		Detune:  detune,
		Octave:  octave,
		Samples: samples,
		Enabled: true,
		Unison:  patch.DefaultUnison(),
	}
}

// withUnison overrides the voice count, detune and spread of a slot
func withUnison(o patch.OscillatorConfig, voices int, detune, spread float64) patch.OscillatorConfig {
	o.Unison.Voices = voices
	o.Unison.Detune = detune
	o.Unison.Spread = spread
	return o
}

// libraryNoiseSeed keeps DARK DRONE identical between runs
const libraryNoiseSeed = 0x5eed

// Library returns fresh copies of the factory presets
func Library() []patch.Preset {
	def := patch.DefaultUnison()
	noise := rand.New(rand.NewPCG(libraryNoiseSeed, libraryNoiseSeed))

	fifth := withUnison(osc(0, 80, 0, -1, wavemath.Saw()), 3, 20, def.Spread)
	fifth.Unison.Mode = patch.UnisonFifth

	return []patch.Preset{
		{
			ID:   "init-sine",
			Name: "INIT SINE",
			Oscillators: [patch.SlotCount]patch.OscillatorConfig{
				osc(0, 80, 0, 0, wavemath.Sine()),
				osc(1, 0, 0, 0, wavemath.Sine()),
				osc(2, 0, 0, 0, wavemath.Sine()),
			},
			Envelope: patch.EnvelopeSettings{Attack: 0.05, Release: 0.1, MasterVolume: 80},
			Filter:   patch.FilterOpen,
			FX:       patch.FXSettings{DelayTime: 0.3, DelayFeedback: 30, ReverbSize: 1.5, DelaySyncIndex: 4},
		},
		{
			ID:   "glass-pad",
			Name: "GLASS PAD",
			Oscillators: [patch.SlotCount]patch.OscillatorConfig{
				withUnison(osc(0, 70, 5, 0, wavemath.Triangle()), 3, 15, 50),
				withUnison(osc(1, 70, -5, 0, wavemath.Sine()), 3, 15, 50),
				osc(2, 50, 0, 1, wavemath.Additive(1, 0, 0.5)),
			},
			Envelope: patch.EnvelopeSettings{Attack: 0.6, Release: 1.5, MasterVolume: 75},
			Filter:   patch.FilterSettings{Cutoff: 0.7, Resonance: 10, Type: patch.Lowpass},
			FX:       patch.FXSettings{DelayTime: 0.5, DelayFeedback: 40, DelayMix: 25, ReverbSize: 4.0, ReverbMix: 50, DelaySyncIndex: 4},
		},
		{
			ID:   "saw-strings",
			Name: "ANALOG STRINGS",
			Oscillators: [patch.SlotCount]patch.OscillatorConfig{
				withUnison(osc(0, 60, 0, 0, wavemath.Saw()), 5, 25, 70),
				withUnison(osc(1, 60, 0, 0, wavemath.Saw()), 5, 40, 70),
				osc(2, 40, 0, -1, wavemath.Saw()),
			},
			Envelope: patch.EnvelopeSettings{Attack: 0.4, Release: 0.8, MasterVolume: 70},
			Filter:   patch.FilterSettings{Cutoff: 0.6, Type: patch.Lowpass},
			FX:       patch.FXSettings{DelayTime: 0.25, DelayFeedback: 20, DelayMix: 10, ReverbSize: 2.5, ReverbMix: 30, IsDelaySynced: true, DelaySyncIndex: 4},
		},
		{
			ID:   "supersaw-lead",
			Name: "SUPERSAW LEAD",
			Oscillators: [patch.SlotCount]patch.OscillatorConfig{
				withUnison(osc(0, 80, 0, 0, wavemath.Saw()), 7, 50, 100),
				withUnison(osc(1, 80, 0, 0, wavemath.Saw()), 7, 30, 80),
				osc(2, 40, 0, 1, wavemath.Square()),
			},
			Envelope: patch.EnvelopeSettings{Attack: 0.02, Release: 0.4, MasterVolume: 65},
			Filter:   patch.FilterOpen,
			FX:       patch.FXSettings{DelayTime: 0.35, DelayFeedback: 45, DelayMix: 30, ReverbSize: 2.0, ReverbMix: 25, IsDelaySynced: true, DelaySyncIndex: 5},
		},
		{
			ID:   "square-pluck",
			Name: "SQUARE PLUCK",
			Oscillators: [patch.SlotCount]patch.OscillatorConfig{
				osc(0, 90, 0, 0, wavemath.Square()),
				osc(1, 70, 5, 0, wavemath.Pulse(0.25)),
				osc(2, 0, 0, -1, wavemath.Sine()),
			},
			Envelope: patch.EnvelopeSettings{Attack: 0.01, Release: 0.3, MasterVolume: 80},
			Filter:   patch.FilterSettings{Cutoff: 0.8, Type: patch.Lowpass},
			FX:       patch.FXSettings{DelayTime: 0.375, DelayFeedback: 40, DelayMix: 35, ReverbSize: 1.0, ReverbMix: 15, IsDelaySynced: true, DelaySyncIndex: 5},
		},
		{
			ID:   "chiptune",
			Name: "RETRO 8-BIT",
			Oscillators: [patch.SlotCount]patch.OscillatorConfig{
				osc(0, 85, 0, 0, wavemath.Pulse(0.5)),
				osc(1, 85, 5, 1, wavemath.Pulse(0.25)),
				osc(2, 40, -5, -1, wavemath.Pulse(0.125)),
			},
			Envelope: patch.EnvelopeSettings{Attack: 0.01, Release: 0.1, MasterVolume: 75},
			Filter:   patch.FilterOpen,
			FX:       patch.FXSettings{DelayTime: 0.1, ReverbSize: 0.1, DelaySyncIndex: 4},
		},
		{
			ID:   "deep-bass",
			Name: "DEEP HOUSE BASS",
			Oscillators: [patch.SlotCount]patch.OscillatorConfig{
				osc(0, 100, 0, -2, wavemath.Sine()),
				osc(1, 60, 0, -1, wavemath.Triangle()),
				osc(2, 40, 0, -1, wavemath.FM(1, 2, 1)),
			},
			Envelope: patch.EnvelopeSettings{Attack: 0.01, Release: 0.3, MasterVolume: 90},
			Filter:   patch.FilterSettings{Cutoff: 0.6, Type: patch.Lowpass},
			FX:       patch.FXSettings{ReverbSize: 0.5, ReverbMix: 5, DelaySyncIndex: 4},
		},
		{
			ID:   "res-bass",
			Name: "RESONANT BASS",
			Oscillators: [patch.SlotCount]patch.OscillatorConfig{
				osc(0, 90, 0, -1, wavemath.Saw()),
				osc(1, 60, 0, -1, wavemath.Square()),
				osc(2, 50, 0, -2, wavemath.Sine()),
			},
			Envelope: patch.EnvelopeSettings{Attack: 0.01, Release: 0.2, MasterVolume: 80},
			Filter:   patch.FilterSettings{Cutoff: 0.3, Resonance: 60, Type: patch.Lowpass},
			FX:       patch.FXSettings{ReverbSize: 0.1, DelaySyncIndex: 4},
		},
		{
			ID:   "e-piano",
			Name: "DREAM KEYS",
			Oscillators: [patch.SlotCount]patch.OscillatorConfig{
				osc(0, 80, 0, 0, wavemath.FM(1, 1, 0.5)),
				withUnison(osc(1, 60, 5, 0, wavemath.Sine()), 3, 10, def.Spread),
				osc(2, 0, 0, 0, wavemath.Sine()),
			},
			Envelope: patch.EnvelopeSettings{Attack: 0.05, Release: 0.8, MasterVolume: 75},
			Filter:   patch.FilterSettings{Cutoff: 0.8, Type: patch.Lowpass},
			FX:       patch.FXSettings{DelayTime: 0.4, DelayFeedback: 40, DelayMix: 30, ReverbSize: 2.5, ReverbMix: 40, IsDelaySynced: true, DelaySyncIndex: 5},
		},
		{
			ID:   "organ",
			Name: "DRAWBAR ORGAN",
			Oscillators: [patch.SlotCount]patch.OscillatorConfig{
				osc(0, 80, 2, 0, wavemath.Additive(1, 0, 0.5, 0, 0.2)),
				osc(1, 80, -2, 1, wavemath.Additive(1, 0.5, 0, 0.2)),
				osc(2, 60, 0, -1, wavemath.Sine()),
			},
			Envelope: patch.EnvelopeSettings{Attack: 0.02, Release: 0.2, MasterVolume: 70},
			Filter:   patch.FilterOpen,
			FX:       patch.FXSettings{DelayTime: 0.1, DelayFeedback: 20, DelayMix: 15, ReverbSize: 1.5, ReverbMix: 20, DelaySyncIndex: 4},
		},
		{
			ID:   "bell",
			Name: "FM BELL",
			Oscillators: [patch.SlotCount]patch.OscillatorConfig{
				osc(0, 90, 0, 1, wavemath.FM(1, 1.414, 2)),
				osc(1, 70, 0, 1, wavemath.Sine()),
				osc(2, 40, 0, 2, wavemath.FM(1, 3.14, 1)),
			},
			Envelope: patch.EnvelopeSettings{Attack: 0.01, Release: 1.5, MasterVolume: 75},
			Filter:   patch.FilterOpen,
			FX:       patch.FXSettings{DelayTime: 0.35, DelayFeedback: 30, DelayMix: 20, ReverbSize: 3.0, ReverbMix: 40, IsDelaySynced: true, DelaySyncIndex: 4},
		},
		{
			ID:   "horror",
			Name: "DARK DRONE",
			Oscillators: [patch.SlotCount]patch.OscillatorConfig{
				fifth,
				osc(1, 60, 0, -2, wavemath.Additive(1, 0.5, 0.25, 0.1, 0.05)),
				osc(2, 50, 0, -1, wavemath.Noise(noise)),
			},
			Envelope: patch.EnvelopeSettings{Attack: 2.0, Release: 4.0, MasterVolume: 80},
			Filter:   patch.FilterSettings{Cutoff: 0.4, Resonance: 20, Type: patch.Lowpass},
			FX:       patch.FXSettings{DelayTime: 0.6, DelayFeedback: 60, DelayMix: 40, ReverbSize: 5.0, ReverbMix: 60, DelaySyncIndex: 4},
		},
	}
}
