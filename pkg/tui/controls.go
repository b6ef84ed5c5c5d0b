package tui

import (
	"fmt"

	"github.com/oisee/wavesynth/pkg/patch"
)

// control is one editable row of the panel
type control struct {
	name string
	slot bool // Applies to the selected slot
	step func(m *Model, dir int)
	show func(m *Model) string
}

var unisonModes = []patch.UnisonMode{patch.UnisonClassic, patch.UnisonUniform, patch.UnisonFifth, patch.UnisonOctave}

var filterTypes = []patch.FilterType{patch.Lowpass, patch.Bandpass, patch.Highpass}

func cycle[T comparable](list []T, cur T, dir int) T {
	for i, v := range list {
		if v == cur {
			return list[(i+dir+len(list))%len(list)]
		}
	}
	return list[0]
}

func (m *Model) osc() *patch.OscillatorConfig {
	return &m.Patch.Oscillators[m.Slot]
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

var controls = []control{
	{
		name: "Volume", slot: true,
		step: func(m *Model, dir int) {
			o := m.osc()
			o.Volume = patch.ClampPercent(o.Volume + float64(dir*5))
			m.Synth.SetOscVolume(m.Slot, o.Volume)
		},
		show: func(m *Model) string { return fmt.Sprintf("%.0f", m.osc().Volume) },
	},
	{
		name: "Enabled", slot: true,
		step: func(m *Model, dir int) {
			o := m.osc()
			o.Enabled = !o.Enabled
			m.Synth.SetOscEnabled(m.Slot, o.Enabled)
		},
		show: func(m *Model) string { return onOff(m.osc().Enabled) },
	},
	{
		name: "Fine", slot: true,
		step: func(m *Model, dir int) {
			o := m.osc()
			o.Detune = patch.Clamp(o.Detune+float64(dir), -patch.MaxFineDetune, patch.MaxFineDetune)
			m.Synth.SetOscDetune(m.Slot, o.Detune)
		},
		show: func(m *Model) string { return fmt.Sprintf("%+.0fct", m.osc().Detune) },
	},
	{
		name: "Octave", slot: true,
		step: func(m *Model, dir int) {
			o := m.osc()
			o.Octave = patch.ClampInt(o.Octave+dir, patch.MinOctave, patch.MaxOctave)
			m.Synth.SetOscOctave(m.Slot, o.Octave)
		},
		show: func(m *Model) string { return fmt.Sprintf("%+d", m.osc().Octave) },
	},
	{
		name: "Unison", slot: true,
		step: func(m *Model, dir int) {
			o := m.osc()
			o.Unison.Voices = patch.ClampInt(o.Unison.Voices+dir, 1, patch.MaxUnison)
			m.Synth.SetOscUnison(m.Slot, o.Unison)
		},
		show: func(m *Model) string { return fmt.Sprintf("%d", m.osc().Unison.Voices) },
	},
	{
		name: "Uni detune", slot: true,
		step: func(m *Model, dir int) {
			o := m.osc()
			o.Unison.Detune = patch.ClampPercent(o.Unison.Detune + float64(dir*5))
			m.Synth.SetOscUnison(m.Slot, o.Unison)
		},
		show: func(m *Model) string { return fmt.Sprintf("%.0f", m.osc().Unison.Detune) },
	},
	{
		name: "Uni spread", slot: true,
		step: func(m *Model, dir int) {
			o := m.osc()
			o.Unison.Spread = patch.ClampPercent(o.Unison.Spread + float64(dir*5))
			m.Synth.SetOscUnison(m.Slot, o.Unison)
		},
		show: func(m *Model) string { return fmt.Sprintf("%.0f", m.osc().Unison.Spread) },
	},
	{
		name: "Uni mode", slot: true,
		step: func(m *Model, dir int) {
			o := m.osc()
			o.Unison.Mode = cycle(unisonModes, o.Unison.Mode, dir)
			m.Synth.SetOscUnison(m.Slot, o.Unison)
		},
		show: func(m *Model) string { return string(m.osc().Unison.Mode) },
	},
	{
		name: "Attack",
		step: func(m *Model, dir int) {
			e := &m.Patch.Envelope
			e.Attack = patch.Clamp(e.Attack+float64(dir)*0.05, 0, 10)
			m.Synth.SetAttack(e.Attack)
		},
		show: func(m *Model) string { return fmt.Sprintf("%.2fs", m.Patch.Envelope.Attack) },
	},
	{
		name: "Release",
		step: func(m *Model, dir int) {
			e := &m.Patch.Envelope
			e.Release = patch.Clamp(e.Release+float64(dir)*0.05, 0, 10)
			m.Synth.SetRelease(e.Release)
		},
		show: func(m *Model) string { return fmt.Sprintf("%.2fs", m.Patch.Envelope.Release) },
	},
	{
		name: "Master",
		step: func(m *Model, dir int) {
			e := &m.Patch.Envelope
			e.MasterVolume = patch.ClampPercent(e.MasterVolume + float64(dir*5))
			m.Synth.SetMasterVolume(e.MasterVolume / 100)
		},
		show: func(m *Model) string { return fmt.Sprintf("%.0f", m.Patch.Envelope.MasterVolume) },
	},
	{
		name: "Filter",
		step: func(m *Model, dir int) {
			f := &m.Patch.Filter
			f.Type = cycle(filterTypes, f.Type, dir)
			m.Synth.SetFilterType(f.Type)
		},
		show: func(m *Model) string { return string(m.Patch.Filter.Type) },
	},
	{
		name: "Cutoff",
		step: func(m *Model, dir int) {
			f := &m.Patch.Filter
			f.Cutoff = patch.Clamp(f.Cutoff+float64(dir)*0.02, 0, 1)
			m.Synth.SetFilterCutoff(f.Cutoff)
		},
		show: func(m *Model) string { return fmt.Sprintf("%.0fHz", patch.CutoffToHz(m.Patch.Filter.Cutoff)) },
	},
	{
		name: "Resonance",
		step: func(m *Model, dir int) {
			f := &m.Patch.Filter
			f.Resonance = patch.ClampPercent(f.Resonance + float64(dir*5))
			m.Synth.SetFilterResonance(f.Resonance)
		},
		show: func(m *Model) string { return fmt.Sprintf("%.0f", m.Patch.Filter.Resonance) },
	},
	{
		name: "Delay time",
		step: func(m *Model, dir int) {
			fx := &m.Patch.FX
			fx.DelayTime = patch.Clamp(fx.DelayTime+float64(dir)*0.025, patch.MinDelayTime, 2)
			m.Synth.SetDelayTime(fx.DelayTime)
		},
		show: func(m *Model) string { return fmt.Sprintf("%.3fs", m.Patch.FX.DelayTime) },
	},
	{
		name: "Delay sync",
		step: func(m *Model, dir int) {
			fx := &m.Patch.FX
			fx.IsDelaySynced = !fx.IsDelaySynced
			m.Synth.SetDelaySync(fx.IsDelaySynced, fx.DelaySyncIndex)
		},
		show: func(m *Model) string { return onOff(m.Patch.FX.IsDelaySynced) },
	},
	{
		name: "Division",
		step: func(m *Model, dir int) {
			fx := &m.Patch.FX
			fx.DelaySyncIndex = patch.ClampInt(fx.DelaySyncIndex+dir, 0, len(patch.SyncOptions)-1)
			m.Synth.SetDelaySync(fx.IsDelaySynced, fx.DelaySyncIndex)
		},
		show: func(m *Model) string { return patch.SyncOptions[m.Patch.FX.DelaySyncIndex].Label },
	},
	{
		name: "Tempo",
		step: func(m *Model, dir int) {
			m.Tempo = patch.Clamp(m.Tempo+float64(dir), 40, 300)
			m.Synth.SetTempo(m.Tempo)
		},
		show: func(m *Model) string { return fmt.Sprintf("%.0f", m.Tempo) },
	},
	{
		name: "Feedback",
		step: func(m *Model, dir int) {
			fx := &m.Patch.FX
			fx.DelayFeedback = patch.ClampPercent(fx.DelayFeedback + float64(dir*5))
			m.Synth.SetDelayFeedback(fx.DelayFeedback / 100)
		},
		show: func(m *Model) string { return fmt.Sprintf("%.0f", m.Patch.FX.DelayFeedback) },
	},
	{
		name: "Delay mix",
		step: func(m *Model, dir int) {
			fx := &m.Patch.FX
			fx.DelayMix = patch.ClampPercent(fx.DelayMix + float64(dir*5))
			m.Synth.SetDelayMix(fx.DelayMix / 100)
		},
		show: func(m *Model) string { return fmt.Sprintf("%.0f", m.Patch.FX.DelayMix) },
	},
	{
		name: "Reverb size",
		step: func(m *Model, dir int) {
			fx := &m.Patch.FX
			fx.ReverbSize = patch.Clamp(fx.ReverbSize+float64(dir)*0.5, 0.5, 10)
			m.Synth.SetReverbSize(fx.ReverbSize)
		},
		show: func(m *Model) string { return fmt.Sprintf("%.1fs", m.Patch.FX.ReverbSize) },
	},
	{
		name: "Reverb mix",
		step: func(m *Model, dir int) {
			fx := &m.Patch.FX
			fx.ReverbMix = patch.ClampPercent(fx.ReverbMix + float64(dir*5))
			m.Synth.SetReverbMix(fx.ReverbMix / 100)
		},
		show: func(m *Model) string { return fmt.Sprintf("%.0f", m.Patch.FX.ReverbMix) },
	},
}
