package preset

import (
	"github.com/sirupsen/logrus"

	"github.com/oisee/wavesynth/pkg/patch"
)

// Target is the part of the engine a preset drives
type Target interface {
	UpdateWaveform(slot int, samples []float64)
	SetOscVolume(slot int, volume float64)
	SetOscDetune(slot int, cents float64)
	SetOscOctave(slot int, octave int)
	SetOscUnison(slot int, u patch.UnisonConfig)
	SetOscEnabled(slot int, enabled bool)
	SetAttack(seconds float64)
	SetRelease(seconds float64)
	SetMasterVolume(volume float64)
	SetFilterType(t patch.FilterType)
	SetFilterCutoff(cutoff float64)
	SetFilterResonance(resonance float64)
	SetDelayTime(seconds float64)
	SetDelaySync(enabled bool, index int)
	SetDelayFeedback(amount float64)
	SetDelayMix(mix float64)
	SetReverbSize(size float64)
	SetReverbMix(mix float64)
}

// Apply pushes every setting of p to t. Panel percentages are converted to
// the engine's 0-1 ranges.
func Apply(t Target, p patch.Preset) {
	p = Sanitize(p)
	for slot, o := range p.Oscillators {
		if len(o.Samples) > 0 {
			t.UpdateWaveform(slot, o.Samples)
		}
		t.SetOscVolume(slot, o.Volume)
		t.SetOscDetune(slot, o.Detune)
		t.SetOscOctave(slot, o.Octave)
		t.SetOscUnison(slot, o.Unison)
		t.SetOscEnabled(slot, o.Enabled)
	}

	t.SetAttack(p.Envelope.Attack)
	t.SetRelease(p.Envelope.Release)
	t.SetMasterVolume(p.Envelope.MasterVolume / 100)

	t.SetFilterType(p.Filter.Type)
	t.SetFilterCutoff(p.Filter.Cutoff)
	t.SetFilterResonance(p.Filter.Resonance)

	t.SetDelayTime(p.FX.DelayTime)
	t.SetDelaySync(p.FX.IsDelaySynced, p.FX.DelaySyncIndex)
	t.SetDelayFeedback(p.FX.DelayFeedback / 100)
	t.SetDelayMix(p.FX.DelayMix / 100)
	t.SetReverbSize(p.FX.ReverbSize)
	t.SetReverbMix(p.FX.ReverbMix / 100)

	logrus.WithFields(logrus.Fields{
		"function": "Apply",
		"preset":   p.ID,
		"name":     p.Name,
	}).Info("Preset applied")
}
