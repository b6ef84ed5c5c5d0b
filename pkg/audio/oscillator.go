// Package audio implements the audio synthesis engine
package audio

import "math"

// Oscillator plays a Tone at a detuned frequency
type Oscillator struct {
	tone       *Tone
	Phase      float64 // 0.0 to 1.0
	Frequency  float64 // Hz, before detune
	Detune     *Param  // Cents
	SampleRate float64

	stopAt  float64 // Clock time the oscillator falls silent; +Inf while playing
	stopped bool
}

// NewOscillator creates an oscillator that plays until stopped
func NewOscillator(tone *Tone, freq, detune, sampleRate float64) *Oscillator {
	return &Oscillator{
		tone:       tone,
		Frequency:  freq,
		Detune:     NewParam(detune),
		SampleRate: sampleRate,
		stopAt:     math.Inf(1),
	}
}

// SetTone swaps the wavetable without touching phase
func (o *Oscillator) SetTone(t *Tone) {
	o.tone = t
}

// Tone returns the current wavetable
func (o *Oscillator) Tone() *Tone {
	return o.tone
}

// Stop schedules silence from time t on
func (o *Oscillator) Stop(t float64) {
	if t < o.stopAt {
		o.stopAt = t
	}
}

// Stopped reports whether the oscillator has reached its stop time
func (o *Oscillator) Stopped() bool {
	return o.stopped
}

// EffectiveFrequency returns the frequency after detune at time t
func (o *Oscillator) EffectiveFrequency(t float64) float64 {
	return o.Frequency * math.Pow(2, o.Detune.ValueAt(t)/1200)
}

// Process writes len(dst) samples starting at clock time t0. Detune is
// evaluated once per call.
func (o *Oscillator) Process(dst []float64, t0 float64) {
	if o.stopped {
		clear(dst)
		return
	}

	freq := o.EffectiveFrequency(t0)
	level := -1
	if !o.tone.Silent() {
		level = o.tone.level(freq, o.SampleRate/2)
	}
	inc := freq / o.SampleRate

	for i := range dst {
		if t0+float64(i)/o.SampleRate >= o.stopAt {
			clear(dst[i:])
			o.stopped = true
			return
		}
		if level >= 0 {
			dst[i] = o.tone.sample(level, o.Phase)
		} else {
			dst[i] = 0
		}
		o.Phase += inc
		o.Phase -= math.Floor(o.Phase)
	}
}
