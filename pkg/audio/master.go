package audio

import (
	"math"
	"sync"
)

const softClipTableSize = 65536

var (
	softClipOnce  sync.Once
	softClipTable []float64
)

// softClipCurve returns tanh(1.5x) sampled over [-1, 1]
func softClipCurve() []float64 {
	softClipOnce.Do(func() {
		softClipTable = make([]float64, softClipTableSize)
		for i := range softClipTable {
			x := float64(i)*2/(softClipTableSize-1) - 1
			softClipTable[i] = math.Tanh(x * 1.5)
		}
	})
	return softClipTable
}

// softClip shapes x through the curve; inputs outside [-1, 1] take the end
// values of the table.
func softClip(curve []float64, x float64) float64 {
	last := len(curve) - 1
	pos := (x + 1) / 2 * float64(last)
	switch {
	case math.IsNaN(pos):
		return 0
	case pos <= 0:
		return curve[0]
	case pos >= float64(last):
		return curve[last]
	}
	i := int(pos)
	frac := pos - float64(i)
	return curve[i] + (curve[i+1]-curve[i])*frac
}

// compressor is a feed-forward peak compressor with a soft knee. The
// detector is linked across both channels.
type compressor struct {
	threshold float64 // dB
	knee      float64 // dB
	ratio     float64
	attack    float64 // One-pole coefficient
	release   float64
	reduction float64 // Current gain change in dB, <= 0
}

func newCompressor(sampleRate float64) *compressor {
	return &compressor{
		threshold: -12,
		knee:      30,
		ratio:     12,
		attack:    math.Exp(-1 / (0.003 * sampleRate)),
		release:   math.Exp(-1 / (0.25 * sampleRate)),
	}
}

// curve returns the static output level in dB for an input level in dB
func (c *compressor) curve(x float64) float64 {
	over := x - c.threshold
	switch {
	case 2*over < -c.knee:
		return x
	case 2*math.Abs(over) <= c.knee:
		k := over + c.knee/2
		return x + (1/c.ratio-1)*k*k/(2*c.knee)
	}
	return c.threshold + over/c.ratio
}

func (c *compressor) process(l, r []float64) {
	for i := range l {
		peak := math.Max(math.Abs(l[i]), math.Abs(r[i]))
		target := 0.0
		if peak > 1e-9 {
			level := 20 * math.Log10(peak)
			target = c.curve(level) - level
		}
		coef := c.release
		if target < c.reduction {
			coef = c.attack
		}
		c.reduction = coef*c.reduction + (1-coef)*target
		g := math.Pow(10, c.reduction/20)
		l[i] *= g
		r[i] *= g
	}
}

// gainReduction returns the current gain reduction as a positive number
func (c *compressor) gainReduction() float64 {
	return -c.reduction
}

// busInputGain is the fixed gain from the voice sum into the effects
const busInputGain = 0.8

// effectsChain is the singleton bus every voice feeds:
// filter, delay, reverb, soft clip, compressor, master volume, analyser.
type effectsChain struct {
	filter     *filter
	delay      *delayLine
	reverb     *convolver
	curve      []float64
	compressor *compressor
	master     *Param
	analyser   *analyser
	sampleRate float64
}

func newEffectsChain(store *ParameterStore, kernel *reverbKernel, sampleRate float64) *effectsChain {
	return &effectsChain{
		filter:     newFilter(store, sampleRate),
		delay:      newDelayLine(store, sampleRate),
		reverb:     newConvolver(kernel, store.ReverbMix),
		curve:      softClipCurve(),
		compressor: newCompressor(sampleRate),
		master:     NewParam(store.MasterVolume),
		analyser:   newAnalyser(),
		sampleRate: sampleRate,
	}
}

// process runs one render quantum through the bus in place
func (b *effectsChain) process(l, r []float64, t0 float64) {
	for i := range l {
		l[i] *= busInputGain
		r[i] *= busInputGain
	}
	b.filter.process(l, r, t0)
	b.delay.process(l, r, t0)
	b.reverb.process(l, r, t0, b.sampleRate)
	for i := range l {
		l[i] = softClip(b.curve, l[i])
		r[i] = softClip(b.curve, r[i])
	}
	b.compressor.process(l, r)
	dt := 1 / b.sampleRate
	for i := range l {
		g := b.master.ValueAt(t0 + float64(i)*dt)
		l[i] *= g
		r[i] *= g
	}
	b.analyser.write(l, r)
}
