package audio

import (
	"math"
	"math/cmplx"
	"math/rand/v2"

	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design"
	"github.com/maddyblue/go-dsp/fft"

	"github.com/oisee/wavesynth/pkg/patch"
)

// RenderQuantum is the block size k-rate parameters and clock tasks run at
const RenderQuantum = 128

var (
	biquadIdentity = biquad.Coefficients{B0: 1}
	biquadSilence  = biquad.Coefficients{}
)

// dbToQ converts a lowpass/highpass resonance in dB to a linear Q
func dbToQ(resonance float64) float64 {
	return math.Pow(10, resonance/20)
}

// lowpassCoeffs takes the cutoff in Hz and the resonance in dB
func lowpassCoeffs(freq, resonance, sampleRate float64) biquad.Coefficients {
	switch {
	case freq >= sampleRate/2:
		return biquadIdentity
	case freq <= 0:
		return biquadSilence
	}
	return design.Lowpass(freq, dbToQ(resonance), sampleRate)
}

func highpassCoeffs(freq, resonance, sampleRate float64) biquad.Coefficients {
	switch {
	case freq >= sampleRate/2:
		return biquadSilence
	case freq <= 0:
		return biquadIdentity
	}
	return design.Highpass(freq, dbToQ(resonance), sampleRate)
}

// bandpassCoeffs is the constant 0 dB peak bandpass. It takes a linear Q;
// Q <= 0 passes the signal through.
func bandpassCoeffs(freq, q, sampleRate float64) biquad.Coefficients {
	w0 := 2 * math.Pi * freq / sampleRate
	if w0 <= 0 || w0 >= math.Pi {
		return biquadSilence
	}
	if q <= 0 {
		return biquadIdentity
	}
	cw := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * q)
	inv := 1 / (1 + alpha)
	return biquad.Coefficients{
		B0: alpha * inv,
		B2: -alpha * inv,
		A1: -2 * cw * inv,
		A2: (1 - alpha) * inv,
	}
}

func processSection(s *biquad.Section, buf []float64) {
	for i, x := range buf {
		buf[i] = s.ProcessSample(x)
	}
}

// filter is a stereo biquad whose frequency and Q glide between settings.
// Coefficients are replaced every quantum; the section state carries over.
type filter struct {
	kind       patch.FilterType
	frequency  *Param // Hz
	q          *Param
	sampleRate float64
	left       *biquad.Section
	right      *biquad.Section
}

func newFilter(store *ParameterStore, sampleRate float64) *filter {
	return &filter{
		kind:       store.FilterType,
		frequency:  NewParam(patch.CutoffToHz(store.FilterCutoff)),
		q:          NewParam(patch.ResonanceToQ(store.FilterResonance)),
		sampleRate: sampleRate,
		left:       biquad.NewSection(biquadIdentity),
		right:      biquad.NewSection(biquadIdentity),
	}
}

func (f *filter) coeffs(t float64) biquad.Coefficients {
	freq := f.frequency.ValueAt(t)
	q := f.q.ValueAt(t)
	switch f.kind {
	case patch.Highpass:
		return highpassCoeffs(freq, q, f.sampleRate)
	case patch.Bandpass:
		return bandpassCoeffs(freq, q, f.sampleRate)
	}
	return lowpassCoeffs(freq, q, f.sampleRate)
}

func (f *filter) process(l, r []float64, t0 float64) {
	c := f.coeffs(t0)
	f.left.Coefficients = c
	f.right.Coefficients = c
	processSection(f.left, l)
	processSection(f.right, r)
}

// delayLine is a stereo feedback delay with a dry/wet crossfade
type delayLine struct {
	time     *Param // Seconds
	feedback *Param
	dry      *Param
	wet      *Param

	buf        [2][]float64
	write      int
	sampleRate float64
}

func newDelayLine(store *ParameterStore, sampleRate float64) *delayLine {
	size := int(math.Ceil(patch.MaxDelayTime*sampleRate)) + 2
	return &delayLine{
		time:       NewParam(store.EffectiveDelayTime()),
		feedback:   NewParam(store.DelayFeedback),
		dry:        NewParam(1 - store.DelayMix),
		wet:        NewParam(store.DelayMix),
		buf:        [2][]float64{make([]float64, size), make([]float64, size)},
		sampleRate: sampleRate,
	}
}

func (d *delayLine) process(l, r []float64, t0 float64) {
	size := len(d.buf[0])
	delay := patch.Clamp(d.time.ValueAt(t0), patch.MinDelayTime, patch.MaxDelayTime) * d.sampleRate
	whole := int(delay)
	frac := delay - float64(whole)
	dt := 1 / d.sampleRate

	for i := range l {
		t := t0 + float64(i)*dt
		fb := d.feedback.ValueAt(t)
		dry := d.dry.ValueAt(t)
		wet := d.wet.ValueAt(t)

		a := (d.write - whole + size) % size
		b := (a - 1 + size) % size
		in := [2]float64{l[i], r[i]}
		for ch := range d.buf {
			y := d.buf[ch][a] + (d.buf[ch][b]-d.buf[ch][a])*frac
			d.buf[ch][d.write] = in[ch] + y*fb
			out := in[ch]*dry + y*wet
			if ch == 0 {
				l[i] = out
			} else {
				r[i] = out
			}
		}
		d.write = (d.write + 1) % size
	}
}

// Reverb impulse calibration, matching the browser convolver: the impulse
// is scaled to a fixed RMS of -58 dB at 44.1 kHz.
const (
	reverbCalibration = 0.00125
	reverbMinPower    = 0.000125
	reverbCalibRate   = 44100
)

const convFFTSize = 2 * RenderQuantum

// ReverbImpulseLength returns the impulse length for size seconds
func ReverbImpulseLength(size, sampleRate float64) int {
	if !finite(size) || size <= 0 {
		return 0
	}
	return int(math.Ceil(size * sampleRate))
}

// generateImpulse fills both channels with decaying white noise
func generateImpulse(length int, seed uint64) [2][]float64 {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	var ir [2][]float64
	for ch := range ir {
		ir[ch] = make([]float64, length)
	}
	for i := 0; i < length; i++ {
		n := float64(i) / float64(length)
		env := (1 - n) * (1 - n)
		for ch := range ir {
			ir[ch][i] = (rng.Float64()*2 - 1) * env
		}
	}
	return ir
}

// reverbKernel is a stereo impulse split into FFT partitions of one
// render quantum each.
type reverbKernel struct {
	impulse [2][]float64
	parts   [2][][]complex128
	scale   float64
}

func newReverbKernel(ir [2][]float64, sampleRate float64) *reverbKernel {
	k := &reverbKernel{impulse: ir}
	length := len(ir[0])

	power := 0.0
	for ch := range ir {
		for _, v := range ir[ch] {
			power += v * v
		}
	}
	power = math.Sqrt(power / float64(2*length))
	if math.IsNaN(power) || power < reverbMinPower {
		power = reverbMinPower
	}
	k.scale = reverbCalibration / power * reverbCalibRate / sampleRate

	count := (length + RenderQuantum - 1) / RenderQuantum
	segment := make([]float64, convFFTSize)
	for ch := range ir {
		k.parts[ch] = make([][]complex128, count)
		for p := 0; p < count; p++ {
			clear(segment)
			start := p * RenderQuantum
			end := min(start+RenderQuantum, length)
			for i := start; i < end; i++ {
				segment[i-start] = ir[ch][i] * k.scale
			}
			spectrum := fft.FFTReal(segment)
			k.parts[ch][p] = spectrum[:RenderQuantum+1]
		}
	}
	return k
}

func (k *reverbKernel) length() int {
	return len(k.impulse[0])
}

// convolver runs a uniformly partitioned overlap-save convolution
type convolver struct {
	kernel *reverbKernel
	dry    *Param
	wet    *Param

	input [2][]float64      // Last two blocks of input
	fdl   [2][][]complex128 // Input spectra, newest at head
	head  int
	acc   []complex128
	full  []complex128
	out   [2][]float64
}

func newConvolver(kernel *reverbKernel, mix float64) *convolver {
	c := &convolver{
		dry:  NewParam(1 - mix),
		wet:  NewParam(mix),
		acc:  make([]complex128, RenderQuantum+1),
		full: make([]complex128, convFFTSize),
	}
	for ch := range c.input {
		c.input[ch] = make([]float64, convFFTSize)
		c.out[ch] = make([]float64, RenderQuantum)
	}
	c.setKernel(kernel)
	return c
}

// setKernel swaps the impulse; the tail of the previous one is dropped
func (c *convolver) setKernel(k *reverbKernel) {
	c.kernel = k
	count := len(k.parts[0])
	for ch := range c.fdl {
		c.fdl[ch] = make([][]complex128, count)
		clear(c.input[ch])
	}
	c.head = 0
}

// process expects exactly one render quantum per channel
func (c *convolver) process(l, r []float64, t0, sampleRate float64) {
	in := [2][]float64{l, r}
	count := len(c.fdl[0])
	c.head = (c.head + 1) % count

	// Skipping the multiply-accumulate keeps a silent reverb cheap; input
	// spectra are still recorded so raising the mix picks up the tail.
	live := c.wet.Settled() != 0 || math.Abs(c.wet.ValueAt(t0)) > 1e-6

	for ch := range in {
		copy(c.input[ch], c.input[ch][RenderQuantum:])
		copy(c.input[ch][RenderQuantum:], in[ch])
		c.fdl[ch][c.head] = fft.FFTReal(c.input[ch])[:RenderQuantum+1]

		if !live {
			clear(c.out[ch])
			continue
		}
		clear(c.acc)
		for p, h := range c.kernel.parts[ch] {
			x := c.fdl[ch][(c.head-p+count)%count]
			if x == nil {
				continue
			}
			for k := range c.acc {
				c.acc[k] += x[k] * h[k]
			}
		}
		c.full[0] = c.acc[0]
		c.full[RenderQuantum] = c.acc[RenderQuantum]
		for k := 1; k < RenderQuantum; k++ {
			c.full[k] = c.acc[k]
			c.full[convFFTSize-k] = cmplx.Conj(c.acc[k])
		}
		y := fft.IFFT(c.full)
		for i := range c.out[ch] {
			c.out[ch][i] = real(y[RenderQuantum+i])
		}
	}

	dt := 1 / sampleRate
	for i := range l {
		t := t0 + float64(i)*dt
		dry := c.dry.ValueAt(t)
		wet := c.wet.ValueAt(t)
		l[i] = l[i]*dry + c.out[0][i]*wet
		r[i] = r[i]*dry + c.out[1][i]*wet
	}
}
