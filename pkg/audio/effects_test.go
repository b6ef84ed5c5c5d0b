package audio

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oisee/wavesynth/pkg/patch"
)

const filterRate = 48000

func TestBiquadEdgeCases(t *testing.T) {
	tests := []struct {
		name string
		got  biquad.Coefficients
		want biquad.Coefficients
	}{
		{"lowpass open", lowpassCoeffs(24000, 0, filterRate), biquadIdentity},
		{"lowpass above nyquist", lowpassCoeffs(36000, 10, filterRate), biquadIdentity},
		{"lowpass closed", lowpassCoeffs(0, 0, filterRate), biquadSilence},
		{"highpass open", highpassCoeffs(0, 0, filterRate), biquadIdentity},
		{"highpass closed", highpassCoeffs(24000, 0, filterRate), biquadSilence},
		{"bandpass zero freq", bandpassCoeffs(0, 1, filterRate), biquadSilence},
		{"bandpass at nyquist", bandpassCoeffs(24000, 1, filterRate), biquadSilence},
		{"bandpass zero q", bandpassCoeffs(12000, 0, filterRate), biquadIdentity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

// dcGain evaluates H(z) at z = 1
func dcGain(c biquad.Coefficients) float64 {
	return (c.B0 + c.B1 + c.B2) / (1 + c.A1 + c.A2)
}

// nyquistGain evaluates H(z) at z = -1
func nyquistGain(c biquad.Coefficients) float64 {
	return (c.B0 - c.B1 + c.B2) / (1 - c.A1 + c.A2)
}

func TestBiquadResponse(t *testing.T) {
	lp := lowpassCoeffs(2400, 0, filterRate)
	assert.InDelta(t, 1, dcGain(lp), 1e-9)
	assert.InDelta(t, 0, nyquistGain(lp), 1e-9)

	hp := highpassCoeffs(2400, 0, filterRate)
	assert.InDelta(t, 0, dcGain(hp), 1e-9)
	assert.InDelta(t, 1, nyquistGain(hp), 1e-9)

	bp := bandpassCoeffs(6000, 2, filterRate)
	assert.InDelta(t, 0, dcGain(bp), 1e-12)
	assert.InDelta(t, 0, nyquistGain(bp), 1e-12)
}

func TestResonanceIsDecibels(t *testing.T) {
	assert.InDelta(t, 1, dbToQ(0), 1e-12)
	assert.InDelta(t, 10, dbToQ(20), 1e-12)
	// More resonance means less damping
	assert.NotEqual(t, lowpassCoeffs(2400, 0, filterRate), lowpassCoeffs(2400, 12, filterRate))
}

func TestBiquadIdentityPassesSignal(t *testing.T) {
	s := biquad.NewSection(biquadIdentity)
	buf := []float64{1, -0.5, 0.25, 0}
	processSection(s, buf)
	assert.Equal(t, []float64{1, -0.5, 0.25, 0}, buf)

	s.Coefficients = biquadSilence
	processSection(s, buf)
	for _, v := range buf {
		assert.Zero(t, math.Abs(v))
	}
}

func TestFilterKeepsStateAcrossQuanta(t *testing.T) {
	store := NewParameterStore()
	store.FilterCutoff = 0.4
	f := newFilter(store, 44100)

	l := make([]float64, RenderQuantum)
	r := make([]float64, RenderQuantum)
	for q := 0; q < 50; q++ {
		for i := range l {
			l[i], r[i] = 1, 1
		}
		f.process(l, r, float64(q*RenderQuantum)/44100)
	}
	// A section reset every quantum would restart from zero
	assert.InDelta(t, 1, l[0], 1e-3)
	assert.InDelta(t, 1, r[RenderQuantum-1], 1e-3)
}

func TestFilterUsesStoreSettings(t *testing.T) {
	store := NewParameterStore()
	// 20 kHz is Nyquist at 40 kHz
	f := newFilter(store, 40000)
	assert.Equal(t, biquadIdentity, f.coeffs(0))

	store.FilterType = patch.Highpass
	f = newFilter(store, 40000)
	assert.Equal(t, biquadSilence, f.coeffs(0))

	store.FilterType = patch.Lowpass
	f = newFilter(store, 44100)
	c := f.coeffs(0)
	assert.NotEqual(t, biquadIdentity, c)
	assert.InDelta(t, 1, dcGain(c), 1e-9)
}

func testDelay(t *testing.T, seconds, feedback float64) *delayLine {
	t.Helper()
	store := NewParameterStore()
	store.DelaySeconds = seconds
	store.DelayFeedback = feedback
	store.DelayMix = 1
	return newDelayLine(store, 1000)
}

func TestDelayImpulse(t *testing.T) {
	d := testDelay(t, 0.01, 0)
	l := make([]float64, 32)
	r := make([]float64, 32)
	l[0] = 1
	r[0] = 0.5

	d.process(l, r, 0)
	for i := range l {
		switch i {
		case 10:
			assert.InDelta(t, 1, l[i], 1e-9)
			assert.InDelta(t, 0.5, r[i], 1e-9)
		default:
			assert.InDelta(t, 0, l[i], 1e-9, "left %d", i)
			assert.InDelta(t, 0, r[i], 1e-9, "right %d", i)
		}
	}
}

func TestDelayFeedback(t *testing.T) {
	d := testDelay(t, 0.01, 0.5)
	l := make([]float64, 40)
	r := make([]float64, 40)
	l[0] = 1

	d.process(l, r, 0)
	assert.InDelta(t, 1, l[10], 1e-9)
	assert.InDelta(t, 0.5, l[20], 1e-9)
	assert.InDelta(t, 0.25, l[30], 1e-9)
	assert.InDelta(t, 0, l[15], 1e-9)
}

func TestDelayDryPath(t *testing.T) {
	store := NewParameterStore()
	store.DelayMix = 0
	d := newDelayLine(store, 1000)
	l := []float64{0.3, 0.2, 0.1}
	r := []float64{-0.3, -0.2, -0.1}

	d.process(l, r, 0)
	assert.Equal(t, []float64{0.3, 0.2, 0.1}, l)
	assert.Equal(t, []float64{-0.3, -0.2, -0.1}, r)
}

func TestReverbImpulseLength(t *testing.T) {
	assert.Equal(t, 88200, ReverbImpulseLength(2, 44100))
	assert.Equal(t, 1, ReverbImpulseLength(0.00001, 44100))
	assert.Equal(t, 0, ReverbImpulseLength(0, 44100))
	assert.Equal(t, 0, ReverbImpulseLength(-1, 44100))
	assert.Equal(t, 0, ReverbImpulseLength(math.NaN(), 44100))
	assert.Equal(t, 0, ReverbImpulseLength(math.Inf(1), 44100))
}

func TestGenerateImpulse(t *testing.T) {
	a := generateImpulse(1000, 7)
	b := generateImpulse(1000, 7)
	c := generateImpulse(1000, 8)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a[0], a[1])

	for ch := range a {
		for i, v := range a[ch] {
			n := float64(i) / 1000
			assert.LessOrEqual(t, math.Abs(v), (1-n)*(1-n), "channel %d sample %d", ch, i)
		}
	}
}

func unitImpulse(length, at int) [2][]float64 {
	var ir [2][]float64
	for ch := range ir {
		ir[ch] = make([]float64, length)
		ir[ch][at] = 1
	}
	return ir
}

func TestReverbKernelScale(t *testing.T) {
	k := newReverbKernel(unitImpulse(1, 0), 44100)
	assert.InDelta(t, reverbCalibration, k.scale, 1e-15)
	assert.Equal(t, 1, k.length())
	assert.Len(t, k.parts[0], 1)

	k = newReverbKernel(unitImpulse(1, 0), 22050)
	assert.InDelta(t, 2*reverbCalibration, k.scale, 1e-15)

	// Silent impulses are clamped to the minimum power
	silent := [2][]float64{make([]float64, 10), make([]float64, 10)}
	k = newReverbKernel(silent, 44100)
	assert.InDelta(t, reverbCalibration/reverbMinPower, k.scale, 1e-9)
}

func quantum(impulseAt int) ([]float64, []float64) {
	l := make([]float64, RenderQuantum)
	r := make([]float64, RenderQuantum)
	if impulseAt >= 0 {
		l[impulseAt] = 1
		r[impulseAt] = 1
	}
	return l, r
}

func TestConvolverUnitImpulse(t *testing.T) {
	c := newConvolver(newReverbKernel(unitImpulse(1, 0), 44100), 1)
	l, r := quantum(3)

	c.process(l, r, 0, 44100)
	for i := range l {
		want := 0.0
		if i == 3 {
			want = reverbCalibration
		}
		assert.InDelta(t, want, l[i], 1e-12, "left %d", i)
		assert.InDelta(t, want, r[i], 1e-12, "right %d", i)
	}
}

func TestConvolverAcrossPartitions(t *testing.T) {
	kernel := newReverbKernel(unitImpulse(300, 200), 44100)
	require.Len(t, kernel.parts[0], 3)
	c := newConvolver(kernel, 1)

	var out [][]float64
	for block := 0; block < 3; block++ {
		at := -1
		if block == 0 {
			at = 0
		}
		l, r := quantum(at)
		c.process(l, r, float64(block*RenderQuantum)/44100, 44100)
		out = append(out, l)
	}

	for block, l := range out {
		for i, v := range l {
			want := 0.0
			if block*RenderQuantum+i == 200 {
				want = kernel.scale
			}
			assert.InDelta(t, want, v, 1e-12, "block %d sample %d", block, i)
		}
	}
}

func TestConvolverDry(t *testing.T) {
	c := newConvolver(newReverbKernel(unitImpulse(1, 0), 44100), 0)
	l, r := quantum(5)

	c.process(l, r, 0, 44100)
	assert.Equal(t, 1.0, l[5])
	assert.Equal(t, 1.0, r[5])
	assert.Equal(t, 0.0, l[6])
}

func TestConvolverSetKernelDropsTail(t *testing.T) {
	c := newConvolver(newReverbKernel(unitImpulse(300, 200), 44100), 1)
	l, r := quantum(0)
	c.process(l, r, 0, 44100)

	c.setKernel(newReverbKernel(unitImpulse(1, 0), 44100))
	for block := 1; block < 3; block++ {
		l, r := quantum(-1)
		c.process(l, r, float64(block*RenderQuantum)/44100, 44100)
		for i := range l {
			assert.InDelta(t, 0, l[i], 1e-12)
		}
	}
}

func TestSoftClip(t *testing.T) {
	curve := softClipCurve()
	require.Len(t, curve, softClipTableSize)

	assert.InDelta(t, 0, softClip(curve, 0), 1e-4)
	assert.InDelta(t, math.Tanh(0.75), softClip(curve, 0.5), 1e-6)
	assert.InDelta(t, math.Tanh(1.5), softClip(curve, 1), 1e-12)
	assert.InDelta(t, math.Tanh(1.5), softClip(curve, 40), 1e-12)
	assert.InDelta(t, -math.Tanh(1.5), softClip(curve, -3), 1e-12)
	assert.Equal(t, 0.0, softClip(curve, math.NaN()))
	assert.Equal(t, curve[len(curve)-1], softClip(curve, math.Inf(1)))
}

func TestCompressorCurve(t *testing.T) {
	c := newCompressor(44100)

	tests := []struct {
		in   float64
		want float64
	}{
		{-40, -40},
		{-27, -27},
		{0, -11.1375},
		{12, -10},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, c.curve(tt.in), 1e-9, "input %v dB", tt.in)
	}
	// Inside the knee the output is below the input but above the ratio line
	out := c.curve(-12)
	assert.Less(t, out, -12.0)
	assert.Greater(t, out, -27.0)
}

func TestCompressorReducesLoudSignal(t *testing.T) {
	c := newCompressor(44100)
	l := make([]float64, 4410)
	r := make([]float64, 4410)
	for i := range l {
		l[i] = 1
		r[i] = 0.2
	}

	c.process(l, r)
	assert.Greater(t, c.gainReduction(), 9.0)
	assert.Less(t, l[len(l)-1], 0.4)
	// Linked detector: both channels take the same gain
	assert.InDelta(t, l[len(l)-1]*0.2, r[len(r)-1], 1e-12)
}

func TestCompressorQuietSignalUntouched(t *testing.T) {
	c := newCompressor(44100)
	l := []float64{0.001, -0.001, 0.0005}
	r := []float64{0, 0, 0}

	c.process(l, r)
	assert.Equal(t, []float64{0.001, -0.001, 0.0005}, l)
	assert.Equal(t, 0.0, c.gainReduction())
}
