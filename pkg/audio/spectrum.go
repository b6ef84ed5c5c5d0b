package audio

import (
	"math"
	"math/cmplx"

	"github.com/maddyblue/go-dsp/fft"

	"github.com/oisee/wavesynth/pkg/patch"
)

// HarmonicSpectrum holds the cosine (Real) and sine (Imag) coefficient of
// each harmonic of a single-cycle waveform. Index 0 (DC) is always zero.
type HarmonicSpectrum struct {
	Real [patch.HarmonicCount]float64
	Imag [patch.HarmonicCount]float64
}

// Silent reports whether every coefficient is zero
func (s *HarmonicSpectrum) Silent() bool {
	for k := range s.Real {
		if s.Real[k] != 0 || s.Imag[k] != 0 {
			return false
		}
	}
	return true
}

// ComputeSpectrum analyses one cycle by discrete summation over its samples.
// Every harmonic below patch.HarmonicCount is computed, each scaled by 2/N.
func ComputeSpectrum(samples []float64) HarmonicSpectrum {
	var s HarmonicSpectrum
	n := len(samples)
	if n == 0 {
		return s
	}

	cos := make([]float64, n)
	sin := make([]float64, n)
	for i := range cos {
		theta := 2 * math.Pi * float64(i) / float64(n)
		cos[i] = math.Cos(theta)
		sin[i] = math.Sin(theta)
	}

	scale := 2 / float64(n)
	for k := 1; k < patch.HarmonicCount; k++ {
		var re, im float64
		for i, x := range samples {
			// k*i/n turns, reduced to an exact table index
			idx := (k * i) % n
			re += x * cos[idx]
			im += x * sin[idx]
		}
		s.Real[k] = re * scale
		s.Imag[k] = im * scale
	}
	return s
}

const (
	toneTableSize = 2048
	toneLevels    = 9
)

// Tone is an immutable, band-limited wavetable built from a spectrum.
// Level L holds the harmonics up to 256>>L so high notes can drop the
// partials that would fold back above Nyquist.
type Tone struct {
	tables      [toneLevels][]float32
	maxHarmonic [toneLevels]int
	silent      bool
}

// BuildTone renders a spectrum into wavetables normalized to a peak of 1
func BuildTone(s HarmonicSpectrum) *Tone {
	t := &Tone{silent: s.Silent()}

	raw := make([][]float64, toneLevels)
	peak := 0.0
	for level := 0; level < toneLevels; level++ {
		limit := patch.HarmonicCount >> level
		if limit > patch.HarmonicCount-1 {
			limit = patch.HarmonicCount - 1
		}
		t.maxHarmonic[level] = limit

		if t.silent {
			continue
		}
		bins := make([]complex128, toneTableSize)
		half := float64(toneTableSize / 2)
		for k := 1; k <= limit; k++ {
			// x[n] = sum Real[k] cos + Imag[k] sin, undoing the 1/N of the inverse transform
			c := complex(s.Real[k]*half, -s.Imag[k]*half)
			bins[k] = c
			bins[toneTableSize-k] = cmplx.Conj(c)
		}
		out := fft.IFFT(bins)
		table := make([]float64, toneTableSize)
		for n := range table {
			table[n] = real(out[n])
		}
		raw[level] = table
		if level == 0 {
			for _, v := range table {
				peak = math.Max(peak, math.Abs(v))
			}
		}
	}

	scale := 1.0
	if peak > 0 {
		scale = 1 / peak
	}
	for level := 0; level < toneLevels; level++ {
		table := make([]float32, toneTableSize)
		if raw[level] != nil {
			for n, v := range raw[level] {
				table[n] = float32(v * scale)
			}
		}
		t.tables[level] = table
	}
	return t
}

// Silent reports whether the tone produces no output
func (t *Tone) Silent() bool {
	return t == nil || t.silent
}

// level picks the richest table whose top harmonic stays below nyquist
func (t *Tone) level(freq, nyquist float64) int {
	freq = math.Abs(freq)
	for level := 0; level < toneLevels; level++ {
		if float64(t.maxHarmonic[level])*freq < nyquist {
			return level
		}
	}
	return -1
}

// sample reads table level at phase in [0, 1) with linear interpolation
func (t *Tone) sample(level int, phase float64) float64 {
	table := t.tables[level]
	pos := phase * toneTableSize
	i := int(pos)
	frac := pos - float64(i)
	a := table[i&(toneTableSize-1)]
	b := table[(i+1)&(toneTableSize-1)]
	return float64(a) + (float64(b)-float64(a))*frac
}
