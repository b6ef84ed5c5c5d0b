// Package wavemath generates and reshapes single-cycle waveforms
package wavemath

import (
	"math"
	"math/rand/v2"

	"github.com/oisee/wavesynth/pkg/patch"
)

const twoPi = 2 * math.Pi

func generate(fn func(i int, t float64) float64) []float64 {
	out := make([]float64, patch.WaveSamples)
	for i := range out {
		out[i] = fn(i, float64(i)/patch.WaveSamples)
	}
	return out
}

// Sine: one full cycle
func Sine() []float64 {
	return generate(func(_ int, t float64) float64 { return math.Sin(t * twoPi) })
}

// Triangle: /\/
func Triangle() []float64 {
	return generate(func(_ int, t float64) float64 {
		return 1 - 4*math.Abs(math.Round(t)-t)
	})
}

// Saw: falling ramp from 1 to -1
func Saw() []float64 {
	return generate(func(_ int, t float64) float64 { return 1 - 2*t })
}

// Square at 0.8 amplitude
func Square() []float64 {
	return generate(func(_ int, t float64) float64 {
		if t < 0.5 {
			return 0.8
		}
		return -0.8
	})
}

// Pulse with the given duty cycle (0.0 to 1.0)
func Pulse(width float64) []float64 {
	width = patch.Clamp(width, 0, 1)
	return generate(func(_ int, t float64) float64 {
		if t < width {
			return 0.9
		}
		return -0.9
	})
}

// Noise fills the cycle with uniform noise from r
func Noise(r *rand.Rand) []float64 {
	if r == nil {
		r = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return generate(func(int, float64) float64 { return r.Float64()*2 - 1 })
}

// Additive sums sine partials; amps[0] is the fundamental
func Additive(amps ...float64) []float64 {
	total := 0.0
	for _, a := range amps {
		total += a
	}
	norm := math.Max(1, total)
	return generate(func(_ int, t float64) float64 {
		v := 0.0
		for h, a := range amps {
			v += a * math.Sin(t*twoPi*float64(h+1))
		}
		return v / norm
	})
}

// FM takes a static snapshot of a two-operator FM pair
func FM(carrier, modulator, index float64) []float64 {
	return generate(func(_ int, t float64) float64 {
		ph := t * twoPi
		return math.Sin(carrier*ph + index*math.Sin(modulator*ph))
	})
}

// Sync imitates hard sync with a raised-cosine window against edge clicks
func Sync(ratio float64) []float64 {
	return generate(func(_ int, t float64) float64 {
		window := 1 - math.Cos(t*twoPi)
		return math.Sin(math.Mod(t*twoPi*ratio, twoPi)) * window
	})
}

// Normalize scales so the peak is 1; near-silent input is returned as is
func Normalize(data []float64) []float64 {
	peak := 0.0
	for _, x := range data {
		peak = math.Max(peak, math.Abs(x))
	}
	if peak < 0.0001 {
		return append([]float64(nil), data...)
	}
	return mapSamples(data, func(x float64) float64 { return x / peak })
}

// Invert flips polarity
func Invert(data []float64) []float64 {
	return mapSamples(data, func(x float64) float64 { return -x })
}

// Reverse plays the cycle backwards
func Reverse(data []float64) []float64 {
	out := make([]float64, len(data))
	for i, x := range data {
		out[len(data)-1-i] = x
	}
	return out
}

// Rectify folds the negative half up
func Rectify(data []float64) []float64 {
	return mapSamples(data, math.Abs)
}

// Smooth applies a 5-point moving average
func Smooth(data []float64) []float64 {
	out := make([]float64, len(data))
	for i := range data {
		sum, n := 0.0, 0
		for off := -2; off <= 2; off++ {
			if j := i + off; j >= 0 && j < len(data) {
				sum += data[j]
				n++
			}
		}
		out[i] = sum / float64(n)
	}
	return out
}

// Drive saturates with tanh
func Drive(data []float64) []float64 {
	return mapSamples(data, func(x float64) float64 { return math.Tanh(x * 2.5) })
}

// Fold wraps the signal through a sine
func Fold(data []float64) []float64 {
	return mapSamples(data, func(x float64) float64 { return math.Sin(x * 4) })
}

// Quantize reduces to 6 levels per polarity
func Quantize(data []float64) []float64 {
	const levels = 6
	return mapSamples(data, func(x float64) float64 { return math.Round(x*levels) / levels })
}

// Clip limits every sample to [-1, 1]; NaN becomes 0
func Clip(data []float64) []float64 {
	return mapSamples(data, func(x float64) float64 {
		if math.IsNaN(x) {
			return 0
		}
		return patch.Clamp(x, -1, 1)
	})
}

func mapSamples(data []float64, fn func(float64) float64) []float64 {
	out := make([]float64, len(data))
	for i, x := range data {
		out[i] = fn(x)
	}
	return out
}

// Shape names a built-in generator
type Shape string

const (
	ShapeSine     Shape = "sine"
	ShapeTriangle Shape = "triangle"
	ShapeSaw      Shape = "saw"
	ShapeSquare   Shape = "square"
	ShapePulse    Shape = "pulse"
	ShapeNoise    Shape = "noise"
)

// Shapes lists the named generators in panel order
var Shapes = []Shape{ShapeSine, ShapeTriangle, ShapeSaw, ShapeSquare, ShapePulse, ShapeNoise}

// Generate returns the named shape, or false for an unknown name
func Generate(s Shape) ([]float64, bool) {
	switch s {
	case ShapeSine:
		return Sine(), true
	case ShapeTriangle:
		return Triangle(), true
	case ShapeSaw:
		return Saw(), true
	case ShapeSquare:
		return Square(), true
	case ShapePulse:
		return Pulse(0.25), true
	case ShapeNoise:
		return Noise(nil), true
	}
	return nil, false
}
