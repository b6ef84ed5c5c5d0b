package audio

import (
	"math"

	"github.com/oisee/wavesynth/pkg/patch"
)

// unisonPosition maps instance i of total to [-1, 1]; 0 for a single voice
func unisonPosition(i, total int) float64 {
	if total <= 1 {
		return 0
	}
	center := float64(total-1) / 2
	return (float64(i) - center) / center
}

func isCenter(i, total int) bool {
	return float64(i) == float64(total-1)/2
}

// unisonOffset returns the detune in cents of instance i. jitter is drawn
// once per instance in [0, 10) and only used by the fifth mode.
func unisonOffset(i, total int, amount float64, mode patch.UnisonMode, jitter float64) float64 {
	if total <= 1 {
		return 0
	}
	pos := unisonPosition(i, total)
	spread := amount * 2

	switch mode {
	case patch.UnisonUniform:
		return pos * spread
	case patch.UnisonFifth:
		if isCenter(i, total) {
			return 0
		}
		if i%2 == 0 {
			return 700 + jitter
		}
		return -700 + jitter
	case patch.UnisonOctave:
		if isCenter(i, total) {
			return 0
		}
		if i%2 == 0 {
			return 1200 + pos*10
		}
		return -1200 + pos*10
	default:
		// Classic: squared position keeps most instances near the center pitch
		sign := 0.0
		if pos > 0 {
			sign = 1
		} else if pos < 0 {
			sign = -1
		}
		return pos * pos * sign * spread
	}
}

// unisonPan returns the stereo position of instance i
func unisonPan(i, total int, spread float64) float64 {
	return unisonPosition(i, total) * patch.ClampPercent(spread) / 100
}

// unisonGain keeps the summed power of a stack independent of its size
func unisonGain(total int) float64 {
	if total < 1 {
		total = 1
	}
	return 1 / math.Sqrt(float64(total))
}

// equalPowerPan returns left/right gains for a mono source at pan in [-1, 1]
func equalPowerPan(p float64) (float64, float64) {
	p = patch.Clamp(p, -1, 1)
	theta := (p + 1) * math.Pi / 4
	return math.Cos(theta), math.Sin(theta)
}
