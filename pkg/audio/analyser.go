package audio

import (
	"math"
	"math/cmplx"
	"sync"

	"github.com/cwbudde/algo-dsp/dsp/window"
	"github.com/maddyblue/go-dsp/fft"
)

const (
	analyserFFTSize   = 2048
	analyserSmoothing = 0.8
	analyserFloorDB   = -1000
)

// Analyser is a read-only view of the master output
type Analyser interface {
	// FFTSize returns the number of time-domain samples kept
	FFTSize() int
	// FrequencyBinCount returns FFTSize/2
	FrequencyBinCount() int
	// TimeDomainData copies the most recent samples, oldest first, and
	// returns how many were written.
	TimeDomainData(dst []float32) int
	// FrequencyData writes smoothed magnitudes in dB and returns how many
	// bins were written.
	FrequencyData(dst []float32) int
}

// analyser keeps a ring of the mono master mix. Readers may run on any
// goroutine.
type analyser struct {
	mu       sync.Mutex
	ring     []float64
	pos      int
	window   []float64
	smoothed []float64
	frame    []float64
}

func newAnalyser() *analyser {
	return &analyser{
		ring:     make([]float64, analyserFFTSize),
		window:   window.Generate(window.TypeBlackman, analyserFFTSize, window.WithPeriodic()),
		smoothed: make([]float64, analyserFFTSize/2),
		frame:    make([]float64, analyserFFTSize),
	}
}

func (a *analyser) write(l, r []float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range l {
		a.ring[a.pos] = (l[i] + r[i]) / 2
		a.pos = (a.pos + 1) % len(a.ring)
	}
}

func (a *analyser) FFTSize() int {
	return analyserFFTSize
}

func (a *analyser) FrequencyBinCount() int {
	return analyserFFTSize / 2
}

// snapshot copies the ring into a.frame in time order; a.mu must be held
func (a *analyser) snapshot() {
	n := copy(a.frame, a.ring[a.pos:])
	copy(a.frame[n:], a.ring[:a.pos])
}

func (a *analyser) TimeDomainData(dst []float32) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snapshot()
	n := min(len(dst), len(a.frame))
	// Most recent samples when dst is short
	src := a.frame[len(a.frame)-n:]
	for i, v := range src {
		dst[i] = float32(v)
	}
	return n
}

func (a *analyser) FrequencyData(dst []float32) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snapshot()
	for i := range a.frame {
		a.frame[i] *= a.window[i]
	}
	spectrum := fft.FFTReal(a.frame)

	n := min(len(dst), len(a.smoothed))
	for k := range a.smoothed {
		mag := cmplx.Abs(spectrum[k]) / analyserFFTSize
		a.smoothed[k] = analyserSmoothing*a.smoothed[k] + (1-analyserSmoothing)*mag
		if k < n {
			db := float64(analyserFloorDB)
			if a.smoothed[k] > 0 {
				db = math.Max(db, 20*math.Log10(a.smoothed[k]))
			}
			dst[k] = float32(db)
		}
	}
	return n
}
