package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyserTimeDomainOrder(t *testing.T) {
	a := newAnalyser()
	l := make([]float64, 3000)
	for i := range l {
		l[i] = float64(i)
	}
	a.write(l, l)

	dst := make([]float32, 4)
	require.Equal(t, 4, a.TimeDomainData(dst))
	assert.Equal(t, []float32{2996, 2997, 2998, 2999}, dst)

	full := make([]float32, 4096)
	require.Equal(t, analyserFFTSize, a.TimeDomainData(full))
	assert.Equal(t, float32(3000-analyserFFTSize), full[0])
	assert.Equal(t, float32(2999), full[analyserFFTSize-1])
}

func TestAnalyserMixesToMono(t *testing.T) {
	a := newAnalyser()
	a.write([]float64{1, 0.5}, []float64{0, -0.5})

	dst := make([]float32, 2)
	a.TimeDomainData(dst)
	assert.Equal(t, []float32{0.5, 0}, dst)
}

func TestAnalyserFrequencyData(t *testing.T) {
	a := newAnalyser()

	silent := make([]float32, a.FrequencyBinCount())
	require.Equal(t, 1024, a.FrequencyData(silent))
	for _, v := range silent {
		assert.Equal(t, float32(analyserFloorDB), v)
	}

	tone := make([]float64, analyserFFTSize)
	for i := range tone {
		tone[i] = math.Sin(2 * math.Pi * 64 * float64(i) / analyserFFTSize)
	}
	a.write(tone, tone)

	first := make([]float32, a.FrequencyBinCount())
	a.FrequencyData(first)
	loudest := 0
	for k, v := range first {
		if v > first[loudest] {
			loudest = k
		}
	}
	assert.Equal(t, 64, loudest)

	// Smoothing moves the magnitude towards the steady value
	second := make([]float32, a.FrequencyBinCount())
	a.FrequencyData(second)
	assert.Greater(t, second[64], first[64])

	short := make([]float32, 10)
	assert.Equal(t, 10, a.FrequencyData(short))
}

func TestAnalyserBlackmanWindow(t *testing.T) {
	a := newAnalyser()
	require.Len(t, a.window, analyserFFTSize)
	// Periodic Blackman: zero at the start, peak at the centre
	assert.InDelta(t, 0, a.window[0], 1e-9)
	assert.InDelta(t, 1, a.window[analyserFFTSize/2], 1e-9)
	assert.InDelta(t, a.window[1], a.window[analyserFFTSize-1], 1e-9)
}
