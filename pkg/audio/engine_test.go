package audio

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oisee/wavesynth/pkg/patch"
	"github.com/oisee/wavesynth/pkg/wavemath"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e := NewEngine(Config{SampleRate: testRate, Seed: 42})
	t.Cleanup(e.Shutdown)
	return e
}

// renderSeconds pulls audio in odd-sized chunks like a device would
func renderSeconds(e *Engine, seconds float64) ([]float32, []float32) {
	total := int(seconds * float64(e.SampleRate()))
	left := make([]float32, total)
	right := make([]float32, total)
	for done := 0; done < total; {
		n := min(300, total-done)
		e.Render(left[done:done+n], right[done:done+n])
		done += n
	}
	return left, right
}

type fakeOutput struct {
	suspended bool
	resumes   int
	closed    bool
}

func (f *fakeOutput) Resume() error {
	f.resumes++
	f.suspended = false
	return nil
}

func (f *fakeOutput) Suspended() bool { return f.suspended }

func (f *fakeOutput) Close() error {
	f.closed = true
	return nil
}

func TestEngineSilentBeforeInit(t *testing.T) {
	e := newTestEngine(t)
	left := []float32{1, 1, 1}
	right := []float32{1, 1, 1}

	e.Render(left, right)
	assert.Equal(t, []float32{0, 0, 0}, left)
	assert.Equal(t, []float32{0, 0, 0}, right)
	assert.Equal(t, 0.0, e.Now())
	assert.Nil(t, e.AnalyserHandle())
	assert.Equal(t, 0.0, e.GainReduction())
}

func TestEngineRenderAdvancesByQuantum(t *testing.T) {
	e := newTestEngine(t)
	e.Init()

	buf := make([]float32, 100)
	e.Render(buf, buf)
	assert.Equal(t, float64(RenderQuantum)/testRate, e.Now())

	e.Render(buf[:28], buf[:28])
	assert.Equal(t, float64(RenderQuantum)/testRate, e.Now())

	e.Render(buf[:1], buf[:1])
	assert.Equal(t, float64(2*RenderQuantum)/testRate, e.Now())
}

func TestEngineInitResumesOutput(t *testing.T) {
	e := newTestEngine(t)
	out := &fakeOutput{suspended: true}
	e.AttachOutput(out)

	e.Init()
	e.Init()
	assert.Equal(t, 1, out.resumes)
	assert.NotNil(t, e.AnalyserHandle())

	e.Shutdown()
	assert.True(t, out.closed)
	assert.Nil(t, e.AnalyserHandle())
}

func TestEngineNoteLifecycle(t *testing.T) {
	e := newTestEngine(t)
	e.NoteOn("a", 440)

	require.Equal(t, 1, e.ActiveVoiceCount())
	assert.Equal(t, 3, e.LiveOscillatorCount())
	snap, ok := e.VoiceSnapshot("a")
	require.True(t, ok)
	assert.Equal(t, VoiceAttacking, snap.State)
	assert.Equal(t, 440.0, snap.Frequency)

	renderSeconds(e, 0.2)
	snap, _ = e.VoiceSnapshot("a")
	assert.Equal(t, VoiceSustaining, snap.State)

	e.NoteOff("a")
	assert.Equal(t, 0, e.ActiveVoiceCount())
	assert.Equal(t, 3, e.LiveOscillatorCount())
	_, ok = e.VoiceSnapshot("a")
	assert.False(t, ok)

	// Release 0.4 s plus the disposal grace
	renderSeconds(e, 0.45)
	assert.Equal(t, 3, e.LiveOscillatorCount())
	renderSeconds(e, 0.1)
	assert.Equal(t, 0, e.LiveOscillatorCount())
}

func TestEngineNoteOffUnknownID(t *testing.T) {
	e := newTestEngine(t)
	e.NoteOff("nothing")
	e.NoteOn("a", 440)
	e.NoteOff("b")
	assert.Equal(t, 1, e.ActiveVoiceCount())
}

func TestEngineRetrigger(t *testing.T) {
	e := newTestEngine(t)
	e.NoteOn("a", 440)
	renderSeconds(e, 0.05)
	e.NoteOn("a", 880)

	assert.Equal(t, 1, e.ActiveVoiceCount())
	assert.Equal(t, 3, e.LiveOscillatorCount())
	snap, ok := e.VoiceSnapshot("a")
	require.True(t, ok)
	assert.Equal(t, 880.0, snap.Frequency)

	e.NoteOff("a")
	renderSeconds(e, 1)
	assert.Equal(t, 0, e.LiveOscillatorCount())
}

func TestEngineInvalidFrequency(t *testing.T) {
	e := newTestEngine(t)
	for _, f := range []float64{math.NaN(), math.Inf(1), 0, -440} {
		e.NoteOn("x", f)
	}
	assert.Equal(t, 0, e.ActiveVoiceCount())
}

func TestEnginePolyphony(t *testing.T) {
	e := newTestEngine(t)
	for i, id := range []string{"c", "e", "g", "b"} {
		e.NoteOn(id, 261.63*math.Pow(2, float64(i*3)/12))
	}
	assert.Equal(t, 4, e.ActiveVoiceCount())
	assert.Equal(t, 12, e.LiveOscillatorCount())

	left, right := renderSeconds(e, 0.3)
	for i := range left {
		require.False(t, math.IsNaN(float64(left[i])) || math.IsNaN(float64(right[i])))
		require.LessOrEqual(t, math.Abs(float64(left[i])), 1.0)
	}
}

func TestEnginePitchBendRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	e.SetOscDetune(0, 7)
	e.NoteOn("a", 440)

	e.SetPitchBend(1)
	snap, _ := e.VoiceSnapshot("a")
	assert.Equal(t, []float64{207}, snap.Slots[0].Detunes)
	assert.Equal(t, []float64{200}, snap.Slots[1].Detunes)

	e.SetPitchBend(0)
	snap, _ = e.VoiceSnapshot("a")
	assert.Equal(t, []float64{7}, snap.Slots[0].Detunes)
	assert.Equal(t, 0.0, e.PitchBend())

	e.SetPitchBend(5)
	assert.Equal(t, 1.0, e.PitchBend())
}

func TestEngineOctave(t *testing.T) {
	e := newTestEngine(t)
	e.NoteOn("a", 440)
	e.SetOscOctave(2, -1)
	e.SetOscOctave(1, 9)

	snap, _ := e.VoiceSnapshot("a")
	assert.Equal(t, []float64{-1200}, snap.Slots[2].Detunes)
	assert.Equal(t, []float64{2400}, snap.Slots[1].Detunes)
}

func TestEngineUnisonChangeAppliesToNextNote(t *testing.T) {
	e := newTestEngine(t)
	e.NoteOn("a", 440)
	e.SetOscUnison(0, patch.UnisonConfig{Voices: 5, Detune: 10, Spread: 50, Mode: patch.UnisonUniform})

	snap, _ := e.VoiceSnapshot("a")
	assert.Len(t, snap.Slots[0].Detunes, 1)
	assert.Equal(t, 3, e.LiveOscillatorCount())

	e.NoteOn("b", 660)
	snap, _ = e.VoiceSnapshot("b")
	assert.Equal(t, []float64{-20, -10, 0, 10, 20}, snap.Slots[0].Detunes)
	assert.Equal(t, 10, e.LiveOscillatorCount())

	// Out of range counts are clamped
	e.SetOscUnison(0, patch.UnisonConfig{Voices: 40, Mode: "wobble"})
	u := e.Patch().Oscillators[0].Unison
	assert.Equal(t, patch.MaxUnison, u.Voices)
	assert.Equal(t, patch.UnisonClassic, u.Mode)
}

func TestEngineSlotMix(t *testing.T) {
	e := newTestEngine(t)
	e.SetOscEnabled(1, false)
	e.SetOscVolume(1, 100)
	e.SetOscVolume(2, 50)
	e.NoteOn("a", 440)

	snap, _ := e.VoiceSnapshot("a")
	assert.InDelta(t, 0.8*HeadroomFactor, snap.Slots[0].Mix, 1e-12)
	assert.Equal(t, 0.0, snap.Slots[1].Mix)
	assert.InDelta(t, 0.5*HeadroomFactor, snap.Slots[2].Mix, 1e-12)

	e.SetOscEnabled(1, true)
	snap, _ = e.VoiceSnapshot("a")
	assert.InDelta(t, HeadroomFactor, snap.Slots[1].Mix, 1e-12)
}

func TestEngineUpdateWaveformKeepsPhase(t *testing.T) {
	e := newTestEngine(t)
	e.NoteOn("a", 440)
	renderSeconds(e, 0.05)

	osc := e.active["a"].slots[0].instances[0].osc
	phase := osc.Phase
	old := osc.Tone()

	e.UpdateWaveform(0, wavemath.Saw())
	assert.Equal(t, phase, osc.Phase)
	assert.NotSame(t, old, osc.Tone())
	assert.Equal(t, wavemath.Saw(), e.Waveform(0))
	assert.InDelta(t, 2/math.Pi, e.Spectrum(0).Imag[1], 0.01)

	// Non-finite samples and bad slots are rejected
	e.UpdateWaveform(0, []float64{math.NaN()})
	e.UpdateWaveform(5, wavemath.Square())
	assert.Equal(t, wavemath.Saw(), e.Waveform(0))
	assert.Nil(t, e.Waveform(5))
}

func TestEngineDelaySync(t *testing.T) {
	e := newTestEngine(t)
	e.SetDelayTime(0.3)
	assert.Equal(t, 0.3, e.DelayTime())

	e.SetTempo(120)
	e.SetDelaySync(true, 4)
	assert.Equal(t, 0.5, e.DelayTime())

	e.SetTempo(240)
	assert.Equal(t, 0.25, e.DelayTime())

	e.SetDelaySync(false, 4)
	assert.Equal(t, 0.3, e.DelayTime())

	e.SetTempo(-5)
	assert.Equal(t, 240.0, e.Tempo())
}

func TestEngineReverbSize(t *testing.T) {
	e := newTestEngine(t)
	e.Init()
	first := e.ReverbImpulse()
	require.Len(t, first[0], 2*testRate)

	e.SetReverbSize(2)
	second := e.ReverbImpulse()
	assert.Len(t, second[0], 2*testRate)
	assert.NotEqual(t, first, second)

	e.SetReverbSize(0)
	assert.Equal(t, second, e.ReverbImpulse())
	assert.Equal(t, 2.0, e.Patch().FX.ReverbSize)

	e.SetReverbSize(0.5)
	assert.Len(t, e.ReverbImpulse()[1], testRate/2)
}

func TestEngineReverbSizeIsCapped(t *testing.T) {
	e := newTestEngine(t)
	e.Init()

	for _, size := range []float64{1e9, math.Inf(1)} {
		require.NotPanics(t, func() { e.SetReverbSize(size) })
		assert.Len(t, e.ReverbImpulse()[0], int(patch.MaxReverbSize)*testRate)
		assert.Equal(t, patch.MaxReverbSize, e.Patch().FX.ReverbSize)
	}
}

func TestEngineSeedIsDeterministic(t *testing.T) {
	a := newTestEngine(t)
	b := newTestEngine(t)
	a.Init()
	b.Init()
	assert.Equal(t, a.ReverbImpulse(), b.ReverbImpulse())
}

func TestEngineNonFiniteSettingsIgnored(t *testing.T) {
	e := newTestEngine(t)
	nan := math.NaN()
	e.SetMasterVolume(nan)
	e.SetAttack(nan)
	e.SetFilterCutoff(math.Inf(-1))
	e.SetDelayFeedback(nan)
	e.SetOscVolume(0, nan)
	e.SetOscDetune(-1, 10)

	p := e.Patch()
	assert.Equal(t, 50.0, p.Envelope.MasterVolume)
	assert.Equal(t, 0.1, p.Envelope.Attack)
	assert.Equal(t, 1.0, p.Filter.Cutoff)
	assert.InDelta(t, 30, p.FX.DelayFeedback, 1e-9)
	assert.Equal(t, 80.0, p.Oscillators[0].Volume)
}

func TestEnginePatchReflectsSettings(t *testing.T) {
	e := newTestEngine(t)
	e.SetOscVolume(1, 55)
	e.SetOscDetune(2, -30)
	e.SetAttack(0.25)
	e.SetRelease(1.5)
	e.SetMasterVolume(0.7)
	e.SetFilterType(patch.Bandpass)
	e.SetFilterType("notch")
	e.SetFilterCutoff(0.4)
	e.SetFilterResonance(150)
	e.SetDelayFeedback(2)
	e.SetDelayMix(0.4)
	e.SetReverbMix(0.25)

	p := e.Patch()
	assert.Equal(t, 55.0, p.Oscillators[1].Volume)
	assert.Equal(t, -30.0, p.Oscillators[2].Detune)
	assert.Equal(t, "OSC C", p.Oscillators[2].Label)
	assert.Equal(t, 0.25, p.Envelope.Attack)
	assert.Equal(t, 1.5, p.Envelope.Release)
	assert.InDelta(t, 70, p.Envelope.MasterVolume, 1e-9)
	assert.Equal(t, patch.Bandpass, p.Filter.Type)
	assert.Equal(t, 0.4, p.Filter.Cutoff)
	assert.Equal(t, 100.0, p.Filter.Resonance)
	assert.InDelta(t, 95, p.FX.DelayFeedback, 1e-9)
	assert.InDelta(t, 40, p.FX.DelayMix, 1e-9)
	assert.InDelta(t, 25, p.FX.ReverbMix, 1e-9)
	assert.Len(t, p.Oscillators[0].Samples, patch.WaveSamples)
}

func TestEngineAnalyser(t *testing.T) {
	e := newTestEngine(t)
	e.SetAttack(0)
	e.NoteOn("a", 500)
	renderSeconds(e, 0.5)

	a := e.AnalyserHandle()
	require.NotNil(t, a)
	assert.Equal(t, 2048, a.FFTSize())
	assert.Equal(t, 1024, a.FrequencyBinCount())

	td := make([]float32, a.FFTSize())
	require.Equal(t, 2048, a.TimeDomainData(td))
	peak := float32(0)
	for _, v := range td {
		peak = max(peak, v)
	}
	assert.Greater(t, peak, float32(0.01))

	fd := make([]float32, a.FrequencyBinCount())
	require.Equal(t, 1024, a.FrequencyData(fd))
	// 500 Hz at 8 kHz lands in bin 128
	loudest := 0
	for k, v := range fd {
		if v > fd[loudest] {
			loudest = k
		}
	}
	assert.InDelta(t, 128, loudest, 1)
}

func TestEngineShutdownReleasesEverything(t *testing.T) {
	e := newTestEngine(t)
	e.NoteOn("a", 440)
	e.NoteOn("b", 550)
	e.NoteOff("b")

	e.Shutdown()
	assert.Equal(t, 0, e.ActiveVoiceCount())
	assert.Equal(t, 0, e.LiveOscillatorCount())

	left := []float32{1}
	e.Render(left, left)
	assert.Equal(t, float32(0), left[0])

	// A control call brings the engine back
	e.NoteOn("c", 440)
	assert.Equal(t, 1, e.ActiveVoiceCount())
	assert.NotNil(t, e.AnalyserHandle())
}

func TestEngineSettersRaceShutdown(t *testing.T) {
	e := newTestEngine(t)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			e.Shutdown()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			e.SetMasterVolume(0.5)
			e.SetFilterCutoff(0.5)
			e.SetDelayMix(0.2)
			e.SetReverbMix(0.2)
			e.NoteOn("a", 440)
		}
	}()
	wg.Wait()

	// Whatever order they ran in, a setter leaves a usable engine
	e.SetMasterVolume(0.7)
	require.NotNil(t, e.AnalyserHandle())
	renderSeconds(e, 0.01)
}

func TestEngineVoicesUseSlotTone(t *testing.T) {
	e := newTestEngine(t)
	e.NoteOn("a", 440)
	for slot := 0; slot < patch.SlotCount; slot++ {
		assert.Same(t, e.store.Tone(slot), e.active["a"].slots[slot].instances[0].osc.Tone())
	}

	e.UpdateWaveform(1, wavemath.Square())
	e.NoteOn("b", 220)
	assert.Same(t, e.store.Tone(1), e.active["b"].slots[1].instances[0].osc.Tone())
}
