package audio

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oisee/wavesynth/pkg/patch"
)

// Config holds engine construction settings
type Config struct {
	SampleRate int
	// Seed drives reverb noise and unison jitter; 0 seeds from the clock
	Seed uint64
}

// DefaultConfig returns CD-rate settings with a time-based seed
func DefaultConfig() Config {
	return Config{SampleRate: 44100}
}

// Output is a device or sink that pulls frames from the engine
type Output interface {
	Resume() error
	Suspended() bool
	Close() error
}

// Engine is the polyphonic synthesizer. Control methods may be called
// from any goroutine; Render is called by the output.
type Engine struct {
	mu sync.Mutex

	sampleRate float64
	clock      *Clock
	store      *ParameterStore
	rng        *rand.Rand

	bus       *effectsChain
	active    map[string]*Voice
	releasing map[*Voice]struct{}
	output    Output
	reverbGen uint64

	// Quantum FIFO serving arbitrary Render sizes
	mixL, mixR []float64
	fifo       [2][]float32
	fifoPos    int
}

// NewEngine creates an engine; nothing is allocated for audio until Init
func NewEngine(cfg Config) *Engine {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultConfig().SampleRate
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Engine{
		sampleRate: float64(cfg.SampleRate),
		clock:      NewClock(float64(cfg.SampleRate)),
		store:      NewParameterStore(),
		rng:        rand.New(rand.NewPCG(seed, seed>>1|1)),
		active:     make(map[string]*Voice),
		releasing:  make(map[*Voice]struct{}),
		mixL:       make([]float64, RenderQuantum),
		mixR:       make([]float64, RenderQuantum),
		fifo:       [2][]float32{make([]float32, RenderQuantum), make([]float32, RenderQuantum)},
		fifoPos:    RenderQuantum,
	}
}

// SampleRate returns frames per second
func (e *Engine) SampleRate() int {
	return int(e.sampleRate)
}

// Init builds the effects bus once and resumes a suspended output
func (e *Engine) Init() {
	e.mu.Lock()
	e.initLocked()
	out := e.output
	e.mu.Unlock()

	// The output may pull frames synchronously while starting
	if out != nil && out.Suspended() {
		if err := out.Resume(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Init",
				"error":    err.Error(),
			}).Warn("Failed to resume audio output")
		}
	}
}

func (e *Engine) initLocked() {
	if e.bus != nil {
		return
	}
	length := ReverbImpulseLength(e.store.ReverbSize, e.sampleRate)
	kernel := newReverbKernel(generateImpulse(max(length, 1), e.rng.Uint64()), e.sampleRate)
	e.bus = newEffectsChain(e.store, kernel, e.sampleRate)
	e.fifoPos = len(e.fifo[0])

	logrus.WithFields(logrus.Fields{
		"function":    "Init",
		"sample_rate": e.sampleRate,
		"reverb_len":  kernel.length(),
	}).Info("Audio engine initialized")
}

// Shutdown drops every voice, clears the bus and closes the output. A later
// control call initializes the engine again.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	out := e.output
	e.output = nil
	for id, v := range e.active {
		v.dispose()
		delete(e.active, id)
	}
	for v := range e.releasing {
		v.dispose()
		delete(e.releasing, v)
	}
	e.clock.Reset()
	e.bus = nil
	e.mu.Unlock()

	if out != nil {
		if err := out.Close(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Shutdown",
				"error":    err.Error(),
			}).Warn("Failed to close audio output")
		}
	}
	logrus.WithField("function", "Shutdown").Info("Audio engine shut down")
}

// AttachOutput registers the sink that pulls frames. It is resumed by Init
// and closed by Shutdown.
func (e *Engine) AttachOutput(out Output) {
	e.mu.Lock()
	e.output = out
	e.mu.Unlock()
}

// Now returns the engine clock in seconds
func (e *Engine) Now() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock.Now()
}

// Render fills left and right with the next frames. Before Init it writes
// silence and the clock does not move.
func (e *Engine) Render(left, right []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := min(len(left), len(right))
	if e.bus == nil {
		clear(left)
		clear(right)
		return
	}
	for done := 0; done < n; {
		if e.fifoPos == len(e.fifo[0]) {
			e.renderQuantum()
			e.fifoPos = 0
		}
		c := copy(left[done:n], e.fifo[0][e.fifoPos:])
		copy(right[done:done+c], e.fifo[1][e.fifoPos:e.fifoPos+c])
		e.fifoPos += c
		done += c
	}
}

// renderQuantum produces one block into the FIFO and advances the clock
func (e *Engine) renderQuantum() {
	t0 := e.clock.Now()
	clear(e.mixL)
	clear(e.mixR)
	for _, v := range e.active {
		v.render(e.mixL, e.mixR, t0)
	}
	for v := range e.releasing {
		v.render(e.mixL, e.mixR, t0)
	}
	e.bus.process(e.mixL, e.mixR, t0)
	for i := range e.mixL {
		e.fifo[0][i] = float32(e.mixL[i])
		e.fifo[1][i] = float32(e.mixR[i])
	}
	e.clock.Advance(RenderQuantum)
}

// NoteOn starts a voice for id. An existing voice for id is torn down first.
func (e *Engine) NoteOn(id string, frequency float64) {
	if !finite(frequency) || frequency <= 0 {
		return
	}
	e.Init()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.initLocked()

	if old, ok := e.active[id]; ok {
		old.dispose()
		delete(e.active, id)
	}
	now := e.clock.Now()
	e.active[id] = newVoice(id, frequency, e.store, now, e.sampleRate, e.rng)

	logrus.WithFields(logrus.Fields{
		"function":  "NoteOn",
		"note":      id,
		"frequency": frequency,
		"voices":    len(e.active),
	}).Debug("Note on")
}

// NoteOff releases the voice for id; unknown ids are ignored
func (e *Engine) NoteOff(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	v, ok := e.active[id]
	if !ok {
		return
	}
	delete(e.active, id)
	stopAt := v.release(e.clock.Now(), e.store.Release)
	e.releasing[v] = struct{}{}
	e.clock.At(stopAt+disposeGrace, func() {
		v.dispose()
		delete(e.releasing, v)
	})

	logrus.WithFields(logrus.Fields{
		"function": "NoteOff",
		"note":     id,
		"stop_at":  stopAt,
	}).Debug("Note off")
}

// UpdateWaveform replaces the waveform of slot and hot-swaps the tone of
// every sounding instance of that slot.
func (e *Engine) UpdateWaveform(slot int, samples []float64) {
	if !validSlot(slot) || !finite(samples...) {
		return
	}
	waveform := append([]float64(nil), samples...)
	spectrum := ComputeSpectrum(waveform)
	tone := BuildTone(spectrum)

	e.Init()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.initLocked()

	sl := &e.store.Slots[slot]
	sl.Waveform = waveform
	sl.Spectrum = spectrum
	sl.tone = tone
	for _, v := range e.active {
		v.setTone(slot, tone)
	}
	for v := range e.releasing {
		v.setTone(slot, tone)
	}
}

// Waveform returns a copy of the waveform of slot
func (e *Engine) Waveform(slot int) []float64 {
	if !validSlot(slot) {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]float64(nil), e.store.Slots[slot].Waveform...)
}

// Spectrum returns the harmonic spectrum of slot
func (e *Engine) Spectrum(slot int) HarmonicSpectrum {
	if !validSlot(slot) {
		return HarmonicSpectrum{}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Slots[slot].Spectrum
}

// update runs fn with the engine initialized and locked. A Shutdown racing
// between Init and the lock is undone by initLocked.
func (e *Engine) update(fn func(now float64)) {
	e.Init()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.initLocked()
	fn(e.clock.Now())
}

// retuneSlot pushes the detune and pan of slot to every active voice
func (e *Engine) retuneSlot(slot int, now float64) {
	base := e.store.BaseDetune(slot)
	u := e.store.Slots[slot].Unison
	for _, v := range e.active {
		v.retune(slot, base, u, now)
	}
}

func (e *Engine) remixSlot(slot int, now float64) {
	gain := e.store.MixGain(slot)
	for _, v := range e.active {
		v.setMix(slot, gain, now)
	}
}

// SetOscVolume sets the volume of slot, 0-100
func (e *Engine) SetOscVolume(slot int, volume float64) {
	if !validSlot(slot) || !finite(volume) {
		return
	}
	e.update(func(now float64) {
		e.store.Slots[slot].Volume = patch.ClampPercent(volume)
		e.remixSlot(slot, now)
	})
}

// SetOscEnabled mutes or unmutes slot
func (e *Engine) SetOscEnabled(slot int, enabled bool) {
	if !validSlot(slot) {
		return
	}
	e.update(func(now float64) {
		e.store.Slots[slot].Enabled = enabled
		e.remixSlot(slot, now)
	})
}

// SetOscDetune sets the fine tune of slot in cents
func (e *Engine) SetOscDetune(slot int, cents float64) {
	if !validSlot(slot) || !finite(cents) {
		return
	}
	e.update(func(now float64) {
		e.store.Slots[slot].Detune = patch.Clamp(cents, -patch.MaxFineDetune, patch.MaxFineDetune)
		e.retuneSlot(slot, now)
	})
}

// SetOscOctave sets the octave shift of slot
func (e *Engine) SetOscOctave(slot int, octave int) {
	if !validSlot(slot) {
		return
	}
	e.update(func(now float64) {
		e.store.Slots[slot].Octave = patch.ClampInt(octave, patch.MinOctave, patch.MaxOctave)
		e.retuneSlot(slot, now)
	})
}

// SetOscUnison replaces the unison settings of slot. Sounding voices keep
// their instance count until the next note on.
func (e *Engine) SetOscUnison(slot int, u patch.UnisonConfig) {
	if !validSlot(slot) || !finite(u.Detune, u.Spread, u.Blend) {
		return
	}
	e.update(func(now float64) {
		e.store.Slots[slot].Unison = u.Clamped()
		e.retuneSlot(slot, now)
	})
}

// SetPitchBend bends every slot by up to two semitones, -1 to 1
func (e *Engine) SetPitchBend(bend float64) {
	if !finite(bend) {
		return
	}
	e.update(func(now float64) {
		e.store.PitchBend = patch.Clamp(bend, -1, 1)
		for slot := range e.store.Slots {
			e.retuneSlot(slot, now)
		}
	})
}

// SetAttack sets the attack time of future notes in seconds
func (e *Engine) SetAttack(seconds float64) {
	if !finite(seconds) {
		return
	}
	e.update(func(float64) {
		e.store.Attack = math.Max(seconds, 0)
	})
}

// SetRelease sets the release time of future note offs in seconds
func (e *Engine) SetRelease(seconds float64) {
	if !finite(seconds) {
		return
	}
	e.update(func(float64) {
		e.store.Release = math.Max(seconds, 0)
	})
}

// SetMasterVolume sets the output gain, 0-1
func (e *Engine) SetMasterVolume(volume float64) {
	if !finite(volume) {
		return
	}
	e.update(func(now float64) {
		e.store.MasterVolume = patch.Clamp(volume, 0, 1)
		e.bus.master.SetTargetAtTime(e.store.MasterVolume, now, masterSmoothing)
	})
}

// SetFilterType switches the filter response
func (e *Engine) SetFilterType(t patch.FilterType) {
	if !t.Valid() {
		return
	}
	e.update(func(float64) {
		e.store.FilterType = t
		e.bus.filter.kind = t
	})
}

// SetFilterCutoff sets the normalized cutoff, 0-1
func (e *Engine) SetFilterCutoff(cutoff float64) {
	if !finite(cutoff) {
		return
	}
	e.update(func(now float64) {
		e.store.FilterCutoff = patch.Clamp(cutoff, 0, 1)
		e.bus.filter.frequency.SetTargetAtTime(patch.CutoffToHz(e.store.FilterCutoff), now, paramSmoothing)
	})
}

// SetFilterResonance sets the resonance, 0-100
func (e *Engine) SetFilterResonance(resonance float64) {
	if !finite(resonance) {
		return
	}
	e.update(func(now float64) {
		e.store.FilterResonance = patch.ClampPercent(resonance)
		e.bus.filter.q.SetTargetAtTime(patch.ResonanceToQ(e.store.FilterResonance), now, paramSmoothing)
	})
}

func (e *Engine) retimeDelay(now float64) {
	e.bus.delay.time.SetTargetAtTime(e.store.EffectiveDelayTime(), now, paramSmoothing)
}

// SetDelayTime sets the free-running delay time in seconds
func (e *Engine) SetDelayTime(seconds float64) {
	if !finite(seconds) {
		return
	}
	e.update(func(now float64) {
		e.store.DelaySeconds = patch.Clamp(seconds, patch.MinDelayTime, patch.MaxDelayTime)
		e.retimeDelay(now)
	})
}

// SetDelaySync locks the delay to a note division of the tempo
func (e *Engine) SetDelaySync(enabled bool, index int) {
	e.update(func(now float64) {
		e.store.DelaySynced = enabled
		e.store.DelaySyncIndex = patch.ClampInt(index, 0, len(patch.SyncOptions)-1)
		e.retimeDelay(now)
	})
}

// SetTempo sets the tempo used by a synced delay
func (e *Engine) SetTempo(bpm float64) {
	if !finite(bpm) || bpm <= 0 {
		return
	}
	e.update(func(now float64) {
		e.store.Tempo = bpm
		e.retimeDelay(now)
	})
}

// DelayTime returns the delay time currently requested, in seconds
func (e *Engine) DelayTime() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.EffectiveDelayTime()
}

// SetDelayFeedback sets the feedback gain, 0-0.95
func (e *Engine) SetDelayFeedback(amount float64) {
	if !finite(amount) {
		return
	}
	e.update(func(now float64) {
		e.store.DelayFeedback = patch.Clamp(amount, 0, patch.MaxFeedback)
		e.bus.delay.feedback.SetTargetAtTime(e.store.DelayFeedback, now, paramSmoothing)
	})
}

// SetDelayMix crossfades dry and delayed signal, 0-1
func (e *Engine) SetDelayMix(mix float64) {
	if !finite(mix) {
		return
	}
	e.update(func(now float64) {
		e.store.DelayMix = patch.Clamp(mix, 0, 1)
		e.bus.delay.wet.SetTargetAtTime(e.store.DelayMix, now, paramSmoothing)
		e.bus.delay.dry.SetTargetAtTime(1-e.store.DelayMix, now, paramSmoothing)
	})
}

// SetReverbSize regenerates the reverb impulse for size seconds, at most
// patch.MaxReverbSize. Sizes too small for a single sample keep the current
// impulse.
func (e *Engine) SetReverbSize(size float64) {
	size = min(size, patch.MaxReverbSize)
	length := ReverbImpulseLength(size, e.sampleRate)
	if length < 1 {
		return
	}
	e.Init()

	e.mu.Lock()
	e.store.ReverbSize = size
	e.reverbGen++
	gen := e.reverbGen
	seed := e.rng.Uint64()
	e.mu.Unlock()

	// Generating and transforming a long impulse stays off the render lock
	kernel := newReverbKernel(generateImpulse(length, seed), e.sampleRate)

	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.reverbGen || e.bus == nil {
		return
	}
	e.bus.reverb.setKernel(kernel)

	logrus.WithFields(logrus.Fields{
		"function": "SetReverbSize",
		"size":     size,
		"length":   length,
	}).Debug("Reverb impulse regenerated")
}

// SetReverbMix crossfades dry and reverberated signal, 0-1
func (e *Engine) SetReverbMix(mix float64) {
	if !finite(mix) {
		return
	}
	e.update(func(now float64) {
		e.store.ReverbMix = patch.Clamp(mix, 0, 1)
		e.bus.reverb.wet.SetTargetAtTime(e.store.ReverbMix, now, paramSmoothing)
		e.bus.reverb.dry.SetTargetAtTime(1-e.store.ReverbMix, now, paramSmoothing)
	})
}

// ReverbImpulse returns a copy of the current stereo impulse, or nil before
// Init.
func (e *Engine) ReverbImpulse() [2][]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.bus == nil {
		return [2][]float64{}
	}
	ir := e.bus.reverb.kernel.impulse
	return [2][]float64{
		append([]float64(nil), ir[0]...),
		append([]float64(nil), ir[1]...),
	}
}

// AnalyserHandle returns the master output analyser, or nil before Init
func (e *Engine) AnalyserHandle() Analyser {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.bus == nil {
		return nil
	}
	return e.bus.analyser
}

// GainReduction returns the compressor gain reduction in dB
func (e *Engine) GainReduction() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.bus == nil {
		return 0
	}
	return e.bus.compressor.gainReduction()
}

// ActiveVoiceCount returns the number of held notes
func (e *Engine) ActiveVoiceCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}

// LiveOscillatorCount returns the oscillator instances not yet disposed,
// releasing voices included.
func (e *Engine) LiveOscillatorCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, v := range e.active {
		n += v.oscillatorCount()
	}
	for v := range e.releasing {
		n += v.oscillatorCount()
	}
	return n
}

// VoiceSnapshot describes the active voice for id
func (e *Engine) VoiceSnapshot(id string) (VoiceSnapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.active[id]
	if !ok {
		return VoiceSnapshot{}, false
	}
	return v.snapshot(e.clock.Now()), true
}

// Patch captures the current settings as a preset record
func (e *Engine) Patch() patch.Preset {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.store
	p := patch.Preset{
		Envelope: patch.EnvelopeSettings{
			Attack:       s.Attack,
			Release:      s.Release,
			MasterVolume: s.MasterVolume * 100,
		},
		Filter: patch.FilterSettings{
			Cutoff:    s.FilterCutoff,
			Resonance: s.FilterResonance,
			Type:      s.FilterType,
		},
		FX: patch.FXSettings{
			DelayTime:      s.DelaySeconds,
			DelayFeedback:  s.DelayFeedback * 100,
			DelayMix:       s.DelayMix * 100,
			ReverbSize:     s.ReverbSize,
			ReverbMix:      s.ReverbMix * 100,
			IsDelaySynced:  s.DelaySynced,
			DelaySyncIndex: s.DelaySyncIndex,
		},
	}
	for i := range s.Slots {
		sl := &s.Slots[i]
		p.Oscillators[i] = patch.OscillatorConfig{
			ID:      i,
			Label:   patch.SlotLabel(i),
			Volume:  sl.Volume,
			Detune:  sl.Detune,
			Octave:  sl.Octave,
			Samples: append([]float64(nil), sl.Waveform...),
			Enabled: sl.Enabled,
			Unison:  sl.Unison,
		}
	}
	return p
}

// Tempo returns the current tempo in BPM
func (e *Engine) Tempo() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Tempo
}

// PitchBend returns the current bend, -1 to 1
func (e *Engine) PitchBend() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.PitchBend
}
