package audio

import (
	"math"
	"math/rand/v2"

	"github.com/oisee/wavesynth/pkg/patch"
)

// VoiceState is the lifecycle stage of a voice
type VoiceState int

const (
	VoiceAttacking VoiceState = iota
	VoiceSustaining
	VoiceReleasing
	VoiceDisposed
)

func (s VoiceState) String() string {
	switch s {
	case VoiceAttacking:
		return "attacking"
	case VoiceSustaining:
		return "sustaining"
	case VoiceReleasing:
		return "releasing"
	case VoiceDisposed:
		return "disposed"
	}
	return "unknown"
}

// unisonInstance is one oscillator of a stack with its panner
type unisonInstance struct {
	osc    *Oscillator
	pan    *Param
	jitter float64 // Fifth-mode detune jitter, fixed for the instance lifetime
}

// slotStack is the unison stack of one slot and its mix gain
type slotStack struct {
	instances []*unisonInstance
	gain      float64 // Per-instance unison gain
	mix       *Param
}

// Voice is everything sounding for one note id
type Voice struct {
	ID        string
	Frequency float64

	slots    [patch.SlotCount]slotStack
	envelope *Param

	attackEnd  float64
	releasing  bool
	disposed   bool
	sampleRate float64

	// Scratch buffers reused every quantum
	mono, slotL, slotR, voiceL, voiceR []float64
}

// newVoice builds the oscillator stacks for a note starting at now
func newVoice(id string, freq float64, store *ParameterStore, now, sampleRate float64, rng *rand.Rand) *Voice {
	v := &Voice{
		ID:         id,
		Frequency:  freq,
		envelope:   NewParam(0),
		attackEnd:  now + store.Attack,
		sampleRate: sampleRate,
	}
	v.envelope.SetValueAtTime(0, now)
	v.envelope.LinearRampToValueAtTime(1, now+store.Attack)

	for slot := range v.slots {
		sl := &store.Slots[slot]
		u := sl.Unison
		count := u.Voices
		stack := slotStack{
			instances: make([]*unisonInstance, count),
			gain:      unisonGain(count),
			mix:       NewParam(store.MixGain(slot)),
		}
		base := store.BaseDetune(slot)
		for i := 0; i < count; i++ {
			jitter := rng.Float64() * 10
			detune := base + unisonOffset(i, count, u.Detune, u.Mode, jitter)
			stack.instances[i] = &unisonInstance{
				osc:    NewOscillator(store.Tone(slot), freq, detune, sampleRate),
				pan:    NewParam(unisonPan(i, count, u.Spread)),
				jitter: jitter,
			}
		}
		v.slots[slot] = stack
	}
	return v
}

// State returns the lifecycle stage at time t
func (v *Voice) State(t float64) VoiceState {
	switch {
	case v.disposed:
		return VoiceDisposed
	case v.releasing:
		return VoiceReleasing
	case t < v.attackEnd:
		return VoiceAttacking
	}
	return VoiceSustaining
}

// release starts the release ramp at now and returns the stop time
func (v *Voice) release(now, release float64) float64 {
	stopAt := now + release
	current := v.envelope.ValueAt(now)
	v.envelope.CancelScheduledValues(now)
	v.envelope.SetValueAtTime(current, now)
	v.envelope.ExponentialRampToValueAtTime(releaseFloor, stopAt)
	for slot := range v.slots {
		for _, inst := range v.slots[slot].instances {
			inst.osc.Stop(stopAt)
		}
	}
	v.releasing = true
	return stopAt
}

// dispose disconnects every node of the voice
func (v *Voice) dispose() {
	if v.disposed {
		return
	}
	for slot := range v.slots {
		for _, inst := range v.slots[slot].instances {
			inst.osc.Stop(math.Inf(-1))
		}
		v.slots[slot].instances = nil
		v.slots[slot].mix = nil
	}
	v.envelope = nil
	v.disposed = true
}

// oscillatorCount returns the instances still connected
func (v *Voice) oscillatorCount() int {
	n := 0
	for slot := range v.slots {
		n += len(v.slots[slot].instances)
	}
	return n
}

// retune re-targets detune and pan of every instance in slot
func (v *Voice) retune(slot int, base float64, u patch.UnisonConfig, now float64) {
	stack := &v.slots[slot]
	count := len(stack.instances)
	for i, inst := range stack.instances {
		detune := base + unisonOffset(i, count, u.Detune, u.Mode, inst.jitter)
		inst.osc.Detune.SetTargetAtTime(detune, now, paramSmoothing)
		inst.pan.SetTargetAtTime(unisonPan(i, count, u.Spread), now, paramSmoothing)
	}
}

// setMix re-targets the mix gain of slot
func (v *Voice) setMix(slot int, gain, now float64) {
	if mix := v.slots[slot].mix; mix != nil {
		mix.SetTargetAtTime(gain, now, paramSmoothing)
	}
}

// setTone hot-swaps the wavetable of every instance in slot
func (v *Voice) setTone(slot int, t *Tone) {
	for _, inst := range v.slots[slot].instances {
		inst.osc.SetTone(t)
	}
}

func (v *Voice) ensureScratch(n int) {
	if cap(v.mono) < n {
		v.mono = make([]float64, n)
		v.slotL = make([]float64, n)
		v.slotR = make([]float64, n)
		v.voiceL = make([]float64, n)
		v.voiceR = make([]float64, n)
	}
	v.mono = v.mono[:n]
	v.slotL = v.slotL[:n]
	v.slotR = v.slotR[:n]
	v.voiceL = v.voiceL[:n]
	v.voiceR = v.voiceR[:n]
}

// render adds the voice into l and r for the quantum starting at t0
func (v *Voice) render(l, r []float64, t0 float64) {
	if v.disposed {
		return
	}
	n := len(l)
	v.ensureScratch(n)
	clear(v.voiceL)
	clear(v.voiceR)

	dt := 1 / v.sampleRate
	for slot := range v.slots {
		stack := &v.slots[slot]
		if len(stack.instances) == 0 {
			continue
		}
		clear(v.slotL)
		clear(v.slotR)
		for _, inst := range stack.instances {
			inst.osc.Process(v.mono, t0)
			gl, gr := equalPowerPan(inst.pan.ValueAt(t0))
			gl *= stack.gain
			gr *= stack.gain
			for i, x := range v.mono {
				v.slotL[i] += x * gl
				v.slotR[i] += x * gr
			}
		}
		for i := 0; i < n; i++ {
			g := stack.mix.ValueAt(t0 + float64(i)*dt)
			v.voiceL[i] += v.slotL[i] * g
			v.voiceR[i] += v.slotR[i] * g
		}
	}

	for i := 0; i < n; i++ {
		e := v.envelope.ValueAt(t0 + float64(i)*dt)
		l[i] += v.voiceL[i] * e
		r[i] += v.voiceR[i] * e
	}
}

// VoiceSnapshot describes a voice for collaborators and tests
type VoiceSnapshot struct {
	ID        string
	Frequency float64
	State     VoiceState
	Envelope  float64
	Slots     [patch.SlotCount]SlotSnapshot
}

// SlotSnapshot describes one unison stack. Detunes and Pans are the values
// the smoothers are heading to.
type SlotSnapshot struct {
	Mix         float64
	UnisonGains []float64
	Detunes     []float64
	Pans        []float64
}

func (v *Voice) snapshot(now float64) VoiceSnapshot {
	s := VoiceSnapshot{
		ID:        v.ID,
		Frequency: v.Frequency,
		State:     v.State(now),
	}
	if v.envelope != nil {
		s.Envelope = v.envelope.Value()
	}
	for slot := range v.slots {
		stack := &v.slots[slot]
		ss := SlotSnapshot{}
		if stack.mix != nil {
			ss.Mix = stack.mix.Settled()
		}
		for _, inst := range stack.instances {
			ss.UnisonGains = append(ss.UnisonGains, stack.gain)
			ss.Detunes = append(ss.Detunes, inst.osc.Detune.Settled())
			ss.Pans = append(ss.Pans, inst.pan.Settled())
		}
		s.Slots[slot] = ss
	}
	return s
}
