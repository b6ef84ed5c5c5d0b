package audio

import "math"

type automationKind uint8

const (
	eventSet automationKind = iota
	eventLinear
	eventExponential
	eventTarget
)

type automationEvent struct {
	kind         automationKind
	time         float64
	value        float64
	timeConstant float64
}

// Param is a control value driven by scheduled automation events.
//
// Times are engine clock seconds. Reads must be made with non-decreasing
// times: events that lie in the past are folded into the current segment
// and discarded.
type Param struct {
	anchorTime  float64 // Start of the current segment
	anchorValue float64
	value       float64 // Last computed value

	targeting      bool // A set-target curve is running from the anchor
	target         float64
	targetConstant float64

	events []automationEvent // Sorted by time, stable for equal times
}

// NewParam creates a param holding v
func NewParam(v float64) *Param {
	return &Param{anchorValue: v, value: v}
}

// Value returns the last computed value
func (p *Param) Value() float64 {
	return p.value
}

// Settled returns the value the param ends at once every event has run
func (p *Param) Settled() float64 {
	if n := len(p.events); n > 0 {
		return p.events[n-1].value
	}
	if p.targeting {
		return p.target
	}
	return p.anchorValue
}

// Pending reports whether automation is still scheduled
func (p *Param) Pending() bool {
	return len(p.events) > 0 || p.targeting
}

// SetValueAtTime jumps to v at time t
func (p *Param) SetValueAtTime(v, t float64) {
	p.insert(automationEvent{kind: eventSet, time: t, value: v})
}

// LinearRampToValueAtTime ramps linearly from the previous event to v at t
func (p *Param) LinearRampToValueAtTime(v, t float64) {
	p.insert(automationEvent{kind: eventLinear, time: t, value: v})
}

// ExponentialRampToValueAtTime ramps exponentially from the previous event
// to v at t. The ramp holds its start value when start and end differ in
// sign or the start is zero.
func (p *Param) ExponentialRampToValueAtTime(v, t float64) {
	p.insert(automationEvent{kind: eventExponential, time: t, value: v})
}

// SetTargetAtTime approaches v from time t with the given time constant
func (p *Param) SetTargetAtTime(v, t, timeConstant float64) {
	p.insert(automationEvent{kind: eventTarget, time: t, value: v, timeConstant: timeConstant})
}

// CancelScheduledValues drops every event at or after t
func (p *Param) CancelScheduledValues(t float64) {
	for i, ev := range p.events {
		if ev.time >= t {
			p.events = p.events[:i]
			return
		}
	}
}

func (p *Param) insert(ev automationEvent) {
	i := len(p.events)
	for i > 0 && p.events[i-1].time > ev.time {
		i--
	}
	p.events = append(p.events, automationEvent{})
	copy(p.events[i+1:], p.events[i:])
	p.events[i] = ev
}

// ValueAt computes the value at time t
func (p *Param) ValueAt(t float64) float64 {
	for len(p.events) > 0 {
		ev := p.events[0]
		if t < ev.time {
			switch ev.kind {
			case eventLinear:
				p.value = p.linear(ev, t)
			case eventExponential:
				p.value = p.exponential(ev, t)
			default:
				p.value = p.hold(t)
			}
			return p.value
		}

		p.events = p.events[1:]
		if ev.kind == eventTarget {
			// A following ramp starts from here, so the curve is anchored at ev.time
			p.anchorValue = p.hold(ev.time)
			p.anchorTime = ev.time
			p.targeting = true
			p.target = ev.value
			p.targetConstant = ev.timeConstant
			continue
		}
		p.targeting = false
		p.anchorTime = ev.time
		p.anchorValue = ev.value
	}
	p.value = p.hold(t)
	return p.value
}

func (p *Param) hold(t float64) float64 {
	if !p.targeting || t < p.anchorTime {
		return p.anchorValue
	}
	if p.targetConstant <= 0 {
		return p.target
	}
	return p.target + (p.anchorValue-p.target)*math.Exp(-(t-p.anchorTime)/p.targetConstant)
}

func (p *Param) linear(ev automationEvent, t float64) float64 {
	span := ev.time - p.anchorTime
	if span <= 0 {
		return ev.value
	}
	if t <= p.anchorTime {
		return p.anchorValue
	}
	return p.anchorValue + (ev.value-p.anchorValue)*(t-p.anchorTime)/span
}

func (p *Param) exponential(ev automationEvent, t float64) float64 {
	v0, v1 := p.anchorValue, ev.value
	if v0 == 0 || v0*v1 <= 0 {
		return v0
	}
	span := ev.time - p.anchorTime
	if span <= 0 {
		return v1
	}
	if t <= p.anchorTime {
		return v0
	}
	return v0 * math.Pow(v1/v0, (t-p.anchorTime)/span)
}
