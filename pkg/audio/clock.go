package audio

import "container/heap"

// Clock is the sample-frame clock of the render path.
//
// Time only advances when the render callback pulls frames, so scheduled
// tasks run on the render path strictly after the frames before their due
// time have been produced.
type Clock struct {
	sampleRate float64
	frame      int64
	tasks      taskQueue
	seq        uint64
}

// NewClock creates a clock at frame zero
func NewClock(sampleRate float64) *Clock {
	return &Clock{sampleRate: sampleRate}
}

// Now returns the time of the next frame to be rendered, in seconds
func (c *Clock) Now() float64 {
	return float64(c.frame) / c.sampleRate
}

// Frame returns the index of the next frame to be rendered
func (c *Clock) Frame() int64 {
	return c.frame
}

// SampleRate returns frames per second
func (c *Clock) SampleRate() float64 {
	return c.sampleRate
}

// At schedules fn to run once the clock has passed time t
func (c *Clock) At(t float64, fn func()) {
	c.seq++
	heap.Push(&c.tasks, &clockTask{due: t, seq: c.seq, fn: fn})
}

// Pending returns the number of tasks not yet run
func (c *Clock) Pending() int {
	return len(c.tasks)
}

// Advance moves the clock forward by n frames and runs every task due
func (c *Clock) Advance(n int) {
	c.frame += int64(n)
	now := c.Now()
	for len(c.tasks) > 0 && c.tasks[0].due <= now {
		task := heap.Pop(&c.tasks).(*clockTask)
		task.fn()
	}
}

// Reset drops every pending task without running it
func (c *Clock) Reset() {
	c.tasks = nil
}

type clockTask struct {
	due float64
	seq uint64
	fn  func()
}

type taskQueue []*clockTask

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	if q[i].due == q[j].due {
		return q[i].seq < q[j].seq
	}
	return q[i].due < q[j].due
}

func (q taskQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *taskQueue) Push(x any) { *q = append(*q, x.(*clockTask)) }

func (q *taskQueue) Pop() any {
	old := *q
	n := len(old)
	task := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return task
}
