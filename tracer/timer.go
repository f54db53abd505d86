package tracer

import (
	"time"
)

// ticker is the same as time.Ticker except that it has jitters.
// A Ticker must be created with newTicker.
type ticker struct {
	tick     *time.Ticker
	duration time.Duration
	jitter   time.Duration
}

// newTicker creates a new Ticker that will send the current time on its channel
// every duration plus a random jitter chosen once.
func newTicker(duration, jitter time.Duration) *ticker {
	t := time.NewTicker(duration + randomJitter(jitter))

	jitterTicker := ticker{
		tick:     t,
		duration: duration,
		jitter:   jitter,
	}

	return &jitterTicker
}

// c returns a channel that receives when the ticker fires.
func (j *ticker) c() <-chan time.Time {
	return j.tick.C
}

func (j *ticker) stop() {
	j.tick.Stop()
}

// timer fires once per reset, each time after the requested delay plus a
// fresh jitter.
type timer struct {
	t      *time.Timer
	jitter time.Duration
}

func newTimer(delay, jitter time.Duration) *timer {
	return &timer{
		t:      time.NewTimer(delay + randomJitter(jitter)),
		jitter: jitter,
	}
}

// c returns a channel that receives when the timer fires.
func (j *timer) c() <-chan time.Time {
	return j.t.C
}

// reset re-arms the timer. It must only be called after the previous value
// was received from c.
func (j *timer) reset(delay time.Duration) {
	j.t.Reset(delay + randomJitter(j.jitter))
}

func (j *timer) stop() {
	j.t.Stop()
}
