package audio

import (
	"math"

	"github.com/gopxl/beep/v2"
)

// loopStreamer replays its source from the start every time it drains, until
// looping is switched off. The loop flag is only flipped while the mixer is
// locked, so Stream never observes a torn update.
//
// beep's own Loop combinator fixes the repeat count at construction time; the
// reveal-choices path needs to disable looping on a clip that is already
// playing, which is why this lives here.
type loopStreamer struct {
	src  beep.StreamSeekCloser
	loop bool
	err  error
}

func (l *loopStreamer) Stream(samples [][2]float64) (int, bool) {
	if l.err != nil {
		return 0, false
	}
	filled := 0
	for filled < len(samples) {
		n, ok := l.src.Stream(samples[filled:])
		filled += n
		if ok {
			continue
		}
		if err := l.src.Err(); err != nil {
			l.err = err
			break
		}
		if !l.loop {
			break
		}
		if err := l.src.Seek(0); err != nil {
			l.err = err
			break
		}
	}
	return filled, filled > 0
}

func (l *loopStreamer) Err() error { return l.err }

// envelope shapes a streamer with a short linear attack and an exponential
// decay, the same curve the tone ticks in the fallback generator use.
type envelope struct {
	s      beep.Streamer
	sr     beep.SampleRate
	attack int     // samples of linear ramp-in
	decay  float64 // exponential decay rate per second
	pos    int
}

func (e *envelope) Stream(samples [][2]float64) (int, bool) {
	n, ok := e.s.Stream(samples)
	for i := 0; i < n; i++ {
		p := e.pos + i
		gain := math.Exp(-float64(p) / float64(e.sr) * e.decay)
		if e.attack > 0 && p < e.attack {
			gain *= float64(p) / float64(e.attack)
		}
		samples[i][0] *= gain
		samples[i][1] *= gain
	}
	e.pos += n
	return n, ok
}

func (e *envelope) Err() error { return e.s.Err() }
