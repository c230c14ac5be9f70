package audio

import (
	"sync"

	"github.com/gopxl/beep/v2"
	"github.com/rs/zerolog"

	"quizboard/internal/metrics"
)

// Controller owns every live playback handle: at most one intro/replay handle
// and one cached correct-sound buffer. All operations are best-effort: a
// missing device, an undecodable payload or a drained handle is logged and
// swallowed, never surfaced to the session.
type Controller struct {
	mu     sync.Mutex
	out    Output
	sr     beep.SampleRate
	logger zerolog.Logger

	intro *introHandle
	gen   int    // invalidates end callbacks of superseded handles
	endFn func() // one-shot, armed by Replay

	correctRef    *Asset
	correctBuf    *beep.Buffer
	correctFormat beep.Format
}

// introHandle is the revocable playback handle for the active intro clip.
// live tracks whether the handle is still attached to the mixer; a naturally
// ended clip keeps its decoded stream so a replay can rewind and requeue it.
type introHandle struct {
	src  beep.StreamSeekCloser
	loop *loopStreamer
	ctrl *beep.Ctrl
	live bool
}

// NewController builds a controller over the given output. A nil output
// degrades to the discard output.
func NewController(out Output, sr beep.SampleRate, logger zerolog.Logger) *Controller {
	if out == nil {
		out = NopOutput()
	}
	return &Controller{out: out, sr: sr, logger: logger}
}

// PlayIntro replaces any existing intro handle with a fresh one for clip and
// starts playback from position zero.
func (c *Controller) PlayIntro(clip *Asset, loop bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.releaseIntroLocked()
	if clip == nil {
		return
	}
	c.startLocked(clip, loop, nil)
}

// StopIntro pauses the intro handle without releasing it and disables
// looping, so a later replay can resume from a reset position. Any armed
// completion callback is dropped.
func (c *Controller) StopIntro() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.endFn = nil
	if c.intro == nil || !c.intro.live {
		return
	}
	c.out.Lock()
	c.intro.loop.loop = false
	c.intro.ctrl.Paused = true
	c.out.Unlock()
}

// Replay rewinds the clip to the start, disables looping and plays it once.
// done fires exactly once when playback ends naturally; it is dropped if the
// handle is stopped or superseded first. The return value reports whether
// playback actually started, so the caller can show a dead handle as stopped.
func (c *Controller) Replay(clip *Asset, done func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := c.intro
	if h == nil {
		return c.startLocked(clip, false, done)
	}

	if h.live {
		c.out.Lock()
		h.loop.loop = false
		if err := h.src.Seek(0); err != nil {
			c.out.Unlock()
			c.logger.Warn().Err(err).Msg("replay seek failed")
			metrics.PlaybackFailures.Inc()
			return false
		}
		h.ctrl.Paused = false
		c.out.Unlock()
		c.endFn = done
		return true
	}

	// The previous one-shot ran to completion and fell out of the mixer;
	// rewind the decoded stream and queue it again.
	if err := h.src.Seek(0); err != nil {
		c.logger.Warn().Err(err).Msg("replay seek failed")
		metrics.PlaybackFailures.Inc()
		return false
	}
	h.loop.loop = false
	h.loop.err = nil
	h.ctrl.Paused = false
	h.live = true
	c.gen++
	c.endFn = done
	c.playLocked(h)
	return true
}

// PlayCorrectSound plays the configured correct-answer asset from position
// zero, decoding it once and reusing the buffer afterwards. With no asset, or
// an unreadable one, it falls back to the synthesized tone.
func (c *Controller) PlayCorrectSound(clip *Asset) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if clip == nil {
		c.out.Play(Tone(c.sr, fallbackToneHz, fallbackToneDuration))
		return
	}

	if c.correctRef != clip {
		src, format, err := decode(clip)
		if err != nil {
			c.logger.Warn().Err(err).Str("key", clip.Key).Msg("correct sound decode failed")
			metrics.PlaybackFailures.Inc()
			c.out.Play(Tone(c.sr, fallbackToneHz, fallbackToneDuration))
			return
		}
		buf := beep.NewBuffer(format)
		buf.Append(src)
		_ = src.Close()
		c.correctRef = clip
		c.correctBuf = buf
		c.correctFormat = format
	}

	var st beep.Streamer = c.correctBuf.Streamer(0, c.correctBuf.Len())
	if c.correctFormat.SampleRate != c.sr {
		st = beep.Resample(4, c.correctFormat.SampleRate, c.sr, st)
	}
	c.out.Play(st)
}

// StopAll pauses and detaches the intro handle. The correct-sound buffer is
// kept; its playbacks are short one-shots that drain on their own.
func (c *Controller) StopAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseIntroLocked()
}

// Close releases every handle and shuts the output down.
func (c *Controller) Close() {
	c.mu.Lock()
	c.releaseIntroLocked()
	c.correctRef = nil
	c.correctBuf = nil
	c.mu.Unlock()

	c.out.Clear()
	c.out.Close()
}

// startLocked decodes clip and queues a new handle into the mixer, reporting
// whether playback started. The end callback is armed before Play so even a
// very short clip cannot outrun it.
func (c *Controller) startLocked(clip *Asset, loop bool, done func()) bool {
	if clip == nil {
		return false
	}
	src, format, err := decode(clip)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", clip.Key).Msg("intro decode failed")
		metrics.PlaybackFailures.Inc()
		return false
	}
	ls := &loopStreamer{src: src, loop: loop}
	ctrl := &beep.Ctrl{Streamer: beep.Streamer(ls)}
	if format.SampleRate != c.sr {
		ctrl.Streamer = beep.Resample(4, format.SampleRate, c.sr, ls)
	}
	c.intro = &introHandle{src: src, loop: ls, ctrl: ctrl, live: true}
	c.gen++
	c.endFn = done
	c.playLocked(c.intro)
	return true
}

// playLocked queues the handle's ctrl followed by a generation-guarded end
// callback. The callback runs on the mixer goroutine under the mixer lock, so
// the transition is dispatched asynchronously.
func (c *Controller) playLocked(h *introHandle) {
	gen := c.gen
	c.out.Play(beep.Seq(h.ctrl, beep.Callback(func() {
		go c.playbackEnded(gen)
	})))
}

func (c *Controller) playbackEnded(gen int) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	if c.intro != nil {
		c.intro.live = false
	}
	fn := c.endFn
	c.endFn = nil
	c.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// releaseIntroLocked detaches the handle from the mixer and closes its
// decoded stream. Pending end callbacks are invalidated by the generation
// bump.
func (c *Controller) releaseIntroLocked() {
	c.gen++
	c.endFn = nil
	if c.intro == nil {
		return
	}
	if c.intro.live {
		c.out.Lock()
		// A nil streamer drains the ctrl, letting the mixer drop the
		// queued sequence.
		c.intro.ctrl.Streamer = nil
		c.out.Unlock()
	}
	_ = c.intro.src.Close()
	c.intro = nil
}
