package audio

import (
	"bytes"
	"encoding/binary"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRate = beep.SampleRate(44100)

// fakeOutput collects queued streamers and drains them on demand, standing in
// for the speaker mixer.
type fakeOutput struct {
	mu     sync.Mutex
	queued []beep.Streamer
}

func (f *fakeOutput) Play(s beep.Streamer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queued = append(f.queued, s)
}

func (f *fakeOutput) Lock()   { f.mu.Lock() }
func (f *fakeOutput) Unlock() { f.mu.Unlock() }

func (f *fakeOutput) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queued = nil
}

func (f *fakeOutput) Close() {}

// drain pulls up to limit samples from every queued streamer, dropping the
// ones that report completion, and returns how many samples flowed.
func (f *fakeOutput) drain(limit int) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	buf := make([][2]float64, 512)
	total := 0
	for total < limit {
		if len(f.queued) == 0 {
			break
		}
		progressed := false
		var alive []beep.Streamer
		for _, s := range f.queued {
			n, ok := s.Stream(buf)
			total += n
			if n > 0 {
				progressed = true
			}
			if ok {
				alive = append(alive, s)
			}
		}
		f.queued = alive
		if !progressed && len(alive) > 0 {
			// Everything queued is paused; nothing more will flow.
			break
		}
	}
	return total
}

// makeWAV builds a minimal 16-bit mono PCM file holding a short sine burst.
func makeWAV(t *testing.T, sampleCount int) []byte {
	t.Helper()

	var pcm bytes.Buffer
	for i := 0; i < sampleCount; i++ {
		v := int16(math.Sin(2*math.Pi*440*float64(i)/float64(testRate)) * 16000)
		require.NoError(t, binary.Write(&pcm, binary.LittleEndian, v))
	}

	var out bytes.Buffer
	out.WriteString("RIFF")
	binary.Write(&out, binary.LittleEndian, uint32(36+pcm.Len()))
	out.WriteString("WAVE")
	out.WriteString("fmt ")
	binary.Write(&out, binary.LittleEndian, uint32(16))
	binary.Write(&out, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&out, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&out, binary.LittleEndian, uint32(testRate))
	binary.Write(&out, binary.LittleEndian, uint32(int(testRate)*2))
	binary.Write(&out, binary.LittleEndian, uint16(2))
	binary.Write(&out, binary.LittleEndian, uint16(16))
	out.WriteString("data")
	binary.Write(&out, binary.LittleEndian, uint32(pcm.Len()))
	out.Write(pcm.Bytes())
	return out.Bytes()
}

func wavAsset(t *testing.T, key string, samples int) *Asset {
	return &Asset{Key: key, MIME: "audio/wav", Data: makeWAV(t, samples)}
}

func newTestController() (*Controller, *fakeOutput) {
	out := &fakeOutput{}
	return NewController(out, testRate, zerolog.Nop()), out
}

func TestToneShape(t *testing.T) {
	tone := Tone(testRate, 880, 300*time.Millisecond)

	buf := make([][2]float64, 256)
	total := 0
	peak := 0.0
	var first float64
	for {
		n, ok := tone.Stream(buf)
		for i := 0; i < n; i++ {
			if total+i == 0 {
				first = math.Abs(buf[i][0])
			}
			if a := math.Abs(buf[i][0]); a > peak {
				peak = a
			}
		}
		total += n
		if !ok {
			break
		}
	}

	assert.Equal(t, testRate.N(300*time.Millisecond), total)
	assert.Greater(t, peak, 0.1, "tone should be audible")
	assert.Less(t, first, 0.01, "attack should start near silence")
}

func TestPlayIntroLoops(t *testing.T) {
	c, out := newTestController()

	c.PlayIntro(wavAsset(t, "intro_4", 100), true)

	// Far more samples than the clip holds: the loop must keep feeding.
	n := out.drain(1000)
	assert.Equal(t, 1000, n)
}

func TestStopIntroPauses(t *testing.T) {
	c, out := newTestController()

	c.PlayIntro(wavAsset(t, "intro_4", 100), true)
	c.StopIntro()

	// A paused ctrl streams silence without ever completing; drain bails
	// once nothing flows.
	out.drain(50)
	out.mu.Lock()
	remaining := len(out.queued)
	out.mu.Unlock()
	assert.Equal(t, 1, remaining, "paused handle must stay queued, not released")
}

func TestReplayFiresCompletionOnce(t *testing.T) {
	c, out := newTestController()
	clip := wavAsset(t, "intro_9", 200)

	c.PlayIntro(clip, true)
	c.StopIntro()

	var ended int32
	c.Replay(clip, func() { atomic.AddInt32(&ended, 1) })

	out.drain(10_000)
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&ended) == 1
	}, time.Second, 5*time.Millisecond)

	// Nothing left to play; further draining must not re-fire.
	out.drain(10_000)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&ended))
}

func TestReplayAfterNaturalEndRequeues(t *testing.T) {
	c, out := newTestController()
	clip := wavAsset(t, "intro_14", 150)

	var first int32
	c.Replay(clip, func() { atomic.AddInt32(&first, 1) })
	out.drain(10_000)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&first) == 1 }, time.Second, 5*time.Millisecond)

	var second int32
	c.Replay(clip, func() { atomic.AddInt32(&second, 1) })
	out.drain(10_000)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&second) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&first))
}

func TestSupersededHandleDropsCallback(t *testing.T) {
	c, out := newTestController()
	clip := wavAsset(t, "intro_19", 200)

	var stale int32
	c.PlayIntro(clip, true)
	c.StopIntro()
	c.Replay(clip, func() { atomic.AddInt32(&stale, 1) })

	// Starting a new problem replaces the handle before the replay ends.
	c.PlayIntro(wavAsset(t, "intro_24", 100), true)

	out.drain(10_000)
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, atomic.LoadInt32(&stale), "superseded replay must not report completion")
}

func TestCorrectSoundFallsBackToTone(t *testing.T) {
	c, out := newTestController()

	c.PlayCorrectSound(nil)

	n := out.drain(1 << 20)
	assert.Equal(t, testRate.N(300*time.Millisecond), n)
}

func TestCorrectSoundAssetCached(t *testing.T) {
	c, out := newTestController()
	clip := wavAsset(t, "correctSound", 300)

	c.PlayCorrectSound(clip)
	first := out.drain(1 << 20)
	assert.Equal(t, 300, first)

	// Same asset again: replays the cached buffer from position zero.
	c.PlayCorrectSound(clip)
	assert.Equal(t, 300, out.drain(1<<20))
}

func TestUndecodableIntroIsSwallowed(t *testing.T) {
	c, out := newTestController()

	c.PlayIntro(&Asset{Key: "intro_4", MIME: "audio/wav", Data: []byte("not a wav")}, true)

	assert.Zero(t, out.drain(100))
	c.StopIntro() // must not panic with no handle
	c.StopAll()
}

func TestReplayReportsFailureToStart(t *testing.T) {
	c, out := newTestController()

	started := c.Replay(&Asset{Key: "intro_4", MIME: "audio/wav", Data: []byte("not a wav")}, func() {})

	assert.False(t, started)
	assert.Zero(t, out.drain(100))

	clip := wavAsset(t, "intro_9", 200)
	assert.True(t, c.Replay(clip, func() {}))
}
