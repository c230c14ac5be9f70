package audio

import (
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

// Output is the boundary to the platform mixer. The production implementation
// drives gopxl/beep's speaker; tests substitute a fake that drains streamers
// synchronously, and headless hosts fall back to a discard output.
type Output interface {
	Play(s beep.Streamer)
	Lock()
	Unlock()
	Clear()
	Close()
}

// NewSpeakerOutput initializes the global speaker mixer at the given sample
// rate. It can only fail on hosts without a usable audio device.
func NewSpeakerOutput(sr beep.SampleRate) (Output, error) {
	if err := speaker.Init(sr, sr.N(time.Second/10)); err != nil {
		return nil, err
	}
	return speakerOutput{}, nil
}

type speakerOutput struct{}

func (speakerOutput) Play(s beep.Streamer) { speaker.Play(s) }
func (speakerOutput) Lock()                { speaker.Lock() }
func (speakerOutput) Unlock()              { speaker.Unlock() }
func (speakerOutput) Clear()               { speaker.Clear() }
func (speakerOutput) Close()               { speaker.Close() }

// NopOutput discards all playback. Used when audio is disabled by config or
// the speaker failed to initialize; the session keeps working silently.
func NopOutput() Output { return nopOutput{} }

type nopOutput struct{}

func (nopOutput) Play(beep.Streamer) {}
func (nopOutput) Lock()              {}
func (nopOutput) Unlock()            {}
func (nopOutput) Clear()             {}
func (nopOutput) Close()             {}
