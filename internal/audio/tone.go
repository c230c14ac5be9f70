package audio

import (
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/generators"
)

const (
	// Defaults for the correct-answer cue when no asset is uploaded.
	fallbackToneHz       = 880
	fallbackToneDuration = 300 * time.Millisecond

	toneAttack = 5 * time.Millisecond
	toneDecay  = 9.0 // exponential decay rate, ~e^-2.7 by the end of the cue
)

// Tone synthesizes a short audible cue: a sine at the given pitch shaped by a
// fast attack and an exponential decay. It guarantees feedback even when no
// correct-sound asset was ever uploaded.
func Tone(sr beep.SampleRate, freq int, d time.Duration) beep.Streamer {
	sine, err := generators.SineTone(sr, float64(freq))
	if err != nil {
		return beep.Silence(sr.N(d))
	}
	return &envelope{
		s:      beep.Take(sr.N(d), sine),
		sr:     sr,
		attack: sr.N(toneAttack),
		decay:  toneDecay,
	}
}
