package store

import "fmt"

// Structured store keys. Each holds a full-value JSON overwrite.
const (
	KeyGenres   = "genres"
	KeyScores   = "scores"
	KeyProblems = "problems"
)

// KeyCorrectSound is the blob-store key of the correct-answer cue.
const KeyCorrectSound = "correctSound"

// IntroKey returns the blob-store key of a problem's intro clip.
func IntroKey(problemID int) string {
	return fmt.Sprintf("intro_%d", problemID)
}
