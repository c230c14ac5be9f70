package session

import (
	"errors"

	"quizboard/internal/audio"
	"quizboard/internal/board"
)

// Phase is the state of the problem session.
type Phase string

const (
	// PhaseIdle means no problem is open.
	PhaseIdle Phase = "idle"
	// PhaseIntroPlaying means an intro clip is looping before the choices
	// are shown. Only reachable for intro problems with an audio asset.
	PhaseIntroPlaying Phase = "intro_playing"
	// PhaseChoicesShown means the choices are visible.
	PhaseChoicesShown Phase = "choices_shown"
	// PhaseRevealOpen means the answer panel is open and teams are being
	// selected for scoring.
	PhaseRevealOpen Phase = "reveal_open"
)

// PlaybackState is the audio status shown to the operator.
type PlaybackState string

const (
	PlaybackIdle    PlaybackState = "idle"
	PlaybackPlaying PlaybackState = "playing"
	PlaybackStopped PlaybackState = "stopped"
)

// Domain errors surfaced to the transport layer; none of them corrupt state.
var (
	ErrSessionActive        = errors.New("a problem is already active")
	ErrProblemUsed          = errors.New("problem already used")
	ErrUnknownProblem       = errors.New("unknown problem id")
	ErrUnknownTeam          = errors.New("unknown team id")
	ErrInvalidPhase         = errors.New("operation not valid in current phase")
	ErrNoAudio              = errors.New("active problem has no audio clip")
	ErrNotIntroProblem      = errors.New("problem does not take an intro clip")
	ErrNoTeamSelected       = errors.New("no team selected")
	ErrInvalidIndex         = errors.New("index out of range")
	ErrConfirmationRequired = errors.New("confirmation required")
)

// AudioController is the slice of the audio layer the machine drives. Every
// method is best-effort: failures stay inside the controller. Replay reports
// whether playback actually started so a dead handle shows up as stopped
// instead of playing forever.
type AudioController interface {
	PlayIntro(clip *audio.Asset, loop bool)
	StopIntro()
	Replay(clip *audio.Asset, done func()) bool
	PlayCorrectSound(clip *audio.Asset)
	StopAll()
}

// Snapshot is the full render model pushed to presentation clients after
// every applied mutation.
type Snapshot struct {
	Genres          []string      `json:"genres"`
	Teams           []TeamView    `json:"teams"`
	Problems        []ProblemView `json:"problems"`
	Session         SessionView   `json:"session"`
	HasCorrectSound bool          `json:"has_correct_sound"`
}

// TeamView is one scoring team with its running total.
type TeamView struct {
	ID    board.TeamID `json:"id"`
	Color string       `json:"color"`
	Score int          `json:"score"`
}

// ProblemView is one board tile. The operator client sees everything,
// including the answer index.
type ProblemView struct {
	ID          int      `json:"id"`
	Question    string   `json:"question"`
	Choices     []string `json:"choices"`
	AnswerIndex int      `json:"answer_index"`
	GroupColor  string   `json:"group_color,omitempty"`
	Used        bool     `json:"used"`
	Score       int      `json:"score"`
	Intro       bool     `json:"intro"`
	HasAudio    bool     `json:"has_audio"`
}

// SessionView is the ephemeral per-problem state.
type SessionView struct {
	ActiveProblem  int            `json:"active_problem"` // -1 when idle
	Phase          Phase          `json:"phase"`
	Playback       PlaybackState  `json:"playback"`
	ChoicesVisible bool           `json:"choices_visible"`
	RevealOpen     bool           `json:"reveal_open"`
	Selected       []board.TeamID `json:"selected"`
}
