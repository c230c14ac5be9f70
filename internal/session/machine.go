package session

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"quizboard/internal/audio"
	"quizboard/internal/board"
)

// Options tunes policy decisions the reference behavior left open.
type Options struct {
	// AllowNoWinnerConfirm permits confirming a reveal with no team
	// selected: the problem is marked used with the neutral color and no
	// points are awarded.
	AllowNoWinnerConfirm bool
}

// Machine owns the board state and the ephemeral problem session, and drives
// the audio controller. One mutex serializes every mutation: user intents,
// playback-ended callbacks and the rehydration merge all re-enter through it,
// which is the Go rendering of the original single-threaded event loop.
type Machine struct {
	mu     sync.Mutex
	state  *board.State
	audio  AudioController
	opts   Options
	logger zerolog.Logger

	phase     Phase
	activeID  int
	selected  map[board.TeamID]struct{}
	playback  PlaybackState
	replaySeq int // drops completion callbacks from superseded replays

	correct *audio.Asset

	onChange func(Snapshot)
}

// NewMachine wraps the given board state. The machine takes sole ownership of
// the state; all further access goes through its methods.
func NewMachine(state *board.State, ctrl AudioController, opts Options, logger zerolog.Logger) *Machine {
	return &Machine{
		state:    state,
		audio:    ctrl,
		opts:     opts,
		logger:   logger,
		phase:    PhaseIdle,
		activeID: -1,
		selected: map[board.TeamID]struct{}{},
		playback: PlaybackIdle,
	}
}

// SetOnChange registers the snapshot listener notified after every applied
// mutation. The listener runs outside the machine lock.
func (m *Machine) SetOnChange(fn func(Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

// do runs fn under the lock and, when it succeeds, notifies the listener
// with a fresh snapshot.
func (m *Machine) do(fn func() error) error {
	m.mu.Lock()
	if err := fn(); err != nil {
		m.mu.Unlock()
		return err
	}
	snap := m.snapshotLocked()
	cb := m.onChange
	m.mu.Unlock()

	if cb != nil {
		cb(snap)
	}
	return nil
}

// StartProblem opens a tile. Used tiles are rejected, as is starting while
// another problem is active; the operator closes or confirms first. Intro
// problems with a clip open in the intro phase with looping playback;
// everything else shows its choices immediately.
func (m *Machine) StartProblem(id int) error {
	return m.do(func() error {
		p, ok := m.state.Problem(id)
		if !ok {
			return ErrUnknownProblem
		}
		if m.phase != PhaseIdle {
			return ErrSessionActive
		}
		if p.Used {
			return ErrProblemUsed
		}

		m.audio.StopAll()
		m.activeID = id
		m.selected = map[board.TeamID]struct{}{}

		if p.IsIntro() && p.Audio != nil {
			m.phase = PhaseIntroPlaying
			m.playback = PlaybackPlaying
			m.audio.PlayIntro(p.Audio, true)
		} else {
			m.phase = PhaseChoicesShown
			m.playback = PlaybackIdle
		}
		return nil
	})
}

// RevealChoices ends the intro phase: the clip stops looping and pauses in
// place, and the choices become visible.
func (m *Machine) RevealChoices() error {
	return m.do(func() error {
		if m.phase != PhaseIntroPlaying {
			return ErrInvalidPhase
		}
		m.audio.StopIntro()
		m.playback = PlaybackStopped
		m.phase = PhaseChoicesShown
		return nil
	})
}

// ToggleReplay pauses a playing clip, or replays it once from the start. The
// natural end of a replay flips the status back to stopped exactly once.
func (m *Machine) ToggleReplay() error {
	return m.do(func() error {
		if m.phase != PhaseChoicesShown {
			return ErrInvalidPhase
		}
		p, ok := m.state.Problem(m.activeID)
		if !ok || p.Audio == nil {
			return ErrNoAudio
		}

		if m.playback == PlaybackPlaying {
			m.audio.StopIntro()
			m.playback = PlaybackStopped
			return nil
		}

		m.replaySeq++
		seq := m.replaySeq
		if m.audio.Replay(p.Audio, func() { m.playbackEnded(seq) }) {
			m.playback = PlaybackPlaying
		} else {
			m.playback = PlaybackStopped
		}
		return nil
	})
}

// playbackEnded is re-entered from the audio layer when a replay drains
// naturally.
func (m *Machine) playbackEnded(seq int) {
	m.mu.Lock()
	if seq != m.replaySeq || m.playback != PlaybackPlaying {
		m.mu.Unlock()
		return
	}
	m.playback = PlaybackStopped
	snap := m.snapshotLocked()
	cb := m.onChange
	m.mu.Unlock()

	if cb != nil {
		cb(snap)
	}
}

// OpenReveal stops any playing audio, sounds the correct-answer cue and opens
// the answer panel with no teams selected.
func (m *Machine) OpenReveal() error {
	return m.do(func() error {
		if m.phase != PhaseChoicesShown {
			return ErrInvalidPhase
		}
		m.audio.StopIntro()
		if m.playback == PlaybackPlaying {
			m.playback = PlaybackStopped
		}
		m.audio.PlayCorrectSound(m.correct)
		m.selected = map[board.TeamID]struct{}{}
		m.phase = PhaseRevealOpen
		return nil
	})
}

// ToggleTeam flips a team in or out of the winning set. Several teams may be
// selected at once, or none.
func (m *Machine) ToggleTeam(team board.TeamID) error {
	return m.do(func() error {
		if m.phase != PhaseRevealOpen {
			return ErrInvalidPhase
		}
		if !team.Valid() {
			return ErrUnknownTeam
		}
		if _, ok := m.selected[team]; ok {
			delete(m.selected, team)
		} else {
			m.selected[team] = struct{}{}
		}
		return nil
	})
}

// CancelReveal closes the answer panel without scoring.
func (m *Machine) CancelReveal() error {
	return m.do(func() error {
		if m.phase != PhaseRevealOpen {
			return ErrInvalidPhase
		}
		m.phase = PhaseChoicesShown
		return nil
	})
}

// ConfirmScore awards the tile's points to every selected team, marks the
// tile used and colors it: the winner's color for a single team, the neutral
// shared color otherwise. The session returns to idle.
func (m *Machine) ConfirmScore() error {
	return m.do(func() error {
		if m.phase != PhaseRevealOpen {
			return ErrInvalidPhase
		}
		if len(m.selected) == 0 && !m.opts.AllowNoWinnerConfirm {
			return ErrNoTeamSelected
		}
		p, ok := m.state.Problem(m.activeID)
		if !ok {
			return ErrUnknownProblem
		}

		for team := range m.selected {
			m.state.Scores[team] += p.Score
		}
		p.Used = true
		if len(m.selected) == 1 {
			for team := range m.selected {
				p.GroupColor = team.Color()
			}
		} else {
			p.GroupColor = board.SharedColor
		}

		m.logger.Info().Int("problem", p.ID).Int("points", p.Score).
			Int("teams", len(m.selected)).Msg("score confirmed")
		m.resetSessionLocked()
		return nil
	})
}

// CloseProblem abandons the active problem: no scoring, no used mark. It is
// permitted from any phase; closing an idle board is a no-op.
func (m *Machine) CloseProblem() error {
	return m.do(func() error {
		m.resetSessionLocked()
		return nil
	})
}

func (m *Machine) resetSessionLocked() {
	m.audio.StopAll()
	m.phase = PhaseIdle
	m.activeID = -1
	m.selected = map[board.TeamID]struct{}{}
	m.playback = PlaybackIdle
	m.replaySeq++
}

// EditGenre relabels a genre column.
func (m *Machine) EditGenre(index int, label string) error {
	return m.do(func() error {
		if index < 0 || index >= len(m.state.Genres) {
			return ErrInvalidIndex
		}
		m.state.Genres[index] = label
		return nil
	})
}

// EditQuestion rewrites a tile's question text.
func (m *Machine) EditQuestion(id int, question string) error {
	return m.do(func() error {
		p, ok := m.state.Problem(id)
		if !ok {
			return ErrUnknownProblem
		}
		p.Question = question
		return nil
	})
}

// EditChoice rewrites one of a tile's four choices.
func (m *Machine) EditChoice(id, choice int, text string) error {
	return m.do(func() error {
		p, ok := m.state.Problem(id)
		if !ok {
			return ErrUnknownProblem
		}
		if choice < 0 || choice >= len(p.Choices) {
			return ErrInvalidIndex
		}
		p.Choices[choice] = text
		return nil
	})
}

// EditAnswer moves a tile's correct answer.
func (m *Machine) EditAnswer(id, answerIndex int) error {
	return m.do(func() error {
		p, ok := m.state.Problem(id)
		if !ok {
			return ErrUnknownProblem
		}
		if answerIndex < 0 || answerIndex >= len(p.Choices) {
			return ErrInvalidIndex
		}
		p.AnswerIndex = answerIndex
		return nil
	})
}

// SetProblemAudio swaps the live intro clip of an intro tile.
func (m *Machine) SetProblemAudio(id int, clip *audio.Asset) error {
	return m.do(func() error {
		if !board.IsIntroID(id) {
			return ErrNotIntroProblem
		}
		p, ok := m.state.Problem(id)
		if !ok {
			return ErrUnknownProblem
		}
		p.Audio = clip
		return nil
	})
}

// SetCorrectSound swaps the correct-answer cue.
func (m *Machine) SetCorrectSound(clip *audio.Asset) error {
	return m.do(func() error {
		m.correct = clip
		return nil
	})
}

// ApplyRehydrated merges the assets the startup pass recovered from the blob
// store in one batch. It only fills tiles that are still without a clip, so a
// fresh upload racing the pass wins.
func (m *Machine) ApplyRehydrated(correct *audio.Asset, intros map[int]*audio.Asset) {
	_ = m.do(func() error {
		if correct != nil && m.correct == nil {
			m.correct = correct
		}
		for id, clip := range intros {
			p, ok := m.state.Problem(id)
			if !ok || !p.IsIntro() || p.Audio != nil {
				continue
			}
			p.Audio = clip
		}
		return nil
	})
}

// ResetScoresAndUsage zeroes every team and reopens every tile. Question
// text, choices, genres and audio clips are untouched.
func (m *Machine) ResetScoresAndUsage() error {
	return m.do(func() error {
		for team := range m.state.Scores {
			m.state.Scores[team] = 0
		}
		for _, p := range m.state.Problems {
			p.Used = false
			p.GroupColor = ""
		}
		m.resetSessionLocked()
		m.logger.Info().Msg("scores and usage reset")
		return nil
	})
}

// ResetAll returns the board to factory defaults and drops every live audio
// handle. Clearing the stores is the service's half of the operation.
func (m *Machine) ResetAll() error {
	return m.do(func() error {
		m.state = board.NewDefaultState()
		m.correct = nil
		m.resetSessionLocked()
		m.logger.Info().Msg("board reset to factory defaults")
		return nil
	})
}

// Snapshot returns the current render model.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Machine) snapshotLocked() Snapshot {
	snap := Snapshot{
		Genres:          append([]string(nil), m.state.Genres...),
		Teams:           make([]TeamView, 0, len(m.state.Scores)),
		Problems:        make([]ProblemView, 0, len(m.state.Problems)),
		HasCorrectSound: m.correct != nil,
		Session: SessionView{
			ActiveProblem:  m.activeID,
			Phase:          m.phase,
			Playback:       m.playback,
			ChoicesVisible: m.phase == PhaseChoicesShown || m.phase == PhaseRevealOpen,
			RevealOpen:     m.phase == PhaseRevealOpen,
			Selected:       make([]board.TeamID, 0, len(m.selected)),
		},
	}
	for _, team := range board.Teams() {
		snap.Teams = append(snap.Teams, TeamView{ID: team, Color: team.Color(), Score: m.state.Scores[team]})
		if _, ok := m.selected[team]; ok {
			snap.Session.Selected = append(snap.Session.Selected, team)
		}
	}
	for _, p := range m.state.Problems {
		snap.Problems = append(snap.Problems, ProblemView{
			ID:          p.ID,
			Question:    p.Question,
			Choices:     append([]string(nil), p.Choices...),
			AnswerIndex: p.AnswerIndex,
			GroupColor:  p.GroupColor,
			Used:        p.Used,
			Score:       p.Score,
			Intro:       p.IsIntro(),
			HasAudio:    p.Audio != nil,
		})
	}
	return snap
}

// Genres returns a copy of the genre labels for persistence.
func (m *Machine) Genres() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.state.Genres...)
}

// Scores returns a copy of the team totals for persistence.
func (m *Machine) Scores() map[board.TeamID]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	scores := make(map[board.TeamID]int, len(m.state.Scores))
	for team, points := range m.state.Scores {
		scores[team] = points
	}
	return scores
}

// Problems returns a deep copy of the tiles for persistence; audio never
// survives serialization anyway.
func (m *Machine) Problems() []board.Problem {
	m.mu.Lock()
	defer m.mu.Unlock()
	problems := make([]board.Problem, 0, len(m.state.Problems))
	for _, p := range m.state.Problems {
		cp := *p
		cp.Choices = append([]string(nil), p.Choices...)
		cp.Audio = nil
		problems = append(problems, cp)
	}
	return problems
}

// ProblemAudio reports the live clip of a tile, used by tests and the
// rehydration pass.
func (m *Machine) ProblemAudio(id int) (*audio.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.state.Problem(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownProblem, id)
	}
	return p.Audio, nil
}
