package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"quizboard/internal/audio"
	"quizboard/internal/board"
	"quizboard/internal/metrics"
	"quizboard/internal/store"
)

// StructuredStore is the synchronous-style key-value half of the durable
// store. A nil store means persistence is unavailable; the session keeps
// running on in-memory state.
type StructuredStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Clear(ctx context.Context) error
}

// BlobStore is the binary half, holding uploaded audio payloads.
type BlobStore interface {
	Get(ctx context.Context, key string) (mime string, data []byte, err error)
	Put(ctx context.Context, key, mime string, data []byte) error
	Clear(ctx context.Context) error
}

// Literal warning texts for the two destructive resets. The transport sends
// them verbatim so the client can show them in its confirmation prompt.
const (
	WarnResetScores = "This clears every team's points and every tile's used mark. Questions, genres and uploaded audio are kept. Continue?"
	WarnResetAll    = "This erases EVERYTHING: all questions, genres, scores and every uploaded audio clip. The board returns to factory defaults. Continue?"
)

// Service glues the machine to the durable stores: it applies intents,
// persists the affected slices after each mutation (full-value overwrites,
// last writer wins) and fans snapshots out to the presentation clients.
type Service struct {
	machine *Machine
	state   StructuredStore
	blobs   BlobStore
	logger  zerolog.Logger

	broadcast func(Snapshot)
}

// NewService wires the machine's change notifications into the snapshot
// fanout.
func NewService(machine *Machine, state StructuredStore, blobs BlobStore, logger zerolog.Logger) *Service {
	s := &Service{machine: machine, state: state, blobs: blobs, logger: logger}
	machine.SetOnChange(s.fanout)
	return s
}

// SetBroadcast registers the snapshot sink (the ws hub).
func (s *Service) SetBroadcast(fn func(Snapshot)) {
	s.broadcast = fn
}

func (s *Service) fanout(snap Snapshot) {
	if s.broadcast != nil {
		s.broadcast(snap)
	}
}

// LoadState reads the structured slices and assembles the in-memory board,
// seeding factory defaults for any slice that is absent, unreadable or
// malformed. A dead store is a warning, never a startup failure.
func LoadState(ctx context.Context, state StructuredStore, logger zerolog.Logger) *board.State {
	b := board.NewDefaultState()
	if state == nil {
		logger.Warn().Msg("structured store unavailable; starting from defaults")
		return b
	}

	if data := loadSlice(ctx, state, store.KeyGenres, logger); data != nil {
		var genres []string
		if err := json.Unmarshal(data, &genres); err != nil || len(genres) != board.NumGenres {
			logger.Warn().Err(err).Msg("malformed genres; using defaults")
			metrics.StorageFailures.WithLabelValues(store.KeyGenres).Inc()
		} else {
			b.Genres = genres
		}
	}

	if data := loadSlice(ctx, state, store.KeyScores, logger); data != nil {
		var scores map[board.TeamID]int
		if err := json.Unmarshal(data, &scores); err != nil {
			logger.Warn().Err(err).Msg("malformed scores; using defaults")
			metrics.StorageFailures.WithLabelValues(store.KeyScores).Inc()
		} else {
			for team := range b.Scores {
				if points, ok := scores[team]; ok {
					b.Scores[team] = points
				}
			}
		}
	}

	if data := loadSlice(ctx, state, store.KeyProblems, logger); data != nil {
		var problems []*board.Problem
		if err := json.Unmarshal(data, &problems); err != nil || !validProblems(problems) {
			logger.Warn().Err(err).Msg("malformed problems; using defaults")
			metrics.StorageFailures.WithLabelValues(store.KeyProblems).Inc()
		} else {
			for i, p := range problems {
				// Restore the invariants the store cannot express.
				p.ID = i
				p.Score = board.ProblemScore(i)
			}
			b.Problems = problems
		}
	}

	return b
}

// validProblems rejects persisted problem slices the board cannot host:
// wrong length, null entries or a missing choice set. JSON like
// `[null,null,...]` parses cleanly but must still fall back to defaults.
func validProblems(problems []*board.Problem) bool {
	if len(problems) != board.NumProblems {
		return false
	}
	for _, p := range problems {
		if p == nil || len(p.Choices) != board.NumChoices {
			return false
		}
	}
	return true
}

func loadSlice(ctx context.Context, state StructuredStore, key string, logger zerolog.Logger) []byte {
	data, err := state.Get(ctx, key)
	if err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("structured read failed; using defaults")
		metrics.StorageFailures.WithLabelValues(key).Inc()
		return nil
	}
	return data
}

// Rehydrate fetches every potential audio key from the blob store and merges
// the hits into memory in one batch. Read failures degrade to "asset absent";
// the pass never writes back to storage.
func (s *Service) Rehydrate(ctx context.Context) {
	if s.blobs == nil {
		return
	}

	var correct *audio.Asset
	if mime, data, err := s.blobs.Get(ctx, store.KeyCorrectSound); err != nil {
		s.logger.Warn().Err(err).Str("key", store.KeyCorrectSound).Msg("asset read failed; treating as absent")
		metrics.StorageFailures.WithLabelValues("assets").Inc()
	} else if data != nil {
		correct = &audio.Asset{Key: store.KeyCorrectSound, MIME: mime, Data: data}
	}

	intros := make(map[int]*audio.Asset)
	for _, id := range board.IntroProblemIDs() {
		key := store.IntroKey(id)
		mime, data, err := s.blobs.Get(ctx, key)
		if err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("asset read failed; treating as absent")
			metrics.StorageFailures.WithLabelValues("assets").Inc()
			continue
		}
		if data == nil {
			continue
		}
		intros[id] = &audio.Asset{Key: key, MIME: mime, Data: data}
	}

	s.machine.ApplyRehydrated(correct, intros)
	s.logger.Info().Int("intro_clips", len(intros)).Bool("correct_sound", correct != nil).
		Msg("audio assets rehydrated")
}

// Snapshot returns the current render model.
func (s *Service) Snapshot() Snapshot {
	return s.machine.Snapshot()
}

// Session intents. The pure transitions need no persistence; scoring writes
// the slices it touched.

func (s *Service) StartProblem(id int) error { return s.machine.StartProblem(id) }

func (s *Service) RevealChoices() error { return s.machine.RevealChoices() }

func (s *Service) ToggleReplay() error { return s.machine.ToggleReplay() }

func (s *Service) OpenReveal() error { return s.machine.OpenReveal() }

func (s *Service) ToggleTeam(t board.TeamID) error { return s.machine.ToggleTeam(t) }

func (s *Service) CancelReveal() error { return s.machine.CancelReveal() }

func (s *Service) CloseProblem() error { return s.machine.CloseProblem() }

func (s *Service) ConfirmScore(ctx context.Context) error {
	if err := s.machine.ConfirmScore(); err != nil {
		return err
	}
	s.persistScores(ctx)
	s.persistProblems(ctx)
	return nil
}

// Editing operations apply immediately and persist the affected slice.

func (s *Service) EditGenre(ctx context.Context, index int, label string) error {
	if err := s.machine.EditGenre(index, label); err != nil {
		return err
	}
	s.persistGenres(ctx)
	return nil
}

func (s *Service) EditQuestion(ctx context.Context, id int, question string) error {
	if err := s.machine.EditQuestion(id, question); err != nil {
		return err
	}
	s.persistProblems(ctx)
	return nil
}

func (s *Service) EditChoice(ctx context.Context, id, choice int, text string) error {
	if err := s.machine.EditChoice(id, choice, text); err != nil {
		return err
	}
	s.persistProblems(ctx)
	return nil
}

func (s *Service) EditAnswer(ctx context.Context, id, answerIndex int) error {
	if err := s.machine.EditAnswer(id, answerIndex); err != nil {
		return err
	}
	s.persistProblems(ctx)
	return nil
}

// UploadIntro stores an intro clip for one of the five intro tiles and swaps
// the live handle. The blob write comes first so a crash cannot leave a live
// clip that the next start would silently lose.
func (s *Service) UploadIntro(ctx context.Context, id int, mime string, data []byte) error {
	if !board.IsIntroID(id) {
		return ErrNotIntroProblem
	}
	key := store.IntroKey(id)
	if s.blobs != nil {
		if err := s.blobs.Put(ctx, key, mime, data); err != nil {
			metrics.StorageFailures.WithLabelValues("assets").Inc()
			return fmt.Errorf("store intro clip: %w", err)
		}
	}
	return s.machine.SetProblemAudio(id, &audio.Asset{Key: key, MIME: mime, Data: data})
}

// UploadCorrectSound stores the correct-answer cue and swaps the live handle.
func (s *Service) UploadCorrectSound(ctx context.Context, mime string, data []byte) error {
	if s.blobs != nil {
		if err := s.blobs.Put(ctx, store.KeyCorrectSound, mime, data); err != nil {
			metrics.StorageFailures.WithLabelValues("assets").Inc()
			return fmt.Errorf("store correct sound: %w", err)
		}
	}
	return s.machine.SetCorrectSound(&audio.Asset{Key: store.KeyCorrectSound, MIME: mime, Data: data})
}

// ResetScoresAndUsage zeroes scores and reopens tiles. confirmed must be
// true; the rejection carries the literal warning text for the prompt.
func (s *Service) ResetScoresAndUsage(ctx context.Context, confirmed bool) error {
	if !confirmed {
		return fmt.Errorf("%w: %s", ErrConfirmationRequired, WarnResetScores)
	}
	if err := s.machine.ResetScoresAndUsage(); err != nil {
		return err
	}
	s.persistScores(ctx)
	s.persistProblems(ctx)
	return nil
}

// ResetAll wipes both persistence layers and returns memory to factory
// defaults. Requires the stronger confirmation.
func (s *Service) ResetAll(ctx context.Context, confirmed bool) error {
	if !confirmed {
		return fmt.Errorf("%w: %s", ErrConfirmationRequired, WarnResetAll)
	}
	if s.state != nil {
		if err := s.state.Clear(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("clearing structured store failed")
			metrics.StorageFailures.WithLabelValues("kv").Inc()
		}
	}
	if s.blobs != nil {
		if err := s.blobs.Clear(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("clearing blob store failed")
			metrics.StorageFailures.WithLabelValues("assets").Inc()
		}
	}
	return s.machine.ResetAll()
}

// Persistence helpers: write-after-mutate, best-effort. A failed write is
// logged and counted but never propagates; the in-memory session stays
// authoritative.

func (s *Service) persistGenres(ctx context.Context) {
	s.persistSlice(ctx, store.KeyGenres, s.machine.Genres())
}

func (s *Service) persistScores(ctx context.Context) {
	s.persistSlice(ctx, store.KeyScores, s.machine.Scores())
}

func (s *Service) persistProblems(ctx context.Context) {
	s.persistSlice(ctx, store.KeyProblems, s.machine.Problems())
}

func (s *Service) persistSlice(ctx context.Context, key string, value any) {
	if s.state == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("marshal for persistence failed")
		metrics.StorageFailures.WithLabelValues(key).Inc()
		return
	}
	if err := s.state.Put(ctx, key, data); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("persist failed")
		metrics.StorageFailures.WithLabelValues(key).Inc()
	}
}
