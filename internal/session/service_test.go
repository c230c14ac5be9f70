package session

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizboard/internal/board"
	"quizboard/internal/store"
)

func openTestStores(t *testing.T) (*store.StructuredStore, *store.BlobStore) {
	t.Helper()
	dir := t.TempDir()

	state, err := store.OpenStructured(filepath.Join(dir, "state.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { state.Close() })

	blobs, err := store.OpenBlob(filepath.Join(dir, "assets.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { blobs.Close() })

	return state, blobs
}

func newTestService(t *testing.T) (*Service, *store.StructuredStore, *store.BlobStore) {
	t.Helper()
	state, blobs := openTestStores(t)
	b := LoadState(context.Background(), state, zerolog.Nop())
	m := NewMachine(b, &fakeController{}, Options{AllowNoWinnerConfirm: true}, zerolog.Nop())
	return NewService(m, state, blobs, zerolog.Nop()), state, blobs
}

func TestLoadStateSeedsDefaults(t *testing.T) {
	state, _ := openTestStores(t)

	b := LoadState(context.Background(), state, zerolog.Nop())

	assert.Equal(t, board.DefaultGenres(), b.Genres)
	assert.Len(t, b.Problems, board.NumProblems)
	for _, points := range b.Scores {
		assert.Zero(t, points)
	}
}

func TestLoadStateMalformedSliceFallsBack(t *testing.T) {
	state, _ := openTestStores(t)
	ctx := context.Background()

	require.NoError(t, state.Put(ctx, store.KeyGenres, []byte(`not json`)))
	require.NoError(t, state.Put(ctx, store.KeyScores, []byte(`{"red":500}`)))

	b := LoadState(ctx, state, zerolog.Nop())

	assert.Equal(t, board.DefaultGenres(), b.Genres, "corrupted slice falls back to defaults")
	assert.Equal(t, 500, b.Scores[board.TeamRed], "healthy slices still load")
}

func TestLoadStateNullProblemsFallBack(t *testing.T) {
	state, _ := openTestStores(t)
	ctx := context.Background()

	// Valid JSON with the right length, but every entry is null.
	nulls := bytes.Repeat([]byte("null,"), board.NumProblems)
	payload := "[" + string(nulls[:len(nulls)-1]) + "]"
	require.NoError(t, state.Put(ctx, store.KeyProblems, []byte(payload)))

	b := LoadState(ctx, state, zerolog.Nop())

	require.Len(t, b.Problems, board.NumProblems)
	for i, p := range b.Problems {
		require.NotNil(t, p)
		assert.Equal(t, i, p.ID)
		assert.Len(t, p.Choices, board.NumChoices)
	}
}

func TestLoadStateProblemsMissingChoicesFallBack(t *testing.T) {
	state, _ := openTestStores(t)
	ctx := context.Background()

	problems := board.NewDefaultState().Problems
	problems[7].Choices = problems[7].Choices[:2]
	data, err := json.Marshal(problems)
	require.NoError(t, err)
	require.NoError(t, state.Put(ctx, store.KeyProblems, data))

	b := LoadState(ctx, state, zerolog.Nop())

	assert.Len(t, b.Problems[7].Choices, board.NumChoices, "truncated choice set falls back to defaults")
}

func TestLoadStateRestoresScoreInvariant(t *testing.T) {
	state, _ := openTestStores(t)
	ctx := context.Background()

	m := NewMachine(board.NewDefaultState(), &fakeController{}, Options{}, zerolog.Nop())
	svc := NewService(m, state, nil, zerolog.Nop())
	require.NoError(t, svc.EditQuestion(ctx, 12, "edited"))

	b := LoadState(ctx, state, zerolog.Nop())
	assert.Equal(t, "edited", b.Problems[12].Question)
	assert.Equal(t, 12, b.Problems[12].ID)
	assert.Equal(t, board.ProblemScore(12), b.Problems[12].Score)
}

func TestConfirmScorePersists(t *testing.T) {
	svc, state, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.StartProblem(0))
	require.NoError(t, svc.OpenReveal())
	require.NoError(t, svc.ToggleTeam(board.TeamBlue))
	require.NoError(t, svc.ConfirmScore(ctx))

	b := LoadState(ctx, state, zerolog.Nop())
	assert.Equal(t, 100, b.Scores[board.TeamBlue])
	assert.True(t, b.Problems[0].Used)
	assert.Equal(t, board.TeamBlue.Color(), b.Problems[0].GroupColor)
}

func TestUploadIntroRoundTrip(t *testing.T) {
	svc, _, blobs := newTestService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.UploadIntro(ctx, 3, "audio/wav", []byte{1}), ErrNotIntroProblem)

	require.NoError(t, svc.UploadIntro(ctx, 14, "audio/mpeg", []byte{1, 2}))

	mime, data, err := blobs.Get(ctx, store.IntroKey(14))
	require.NoError(t, err)
	assert.Equal(t, "audio/mpeg", mime)
	assert.Equal(t, []byte{1, 2}, data)

	snap := svc.Snapshot()
	assert.True(t, snap.Problems[14].HasAudio)
}

func TestRehydrateMergesStoredClips(t *testing.T) {
	svc, _, blobs := newTestService(t)
	ctx := context.Background()

	require.NoError(t, blobs.Put(ctx, store.IntroKey(4), "audio/wav", []byte{7}))
	require.NoError(t, blobs.Put(ctx, store.KeyCorrectSound, "audio/wav", []byte{8}))

	svc.Rehydrate(ctx)

	snap := svc.Snapshot()
	assert.True(t, snap.Problems[4].HasAudio)
	assert.False(t, snap.Problems[9].HasAudio)
	assert.True(t, snap.HasCorrectSound)
}

func TestResetScoresRequiresConfirmation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	err := svc.ResetScoresAndUsage(ctx, false)
	require.ErrorIs(t, err, ErrConfirmationRequired)
	assert.Contains(t, err.Error(), WarnResetScores)

	require.NoError(t, svc.StartProblem(0))
	require.NoError(t, svc.OpenReveal())
	require.NoError(t, svc.ToggleTeam(board.TeamRed))
	require.NoError(t, svc.ConfirmScore(ctx))

	require.NoError(t, svc.ResetScoresAndUsage(ctx, true))
	snap := svc.Snapshot()
	assert.False(t, snap.Problems[0].Used)
	for _, team := range snap.Teams {
		assert.Zero(t, team.Score)
	}
}

func TestResetAllWipesStores(t *testing.T) {
	svc, state, blobs := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.EditGenre(ctx, 0, "History"))
	require.NoError(t, svc.UploadIntro(ctx, 4, "audio/wav", []byte{1}))

	err := svc.ResetAll(ctx, false)
	require.ErrorIs(t, err, ErrConfirmationRequired)
	assert.Contains(t, err.Error(), WarnResetAll)

	require.NoError(t, svc.ResetAll(ctx, true))

	value, err := state.Get(ctx, store.KeyGenres)
	require.NoError(t, err)
	assert.Nil(t, value)

	keys, err := blobs.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	snap := svc.Snapshot()
	assert.Equal(t, board.DefaultGenres(), snap.Genres)
	assert.False(t, snap.Problems[4].HasAudio)
}

func TestBroadcastFiresOnMutation(t *testing.T) {
	svc, _, _ := newTestService(t)

	var got []Snapshot
	svc.SetBroadcast(func(snap Snapshot) { got = append(got, snap) })

	require.NoError(t, svc.StartProblem(0))
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].Session.ActiveProblem)

	assert.Error(t, svc.StartProblem(1))
	assert.Len(t, got, 1, "rejected intents do not broadcast")
}
