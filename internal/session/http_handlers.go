package session

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"quizboard/internal/logging"
	httperrors "quizboard/pkg/http/errors"
)

// maxUploadBytes caps a single audio upload. Intro clips are short; anything
// beyond this is a mistake.
const maxUploadBytes = 16 << 20

// HandleSnapshot serves the current render model over plain HTTP, for clients
// that want the board state without holding a socket open.
func (h *Handler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httperrors.RespondError(w, http.StatusMethodNotAllowed, httperrors.ErrCodeInvalidRequest, "GET only")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.service.Snapshot()); err != nil {
		logger := logging.FromContext(r.Context())
		logger.Warn().Err(err).Msg("snapshot encode failed")
	}
}

// HandleUploadIntro accepts an audio clip for one of the intro tiles.
// POST /v1/problems/{id}/audio with the clip as the request body.
func (h *Handler) HandleUploadIntro(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid problem id")
		return
	}

	mime, data, ok := h.readAudioBody(w, r)
	if !ok {
		return
	}

	if err := h.service.UploadIntro(r.Context(), id, mime, data); err != nil {
		h.respondUploadError(w, err)
		return
	}

	logger := logging.FromContext(r.Context())
	logger.Info().Int("problem", id).Str("mime", mime).Int("bytes", len(data)).Msg("intro clip uploaded")
	w.WriteHeader(http.StatusNoContent)
}

// HandleUploadCorrectSound accepts the correct-answer cue.
// POST /v1/correct-sound with the clip as the request body.
func (h *Handler) HandleUploadCorrectSound(w http.ResponseWriter, r *http.Request) {
	mime, data, ok := h.readAudioBody(w, r)
	if !ok {
		return
	}

	if err := h.service.UploadCorrectSound(r.Context(), mime, data); err != nil {
		h.respondUploadError(w, err)
		return
	}

	logger := logging.FromContext(r.Context())
	logger.Info().Str("mime", mime).Int("bytes", len(data)).Msg("correct sound uploaded")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) readAudioBody(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	if r.Method != http.MethodPost {
		httperrors.RespondError(w, http.StatusMethodNotAllowed, httperrors.ErrCodeInvalidRequest, "POST only")
		return "", nil, false
	}

	mime := r.Header.Get("Content-Type")
	if !strings.HasPrefix(mime, "audio/") {
		httperrors.RespondUnsupportedMediaType(w, "Expected an audio/* content type")
		return "", nil, false
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes+1))
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeUploadFailed, "Reading upload failed")
		return "", nil, false
	}
	if len(data) == 0 {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Empty upload")
		return "", nil, false
	}
	if len(data) > maxUploadBytes {
		httperrors.RespondError(w, http.StatusRequestEntityTooLarge, httperrors.ErrCodeUploadFailed, "Upload too large")
		return "", nil, false
	}

	return mime, data, true
}

func (h *Handler) respondUploadError(w http.ResponseWriter, err error) {
	switch codeFor(err) {
	case httperrors.ErrCodeNotIntroProblem:
		httperrors.RespondBadRequest(w, httperrors.ErrCodeNotIntroProblem, err.Error())
	case httperrors.ErrCodeInvalidRequest:
		httperrors.RespondNotFound(w, httperrors.ErrCodeNotFound, err.Error())
	default:
		h.logger.Error().Err(err).Msg("upload failed")
		httperrors.RespondError(w, http.StatusInternalServerError, httperrors.ErrCodeUploadFailed, "Storing upload failed")
	}
}
