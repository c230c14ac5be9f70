package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"quizboard/internal/board"
	"quizboard/internal/metrics"
	httperrors "quizboard/pkg/http/errors"
	ws "quizboard/pkg/http/ws"
)

// Handler manages WebSocket connections and routes board intents.
type Handler struct {
	service *Service
	hub     *ws.Hub
	logger  zerolog.Logger
}

// NewHandler creates the board WebSocket handler and wires the service's
// snapshot fanout into the hub.
func NewHandler(service *Service, hub *ws.Hub, logger zerolog.Logger) *Handler {
	h := &Handler{
		service: service,
		hub:     hub,
		logger:  logger,
	}
	service.SetBroadcast(h.broadcastSnapshot)
	return h
}

func (h *Handler) broadcastSnapshot(snap Snapshot) {
	msg := ws.Message{Type: ws.TypeSnapshot}
	msg.Payload, _ = json.Marshal(snap)
	h.hub.BroadcastAll(msg)
}

// HandleConnection processes a new WebSocket connection. Every client gets
// the current snapshot immediately, then lives on the broadcast stream.
func (h *Handler) HandleConnection(conn *websocket.Conn) {
	connID := uuid.New()
	wsConn := ws.NewConnection(conn, h.logger)
	h.hub.RegisterConnection(connID, wsConn)

	// Start write pump
	go wsConn.WritePump()

	h.sendSnapshot(connID)

	// Handle incoming messages
	wsConn.ReadPump(func(msg ws.Message) error {
		return h.handleMessage(context.Background(), connID, msg)
	})

	// Cleanup on disconnect
	h.hub.UnregisterConnection(connID)
}

// handleMessage routes incoming WebSocket messages. Rejected intents answer
// the sender only; applied intents reach everyone through the broadcast.
func (h *Handler) handleMessage(ctx context.Context, connID uuid.UUID, msg ws.Message) error {
	var err error
	switch msg.Type {
	case ws.TypeStartProblem:
		err = h.handleStartProblem(connID, msg.Payload)
	case ws.TypeRevealChoices:
		err = h.intent(connID, msg.Type, h.service.RevealChoices())
	case ws.TypeToggleReplay:
		err = h.intent(connID, msg.Type, h.service.ToggleReplay())
	case ws.TypeOpenReveal:
		err = h.intent(connID, msg.Type, h.service.OpenReveal())
	case ws.TypeToggleTeam:
		err = h.handleToggleTeam(connID, msg.Payload)
	case ws.TypeCancelReveal:
		err = h.intent(connID, msg.Type, h.service.CancelReveal())
	case ws.TypeConfirmScore:
		err = h.intent(connID, msg.Type, h.service.ConfirmScore(ctx))
	case ws.TypeCloseProblem:
		err = h.intent(connID, msg.Type, h.service.CloseProblem())
	case ws.TypeEditGenre:
		err = h.handleEditGenre(ctx, connID, msg.Payload)
	case ws.TypeEditQuestion:
		err = h.handleEditQuestion(ctx, connID, msg.Payload)
	case ws.TypeEditChoice:
		err = h.handleEditChoice(ctx, connID, msg.Payload)
	case ws.TypeEditAnswer:
		err = h.handleEditAnswer(ctx, connID, msg.Payload)
	case ws.TypeResetScores:
		err = h.handleReset(connID, msg.Type, msg.Payload, func(confirm bool) error {
			return h.service.ResetScoresAndUsage(ctx, confirm)
		})
	case ws.TypeResetAll:
		err = h.handleReset(connID, msg.Type, msg.Payload, func(confirm bool) error {
			return h.service.ResetAll(ctx, confirm)
		})
	case ws.TypeRequestSnapshot:
		err = h.sendSnapshot(connID)
	case ws.TypePing:
		err = h.hub.SendTo(connID, ws.Message{Type: ws.TypePong})
	default:
		return h.sendError(connID, httperrors.ErrCodeUnknownMessageType, fmt.Sprintf("Unknown message type: %s", msg.Type))
	}
	return err
}

// intent records the outcome of a no-payload intent and reports any rejection
// back to the sender.
func (h *Handler) intent(connID uuid.UUID, name string, err error) error {
	if err != nil {
		metrics.IntentErrors.WithLabelValues(name).Inc()
		return h.sendError(connID, codeFor(err), err.Error())
	}
	metrics.IntentsApplied.WithLabelValues(name).Inc()
	return nil
}

func (h *Handler) handleStartProblem(connID uuid.UUID, payload json.RawMessage) error {
	var req ws.ProblemRefPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return h.sendError(connID, httperrors.ErrCodeInvalidPayload, "Invalid start_problem payload")
	}
	return h.intent(connID, ws.TypeStartProblem, h.service.StartProblem(req.ProblemID))
}

func (h *Handler) handleToggleTeam(connID uuid.UUID, payload json.RawMessage) error {
	var req ws.TeamPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return h.sendError(connID, httperrors.ErrCodeInvalidPayload, "Invalid toggle_team payload")
	}
	return h.intent(connID, ws.TypeToggleTeam, h.service.ToggleTeam(board.TeamID(req.TeamID)))
}

func (h *Handler) handleEditGenre(ctx context.Context, connID uuid.UUID, payload json.RawMessage) error {
	var req ws.EditGenrePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return h.sendError(connID, httperrors.ErrCodeInvalidPayload, "Invalid edit_genre payload")
	}
	return h.intent(connID, ws.TypeEditGenre, h.service.EditGenre(ctx, req.Index, req.Label))
}

func (h *Handler) handleEditQuestion(ctx context.Context, connID uuid.UUID, payload json.RawMessage) error {
	var req ws.EditQuestionPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return h.sendError(connID, httperrors.ErrCodeInvalidPayload, "Invalid edit_question payload")
	}
	return h.intent(connID, ws.TypeEditQuestion, h.service.EditQuestion(ctx, req.ProblemID, req.Question))
}

func (h *Handler) handleEditChoice(ctx context.Context, connID uuid.UUID, payload json.RawMessage) error {
	var req ws.EditChoicePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return h.sendError(connID, httperrors.ErrCodeInvalidPayload, "Invalid edit_choice payload")
	}
	return h.intent(connID, ws.TypeEditChoice, h.service.EditChoice(ctx, req.ProblemID, req.Choice, req.Text))
}

func (h *Handler) handleEditAnswer(ctx context.Context, connID uuid.UUID, payload json.RawMessage) error {
	var req ws.EditAnswerPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return h.sendError(connID, httperrors.ErrCodeInvalidPayload, "Invalid edit_answer payload")
	}
	return h.intent(connID, ws.TypeEditAnswer, h.service.EditAnswer(ctx, req.ProblemID, req.AnswerIndex))
}

func (h *Handler) handleReset(connID uuid.UUID, name string, payload json.RawMessage, apply func(bool) error) error {
	var req ws.ResetPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			return h.sendError(connID, httperrors.ErrCodeInvalidPayload, fmt.Sprintf("Invalid %s payload", name))
		}
	}
	return h.intent(connID, name, apply(req.Confirm))
}

func (h *Handler) sendSnapshot(connID uuid.UUID) error {
	msg := ws.Message{Type: ws.TypeSnapshot}
	msg.Payload, _ = json.Marshal(h.service.Snapshot())
	return h.hub.SendTo(connID, msg)
}

func (h *Handler) sendError(connID uuid.UUID, code, message string) error {
	errPayload := ws.ErrorPayload{
		Code:    code,
		Message: message,
	}
	msg := ws.Message{Type: ws.TypeError}
	msg.Payload, _ = json.Marshal(errPayload)
	return h.hub.SendTo(connID, msg)
}

// codeFor maps domain errors onto wire error codes.
func codeFor(err error) string {
	switch {
	case errors.Is(err, ErrSessionActive):
		return httperrors.ErrCodeSessionActive
	case errors.Is(err, ErrProblemUsed):
		return httperrors.ErrCodeProblemUsed
	case errors.Is(err, ErrUnknownProblem), errors.Is(err, ErrUnknownTeam), errors.Is(err, ErrInvalidIndex):
		return httperrors.ErrCodeInvalidRequest
	case errors.Is(err, ErrInvalidPhase):
		return httperrors.ErrCodeInvalidPhase
	case errors.Is(err, ErrNoAudio):
		return httperrors.ErrCodeNoAudio
	case errors.Is(err, ErrNotIntroProblem):
		return httperrors.ErrCodeNotIntroProblem
	case errors.Is(err, ErrNoTeamSelected):
		return httperrors.ErrCodeNoTeamSelected
	case errors.Is(err, ErrConfirmationRequired):
		return httperrors.ErrCodeConfirmationRequired
	default:
		return httperrors.ErrCodeInternalError
	}
}
