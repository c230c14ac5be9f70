package ws

import "encoding/json"

// MessageType constants for the board WebSocket protocol.
const (
	// Client -> Server
	TypeStartProblem    = "start_problem"
	TypeRevealChoices   = "reveal_choices"
	TypeToggleReplay    = "toggle_replay"
	TypeOpenReveal      = "open_reveal"
	TypeToggleTeam      = "toggle_team"
	TypeCancelReveal    = "cancel_reveal"
	TypeConfirmScore    = "confirm_score"
	TypeCloseProblem    = "close_problem"
	TypeEditGenre       = "edit_genre"
	TypeEditQuestion    = "edit_question"
	TypeEditChoice      = "edit_choice"
	TypeEditAnswer      = "edit_answer"
	TypeResetScores     = "reset_scores"
	TypeResetAll        = "reset_all"
	TypeRequestSnapshot = "request_snapshot"

	// Server -> Client
	TypeSnapshot = "snapshot"
	TypeError    = "error"
	TypePing     = "ping"
	TypePong     = "pong"
)

// Message wraps all WebSocket payloads with type and optional request ID.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	RequestID string          `json:"request_id,omitempty"`
}

// Client Messages (incoming)

type ProblemRefPayload struct {
	ProblemID int `json:"problem_id"`
}

type TeamPayload struct {
	TeamID string `json:"team_id"`
}

type EditGenrePayload struct {
	Index int    `json:"index"`
	Label string `json:"label"`
}

type EditQuestionPayload struct {
	ProblemID int    `json:"problem_id"`
	Question  string `json:"question"`
}

type EditChoicePayload struct {
	ProblemID int    `json:"problem_id"`
	Choice    int    `json:"choice"`
	Text      string `json:"text"`
}

type EditAnswerPayload struct {
	ProblemID   int `json:"problem_id"`
	AnswerIndex int `json:"answer_index"`
}

// ResetPayload gates the destructive resets. A reset without confirm set is
// rejected with the warning text the client should prompt with.
type ResetPayload struct {
	Confirm bool `json:"confirm"`
}

// Server Messages (outgoing)

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
