package board

import (
	"fmt"

	"quizboard/internal/audio"
)

// Board dimensions. 25 problems laid out as 5 genre columns by 5 point rows;
// the fifth column holds the intro problems.
const (
	NumProblems = 25
	NumGenres   = 5
	NumChoices  = 4

	introColumn = 4
)

// SharedColor marks a tile confirmed for several teams at once, or for none.
const SharedColor = "#444"

// TeamID identifies one of the five fixed scoring teams.
type TeamID string

const (
	TeamRed    TeamID = "red"
	TeamBlue   TeamID = "blue"
	TeamGreen  TeamID = "green"
	TeamYellow TeamID = "yellow"
	TeamPurple TeamID = "purple"
)

var teamColors = map[TeamID]string{
	TeamRed:    "#e74c3c",
	TeamBlue:   "#3498db",
	TeamGreen:  "#2ecc71",
	TeamYellow: "#f1c40f",
	TeamPurple: "#9b59b6",
}

// Teams returns the fixed team ids in display order.
func Teams() []TeamID {
	return []TeamID{TeamRed, TeamBlue, TeamGreen, TeamYellow, TeamPurple}
}

// Valid reports whether t is one of the five registered teams.
func (t TeamID) Valid() bool {
	_, ok := teamColors[t]
	return ok
}

// Color returns the team's registered hex color, or SharedColor for an
// unregistered id.
func (t TeamID) Color() string {
	if c, ok := teamColors[t]; ok {
		return c
	}
	return SharedColor
}

// Problem is one tile on the board. Audio is never serialized; it is
// rehydrated from the blob store after the structured state loads.
type Problem struct {
	ID          int          `json:"id"`
	Question    string       `json:"question"`
	Choices     []string     `json:"choices"`
	AnswerIndex int          `json:"answer_index"`
	GroupColor  string       `json:"group_color,omitempty"`
	Used        bool         `json:"used"`
	Score       int          `json:"score"`
	Audio       *audio.Asset `json:"-"`
}

// IsIntro reports whether the problem sits in the intro column and plays a
// clip before its choices are shown.
func (p *Problem) IsIntro() bool {
	return p.ID%NumGenres == introColumn
}

// ProblemScore returns the fixed point value for a tile: 100 points for the
// first row up to 500 for the last.
func ProblemScore(id int) int {
	return (id/NumGenres + 1) * 100
}

// IntroProblemIDs lists the ids of the five intro tiles.
func IntroProblemIDs() []int {
	ids := make([]int, 0, NumGenres)
	for id := introColumn; id < NumProblems; id += NumGenres {
		ids = append(ids, id)
	}
	return ids
}

// IsIntroID reports whether id names an intro tile.
func IsIntroID(id int) bool {
	return id >= 0 && id < NumProblems && id%NumGenres == introColumn
}

// State aggregates everything the board persists: genre labels, team scores
// and the 25 problems. It carries no synchronization; the session machine
// owns it behind its own lock.
type State struct {
	Genres   []string
	Scores   map[TeamID]int
	Problems []*Problem
}

// NewDefaultState builds the factory-default board.
func NewDefaultState() *State {
	return &State{
		Genres:   DefaultGenres(),
		Scores:   DefaultScores(),
		Problems: DefaultProblems(),
	}
}

// Problem returns the tile with the given id.
func (s *State) Problem(id int) (*Problem, bool) {
	if id < 0 || id >= len(s.Problems) {
		return nil, false
	}
	return s.Problems[id], true
}

// DefaultGenres returns the factory genre labels: four generic columns plus
// the intro column.
func DefaultGenres() []string {
	genres := make([]string, NumGenres)
	for i := 0; i < NumGenres-1; i++ {
		genres[i] = fmt.Sprintf("Genre %d", i+1)
	}
	genres[NumGenres-1] = "Intro"
	return genres
}

// DefaultScores returns all five teams at zero points.
func DefaultScores() map[TeamID]int {
	scores := make(map[TeamID]int, len(teamColors))
	for _, t := range Teams() {
		scores[t] = 0
	}
	return scores
}

// DefaultProblems generates the 25 factory tiles.
func DefaultProblems() []*Problem {
	problems := make([]*Problem, NumProblems)
	for id := 0; id < NumProblems; id++ {
		choices := make([]string, NumChoices)
		for c := range choices {
			choices[c] = fmt.Sprintf("Choice %d", c+1)
		}
		problems[id] = &Problem{
			ID:          id,
			Question:    fmt.Sprintf("Question %d", id+1),
			Choices:     choices,
			AnswerIndex: 0,
			Score:       ProblemScore(id),
		}
	}
	return problems
}
