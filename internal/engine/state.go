package engine

import "fmt"

// Mark - the symbol a player puts on the board.
type Mark string

const (
	MarkX Mark = "X"
	MarkO Mark = "O"

	Empty Mark = ""
)

// Next - returns the mark that moves after this one.
func (that Mark) Next() Mark {
	if that == MarkX {
		return MarkO
	}

	return MarkX
}

// Result - how a round stands: still running, won, or drawn.
type Result string

const (
	ResultOngoing Result = "ongoing"
	ResultWin     Result = "win"
	ResultDraw    Result = "draw"
)

// Outcome - the typed verdict of a round. Winner is set only when Result is ResultWin.
// Callers branch on Outcome, never on the human-readable message.
type Outcome struct {
	Result Result `json:"result"`
	Winner Mark   `json:"winner,omitempty"`
}

// IsOver - reports whether the round has ended.
func (that Outcome) IsOver() bool {
	return that.Result != ResultOngoing
}

// WinLines - the eight cell triples that win a round: three rows, three columns, two diagonals.
var WinLines = [8][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// Board - a 3x3 grid in row-major order: cells 0-2 top, 3-5 middle, 6-8 bottom.
type Board [9]Mark

// Winner - scans every winning line and returns the mark holding one, or Empty.
// The scan is repeated in full on every call; nothing is tracked between moves.
func (that *Board) Winner() Mark {
	for _, line := range WinLines {
		a, b, c := that[line[0]], that[line[1]], that[line[2]]
		if a != Empty && a == b && b == c {
			return a
		}
	}

	return Empty
}

// IsFull - reports whether no empty cell remains.
func (that *Board) IsFull() bool {
	for _, cell := range that {
		if cell == Empty {
			return false
		}
	}

	return true
}

// State - everything a client needs to render the game. Copyable by value.
type State struct {
	Board    Board   `json:"board"`
	Turn     Mark    `json:"turn"`
	GameOver bool    `json:"game_over"`
	Message  string  `json:"message"`
	Outcome  Outcome `json:"outcome"`
	ScoreX   int     `json:"score_x"`
	ScoreO   int     `json:"score_o"`
}

const drawMessage = "It's a draw!"

func turnMessage(mark Mark) string {
	return fmt.Sprintf("%s's turn", mark)
}

func winMessage(mark Mark) string {
	return fmt.Sprintf("%s wins!", mark)
}

// roundState - a fresh round opened by the given mark, carrying over the scores.
func roundState(opener Mark, scoreX, scoreO int) State {
	return State{
		Turn:    opener,
		Message: turnMessage(opener),
		Outcome: Outcome{Result: ResultOngoing},
		ScoreX:  scoreX,
		ScoreO:  scoreO,
	}
}
