package engine

import (
	"fmt"

	"github.com/nagachaitanyababusiga/tictactoe-engine/internal/apperror"
)

// Observer - receives the new state after every applied change.
type Observer func(State)

// Engine - a two-player tic-tac-toe round with scores kept across rounds.
// It owns a single State and hands out copies; it is not safe for concurrent
// use, callers serialize access to it.
type Engine struct {
	state State

	observers  map[int]Observer
	observerID int
}

// New - an engine holding a fresh game: empty board, X to move, zero scores.
func New() *Engine {
	return &Engine{
		state:     roundState(MarkX, 0, 0),
		observers: make(map[int]Observer),
	}
}

// Restore - an engine resumed from a previously captured state.
func Restore(state State) *Engine {
	return &Engine{
		state:     state,
		observers: make(map[int]Observer),
	}
}

// State - returns a copy of the current state.
func (that *Engine) State() State {
	return that.state
}

// Subscribe - registers an observer and returns a func that removes it.
// Observers run synchronously on the mutating call, after the state has
// settled and before the call returns, so a rejected move never reaches them.
func (that *Engine) Subscribe(fn Observer) func() {
	id := that.observerID
	that.observerID++
	that.observers[id] = fn

	return func() {
		delete(that.observers, id)
	}
}

func (that *Engine) publish() {
	for _, fn := range that.observers {
		fn(that.state)
	}
}

// TryMove - puts the current player's mark on the cell and reports why a move
// was rejected: the round is over, the index is outside the board, or the cell
// is taken. A rejected move leaves the state untouched.
func (that *Engine) TryMove(cell int) error {
	if that.state.GameOver {
		return apperror.ErrGameFinished
	}

	if cell < 0 || cell >= len(that.state.Board) {
		return fmt.Errorf("%w: %d", apperror.ErrInvalidCell, cell)
	}

	if that.state.Board[cell] != Empty {
		return apperror.ErrCellOccupied
	}

	mover := that.state.Turn
	that.state.Board[cell] = mover
	that.settleRound(mover)
	that.publish()

	return nil
}

// MakeMove - like TryMove, but rejected input is silently ignored.
func (that *Engine) MakeMove(cell int) {
	_ = that.TryMove(cell)
}

// settleRound - evaluates the board after a mark landed: win first, then
// draw, otherwise the turn passes.
func (that *Engine) settleRound(mover Mark) {
	if winner := that.state.Board.Winner(); winner != Empty {
		that.state.GameOver = true
		that.state.Outcome = Outcome{Result: ResultWin, Winner: winner}
		that.state.Message = winMessage(winner)

		// Turn keeps pointing at the winner so a follow-up reset can let them open.
		switch winner {
		case MarkX:
			that.state.ScoreX++
		case MarkO:
			that.state.ScoreO++
		}

		return
	}

	if that.state.Board.IsFull() {
		that.state.GameOver = true
		that.state.Outcome = Outcome{Result: ResultDraw}
		that.state.Message = drawMessage

		return
	}

	that.state.Turn = mover.Next()
	that.state.Message = turnMessage(that.state.Turn)
}

// Reset - starts the next round, keeping the scores. With winnerStartsNext the
// opening move stays with whoever holds the turn, which after a win is the
// winner and after a draw the last mover; otherwise X opens.
func (that *Engine) Reset(winnerStartsNext bool) {
	opener := MarkX
	if winnerStartsNext && that.state.Turn != Empty {
		opener = that.state.Turn
	}

	that.state = roundState(opener, that.state.ScoreX, that.state.ScoreO)
	that.publish()
}

// NewGame - wipes the scores and starts over with X opening. Observers see a
// single notification carrying the final state.
func (that *Engine) NewGame() {
	that.state = roundState(MarkX, 0, 0)
	that.publish()
}
