package entity

import (
	"time"

	"github.com/nagachaitanyababusiga/tictactoe-engine/internal/engine"
)

// Session - one client's game: the engine state published under a stable id.
// It is the snapshot shape shared by the transports and the session stores.
type Session struct {
	ID        string       `json:"id"`
	State     engine.State `json:"state"`
	UpdatedAt time.Time    `json:"updated_at"`
}
