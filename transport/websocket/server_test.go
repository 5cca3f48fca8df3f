package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/nagachaitanyababusiga/tictactoe-engine/internal/engine"
	"github.com/nagachaitanyababusiga/tictactoe-engine/internal/entity"
	"github.com/nagachaitanyababusiga/tictactoe-engine/internal/repository"
	"github.com/nagachaitanyababusiga/tictactoe-engine/internal/usecase"
	"github.com/stretchr/testify/require"
)

// newTestStack wires a server with an in-memory store and mounts it on a test listener.
func newTestStack(t *testing.T) string {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := repository.NewMemorySessionRepository(time.Hour)
	manager := usecase.NewGameManager(logger, sessions, time.Hour)

	server := New(logger, manager)
	manager.SetNotifier(server)

	ts := httptest.NewServer(server.Routes(ctx))
	t.Cleanup(ts.Close)

	return ts.URL
}

func dialTestServer(t *testing.T, baseURL string) *gws.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/ws"

	client, _, err := gws.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Close()
	})

	return client
}

func writeAction(t *testing.T, client *gws.Conn, action string, payload Payload) {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	require.NoError(t, client.WriteJSON(Message{Action: action, Payload: body}))
}

func readReply(t *testing.T, client *gws.Conn) (string, *Payload) {
	t.Helper()

	require.NoError(t, client.SetReadDeadline(time.Now().Add(5*time.Second)))

	var msg Message
	require.NoError(t, client.ReadJSON(&msg))

	payload := &Payload{}
	if len(msg.Payload) > 0 {
		require.NoError(t, json.Unmarshal(msg.Payload, payload))
	}

	return msg.Action, payload
}

func cellPtr(cell int) *int {
	return &cell
}

func TestServer_GameFlow(t *testing.T) {
	baseURL := newTestStack(t)
	client := dialTestServer(t, baseURL)

	// Given: a connected client without a session
	writeAction(t, client, actionConnect, Payload{})
	action, payload := readReply(t, client)

	require.Equal(t, actionConnect, action)
	require.NotNil(t, payload.Session)
	require.NotEmpty(t, payload.Session.ID)
	require.Equal(t, "X's turn", payload.Session.State.Message)

	ref := &entity.Session{ID: payload.Session.ID}

	// When: the players trade moves until O completes the middle row
	for _, cell := range []int{0, 3, 1, 4, 8} {
		writeAction(t, client, actionGameTurn, Payload{Session: ref, Cell: cellPtr(cell)})

		action, payload = readReply(t, client)
		require.Equal(t, actionGameUpdate, action)
		require.NotNil(t, payload.Session)
		require.False(t, payload.Session.State.GameOver)
	}

	writeAction(t, client, actionGameTurn, Payload{Session: ref, Cell: cellPtr(5)})
	action, payload = readReply(t, client)

	// Then: the winning push announces O, moves the score and freezes the turn
	require.Equal(t, actionGameUpdate, action)

	state := payload.Session.State
	require.True(t, state.GameOver)
	require.Equal(t, "O wins!", state.Message)
	require.Equal(t, engine.Outcome{Result: engine.ResultWin, Winner: engine.MarkO}, state.Outcome)
	require.Equal(t, 1, state.ScoreO)
	require.Equal(t, 0, state.ScoreX)
	require.Equal(t, engine.MarkO, state.Turn)

	// When: a move lands on the finished round
	writeAction(t, client, actionGameTurn, Payload{Session: ref, Cell: cellPtr(2)})
	action, payload = readReply(t, client)

	// Then: the rejection comes back on the request action, with no push
	require.Equal(t, actionGameTurn, action)
	require.Contains(t, payload.Error, "finished")

	// When: resetting with the winner opening the next round
	writeAction(t, client, actionGameReset, Payload{Session: ref, WinnerStartsNext: true})
	action, payload = readReply(t, client)

	// Then: O opens on a clean board and keeps the score
	require.Equal(t, actionGameUpdate, action)

	state = payload.Session.State
	require.Equal(t, engine.Board{}, state.Board)
	require.Equal(t, engine.MarkO, state.Turn)
	require.Equal(t, "O's turn", state.Message)
	require.Equal(t, 1, state.ScoreO)

	// When: starting an entirely new game
	writeAction(t, client, actionGameNew, Payload{Session: ref})
	action, payload = readReply(t, client)

	// Then: the scores are wiped and X opens
	require.Equal(t, actionGameUpdate, action)

	state = payload.Session.State
	require.Equal(t, 0, state.ScoreO)
	require.Equal(t, 0, state.ScoreX)
	require.Equal(t, engine.MarkX, state.Turn)

	// When: asking for the state explicitly
	writeAction(t, client, actionGameState, Payload{Session: ref})
	action, payload = readReply(t, client)

	// Then: the reply mirrors the current session
	require.Equal(t, actionGameState, action)
	require.Equal(t, ref.ID, payload.Session.ID)
	require.Equal(t, "X's turn", payload.Session.State.Message)
}

func TestServer_MoveValidation(t *testing.T) {
	baseURL := newTestStack(t)
	client := dialTestServer(t, baseURL)

	writeAction(t, client, actionConnect, Payload{})
	_, payload := readReply(t, client)
	ref := &entity.Session{ID: payload.Session.ID}

	// Given: X holds cell 0
	writeAction(t, client, actionGameTurn, Payload{Session: ref, Cell: cellPtr(0)})
	action, _ := readReply(t, client)
	require.Equal(t, actionGameUpdate, action)

	// When: O tries the same cell
	writeAction(t, client, actionGameTurn, Payload{Session: ref, Cell: cellPtr(0)})
	action, payload = readReply(t, client)

	// Then: the move is rejected as occupied
	require.Equal(t, actionGameTurn, action)
	require.Contains(t, payload.Error, "occupied")

	// When: O aims outside the board
	writeAction(t, client, actionGameTurn, Payload{Session: ref, Cell: cellPtr(12)})
	action, payload = readReply(t, client)

	// Then: the move is rejected as invalid
	require.Equal(t, actionGameTurn, action)
	require.Contains(t, payload.Error, "invalid cell")

	// When: the cell is missing entirely
	writeAction(t, client, actionGameTurn, Payload{Session: ref})
	action, payload = readReply(t, client)

	// Then: the request is rejected before reaching the engine
	require.Equal(t, actionGameTurn, action)
	require.Contains(t, payload.Error, "cell is required")
}

func TestServer_Reconnect(t *testing.T) {
	baseURL := newTestStack(t)

	// Given: a session with one move played
	client := dialTestServer(t, baseURL)

	writeAction(t, client, actionConnect, Payload{})
	_, payload := readReply(t, client)
	ref := &entity.Session{ID: payload.Session.ID}

	writeAction(t, client, actionGameTurn, Payload{Session: ref, Cell: cellPtr(4)})
	action, _ := readReply(t, client)
	require.Equal(t, actionGameUpdate, action)

	require.NoError(t, client.Close())

	// When: a new connection presents the same session id
	reconnected := dialTestServer(t, baseURL)

	writeAction(t, reconnected, actionConnect, Payload{Session: ref})
	action, payload = readReply(t, reconnected)

	// Then: the session resumes where it left off
	require.Equal(t, actionConnect, action)
	require.Equal(t, ref.ID, payload.Session.ID)
	require.Equal(t, engine.MarkX, payload.Session.State.Board[4])
	require.Equal(t, engine.MarkO, payload.Session.State.Turn)
}

func TestServer_RejectsPlainHTTP(t *testing.T) {
	baseURL := newTestStack(t)

	// When: a plain GET hits the websocket endpoint
	resp, err := http.Get(baseURL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()

	// Then: the upgrade is refused
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
