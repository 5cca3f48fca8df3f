package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/nagachaitanyababusiga/tictactoe-engine/internal/engine"
	"github.com/nagachaitanyababusiga/tictactoe-engine/internal/entity"
	"github.com/nagachaitanyababusiga/tictactoe-engine/internal/pkg"
)

const (
	actionConnect    = "connect"
	actionGameState  = "game:state"
	actionGameTurn   = "game:turn"
	actionGameReset  = "game:reset"
	actionGameNew    = "game:new"
	actionGameUpdate = "game:update"
)

type gameManager interface {
	GetOrCreateSession(ctx context.Context, id string) (*entity.Session, error)
	GetSession(ctx context.Context, id string) (*entity.Session, error)
	MakeMove(ctx context.Context, id string, cell int) (*entity.Session, error)
	Reset(ctx context.Context, id string, winnerStartsNext bool) (*entity.Session, error)
	NewGame(ctx context.Context, id string) (*entity.Session, error)
}

type Server struct {
	logger  *slog.Logger
	manager gameManager

	connectionsMutex sync.RWMutex
	connections      map[string]*conn

	handlers map[string]func(ctx context.Context, message *Message, client *conn) error
}

func New(logger *slog.Logger, manager gameManager) *Server {
	server := &Server{
		logger:  logger.With("component", "websocket"),
		manager: manager,

		connections: make(map[string]*conn),
		handlers:    make(map[string]func(context.Context, *Message, *conn) error),
	}

	server.handlers[actionConnect] = server.handleConnect
	server.handlers[actionGameState] = server.handleGameState
	server.handlers[actionGameTurn] = server.handleGameTurn
	server.handlers[actionGameReset] = server.handleGameReset
	server.handlers[actionGameNew] = server.handleGameNew

	return server
}

// Routes - the handler serving the /ws endpoint, split from Start so tests
// can mount it on their own listener.
func (that *Server) Routes(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.upgradeToWebSocket(ctx, w, r)
	})

	return mux
}

// Start - starts WebSocket server.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      that.Routes(ctx),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	if err := srv.ListenAndServe(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// NotifyState - the manager's push sink: every applied change lands here and
// goes out as a game:update to the session's connection, if one is registered.
func (that *Server) NotifyState(sessionID string, state engine.State) {
	log := that.logger.With("method", "NotifyState")

	that.connectionsMutex.RLock()
	client, ok := that.connections[sessionID]
	that.connectionsMutex.RUnlock()

	if !ok {
		return
	}

	payload := Payload{
		Session: &entity.Session{ID: sessionID, State: state, UpdatedAt: time.Now()},
	}

	if err := that.sendMessage(client, actionGameUpdate, payload); err != nil {
		log.Error("failed to push state", "sessionID", sessionID, "error", err)
	}
}

// upgradeToWebSocket - upgrades the connection to WebSocket.
func (that *Server) upgradeToWebSocket(ctx context.Context, writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "upgradeToWebSocket")

	if req.Header.Get("Upgrade") != "websocket" {
		http.Error(writer, "not a websocket upgrade", http.StatusBadRequest)
		return
	}

	that.setSessionCookie(writer, req)

	key := req.Header.Get("Sec-WebSocket-Key")
	acceptKey := pkg.GenerateAcceptKey(key)

	writer.Header().Set("Upgrade", "websocket")
	writer.Header().Set("Connection", "Upgrade")
	writer.Header().Set("Sec-WebSocket-Accept", acceptKey)
	writer.WriteHeader(http.StatusSwitchingProtocols)

	hijacker, ok := writer.(http.Hijacker)
	if !ok {
		log.Error("web server does not support hijacking")
		return
	}

	netConn, bufrw, err := hijacker.Hijack()
	if err != nil {
		log.Error("failed to hijack connection", "error", err)
		return
	}

	defer netConn.Close()

	// the server's read/write timeouts cover the handshake, not the socket
	if err = netConn.SetDeadline(time.Time{}); err != nil {
		log.Error("failed to clear connection deadlines", "error", err)
		return
	}

	log.Info("WebSocket connection established")

	client := &conn{bufrw: bufrw}
	defer that.unregister(client)

	if err = that.handleMessages(ctx, client); err != nil {
		log.Error("error handling messages", "error", err)
	}
}

// handleMessages - processes messages from the client until it disconnects.
func (that *Server) handleMessages(ctx context.Context, client *conn) error {
	log := that.logger.With("method", "handleMessages")

	for {
		reqBody, err := that.readRequest(client)
		if errors.Is(err, io.EOF) {
			log.Info("client closed the connection")
			return nil
		}

		if err != nil {
			return fmt.Errorf("failed to read message: %w", err)
		}

		var message Message
		if err = json.Unmarshal(reqBody, &message); err != nil {
			log.Error("failed to unmarshal message", "error", err)
			continue
		}

		handler, ok := that.handlers[message.Action]
		if !ok {
			log.Warn("unknown action", "action", message.Action)

			if err = that.sendErrorResponse(client, message.Action, "unknown action"); err != nil {
				log.Error("failed to send error response", "error", err)
			}

			continue
		}

		if err = handler(ctx, &message, client); err != nil {
			log.Error("error processing message", "action", message.Action, "error", err)
		}
	}
}

// register - binds the session to this connection; a newer connection for the
// same session takes over the pushes.
func (that *Server) register(sessionID string, client *conn) {
	that.connectionsMutex.Lock()
	that.connections[sessionID] = client
	that.connectionsMutex.Unlock()
}

func (that *Server) unregister(client *conn) {
	that.connectionsMutex.Lock()
	defer that.connectionsMutex.Unlock()

	for sessionID, registered := range that.connections {
		if registered == client {
			delete(that.connections, sessionID)
		}
	}
}

// setSessionCookie - hands first-time visitors a browser id. The game session
// id itself travels in the message payloads.
func (that *Server) setSessionCookie(writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "setSessionCookie")

	cookie, err := req.Cookie("game_session")
	if err != nil {
		cookie = &http.Cookie{
			Name:    "game_session",
			Value:   pkg.GenerateNewSessionID(),
			Expires: time.Now().Add(24 * time.Hour),
			Path:    "/ws",
		}
		http.SetCookie(writer, cookie)
		log.Info("session cookie not found, new one created", "cookie", cookie.Value)

		return
	}

	log.Info("session cookie found", "cookie", cookie.Value)
}
