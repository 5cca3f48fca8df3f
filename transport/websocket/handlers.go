package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nagachaitanyababusiga/tictactoe-engine/internal/apperror"
)

func decodePayload(msg *Message) (*Payload, error) {
	payload := &Payload{}
	if len(msg.Payload) == 0 {
		return payload, nil
	}

	if err := json.Unmarshal(msg.Payload, payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	return payload, nil
}

func (that *Server) handleConnect(ctx context.Context, msg *Message, client *conn) error {
	log := that.logger.With("method", "handleConnect")

	payloadReq, err := decodePayload(msg)
	if err != nil {
		return err
	}

	var sessionID string
	if payloadReq.Session != nil {
		sessionID = payloadReq.Session.ID
	}

	session, err := that.manager.GetOrCreateSession(ctx, sessionID)
	if err != nil {
		log.Error("failed to get or create session", "error", err)

		return that.sendErrorResponse(client, msg.Action, "failed to get or create session")
	}

	that.register(session.ID, client)

	if err = that.sendMessage(client, msg.Action, Payload{Session: session}); err != nil {
		return fmt.Errorf("failed to send response: %w", err)
	}

	log.Info("session connected", "sessionID", session.ID)

	return nil
}

func (that *Server) handleGameState(ctx context.Context, msg *Message, client *conn) error {
	log := that.logger.With("method", "handleGameState")

	payloadReq, err := decodePayload(msg)
	if err != nil {
		return err
	}

	if payloadReq.Session == nil || payloadReq.Session.ID == "" {
		log.Error("session is missing in payload")

		return that.sendErrorResponse(client, msg.Action, "session is required")
	}

	that.register(payloadReq.Session.ID, client)

	session, err := that.manager.GetSession(ctx, payloadReq.Session.ID)
	if errors.Is(err, apperror.ErrSessionNotFound) {
		return that.sendErrorResponse(client, msg.Action, apperror.ErrSessionNotFound.Error())
	}

	if err != nil {
		log.Error("failed to get session", "error", err)

		return that.sendErrorResponse(client, msg.Action, "failed to get session")
	}

	return that.sendMessage(client, msg.Action, Payload{Session: session})
}

func (that *Server) handleGameTurn(ctx context.Context, msg *Message, client *conn) error {
	log := that.logger.With("method", "handleGameTurn")

	payloadReq, err := decodePayload(msg)
	if err != nil {
		return err
	}

	if payloadReq.Session == nil || payloadReq.Session.ID == "" {
		log.Error("session is missing in payload")

		return that.sendErrorResponse(client, msg.Action, "session is required")
	}

	if payloadReq.Cell == nil {
		log.Error("cell is missing in payload")

		return that.sendErrorResponse(client, msg.Action, "cell is required")
	}

	that.register(payloadReq.Session.ID, client)

	log = log.With("sessionID", payloadReq.Session.ID)

	_, err = that.manager.MakeMove(ctx, payloadReq.Session.ID, *payloadReq.Cell)

	switch {
	case errors.Is(err, apperror.ErrInvalidCell),
		errors.Is(err, apperror.ErrCellOccupied),
		errors.Is(err, apperror.ErrGameFinished):
		return that.sendErrorResponse(client, msg.Action, err.Error())
	case errors.Is(err, apperror.ErrSessionNotFound):
		return that.sendErrorResponse(client, msg.Action, apperror.ErrSessionNotFound.Error())
	case err != nil:
		log.Error("failed to make turn", "error", err)

		return that.sendErrorResponse(client, msg.Action, "failed to make turn")
	}

	// the applied state reaches the client through the game:update push
	log.Info("turn accepted", "cell", *payloadReq.Cell)

	return nil
}

func (that *Server) handleGameReset(ctx context.Context, msg *Message, client *conn) error {
	log := that.logger.With("method", "handleGameReset")

	payloadReq, err := decodePayload(msg)
	if err != nil {
		return err
	}

	if payloadReq.Session == nil || payloadReq.Session.ID == "" {
		log.Error("session is missing in payload")

		return that.sendErrorResponse(client, msg.Action, "session is required")
	}

	that.register(payloadReq.Session.ID, client)

	_, err = that.manager.Reset(ctx, payloadReq.Session.ID, payloadReq.WinnerStartsNext)
	if errors.Is(err, apperror.ErrSessionNotFound) {
		return that.sendErrorResponse(client, msg.Action, apperror.ErrSessionNotFound.Error())
	}

	if err != nil {
		log.Error("failed to reset round", "error", err)

		return that.sendErrorResponse(client, msg.Action, "failed to reset round")
	}

	log.Info("round reset", "sessionID", payloadReq.Session.ID, "winnerStartsNext", payloadReq.WinnerStartsNext)

	return nil
}

func (that *Server) handleGameNew(ctx context.Context, msg *Message, client *conn) error {
	log := that.logger.With("method", "handleGameNew")

	payloadReq, err := decodePayload(msg)
	if err != nil {
		return err
	}

	if payloadReq.Session == nil || payloadReq.Session.ID == "" {
		log.Error("session is missing in payload")

		return that.sendErrorResponse(client, msg.Action, "session is required")
	}

	that.register(payloadReq.Session.ID, client)

	_, err = that.manager.NewGame(ctx, payloadReq.Session.ID)
	if errors.Is(err, apperror.ErrSessionNotFound) {
		return that.sendErrorResponse(client, msg.Action, apperror.ErrSessionNotFound.Error())
	}

	if err != nil {
		log.Error("failed to start new game", "error", err)

		return that.sendErrorResponse(client, msg.Action, "failed to start new game")
	}

	log.Info("new game started", "sessionID", payloadReq.Session.ID)

	return nil
}
