package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nagachaitanyababusiga/tictactoe-engine/internal/apperror"
	"github.com/nagachaitanyababusiga/tictactoe-engine/internal/entity"
)

type gameManager interface {
	GetOrCreateSession(ctx context.Context, id string) (*entity.Session, error)
	GetSession(ctx context.Context, id string) (*entity.Session, error)
	MakeMove(ctx context.Context, id string, cell int) (*entity.Session, error)
	Reset(ctx context.Context, id string, winnerStartsNext bool) (*entity.Session, error)
	NewGame(ctx context.Context, id string) (*entity.Session, error)
	DeleteSession(ctx context.Context, id string) error
}

type SessionHandler interface {
	Create(ctx echo.Context) error
	Get(ctx echo.Context) error
	Turn(ctx echo.Context) error
	Reset(ctx echo.Context) error
	NewGame(ctx echo.Context) error
	Delete(ctx echo.Context) error
}

type sessionHandler struct {
	logger  *slog.Logger
	manager gameManager
}

func NewSessionHandler(logger *slog.Logger, manager gameManager) SessionHandler {
	return &sessionHandler{
		logger:  logger.With("component", "rest_handlers"),
		manager: manager,
	}
}

type createRequest struct {
	ID string `json:"id"`
}

type turnRequest struct {
	Cell *int `json:"cell"`
}

type resetRequest struct {
	WinnerStartsNext bool `json:"winner_starts_next"`
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

// Create - returns the session for the id in the body, creating one when the
// id is empty or unknown. An empty body works too and always mints a session.
func (that *sessionHandler) Create(ctx echo.Context) error {
	log := that.logger.With("method", "Create")

	var req createRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, errorBody("invalid request body"))
	}

	session, err := that.manager.GetOrCreateSession(ctx.Request().Context(), req.ID)
	if err != nil {
		log.Error("failed to get or create session", "error", err)

		return ctx.JSON(http.StatusInternalServerError, errorBody("failed to get or create session"))
	}

	return ctx.JSON(http.StatusOK, session)
}

func (that *sessionHandler) Get(ctx echo.Context) error {
	log := that.logger.With("method", "Get")

	session, err := that.manager.GetSession(ctx.Request().Context(), ctx.Param("id"))
	if errors.Is(err, apperror.ErrSessionNotFound) {
		return ctx.JSON(http.StatusNotFound, errorBody(apperror.ErrSessionNotFound.Error()))
	}

	if err != nil {
		log.Error("failed to get session", "error", err)

		return ctx.JSON(http.StatusInternalServerError, errorBody("failed to get session"))
	}

	return ctx.JSON(http.StatusOK, session)
}

// Turn - applies a move. Rejections map onto status codes: a bad cell index is
// 400, a taken cell or a finished round is 409, an unknown session is 404.
func (that *sessionHandler) Turn(ctx echo.Context) error {
	log := that.logger.With("method", "Turn", "sessionID", ctx.Param("id"))

	var req turnRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, errorBody("invalid request body"))
	}

	if req.Cell == nil {
		return ctx.JSON(http.StatusBadRequest, errorBody("cell is required"))
	}

	session, err := that.manager.MakeMove(ctx.Request().Context(), ctx.Param("id"), *req.Cell)

	switch {
	case errors.Is(err, apperror.ErrInvalidCell):
		return ctx.JSON(http.StatusBadRequest, errorBody(apperror.ErrInvalidCell.Error()))
	case errors.Is(err, apperror.ErrCellOccupied):
		return ctx.JSON(http.StatusConflict, errorBody(apperror.ErrCellOccupied.Error()))
	case errors.Is(err, apperror.ErrGameFinished):
		return ctx.JSON(http.StatusConflict, errorBody(apperror.ErrGameFinished.Error()))
	case errors.Is(err, apperror.ErrSessionNotFound):
		return ctx.JSON(http.StatusNotFound, errorBody(apperror.ErrSessionNotFound.Error()))
	case err != nil:
		log.Error("failed to make turn", "error", err)

		return ctx.JSON(http.StatusInternalServerError, errorBody("failed to make turn"))
	}

	return ctx.JSON(http.StatusOK, session)
}

// Reset - starts the session's next round. An omitted body or flag means the
// round opens with X; winner_starts_next keeps the opening move with whoever
// holds the turn.
func (that *sessionHandler) Reset(ctx echo.Context) error {
	log := that.logger.With("method", "Reset", "sessionID", ctx.Param("id"))

	var req resetRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, errorBody("invalid request body"))
	}

	session, err := that.manager.Reset(ctx.Request().Context(), ctx.Param("id"), req.WinnerStartsNext)
	if errors.Is(err, apperror.ErrSessionNotFound) {
		return ctx.JSON(http.StatusNotFound, errorBody(apperror.ErrSessionNotFound.Error()))
	}

	if err != nil {
		log.Error("failed to reset round", "error", err)

		return ctx.JSON(http.StatusInternalServerError, errorBody("failed to reset round"))
	}

	return ctx.JSON(http.StatusOK, session)
}

func (that *sessionHandler) NewGame(ctx echo.Context) error {
	log := that.logger.With("method", "NewGame", "sessionID", ctx.Param("id"))

	session, err := that.manager.NewGame(ctx.Request().Context(), ctx.Param("id"))
	if errors.Is(err, apperror.ErrSessionNotFound) {
		return ctx.JSON(http.StatusNotFound, errorBody(apperror.ErrSessionNotFound.Error()))
	}

	if err != nil {
		log.Error("failed to start new game", "error", err)

		return ctx.JSON(http.StatusInternalServerError, errorBody("failed to start new game"))
	}

	return ctx.JSON(http.StatusOK, session)
}

func (that *sessionHandler) Delete(ctx echo.Context) error {
	log := that.logger.With("method", "Delete", "sessionID", ctx.Param("id"))

	if err := that.manager.DeleteSession(ctx.Request().Context(), ctx.Param("id")); err != nil {
		log.Error("failed to delete session", "error", err)

		return ctx.JSON(http.StatusInternalServerError, errorBody("failed to delete session"))
	}

	return ctx.NoContent(http.StatusNoContent)
}
