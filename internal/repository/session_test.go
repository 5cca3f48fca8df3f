package repository

import (
	"testing"
	"time"

	"github.com/nagachaitanyababusiga/tictactoe-engine/internal/apperror"
	"github.com/nagachaitanyababusiga/tictactoe-engine/internal/engine"
	"github.com/nagachaitanyababusiga/tictactoe-engine/internal/entity"
	"github.com/nagachaitanyababusiga/tictactoe-engine/testing/suite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSessionTTL = time.Hour

func TestSessionRepository_CreateOrUpdate(t *testing.T) {
	ctx, st := suite.New(t)

	sessions := NewSessionRepository(st.Redis, testSessionTTL)

	// Given: a session with a round in progress
	eng := engine.New()
	eng.MakeMove(4)
	session := &entity.Session{ID: "123", State: eng.State(), UpdatedAt: time.Now()}

	// When: CreateOrUpdate is called
	err := sessions.CreateOrUpdate(ctx, session)

	// Then: the session is stored with an expiry attached
	require.NoError(t, err)

	ttl, err := st.Redis.TTL(ctx, "session:123").Result()
	require.NoError(t, err)
	assert.Positive(t, ttl)
}

func TestSessionRepository_GetByID(t *testing.T) {
	t.Run("Returns the stored session", func(t *testing.T) {
		ctx, st := suite.New(t)

		sessions := NewSessionRepository(st.Redis, testSessionTTL)

		// Given: a stored session where X holds the center
		eng := engine.New()
		eng.MakeMove(4)
		session := &entity.Session{ID: "123", State: eng.State(), UpdatedAt: time.Now()}

		err := sessions.CreateOrUpdate(ctx, session)
		require.NoError(t, err)

		// When: GetByID is called with the existing id
		retrieved, err := sessions.GetByID(ctx, session.ID)

		// Then: the snapshot round-trips intact
		require.NoError(t, err)
		require.Equal(t, session.ID, retrieved.ID)
		require.Equal(t, session.State.Board, retrieved.State.Board)
		require.Equal(t, session.State.Turn, retrieved.State.Turn)
		require.Equal(t, session.State.Message, retrieved.State.Message)
	})

	t.Run("Returns ErrSessionNotFound for an unknown id", func(t *testing.T) {
		ctx, st := suite.New(t)

		sessions := NewSessionRepository(st.Redis, testSessionTTL)

		// When: GetByID is called with an id nobody stored
		_, err := sessions.GetByID(ctx, "does-not-exist")

		// Then: the not-found sentinel is returned
		require.ErrorIs(t, err, apperror.ErrSessionNotFound)
	})
}

func TestSessionRepository_DeleteByID(t *testing.T) {
	ctx, st := suite.New(t)

	sessions := NewSessionRepository(st.Redis, testSessionTTL)

	// Given: a stored session
	session := &entity.Session{ID: "123", State: engine.New().State(), UpdatedAt: time.Now()}
	require.NoError(t, sessions.CreateOrUpdate(ctx, session))

	// When: DeleteByID is called
	err := sessions.DeleteByID(ctx, session.ID)

	// Then: the session is gone
	require.NoError(t, err)

	_, err = sessions.GetByID(ctx, session.ID)
	require.ErrorIs(t, err, apperror.ErrSessionNotFound)
}
