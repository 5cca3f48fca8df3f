package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nagachaitanyababusiga/tictactoe-engine/internal/apperror"
	"github.com/nagachaitanyababusiga/tictactoe-engine/internal/entity"
	"github.com/redis/go-redis/v9"
)

// SessionRepository - stores session snapshots between connections.
type SessionRepository interface {
	CreateOrUpdate(ctx context.Context, session *entity.Session) error
	GetByID(ctx context.Context, id string) (*entity.Session, error)
	DeleteByID(ctx context.Context, id string) error
}

type dbSession struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionRepository - a redis-backed session store. Entries expire after
// ttl so abandoned sessions clean themselves up; ttl zero keeps them forever.
func NewSessionRepository(client *redis.Client, ttl time.Duration) SessionRepository {
	return &dbSession{
		client: client,
		ttl:    ttl,
	}
}

func sessionKey(id string) string {
	return "session:" + id
}

func (that *dbSession) CreateOrUpdate(ctx context.Context, session *entity.Session) error {
	sessionJSON, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("could not marshal session: %w", err)
	}

	if err = that.client.Set(ctx, sessionKey(session.ID), sessionJSON, that.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set session: %w", err)
	}

	return nil
}

func (that *dbSession) GetByID(ctx context.Context, id string) (*entity.Session, error) {
	response, err := that.client.Get(ctx, sessionKey(id)).Result()

	if errors.Is(err, redis.Nil) {
		return nil, apperror.ErrSessionNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get session by id: %w", err)
	}

	var session entity.Session
	if err = json.Unmarshal([]byte(response), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &session, nil
}

func (that *dbSession) DeleteByID(ctx context.Context, id string) error {
	if err := that.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session by id: %w", err)
	}

	return nil
}
