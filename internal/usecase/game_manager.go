package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nagachaitanyababusiga/tictactoe-engine/internal/apperror"
	"github.com/nagachaitanyababusiga/tictactoe-engine/internal/engine"
	"github.com/nagachaitanyababusiga/tictactoe-engine/internal/entity"
	"github.com/nagachaitanyababusiga/tictactoe-engine/internal/pkg"
)

type sessionRepo interface {
	CreateOrUpdate(ctx context.Context, session *entity.Session) error
	GetByID(ctx context.Context, id string) (*entity.Session, error)
	DeleteByID(ctx context.Context, id string) error
}

// StateNotifier - receives the settled state after every applied change,
// keyed by session. The WebSocket server implements it to push updates.
type StateNotifier interface {
	NotifyState(sessionID string, state engine.State)
}

// liveSession - an engine resident in memory plus the mutex serializing its
// use; the engine itself is not safe for concurrent access.
type liveSession struct {
	mu         sync.Mutex
	engine     *engine.Engine
	lastActive time.Time
}

// GameManager - owns one engine per active session. Snapshots go to the
// session store after every change so a session survives reconnects.
type GameManager struct {
	logger   *slog.Logger
	sessions sessionRepo
	idleTTL  time.Duration

	notifierMu sync.RWMutex
	notifier   StateNotifier

	liveMu sync.RWMutex
	live   map[string]*liveSession
}

func NewGameManager(logger *slog.Logger, sessions sessionRepo, idleTTL time.Duration) *GameManager {
	return &GameManager{
		logger:   logger.With("component", "game_manager"),
		sessions: sessions,
		idleTTL:  idleTTL,

		live: make(map[string]*liveSession),
	}
}

// SetNotifier - attaches the push sink. Without one, changes are still
// persisted and returned to the caller, just not pushed anywhere.
func (that *GameManager) SetNotifier(notifier StateNotifier) {
	that.notifierMu.Lock()
	that.notifier = notifier
	that.notifierMu.Unlock()
}

// GetOrCreateSession - returns the session for id, reviving it from the store
// if needed; an empty id mints a fresh session under a new id.
func (that *GameManager) GetOrCreateSession(ctx context.Context, id string) (*entity.Session, error) {
	log := that.logger.With("method", "GetOrCreateSession")

	if id == "" {
		session, err := that.createSession(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create session: %w", err)
		}

		log.Info("created new session", "sessionID", session.ID)

		return session, nil
	}

	live, ok := that.lookupLive(id)
	if !ok {
		eng, err := that.reviveOrCreate(ctx, id)
		if err != nil {
			return nil, err
		}

		live = that.adoptLive(id, eng)
	}

	live.mu.Lock()
	defer live.mu.Unlock()

	live.lastActive = time.Now()

	session := that.snapshot(id, live)
	if err := that.sessions.CreateOrUpdate(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	return session, nil
}

// GetSession - returns the current state of an existing session.
func (that *GameManager) GetSession(ctx context.Context, id string) (*entity.Session, error) {
	live, err := that.requireLive(ctx, id)
	if err != nil {
		return nil, err
	}

	live.mu.Lock()
	defer live.mu.Unlock()

	return that.snapshot(id, live), nil
}

// MakeMove - applies a move to the session's engine. Rejections come back as
// the apperror sentinels for transports to surface; the state is untouched then.
func (that *GameManager) MakeMove(ctx context.Context, id string, cell int) (*entity.Session, error) {
	live, err := that.requireLive(ctx, id)
	if err != nil {
		return nil, err
	}

	live.mu.Lock()
	defer live.mu.Unlock()

	if err = live.engine.TryMove(cell); err != nil {
		return nil, err
	}

	live.lastActive = time.Now()

	session := that.snapshot(id, live)
	if err = that.sessions.CreateOrUpdate(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	return session, nil
}

// Reset - starts the session's next round, optionally letting the winner open.
func (that *GameManager) Reset(ctx context.Context, id string, winnerStartsNext bool) (*entity.Session, error) {
	live, err := that.requireLive(ctx, id)
	if err != nil {
		return nil, err
	}

	live.mu.Lock()
	defer live.mu.Unlock()

	live.engine.Reset(winnerStartsNext)
	live.lastActive = time.Now()

	session := that.snapshot(id, live)
	if err = that.sessions.CreateOrUpdate(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	return session, nil
}

// NewGame - wipes the session's scores and starts over.
func (that *GameManager) NewGame(ctx context.Context, id string) (*entity.Session, error) {
	live, err := that.requireLive(ctx, id)
	if err != nil {
		return nil, err
	}

	live.mu.Lock()
	defer live.mu.Unlock()

	live.engine.NewGame()
	live.lastActive = time.Now()

	session := that.snapshot(id, live)
	if err = that.sessions.CreateOrUpdate(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	return session, nil
}

// DeleteSession - drops the live engine and the stored snapshot.
func (that *GameManager) DeleteSession(ctx context.Context, id string) error {
	that.liveMu.Lock()
	delete(that.live, id)
	that.liveMu.Unlock()

	if err := that.sessions.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return nil
}

// StartCleanup - evicts live engines idle longer than the session ttl, every
// interval, until ctx is canceled. Stored snapshots expire on their own.
func (that *GameManager) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				that.evictIdle()
			}
		}
	}()
}

func (that *GameManager) evictIdle() {
	log := that.logger.With("method", "evictIdle")

	cutoff := time.Now().Add(-that.idleTTL)

	that.liveMu.Lock()
	defer that.liveMu.Unlock()

	for id, live := range that.live {
		live.mu.Lock()
		idle := live.lastActive.Before(cutoff)
		live.mu.Unlock()

		if idle {
			delete(that.live, id)
			log.Info("evicted idle session", "sessionID", id)
		}
	}
}

func (that *GameManager) createSession(ctx context.Context) (*entity.Session, error) {
	id := pkg.GenerateNewSessionID()
	live := that.adoptLive(id, engine.New())

	live.mu.Lock()
	defer live.mu.Unlock()

	session := that.snapshot(id, live)
	if err := that.sessions.CreateOrUpdate(ctx, session); err != nil {
		return nil, err
	}

	return session, nil
}

// requireLive - finds the session's live engine, reviving it from the stored
// snapshot when the engine was evicted. Unknown sessions are an error here.
func (that *GameManager) requireLive(ctx context.Context, id string) (*liveSession, error) {
	if live, ok := that.lookupLive(id); ok {
		return live, nil
	}

	stored, err := that.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return that.adoptLive(id, engine.Restore(stored.State)), nil
}

// reviveOrCreate - like requireLive's revival, but an unknown id gets a fresh
// engine instead of an error; used when clients reconnect with a stale id.
func (that *GameManager) reviveOrCreate(ctx context.Context, id string) (*engine.Engine, error) {
	stored, err := that.sessions.GetByID(ctx, id)

	if errors.Is(err, apperror.ErrSessionNotFound) {
		return engine.New(), nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return engine.Restore(stored.State), nil
}

func (that *GameManager) lookupLive(id string) (*liveSession, bool) {
	that.liveMu.RLock()
	live, ok := that.live[id]
	that.liveMu.RUnlock()

	return live, ok
}

// adoptLive - registers the engine under id and wires its changes to the
// notifier. When a racing caller registered first, theirs wins.
func (that *GameManager) adoptLive(id string, eng *engine.Engine) *liveSession {
	that.liveMu.Lock()
	defer that.liveMu.Unlock()

	if existing, ok := that.live[id]; ok {
		return existing
	}

	eng.Subscribe(func(state engine.State) {
		that.notifyState(id, state)
	})

	live := &liveSession{
		engine:     eng,
		lastActive: time.Now(),
	}
	that.live[id] = live

	return live
}

func (that *GameManager) notifyState(id string, state engine.State) {
	that.notifierMu.RLock()
	notifier := that.notifier
	that.notifierMu.RUnlock()

	if notifier == nil {
		return
	}

	notifier.NotifyState(id, state)
}

// snapshot - the session as it stands; callers hold the live mutex.
func (that *GameManager) snapshot(id string, live *liveSession) *entity.Session {
	return &entity.Session{
		ID:        id,
		State:     live.engine.State(),
		UpdatedAt: time.Now(),
	}
}
