package application

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nagachaitanyababusiga/tictactoe-engine/internal/config"
	"github.com/nagachaitanyababusiga/tictactoe-engine/internal/repository"
	"github.com/nagachaitanyababusiga/tictactoe-engine/internal/repository/storage"
	"github.com/nagachaitanyababusiga/tictactoe-engine/internal/usecase"
	"github.com/nagachaitanyababusiga/tictactoe-engine/transport/rest"
	"github.com/nagachaitanyababusiga/tictactoe-engine/transport/websocket"
)

// cleanupInterval - how often idle engines and expired snapshots are swept.
const cleanupInterval = time.Minute

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	var sessions repository.SessionRepository

	if conf.Redis.IsEnabled() {
		redisStorage, err := storage.NewRedisStorage(ctx, conf.Redis.GetRedisAddr())
		if err != nil {
			return fmt.Errorf("could not connect to redis storage: %w", err)
		}

		defer func() {
			if err = redisStorage.Close(); err != nil {
				log.Error("could not close redis storage", "error", err)
			}
		}()

		sessions = repository.NewSessionRepository(redisStorage.Connection, conf.SessionTTL)
		log.Info("using redis session store", "addr", conf.Redis.GetRedisAddr())
	} else {
		memory := repository.NewMemorySessionRepository(conf.SessionTTL)
		memory.StartCleanup(ctx, cleanupInterval)

		sessions = memory
		log.Info("using in-memory session store")
	}

	gameManager := usecase.NewGameManager(logger, sessions, conf.SessionTTL)
	gameManager.StartCleanup(ctx, cleanupInterval)

	wsServer := websocket.New(logger, gameManager)
	gameManager.SetNotifier(wsServer)

	restServer := rest.New(logger, rest.NewSessionHandler(logger, gameManager))

	// run HTTP server
	httpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		if httpErr := restServer.Start(conf.HTTPPort); httpErr != nil {
			log.Error("HTTP server error", "error", httpErr)
			httpErrCh <- httpErr
		}
	}()

	// run Websocket server
	wsErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting WebSocket server", "port", conf.SocketPort)
		if wsErr := wsServer.Start(ctx, conf.SocketPort); wsErr != nil {
			log.Error("WebSocket server error", "error", wsErr)
			wsErrCh <- wsErr
		}
	}()

	select {
	case err := <-httpErrCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case err := <-wsErrCh:
		return fmt.Errorf("WebSocket server error: %w", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
		return nil
	}
}
