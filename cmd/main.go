package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Dosada05/pong-tournaments/brackets"
	"github.com/Dosada05/pong-tournaments/config"
	"github.com/Dosada05/pong-tournaments/db"
	"github.com/Dosada05/pong-tournaments/handlers"
	"github.com/Dosada05/pong-tournaments/repositories"
	"github.com/Dosada05/pong-tournaments/repositories/memory"
	"github.com/Dosada05/pong-tournaments/routes"
	"github.com/Dosada05/pong-tournaments/services"
	"github.com/Dosada05/pong-tournaments/storage"
)

const shutdownTimeout = 15 * time.Second

type repositorySet struct {
	txManager    repositories.TxManager
	tournaments  repositories.TournamentRepository
	participants repositories.ParticipantRepository
	matches      repositories.MatchRepository
	games        repositories.GameRepository
	close        func() error
}

func main() {
	logLevel := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logLevel.Set(cfg.LogLevel)
	logger.Info("configuration loaded",
		slog.Int("port", cfg.ServerPort),
		slog.String("storage_driver", cfg.StorageDriver),
		slog.String("log_level", cfg.LogLevel.String()),
	)

	repos, err := openRepositories(cfg, logger)
	if err != nil {
		logger.Error("failed to open storage", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := repos.close(); err != nil {
			logger.Error("failed to close storage", slog.Any("error", err))
		}
	}()

	var uploader storage.FileUploader
	if cfg.R2.Complete() {
		uploader, err = storage.NewCloudflareR2Uploader(context.Background(), cfg.R2)
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	} else {
		logger.Warn("R2 is not configured, logo uploads and bracket archives are disabled")
	}

	hubDone := make(chan struct{})
	wsHub := brackets.NewHub(logger)
	go wsHub.Run(hubDone)
	defer close(hubDone)

	locks := services.NewTournamentLocks()
	participantService := services.NewParticipantService(repos.participants, repos.tournaments, locks, wsHub, logger)
	bracketService := services.NewBracketService(brackets.NewSingleEliminationGenerator(), repos.matches, repos.tournaments, logger)
	tournamentService := services.NewTournamentService(
		repos.txManager,
		repos.tournaments,
		repos.participants,
		participantService,
		bracketService,
		uploader,
		locks,
		wsHub,
		logger,
	)
	matchService := services.NewMatchService(
		repos.txManager,
		repos.matches,
		repos.tournaments,
		repos.games,
		participantService,
		tournamentService,
		locks,
		wsHub,
		services.NewBracketArchiver(uploader),
		logger,
	)

	router := chi.NewRouter()
	routes.SetupRoutes(router, routes.Handlers{
		Tournament:  handlers.NewTournamentHandler(tournamentService, matchService),
		Participant: handlers.NewParticipantHandler(participantService),
		Match:       handlers.NewMatchHandler(matchService),
		WebSocket:   handlers.NewWebSocketHandler(wsHub, tournamentService, cfg.CORSAllowedOrigins, logger),
	}, routes.Options{
		JWTSecret:      []byte(cfg.JWTSecretKey),
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			return
		}
		logger.Info("server stopped")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			return
		}
		logger.Info("server shutdown complete")
	}
}

func openRepositories(cfg *config.Config, logger *slog.Logger) (*repositorySet, error) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		store := memory.NewStore()
		logger.Warn("using in-memory storage, data is lost on restart")
		return &repositorySet{
			txManager:    store.TxManager(),
			tournaments:  store.Tournaments(),
			participants: store.Participants(),
			matches:      store.Matches(),
			games:        store.Games(),
			close:        func() error { return nil },
		}, nil
	}

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		return nil, err
	}
	logger.Info("database connection established")

	if cfg.RunMigrations {
		if err := db.Migrate(dbConn.DB); err != nil {
			_ = dbConn.Close()
			return nil, err
		}
		logger.Info("database migrations applied")
	}

	return &repositorySet{
		txManager:    repositories.NewPostgresTxManager(dbConn),
		tournaments:  repositories.NewPostgresTournamentRepository(dbConn),
		participants: repositories.NewPostgresParticipantRepository(dbConn),
		matches:      repositories.NewPostgresMatchRepository(dbConn),
		games:        repositories.NewPostgresGameRepository(dbConn),
		close:        dbConn.Close,
	}, nil
}
