package main

import (
	"context"
	"io"

	"github.com/huangang/studyhub/internal/config"
	"github.com/huangang/studyhub/internal/handlers"
	"github.com/huangang/studyhub/internal/models"
	"github.com/huangang/studyhub/internal/services"
	"github.com/huangang/studyhub/internal/storage"
	"github.com/huangang/studyhub/internal/utils"
	"github.com/huangang/studyhub/pkg/logger"
	"gorm.io/gorm"
)

// appServices holds all initialized services and handlers needed by the application.
type appServices struct {
	cfg       *config.Config
	db        *gorm.DB
	store     storage.Store
	taskQueue services.TaskQueue
	worker    *services.Worker
	cleanup   *services.CleanupScheduler
	hub       *services.NotificationHub

	authHandler         *handlers.AuthHandler
	userHandler         *handlers.UserHandler
	studyHandler        *handlers.StudyHandler
	memberHandler       *handlers.MemberHandler
	boardHandler        *handlers.BoardHandler
	sessionHandler      *handlers.SessionHandler
	fileHandler         *handlers.FileHandler
	notificationHandler *handlers.NotificationHandler
	sseHandler          *handlers.SSEHandler
	systemLogHandler    *handlers.SystemLogHandler
	healthHandler       *handlers.HealthHandler
}

// openDB connects and migrates the database. It is shared by serve and the admin commands.
func openDB(cfg *config.Config) *gorm.DB {
	if err := models.InitDB(&cfg.Database, cfg.Server.Mode); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	return models.GetDB()
}

// bootstrap initializes all application dependencies: database, storage, queue, services, schedulers.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)
	db := openDB(cfg)

	services.InitSystemLogger(db)
	if err := handlers.RegisterValidators(); err != nil {
		logger.Fatalf("Failed to register request validators: %v", err)
	}

	store, err := storage.New(context.Background(), cfg.Storage)
	if err != nil {
		logger.Fatalf("Failed to initialize file storage: %v", err)
	}

	// Task queue: Redis-backed when enabled, otherwise emails are sent inline
	mailer := services.NewMailer(&cfg.Mail)
	taskQueue := services.InitTaskQueue(cfg)
	if syncQueue, ok := taskQueue.(*services.SyncQueue); ok {
		syncQueue.SetProcessor(services.EmailProcessor(mailer))
	}

	var worker *services.Worker
	if cfg.Redis.Enabled {
		worker = services.NewWorker(&cfg.Redis)
		if worker != nil {
			worker.SetProcessor(services.EmailProcessor(mailer))
			if err := worker.Start(); err != nil {
				logger.Error().Err(err).Msg("Failed to start email worker")
			}
		}
	}

	hub := services.GetNotificationHub()
	notifier := services.NewNotificationService(db, hub)

	authService := services.NewAuthService(db, cfg, taskQueue)
	studyService := services.NewStudyService(db)
	boardService := services.NewBoardService(db, notifier)
	recorder := services.NewAttendanceRecorder(db, notifier)
	holidays := services.NewHolidayCalendar(cfg.App.HolidayCountry)

	cleanup := services.NewCleanupScheduler(db, &cfg.App)
	if err := cleanup.Start(); err != nil {
		logger.Error().Err(err).Msg("Failed to start cleanup scheduler")
	}

	if err := authService.CreateAdminIfNotExists(cfg.App.AdminEmail, cfg.App.AdminPassword); err != nil {
		logger.Warn().Err(err).Msg("Failed to create admin user")
	}

	return &appServices{
		cfg:       cfg,
		db:        db,
		store:     store,
		taskQueue: taskQueue,
		worker:    worker,
		cleanup:   cleanup,
		hub:       hub,

		authHandler: handlers.NewAuthHandler(authService),
		userHandler: handlers.NewUserHandler(services.NewUserService(db)),
		studyHandler: handlers.NewStudyHandler(
			studyService,
			services.NewApplicationService(db, notifier),
			services.NewRoomService(db, boardService),
		),
		memberHandler:       handlers.NewMemberHandler(services.NewMembershipService(db)),
		boardHandler:        handlers.NewBoardHandler(boardService),
		sessionHandler:      handlers.NewSessionHandler(services.NewSessionService(db, recorder, holidays)),
		fileHandler:         handlers.NewFileHandler(services.NewFileService(db, store, notifier, cfg.Storage.MaxFileSize(), cfg.Storage.MaxFilesPerStudy)),
		notificationHandler: handlers.NewNotificationHandler(notifier),
		sseHandler:          handlers.NewSSEHandler(hub),
		systemLogHandler:    handlers.NewSystemLogHandler(services.NewSystemLogService(db), cleanup),
		healthHandler:       handlers.NewHealthHandler(db, taskQueue, hub, store),
	}
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	s.cleanup.Stop()
	logger.Info().Msg("Cleanup scheduler stopped")

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		if err := s.taskQueue.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close task queue")
		}
	}
	if c, ok := s.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close file storage")
		}
	}
	if sqlDB, err := s.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
