package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/isdelr/contacts-be/internal/api"
	"github.com/isdelr/contacts-be/internal/auth"
	"github.com/isdelr/contacts-be/internal/avatar"
	"github.com/isdelr/contacts-be/internal/cache"
	"github.com/isdelr/contacts-be/internal/config"
	"github.com/isdelr/contacts-be/internal/database"
	"github.com/isdelr/contacts-be/internal/logger"
	"github.com/isdelr/contacts-be/internal/mail"
	"github.com/isdelr/contacts-be/internal/reminders"
	"github.com/isdelr/contacts-be/internal/repository"
	"github.com/isdelr/contacts-be/internal/services"
	"github.com/isdelr/contacts-be/internal/storage"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger.Init(cfg.LogLevel, !cfg.IsProduction())

	// Set up database
	db, err := database.New(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}

	// Set up Redis for the identity cache and the rate limiter
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unreachable, identity cache and rate limiting degraded")
	}

	// Set up external collaborators
	images, err := storage.NewS3Store(context.Background(), storage.S3Options{
		Bucket:        cfg.S3Bucket,
		Region:        cfg.S3Region,
		Endpoint:      cfg.S3Endpoint,
		AccessKey:     cfg.S3AccessKey,
		SecretKey:     cfg.S3SecretKey,
		PublicBaseURL: cfg.S3PublicBaseURL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize image storage")
	}
	mailer := mail.NewSMTPSender(mail.SMTPOptions{
		Host:     cfg.MailServer,
		Port:     cfg.MailPort,
		Username: cfg.MailUsername,
		Password: cfg.MailPassword,
		From:     cfg.MailFrom,
		FromName: cfg.MailFromName,
	})
	gravatar := avatar.NewGravatar(&http.Client{Timeout: 5 * time.Second})

	// Set up services
	tokens, err := auth.NewTokenIssuer(cfg.SecretKey, cfg.JWTAlgorithm, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize token issuer")
	}
	userRepo := repository.NewUserRepository(db, gravatar)
	contactRepo := repository.NewContactRepository(db)
	authService := auth.NewService(tokens, userRepo, cache.NewRedisCache[auth.CachedUser](rdb, "user:"))
	userService := services.NewUserService(userRepo, authService, images, mailer, services.TokenTTLs{
		Access:  cfg.AccessTokenTTL,
		Refresh: cfg.RefreshTokenTTL,
	})
	contactService := services.NewContactService(contactRepo, nil)

	// Set up and run the birthday reminder scheduler
	var scheduler *reminders.Scheduler
	if cfg.BirthdayReminderCron != "" {
		scheduler, err = reminders.NewScheduler(userRepo, contactRepo, mailer, cfg.BirthdayReminderCron)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize birthday reminders")
		}
		go scheduler.Run()
	}

	// Set up router
	router := api.NewRouter(api.Deps{
		Auth:        authService,
		Users:       userService,
		Contacts:    contactService,
		Limiter:     redis_rate.NewLimiter(rdb),
		Health:      func(ctx context.Context) error { return database.Ping(ctx, db) },
		CORSOrigins: cfg.CORSOrigins,
		BaseURL:     cfg.BaseURL,
	})

	// Set up server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Str("env", cfg.Environment).Msg("Server starting")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("ListenAndServe failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	if scheduler != nil {
		scheduler.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting")
}
