package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	restctx "github.com/avdeyev/schoolhub-server/internal/api/rest/context"
	"github.com/avdeyev/schoolhub-server/internal/api/rest/handler"
	"github.com/avdeyev/schoolhub-server/internal/api/rest/middleware"
	"github.com/avdeyev/schoolhub-server/internal/api/rest/router"
	"github.com/avdeyev/schoolhub-server/internal/config"
	"github.com/avdeyev/schoolhub-server/internal/logger"
	"github.com/avdeyev/schoolhub-server/internal/mailer"
	"github.com/avdeyev/schoolhub-server/internal/model"
	"github.com/avdeyev/schoolhub-server/internal/repository/postgres"
	"github.com/avdeyev/schoolhub-server/internal/server"
	"github.com/avdeyev/schoolhub-server/internal/service"
	storage "github.com/avdeyev/schoolhub-server/internal/storage/minio"
	"github.com/avdeyev/schoolhub-server/internal/token"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	db, err := postgres.NewConnection(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("failed to initialize storage", "error", err)
	}
	defer db.Close()

	userRepo := postgres.NewUserRepository(db)
	refreshTokenRepo := postgres.NewRefreshTokenRepository(db)
	tokenManager := token.NewJWT(cfg.JWT.Secret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)

	smtpMailer, err := mailer.NewSMTP(mailer.Options{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		SiteName: cfg.SMTP.SiteName,
		Timeout:  cfg.SMTP.SendTimeout,
	})
	if err != nil {
		logger.Fatal("failed to create smtp mailer", "error", err)
	}

	tokenService := service.NewTokenService(tokenManager, refreshTokenRepo, logger, cfg.JWT.RefreshTTL)
	authService := service.NewAuth(userRepo, tokenService, smtpMailer, logger,
		service.LockoutPolicy{
			MaxAttempts: cfg.Auth.LoginAttempts,
			Duration:    cfg.Auth.LockoutDuration,
		},
		service.OTPPolicy{
			Length:     cfg.Auth.OTPLength,
			Expiration: cfg.Auth.OTPExpiration,
		},
	)

	minioClient, err := minio.New(cfg.Storage.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Storage.AccessKey, cfg.Storage.SecretKey, ""),
		Secure: cfg.Storage.UseSSL,
	})
	if err != nil {
		logger.Fatal("failed to create minio client", "error", err)
	}
	storageClient, err := storage.NewClient(ctx, minioClient, cfg.Storage.Bucket)
	if err != nil {
		logger.Fatal("failed to initialize storage client", "error", err)
	}

	profileService := service.NewProfile(userRepo, storageClient, logger)
	ctxMgr := restctx.NewManager()

	cookies := handler.NewCookieWriter(cfg.Cookie, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)
	authHandler := handler.NewAuth(authService, tokenService, cookies, logger)
	profileHandler := handler.NewProfile(profileService, ctxMgr, logger)
	authenticate := middleware.NewAuthenticate(tokenService, ctxMgr, logger)
	logging := middleware.NewLogging(logger)

	mux := router.New(authHandler, profileHandler, authenticate, logging)
	httpServer := server.NewHTTPServer(mux, fmt.Sprintf(":%s", cfg.HTTP.Port))

	var sl model.SecurityLayer
	if cfg.HTTP.EnableHTTPS {
		sl = server.NewTLSListener(cfg.HTTP.CertFileName, cfg.HTTP.PrivateKeyFileName)
	} else {
		sl = server.NewPlainListener()
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func(s model.Server) {
		defer wg.Done()
		logger.Info("Starting server on", "address", s.Address())
		err := s.Start(sl)
		if err != nil {
			logger.Error("failed to start server", "error", err)
		}
	}(httpServer)

	logAppVersion()

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", "error", err, "address", httpServer.Address())
	}

	wg.Wait()
	logger.Info("shutdown complete")
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}
