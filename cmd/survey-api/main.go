package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/kleymenovo/survey-api/api/swagger"
	"github.com/kleymenovo/survey-api/internal/handler"
	"github.com/kleymenovo/survey-api/internal/middleware"
	"github.com/kleymenovo/survey-api/internal/models"
	"github.com/kleymenovo/survey-api/internal/repository"
	"github.com/kleymenovo/survey-api/internal/service"
	"github.com/kleymenovo/survey-api/pkg/cache"
	"github.com/kleymenovo/survey-api/pkg/config"
	"github.com/kleymenovo/survey-api/pkg/database"
	"github.com/kleymenovo/survey-api/pkg/logger"
	"github.com/kleymenovo/survey-api/pkg/mailer"
	corsmiddleware "github.com/kleymenovo/survey-api/pkg/middleware/cors"
	reqidmiddleware "github.com/kleymenovo/survey-api/pkg/middleware/requestid"
	"github.com/kleymenovo/survey-api/pkg/storage"
)

// @title Resident Survey API
// @version 1.0.0
// @description Survey submission backend: sessions, email verification, comment moderation and public statistics
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, stats cache disabled", "error", err)
		redisClient = nil
	}

	consentStorage, err := storage.NewLocalStorage(cfg.Consents.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init consent storage", "error", err)
	}

	questions := models.QuestionMap{
		FullNameID:  cfg.Questions.FullNameID,
		CadastralID: cfg.Questions.CadastralID,
		EmailID:     cfg.Questions.EmailID,
		PhoneID:     cfg.Questions.PhoneID,
		CommentsID:  cfg.Questions.CommentsID,
	}

	responseRepo := repository.NewResponseRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	identityRepo := repository.NewIdentityRepository(db)
	verificationRepo := repository.NewVerificationRepository(db)
	likeRepo := repository.NewLikeRepository(db)
	statsRepo := repository.NewStatsRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient)

	{
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := questionRepo.VerifyWellKnown(ctx, questions); err != nil {
			cancel()
			logr.Sugar().Fatalw("question catalog mismatch", "error", err)
		}
		cancel()
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	var classifier service.Classifier
	if cfg.Moderation.APIKey != "" {
		classifier = service.NewChatClassifier(cfg.Moderation, logr)
	} else {
		logr.Info("external comment classifier disabled, basic validation only")
	}
	moderationSvc := service.NewModerationService(classifier, metricsSvc, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Stats.CacheTTL, logr, redisClient != nil)
	statsSvc := service.NewStatsService(statsRepo, cacheSvc, questions, cfg.Stats.CacheTTL, logr)
	identitySvc := service.NewIdentityService(identityRepo, questions, logr)
	sessionSvc := service.NewSessionService(responseRepo, identitySvc, moderationSvc, statsSvc, consentStorage, questions, validate, logr)
	verificationSvc := service.NewVerificationService(
		verificationRepo,
		responseRepo,
		mailer.NewSMTPSender(cfg.SMTP, logr),
		questions,
		cfg.Verification.ResendInterval,
		cfg.Verification.CodeTTL,
		logr,
	)
	likeSvc := service.NewLikeService(likeRepo, responseRepo, statsSvc, logr)
	adminSvc := service.NewAdminService(responseRepo, statsSvc, logr)

	surveyHandler := handler.NewSurveyHandler(sessionSvc, identitySvc, metricsSvc)
	verificationHandler := handler.NewVerificationHandler(verificationSvc, metricsSvc)
	commentHandler := handler.NewCommentHandler(likeSvc, statsSvc, metricsSvc)
	questionHandler := handler.NewQuestionHandler(questionRepo)
	statsHandler := handler.NewStatsHandler(statsSvc)
	adminHandler := handler.NewAdminHandler(adminSvc, statsSvc, consentStorage)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	survey := api.Group("/survey")
	{
		survey.POST("/sessions", surveyHandler.CreateSession)
		survey.GET("/questions", questionHandler.List)
		survey.POST("/check-unique", surveyHandler.CheckUnique)
		survey.POST("/check-unfinished", surveyHandler.CheckUnfinished)
		survey.POST("/base", surveyHandler.SubmitBase)
		survey.POST("/details", surveyHandler.SubmitDetails)
		survey.POST("/send-code", verificationHandler.SendCode)
		survey.POST("/verify-code", verificationHandler.VerifyCode)
		survey.GET("/resend-allowance", verificationHandler.ResendAllowance)
		survey.GET("/comments", commentHandler.List)
		survey.POST("/comments/:answerId/like", commentHandler.Like)
	}

	api.GET("/stats/summary", statsHandler.Summary)

	admin := api.Group("/admin", middleware.AdminJWT(cfg.Admin.JWTSecret))
	{
		admin.PATCH("/answers/:id/moderation", adminHandler.SetModeration)
		admin.GET("/export/responses.csv", adminHandler.ExportCSV)
		admin.GET("/consents/:filename", adminHandler.DownloadConsent)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
