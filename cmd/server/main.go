package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/user/marketplace-billing-api/internal/config"
	"github.com/user/marketplace-billing-api/internal/handlers"
	"github.com/user/marketplace-billing-api/internal/middleware"
	"github.com/user/marketplace-billing-api/internal/repository"
	"github.com/user/marketplace-billing-api/internal/services/ai"
	"github.com/user/marketplace-billing-api/internal/services/aiqueue"
	"github.com/user/marketplace-billing-api/internal/services/auth"
	"github.com/user/marketplace-billing-api/internal/services/billing"
	"github.com/user/marketplace-billing-api/internal/services/cbu"
	"github.com/user/marketplace-billing-api/internal/services/email"
	"github.com/user/marketplace-billing-api/internal/services/statement"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	// Подключение к БД
	db, err := repository.NewPostgresDB(cfg.Database)
	if err != nil {
		log.Fatalf("Ошибка подключения к БД: %v", err)
	}

	// Инициализация репозиториев
	repo := repository.NewRepository(db)

	// Инициализация сервисов
	emailService := email.NewService(cfg.SMTP)
	billingService := billing.NewService(db, repo, cfg.Billing)
	billingService.SetNotifier(emailService)
	syncService := billing.NewSyncService(repo, billingService, nil)
	cbuService := cbu.NewService(repo)
	statementGen := statement.NewGenerator()

	// Инициализация AI сервиса и очереди задач
	aiService := ai.NewService(repo, cfg.AI)
	if err := aiService.Initialize(context.Background()); err != nil {
		log.Printf("[AI] Предупреждение: ошибка инициализации AI: %v", err)
	}
	queue := aiqueue.NewQueue(repo, aiqueue.NewDispatcher(aiService))
	if err := queue.Restore(); err != nil {
		log.Printf("[AIQueue] Предупреждение: %v", err)
	}

	// Инициализация cron-задач
	c := cron.New(cron.WithLocation(time.UTC))

	// Ежедневная синхронизация продаж - 03:00 UTC (08:00 по Ташкенту)
	_, err = c.AddFunc("0 3 * * *", func() {
		log.Println("[Cron] Запуск ежедневной синхронизации...")
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
		defer cancel()
		if _, err := syncService.RunDailySyncJob(ctx); err != nil {
			log.Printf("[Cron] Ошибка синхронизации: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Ошибка добавления cron-задачи синхронизации: %v", err)
	}

	// Курсы валют ЦБ РУз - ежедневно в 04:00 UTC (09:00 по Ташкенту)
	_, err = c.AddFunc("0 4 * * *", func() {
		log.Println("[Cron] Запуск получения курсов ЦБ РУз...")
		if err := cbuService.FetchExchangeRates(); err != nil {
			log.Printf("[Cron] Ошибка получения курсов: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Ошибка добавления cron-задачи курсов: %v", err)
	}

	// Загрузка курсов при запуске приложения
	go func() {
		log.Println("[Старт] Проверка курсов...")
		if err := cbuService.FetchExchangeRates(); err != nil {
			log.Printf("[Старт] Ошибка загрузки курсов: %v", err)
		}
	}()

	c.Start()
	defer c.Stop()

	// Инициализация HTTP-сервера
	router := gin.Default()

	// CORS middleware
	router.Use(middleware.CORS())

	// Auth handlers
	authHandler := auth.NewAuthHandler(repo, emailService)

	// API handlers
	h := handlers.NewHandler(repo, billingService, syncService, statementGen)
	aiHandler := handlers.NewAIHandler(repo, queue, aiService)

	// Маршруты API
	api := router.Group("/api")
	{
		// Авторизация (без middleware)
		api.POST("/auth/request-code", authHandler.RequestCode)
		api.POST("/auth/verify-code", authHandler.VerifyCode)
		api.GET("/auth/me", middleware.Auth(), authHandler.GetCurrentUser)

		// Партнёры
		partners := api.Group("/partners")
		partners.Use(middleware.Auth(), middleware.PartnerContext())
		{
			partners.GET("", h.GetPartners)
			partners.GET("/:id", h.GetPartner)
			partners.GET("/:id/accounts", h.GetPartnerAccounts)
			partners.GET("/:id/tracking", h.GetPartnerTracking)
			partners.GET("/:id/payments", h.GetPartnerPayments)
			partners.GET("/:id/statement/:month", h.GetMonthlyStatement)
			partners.GET("/:id/ai-tasks", aiHandler.GetPartnerTasks)
		}

		// Управление партнёрами (только для админов)
		adminPartners := api.Group("/partners")
		adminPartners.Use(middleware.Auth(), middleware.RequireAdmin())
		{
			adminPartners.POST("", h.CreatePartner)
			adminPartners.PUT("/:id", h.UpdatePartner)
			adminPartners.POST("/:id/accounts", h.CreatePartnerAccount)
			adminPartners.POST("/:id/sales", h.UpdateMonthlySales)
			adminPartners.POST("/:id/payments", h.RecordPayment)
			adminPartners.POST("/:id/unblock", h.UnblockPartner)
		}

		// Платежи (только для админов)
		payments := api.Group("/payments")
		payments.Use(middleware.Auth(), middleware.RequireAdmin())
		{
			payments.GET("/pending", h.GetPendingManualPayments)
			payments.POST("/:id/confirm", h.ConfirmManualPayment)
		}

		// AI-задачи
		aiTasks := api.Group("/ai")
		aiTasks.Use(middleware.Auth())
		{
			aiTasks.POST("/tasks", aiHandler.EnqueueTask)
			aiTasks.POST("/tasks/batch", aiHandler.EnqueueBatch)
			aiTasks.GET("/tasks/:id", aiHandler.GetTaskStatus)
			aiTasks.GET("/pending", aiHandler.GetPendingCount)
		}

		// Настройки AI (только для админов)
		aiAdmin := api.Group("/ai")
		aiAdmin.Use(middleware.Auth(), middleware.RequireAdmin())
		{
			aiAdmin.GET("/settings", aiHandler.GetAISettings)
			aiAdmin.PUT("/settings", aiHandler.UpdateAISettings)
			aiAdmin.GET("/usage", aiHandler.GetAIUsage)
		}

		// Сервисные операции (только для админов)
		admin := api.Group("/admin")
		admin.Use(middleware.Auth(), middleware.RequireAdmin())
		{
			admin.POST("/sync", h.RunSync)
			admin.POST("/block-check", h.RunBlockCheck)
			admin.GET("/dashboard", h.GetDashboard)
			admin.GET("/exchange-rates", h.GetExchangeRates)
			admin.GET("/audit", h.GetAuditLogs)
		}
	}

	// Запуск сервера
	log.Printf("Сервер запущен на порту %s", cfg.Server.Port)
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Ошибка запуска сервера: %v", err)
	}
}
