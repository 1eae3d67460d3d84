package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scoring-service/internal/api"
	"scoring-service/internal/clients/framescorer"
	"scoring-service/internal/clients/ledger"
	"scoring-service/internal/clients/narrative"
	"scoring-service/internal/config"
	"scoring-service/internal/domain/repositories"
	"scoring-service/internal/logger"
	"scoring-service/internal/media"
	"scoring-service/internal/messaging"
	"scoring-service/internal/services"
	"scoring-service/internal/storage"
)

func main() {
	fmt.Println("评分服务启动中...")

	// 获取配置文件路径
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "/app/config/scoring-service.yaml"
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	appLogger := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		ServiceName: "scoring-service",
		JSONFormat:  cfg.Log.JSONFormat,
	})

	// 获取服务端口
	serverPort := os.Getenv("SERVER_PORT")
	if serverPort == "" {
		serverPort = cfg.Server.Port
	}
	if serverPort == "" {
		serverPort = "8080"
	}

	// 初始化数据库
	db, err := storage.NewDBConnection(cfg.Database)
	if err != nil {
		appLogger.Fatal("连接数据库失败: %v", err)
	}
	defer db.Close()

	// 初始化对象存储
	storageService, err := storage.NewStorageService(cfg)
	if err != nil {
		appLogger.Fatal("初始化对象存储失败: %v", err)
	}

	// 初始化消息服务
	var producer services.EventPublisher
	kafkaProducer, err := messaging.NewKafkaProducer(cfg.Kafka)
	if err != nil {
		appLogger.WithError(err).Warn("连接Kafka失败, 将以无消息队列模式运行")
	} else {
		producer = kafkaProducer
		defer kafkaProducer.Close()
	}

	// 初始化仓库
	submissionRepo := repositories.NewSubmissionRepository(db)
	linkRepo := repositories.NewPlatformLinkRepository(db)
	frameRepo := repositories.NewFrameRepository(db)
	progressRepo := repositories.NewProgressRepository(db)

	// 初始化帧抽取器与外部协作方
	extractor, err := media.NewFFmpegExtractor()
	if err != nil {
		appLogger.Fatal("初始化帧抽取器失败: %v", err)
	}
	frameScorerClient := framescorer.NewClient(cfg.Clients.FrameScorerURL)
	narrativeClient := narrative.NewClient(cfg.Clients.NarrativeGeneratorURL)
	ledgerClient := ledger.NewClient(cfg.Clients.CreditLedgerURL)

	// 初始化服务层
	analysisService := services.NewAnalysisService(
		submissionRepo, linkRepo, frameRepo, progressRepo,
		extractor, frameScorerClient, narrativeClient, ledgerClient,
		storageService, producer, cfg.Pipeline, cfg.Scoring, appLogger,
	)
	submissionService := services.NewSubmissionService(
		submissionRepo, linkRepo, progressRepo, analysisService, producer, appLogger,
	)
	adminService := services.NewAdminService(submissionRepo, ledgerClient, producer, appLogger)

	// 初始化API路由
	router := api.NewRouter(cfg, submissionService, adminService)

	// 创建HTTP服务器
	server := &http.Server{
		Addr:    ":" + serverPort,
		Handler: router,
	}

	// 在goroutine中启动服务器，以便不阻塞信号处理
	go func() {
		appLogger.Info("评分服务已启动，端口: %s", serverPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("监听错误: %v", err)
		}
	}()

	// 等待中断信号优雅关闭服务器
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("正在关闭评分服务...")

	// 创建一个5秒的超时上下文，用于优雅关闭
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 优雅关闭服务器
	if err := server.Shutdown(ctx); err != nil {
		appLogger.Fatal("服务器关闭错误: %v", err)
	}

	appLogger.Info("评分服务已关闭")
}
