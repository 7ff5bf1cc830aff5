// Package app 组装报告同步服务：Redis 存储、后端客户端、编排器、事件消费者、MQTT 推送和本地 HTTP 接口
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/lihe8811/AquaSense/internal/client"
	"github.com/lihe8811/AquaSense/internal/config"
	"github.com/lihe8811/AquaSense/internal/consumer"
	"github.com/lihe8811/AquaSense/internal/httpapi"
	"github.com/lihe8811/AquaSense/internal/notify"
	"github.com/lihe8811/AquaSense/internal/service"
	"github.com/lihe8811/AquaSense/internal/store"
)

// SyncService 报告同步服务
type SyncService struct {
	config       *config.Config
	logger       *zap.Logger
	redisClient  *redis.Client
	mqttClient   mqtt.Client
	orchestrator *service.Orchestrator
	consumer     *consumer.TriggerConsumer
	httpServer   *http.Server
}

// NewSyncService 创建报告同步服务
func NewSyncService(cfg *config.Config, logger *zap.Logger) (*SyncService, error) {
	redisClient := store.NewRedisClient(&cfg.Redis)
	if err := store.Ping(context.Background(), redisClient); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	localStore := store.NewLocalStore(store.NewRedisBlobStore(redisClient), cfg.Sync.SnapshotTTL, logger)
	backend := client.NewBackendClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, cfg.Backend.RetryCount, logger)

	var (
		notifier   service.Notifier = notify.NopNotifier{}
		mqttClient mqtt.Client
	)
	if cfg.MQTT.Enabled {
		n, c, err := notify.NewMQTTNotifier(&cfg.MQTT, logger)
		if err != nil {
			// 推送只是加速 UI 刷新，UI 仍可通过 HTTP 读取状态
			logger.Warn("MQTT unavailable, snapshots will not be pushed",
				zap.String("broker", cfg.MQTT.Broker),
				zap.Error(err),
			)
		} else {
			notifier, mqttClient = n, c
		}
	}

	orchestrator := service.NewOrchestrator(backend, localStore, notifier, logger)

	triggerConsumer := consumer.NewTriggerConsumer(
		redisClient,
		orchestrator,
		logger,
		cfg.Sync.TriggerStream,
		cfg.Sync.ConsumerGroup,
		cfg.Sync.ConsumerName,
		int64(cfg.Sync.BatchSize),
	)

	handler := httpapi.NewSyncHandler(orchestrator, localStore, logger)

	return &SyncService{
		config:       cfg,
		logger:       logger,
		redisClient:  redisClient,
		mqttClient:   mqttClient,
		orchestrator: orchestrator,
		consumer:     triggerConsumer,
		httpServer: &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           httpapi.NewRouter(handler, logger),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Handler 本地 HTTP 接口
func (s *SyncService) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start 恢复会话后开始消费触发事件（阻塞直到 ctx 取消）
func (s *SyncService) Start(ctx context.Context) error {
	s.logger.Info("Starting report sync service",
		zap.String("backend", s.config.Backend.BaseURL),
		zap.String("http_addr", s.config.HTTP.Addr),
		zap.Duration("poll_interval", s.config.Sync.PollInterval),
	)

	if err := s.orchestrator.Restore(ctx); err != nil {
		s.logger.Error("Failed to restore session", zap.Error(err))
	}

	go s.serveHTTP()

	if s.config.Sync.PollInterval > 0 {
		go s.startPolling(ctx)
	}

	return s.consumer.Start(ctx)
}

func (s *SyncService) serveHTTP() {
	if s.config.HTTP.Addr == "" {
		return
	}
	s.logger.Info("HTTP server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("HTTP server error", zap.Error(err))
	}
}

// startPolling 定时重新同步，作为事件触发之外的兜底
func (s *SyncService) startPolling(ctx context.Context) {
	ticker := time.NewTicker(s.config.Sync.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.orchestrator.Refresh(ctx); err != nil && !errors.Is(err, service.ErrNoSession) {
				s.logger.Warn("Scheduled refresh failed", zap.Error(err))
			}
		}
	}
}

// Stop 停止服务：关闭 HTTP，等待后台生成任务，断开 MQTT 和 Redis
func (s *SyncService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping report sync service")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Error shutting down HTTP server", zap.Error(err))
	}

	s.orchestrator.Wait()

	if s.mqttClient != nil {
		s.mqttClient.Disconnect(250)
	}

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.logger.Error("Error closing redis connection", zap.Error(err))
		}
	}

	s.logger.Info("Report sync service stopped")
	return nil
}
