// Package consumer 从 Redis Streams 消费 UI 触发事件并驱动同步编排器
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/lihe8811/AquaSense/internal/models"
	"github.com/lihe8811/AquaSense/internal/service"
)

const (
	EventSessionAcquired = "session.acquired"
	EventSessionCleared  = "session.cleared"
	EventScreenEntered   = "screen.entered"
	EventScanStarted     = "scan.started"
	EventScanCompleted   = "scan.completed"
	EventReportGenerate  = "report.generate"
)

var errInvalidEvent = errors.New("invalid event")

// Orchestrator 事件驱动的状态迁移
// 触发同步的迁移在状态变更后立即返回，拉取在编排器后台执行，不阻塞后续事件
type Orchestrator interface {
	SessionAcquiredAsync(ctx context.Context, session models.AuthSession)
	SessionCleared(ctx context.Context)
	RefreshAsync(ctx context.Context) error
	StartScan() (models.TestSession, error)
	MarkScanned(kind models.ScanKind) (models.TestSession, error)
	RequestGeneration(ctx context.Context) (models.ReportItem, error)
}

// TriggerEvent UI 触发事件
type TriggerEvent struct {
	EventType string `json:"event_type"`
	UserID    string `json:"user_id,omitempty"`
	Token     string `json:"token,omitempty"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	ScanType  string `json:"scan_type,omitempty"`
	Screen    string `json:"screen,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// TriggerConsumer 触发事件消费者
type TriggerConsumer struct {
	redisClient  *redis.Client
	orchestrator Orchestrator
	logger       *zap.Logger
	stream       string
	groupName    string
	consumerName string
	batchSize    int64
	block        time.Duration
}

// NewTriggerConsumer 创建触发事件消费者
func NewTriggerConsumer(
	redisClient *redis.Client,
	orchestrator Orchestrator,
	logger *zap.Logger,
	stream string,
	groupName string,
	consumerName string,
	batchSize int64,
) *TriggerConsumer {
	return &TriggerConsumer{
		redisClient:  redisClient,
		orchestrator: orchestrator,
		logger:       logger,
		stream:       stream,
		groupName:    groupName,
		consumerName: consumerName,
		batchSize:    batchSize,
		block:        5 * time.Second,
	}
}

// Start 消费事件直到 ctx 取消，读取失败时指数退避
func (c *TriggerConsumer) Start(ctx context.Context) error {
	if err := CreateConsumerGroup(ctx, c.redisClient, c.stream, c.groupName); err != nil {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	c.logger.Info("Trigger consumer started",
		zap.String("stream", c.stream),
		zap.String("consumer_group", c.groupName),
		zap.String("consumer_name", c.consumerName),
	)

	backoffDuration := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := c.consumeEvents(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("Failed to consume events",
				zap.Error(err),
				zap.Duration("backoff", backoffDuration),
			)

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoffDuration):
				backoffDuration *= 2
				if backoffDuration > maxBackoff {
					backoffDuration = maxBackoff
				}
			}
			continue
		}
		backoffDuration = time.Second
	}
}

func (c *TriggerConsumer) consumeEvents(ctx context.Context) error {
	messages, err := ReadFromStream(ctx, c.redisClient, c.stream, c.groupName, c.consumerName, c.batchSize, c.block)
	if err != nil {
		return fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, msg := range messages {
		err := c.processEvent(ctx, msg)
		switch {
		case err == nil:
		case errors.Is(err, errInvalidEvent):
			// 无法解析的消息重试也没有意义，确认后丢弃
			c.logger.Warn("Dropping invalid event",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
		default:
			c.logger.Error("Failed to process event",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
			continue
		}

		if err := c.ackMessage(ctx, msg.ID); err != nil {
			c.logger.Warn("Failed to ack message",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// processEvent 把事件翻译成编排器的状态迁移
// 编排器自己处理同步失败，这里只在事件本身无效时返回错误
func (c *TriggerConsumer) processEvent(ctx context.Context, msg StreamMessage) error {
	event, err := parseEvent(msg)
	if err != nil {
		return err
	}

	c.logger.Info("Processing trigger event",
		zap.String("event_type", event.EventType),
		zap.String("user_id", event.UserID),
		zap.String("screen", event.Screen),
	)

	switch event.EventType {
	case EventSessionAcquired:
		session, err := event.session()
		if err != nil {
			return err
		}
		c.orchestrator.SessionAcquiredAsync(ctx, session)

	case EventSessionCleared:
		c.orchestrator.SessionCleared(ctx)

	case EventScreenEntered:
		if !models.Screen(event.Screen).TriggersSync() {
			return nil
		}
		c.logIgnored(event, c.orchestrator.RefreshAsync(ctx))

	case EventScanStarted:
		_, err := c.orchestrator.StartScan()
		c.logIgnored(event, err)

	case EventScanCompleted:
		_, err := c.orchestrator.MarkScanned(models.ScanKind(event.ScanType))
		if errors.Is(err, service.ErrUnknownScanKind) {
			return fmt.Errorf("%w: scan_type %q", errInvalidEvent, event.ScanType)
		}
		c.logIgnored(event, err)

	case EventReportGenerate:
		_, err := c.orchestrator.RequestGeneration(ctx)
		c.logIgnored(event, err)

	default:
		c.logger.Warn("Unknown event type", zap.String("event_type", event.EventType))
	}

	return nil
}

// logIgnored 编排器拒绝的迁移（如没有会话）只记录，不重试
func (c *TriggerConsumer) logIgnored(event *TriggerEvent, err error) {
	if err == nil {
		return
	}
	c.logger.Warn("Trigger event not applied",
		zap.String("event_type", event.EventType),
		zap.Error(err),
	)
}

// parseEvent 优先解析 data 字段中的 JSON，否则读取扁平字段
func parseEvent(msg StreamMessage) (*TriggerEvent, error) {
	if dataStr, ok := msg.Values["data"].(string); ok {
		var event TriggerEvent
		if err := json.Unmarshal([]byte(dataStr), &event); err == nil && event.EventType != "" {
			return &event, nil
		}
	}

	str := func(key string) string {
		v, _ := msg.Values[key].(string)
		return v
	}
	event := &TriggerEvent{
		EventType: str("event_type"),
		UserID:    str("user_id"),
		Token:     str("token"),
		Email:     str("email"),
		Name:      str("name"),
		ScanType:  str("scan_type"),
		Screen:    str("screen"),
	}
	if ts, err := strconv.ParseInt(str("timestamp"), 10, 64); err == nil {
		event.Timestamp = ts
	}

	if event.EventType == "" {
		return nil, fmt.Errorf("%w: missing event_type", errInvalidEvent)
	}
	return event, nil
}

// session 从 session.acquired 事件构造会话；数值 user_id 作为 ID，否则依赖 email
func (e *TriggerEvent) session() (models.AuthSession, error) {
	if e.Token == "" {
		return models.AuthSession{}, fmt.Errorf("%w: session without token", errInvalidEvent)
	}
	session := models.AuthSession{Token: e.Token, Email: e.Email, Name: e.Name}
	if id, err := strconv.ParseInt(e.UserID, 10, 64); err == nil {
		session.ID = &id
	}
	if session.UserID() == "" {
		return models.AuthSession{}, fmt.Errorf("%w: session without user_id or email", errInvalidEvent)
	}
	return session, nil
}

func (c *TriggerConsumer) ackMessage(ctx context.Context, messageID string) error {
	return c.redisClient.XAck(ctx, c.stream, c.groupName, messageID).Err()
}
