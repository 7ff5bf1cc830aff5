// Package notify 把同步状态快照推送给 UI
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/lihe8811/AquaSense/internal/config"
	"github.com/lihe8811/AquaSense/internal/models"
)

// SnapshotTopic 用户快照主题
func SnapshotTopic(userID string) string {
	return fmt.Sprintf("aquasense/%s/snapshot", userID)
}

// publisher mqtt.Client 中用到的部分
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTNotifier 以 retained 消息发布快照，UI 订阅后立即拿到最新状态
type MQTTNotifier struct {
	client publisher
	qos    byte
	logger *zap.Logger

	mu       sync.Mutex
	lastUser string
}

// NewMQTTNotifier 连接 broker 并创建 notifier
func NewMQTTNotifier(cfg *config.MQTTConfig, logger *zap.Logger) (*MQTTNotifier, mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", zap.Error(err))
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return newMQTTNotifier(client, cfg.QoS, logger), client, nil
}

func newMQTTNotifier(client publisher, qos byte, logger *zap.Logger) *MQTTNotifier {
	return &MQTTNotifier{client: client, qos: qos, logger: logger}
}

// Publish 发布快照
// 登出后的快照没有 userId，此时发到上一个用户的主题，让 UI 清空
func (n *MQTTNotifier) Publish(ctx context.Context, snap models.Snapshot) error {
	n.mu.Lock()
	userID := snap.UserID
	if userID == "" {
		userID = n.lastUser
	} else {
		n.lastUser = userID
	}
	n.mu.Unlock()

	if userID == "" {
		return nil
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	topic := SnapshotTopic(userID)
	token := n.client.Publish(topic, n.qos, true, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, err)
	}

	n.logger.Debug("Snapshot published",
		zap.String("topic", topic),
		zap.Uint64("version", snap.Version),
		zap.String("status", string(snap.Status)),
	)
	return nil
}

// NopNotifier 未启用 MQTT 时使用
type NopNotifier struct{}

func (NopNotifier) Publish(context.Context, models.Snapshot) error { return nil }
