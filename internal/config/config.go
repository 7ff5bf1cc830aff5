package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT 配置
type MQTTConfig struct {
	Enabled  bool
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// Config 报告同步服务配置
type Config struct {
	Redis RedisConfig
	MQTT  MQTTConfig

	// 报告后端（FastAPI）
	Backend struct {
		BaseURL    string
		Timeout    time.Duration
		RetryCount int // 只作用于 GET，生成请求从不重试
	}

	Sync struct {
		// Redis Streams 触发事件（登录、登出、页面切换、生成请求）
		TriggerStream string
		ConsumerGroup string
		ConsumerName  string
		BatchSize     int

		// 定时刷新间隔，0 表示只在事件触发时同步
		PollInterval time.Duration

		// 本地快照保留时间
		SnapshotTTL time.Duration
	}

	HTTP struct {
		Addr string
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置：先读取可选的 .env，再从环境变量加载（带默认值）
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Enabled = getEnv("MQTT_ENABLED", "true") == "true"
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "aquasense-sync")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = 1

	cfg.Backend.BaseURL = getEnv("BACKEND_BASE_URL", "http://localhost:8000")
	cfg.Backend.Timeout = time.Duration(getEnvInt("BACKEND_TIMEOUT", 120)) * time.Second // 生成报告需要调用模型，默认给足时间
	cfg.Backend.RetryCount = getEnvInt("BACKEND_RETRY_COUNT", 2)

	cfg.Sync.TriggerStream = getEnv("SYNC_TRIGGER_STREAM", "aquasense:triggers")
	cfg.Sync.ConsumerGroup = getEnv("SYNC_CONSUMER_GROUP", "aquasense-sync-group")
	cfg.Sync.ConsumerName = getEnv("SYNC_CONSUMER_NAME", "aquasense-sync-1")
	cfg.Sync.BatchSize = getEnvInt("SYNC_BATCH_SIZE", 10)
	cfg.Sync.PollInterval = time.Duration(getEnvInt("SYNC_POLL_INTERVAL", 0)) * time.Second
	cfg.Sync.SnapshotTTL = time.Duration(getEnvInt("SYNC_SNAPSHOT_TTL_HOURS", 24)) * time.Hour

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8090")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt 非法值或负数回退到默认值
func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v >= 0 {
		return v
	}
	return defaultValue
}
