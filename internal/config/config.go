package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション設定を表す
type Config struct {
	Env            string
	StorageDriver  string
	MigrationsPath string
	Server         ServerConfig
	Database       DatabaseConfig
	Redis          RedisConfig
	Reservation    ReservationConfig
	Auth           AuthConfig
	Kafka          KafkaConfig
	RabbitMQ       RabbitMQConfig
	RateLimit      RateLimitConfig
}

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// ServerConfig はサーバー設定
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig はデータベース設定
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig はRedis設定
type RedisConfig struct {
	Host        string
	Port        string
	Password    string
	DB          int
	PoolSize    int
	DialTimeout time.Duration
}

// ReservationConfig は座席保持と期限切れスイープの設定
type ReservationConfig struct {
	HoldDuration   time.Duration
	SweepInterval  time.Duration
	SweepBatchSize int
	// SweepLockTTL はスイープの分散ロック保持時間。SweepInterval より短くする
	SweepLockTTL time.Duration
}

// AuthConfig はJWT検証の設定
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// KafkaConfig は決済イベントの送受信設定
type KafkaConfig struct {
	Brokers             []string
	GroupID             string
	PaymentSuccessTopic string
	PaymentFailedTopic  string
	RefundTopic         string
	MaxRetries          int
	RetryBackoff        time.Duration
}

// Enabled はブローカーが設定されているかを返す
func (c *KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

// RabbitMQConfig は予約通知の送信設定
type RabbitMQConfig struct {
	URL string
}

func (c *RabbitMQConfig) Enabled() bool {
	return c.URL != ""
}

// RateLimitConfig は予約作成のレート制限
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

// LoadDotEnv は .env ファイルを環境変数に読み込む。既存の環境変数は上書きしない
// ファイルが存在しない場合は何もしない
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// Load は環境変数から設定を読み込む
func Load() *Config {
	cfg := &Config{
		Env:            getEnv("APP_ENV", "development"),
		StorageDriver:  getEnv("STORAGE_DRIVER", StorageDriverPostgres),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			DBName:          getEnv("DB_NAME", "cinema_reservation"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
			// ロックとレート制限だけなので小さなプールで足りる
			PoolSize:    getIntEnv("REDIS_POOL_SIZE", 10),
			DialTimeout: getDurationEnv("REDIS_DIAL_TIMEOUT", 2*time.Second),
		},
		Reservation: ReservationConfig{
			HoldDuration:   getDurationEnv("HOLD_DURATION", 10*time.Minute),
			SweepInterval:  getDurationEnv("SWEEP_INTERVAL", 30*time.Second),
			SweepBatchSize: getIntEnv("SWEEP_BATCH_SIZE", 100),
			SweepLockTTL:   getDurationEnv("SWEEP_LOCK_TTL", 25*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			Issuer:    getEnv("JWT_ISSUER", ""),
		},
		Kafka: KafkaConfig{
			Brokers:             getListEnv("KAFKA_BROKERS"),
			GroupID:             getEnv("KAFKA_GROUP_ID", "cinema-reservation"),
			PaymentSuccessTopic: getEnv("KAFKA_PAYMENT_SUCCESS_TOPIC", "payment-success"),
			PaymentFailedTopic:  getEnv("KAFKA_PAYMENT_FAILED_TOPIC", "payment-failed"),
			RefundTopic:         getEnv("KAFKA_REFUND_TOPIC", "payment-refund-requested"),
			MaxRetries:          getIntEnv("KAFKA_MAX_RETRIES", 5),
			RetryBackoff:        getDurationEnv("KAFKA_RETRY_BACKOFF", 200*time.Millisecond),
		},
		RabbitMQ: RabbitMQConfig{
			URL: getEnv("RABBITMQ_URL", ""),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getIntEnv("RATE_LIMIT_PER_MINUTE", 30),
			Burst:             getIntEnv("RATE_LIMIT_BURST", 10),
		},
	}

	// DATABASE_URL / REDIS_URL が設定されていれば個別設定より優先する
	if raw := os.Getenv("DATABASE_URL"); raw != "" {
		applyDatabaseURL(&cfg.Database, raw)
	}
	if raw := os.Getenv("REDIS_URL"); raw != "" {
		applyRedisURL(&cfg.Redis, raw)
	}
	return cfg
}

// Validate は起動できない設定を検出する
// 本番環境では JWT_SECRET を必須とし、ヘッダーによる開発用認証を許可しない
func (c *Config) Validate() error {
	var errs []error
	if c.Env == "production" && c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("本番環境では JWT_SECRET が必須です"))
	}
	if c.Reservation.HoldDuration <= 0 {
		errs = append(errs, fmt.Errorf("HOLD_DURATION は正の値が必要です: %s", c.Reservation.HoldDuration))
	}
	if c.Reservation.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("SWEEP_INTERVAL は正の値が必要です: %s", c.Reservation.SweepInterval))
	}
	if c.Reservation.SweepBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("SWEEP_BATCH_SIZE は正の値が必要です: %d", c.Reservation.SweepBatchSize))
	}
	if c.StorageDriver != StorageDriverPostgres && c.StorageDriver != StorageDriverMemory {
		errs = append(errs, fmt.Errorf("未知の STORAGE_DRIVER: %s", c.StorageDriver))
	}
	return errors.Join(errs...)
}

func applyDatabaseURL(c *DatabaseConfig, raw string) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return
	}
	c.Host = u.Hostname()
	if p := u.Port(); p != "" {
		c.Port = p
	}
	if u.User != nil {
		c.User = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			c.Password = pw
		}
	}
	c.DBName = strings.TrimPrefix(u.Path, "/")
	c.SSLMode = u.Query().Get("sslmode")
	if c.SSLMode == "" {
		c.SSLMode = "require"
	}
}

func applyRedisURL(c *RedisConfig, raw string) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return
	}
	c.Host = u.Hostname()
	if p := u.Port(); p != "" {
		c.Port = p
	}
	if u.User != nil {
		if pw, ok := u.User.Password(); ok {
			c.Password = pw
		}
	}
}

// DSN はPostgreSQL接続文字列を返す
func (c *DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" port=" + c.Port +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.DBName +
		" sslmode=" + c.SSLMode
}

// Addr はRedis接続アドレスを返す
func (c *RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getListEnv(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
