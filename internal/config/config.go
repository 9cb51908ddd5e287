package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Chat     ChatConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Kafka    KafkaConfig
}

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type ChatConfig struct {
	HistoryCapacity int
	RoomGracePeriod time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

type RedisConfig struct {
	Host         string
	Port         string
	Password     string
	DB           int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
}

type JWTConfig struct {
	Secret         string
	ExpirationTime time.Duration
}

type KafkaConfig struct {
	// An empty broker list disables the audit producer.
	Brokers []string
	Topic   string
}

func LoadConfig() (*Config, error) {
	viper.SetDefault("RELAY_HOST", "")
	viper.SetDefault("RELAY_PORT", "3001")
	viper.SetDefault("RELAY_READ_TIMEOUT", 30*time.Second)
	viper.SetDefault("RELAY_WRITE_TIMEOUT", 30*time.Second)
	viper.SetDefault("RELAY_IDLE_TIMEOUT", 60*time.Second)
	viper.SetDefault("RELAY_HISTORY_CAPACITY", 100)
	viper.SetDefault("RELAY_ROOM_GRACE_PERIOD", time.Minute)
	viper.SetDefault("RELAY_JWT_SECRET", "secret")
	viper.SetDefault("RELAY_JWT_EXPIRE", "24h")
	viper.SetDefault("MYSQL_HOST", "localhost")
	viper.SetDefault("MYSQL_PORT", "3306")
	viper.SetDefault("MYSQL_USER", "root")
	viper.SetDefault("MYSQL_PASSWORD", "password")
	viper.SetDefault("MYSQL_DB", "chatrelay")
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("REDIS_MAX_RETRIES", 3)
	viper.SetDefault("REDIS_DIAL_TIMEOUT", 5*time.Second)
	viper.SetDefault("REDIS_READ_TIMEOUT", 3*time.Second)
	viper.SetDefault("REDIS_WRITE_TIMEOUT", 3*time.Second)
	viper.SetDefault("REDIS_POOL_SIZE", 100)
	viper.SetDefault("REDIS_MIN_IDLE_CONNS", 10)
	viper.SetDefault("KAFKA_BROKERS", []string{})
	viper.SetDefault("KAFKA_AUDIT_TOPIC", "chat-messages")
	viper.AutomaticEnv()

	return &Config{
		Server: ServerConfig{
			Host:         viper.GetString("RELAY_HOST"),
			Port:         viper.GetString("RELAY_PORT"),
			ReadTimeout:  viper.GetDuration("RELAY_READ_TIMEOUT"),
			WriteTimeout: viper.GetDuration("RELAY_WRITE_TIMEOUT"),
			IdleTimeout:  viper.GetDuration("RELAY_IDLE_TIMEOUT"),
		},
		Chat: ChatConfig{
			HistoryCapacity: viper.GetInt("RELAY_HISTORY_CAPACITY"),
			RoomGracePeriod: viper.GetDuration("RELAY_ROOM_GRACE_PERIOD"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("MYSQL_HOST"),
			Port:     viper.GetString("MYSQL_PORT"),
			User:     viper.GetString("MYSQL_USER"),
			Password: viper.GetString("MYSQL_PASSWORD"),
			DBName:   viper.GetString("MYSQL_DB"),
		},
		Redis: RedisConfig{
			Host:         viper.GetString("REDIS_HOST"),
			Port:         viper.GetString("REDIS_PORT"),
			Password:     viper.GetString("REDIS_PASSWORD"),
			DB:           viper.GetInt("REDIS_DB"),
			MaxRetries:   viper.GetInt("REDIS_MAX_RETRIES"),
			DialTimeout:  viper.GetDuration("REDIS_DIAL_TIMEOUT"),
			ReadTimeout:  viper.GetDuration("REDIS_READ_TIMEOUT"),
			WriteTimeout: viper.GetDuration("REDIS_WRITE_TIMEOUT"),
			PoolSize:     viper.GetInt("REDIS_POOL_SIZE"),
			MinIdleConns: viper.GetInt("REDIS_MIN_IDLE_CONNS"),
		},
		JWT: JWTConfig{
			Secret:         viper.GetString("RELAY_JWT_SECRET"),
			ExpirationTime: viper.GetDuration("RELAY_JWT_EXPIRE"),
		},
		Kafka: KafkaConfig{
			Brokers: viper.GetStringSlice("KAFKA_BROKERS"),
			Topic:   viper.GetString("KAFKA_AUDIT_TOPIC"),
		},
	}, nil
}
