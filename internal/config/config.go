package config

import (
	"log"

	"github.com/spf13/viper"
)

type Database struct {
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	SSLMode  string `mapstructure:"ssl-mode"`
}

type Services struct {
	PaymentsURL string `mapstructure:"payments-url"`
	BookingsURL string `mapstructure:"bookings-url"`
	GatewayURL  string `mapstructure:"gateway-url"`
	TimeoutMs   int    `mapstructure:"timeout-ms"`
}

type Poller struct {
	SettleDelayMs      int `mapstructure:"settle-delay-ms"`
	IntervalMs         int `mapstructure:"interval-ms"`
	MaxAttempts        int `mapstructure:"max-attempts"`
	QueryRetryAttempts int `mapstructure:"query-retry-attempts"`
	QueryRetryDelayMs  int `mapstructure:"query-retry-delay-ms"`
}

type Reconciler struct {
	GraceDelayMs int `mapstructure:"grace-delay-ms"`
}

type Flow struct {
	Parallelism int `mapstructure:"parallelism"`
}

type KafkaWriter struct {
	BatchSize      int `mapstructure:"batch-size"`
	BatchTimeoutMs int `mapstructure:"batch-timeout-ms"`
}

type KafkaBroker struct {
	URL string `mapstructure:"url"`
}

type KafkaTopic struct {
	PaymentOutcomes string `mapstructure:"payment-outcomes"`
}

type Kafka struct {
	Writer KafkaWriter `mapstructure:"writer"`
	Broker KafkaBroker `mapstructure:"broker"`
	Topic  KafkaTopic  `mapstructure:"topic"`
}

type Server struct {
	Port string `mapstructure:"port"`
}

type Metrics struct {
	URL          string `mapstructure:"url"`
	IntervalMs   int    `mapstructure:"interval-ms"`
	CommonLabels string `mapstructure:"common-labels"`
}

type Logs struct {
	URL string `mapstructure:"url"`
}

type Config struct {
	Database   Database   `mapstructure:"database"`
	Services   Services   `mapstructure:"services"`
	Poller     Poller     `mapstructure:"poller"`
	Reconciler Reconciler `mapstructure:"reconciler"`
	Flow       Flow       `mapstructure:"flow"`
	Kafka      Kafka      `mapstructure:"kafka"`
	Server     Server     `mapstructure:"server"`
	Metrics    Metrics    `mapstructure:"metrics"`
	Logs       Logs       `mapstructure:"logs"`
}

func LoadConfig(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func MustLoadConfig(path string) *Config {
	config, err := LoadConfig(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return config
}
