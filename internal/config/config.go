// Package config предоставляет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string        `yaml:"env" env-default:"local"`
	StorageConnectionString string        `yaml:"storage_connection_string"`
	MigrationsPath          string        `yaml:"migrations_path" env-default:"migrations"`
	RabbitMQURL             string        `yaml:"rabbitmq_url"`
	RabbitMQMaxRetries      int           `yaml:"rabbitmq_max_retries" env-default:"5"`
	RabbitMQRetryDelay      time.Duration `yaml:"rabbitmq_retry_delay" env-default:"3s"`
	RedisConnection         `yaml:"redis_connection"`
	MetricsServer           `yaml:"metrics_server"`
	Billing                 `yaml:"billing"`
	Scheduler               `yaml:"scheduler"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// MetricsServer структура для настройки сервера метрик
type MetricsServer struct {
	AddressMetrics string        `yaml:"addressmetrics" env-default:":9090"`
	TimeoutMetrics time.Duration `yaml:"timeoutmetrics" env-default:"5s"`
	IdleTimeout    time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// Billing тарифная политика: почасовая ставка в текущих единицах SYP.
type Billing struct {
	HourlyRate int64 `yaml:"hourly_rate" env-default:"50"`
}

// Scheduler интервалы фонового планировщика и политика ретраев записи баланса
type Scheduler struct {
	MonitorInterval  time.Duration `yaml:"monitor_interval" env-default:"1s"`
	RevenueInterval  time.Duration `yaml:"revenue_interval" env-default:"1s"`
	SettleRetries    int           `yaml:"settle_retries" env-default:"3"`
	SettleRetryDelay time.Duration `yaml:"settle_retry_delay" env-default:"200ms"`
}

// MustLoad функция для загрузки конфига, путь берётся из CONFIG_PATH
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &cfg
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"StorageConnectionString: %s\n"+
			"MigrationsPath: %s\n"+
			"RabbitMQURL: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"MetricsServer:\n"+
			"  Address: %s\n"+
			"Billing:\n"+
			"  HourlyRate: %d\n"+
			"Scheduler:\n"+
			"  MonitorInterval: %s\n"+
			"  RevenueInterval: %s\n",
		c.Env,
		c.StorageConnectionString,
		c.MigrationsPath,
		c.RabbitMQURL,
		c.AddressRedis,
		c.DB,
		c.AddressMetrics,
		c.HourlyRate,
		c.MonitorInterval,
		c.RevenueInterval,
	)
}
