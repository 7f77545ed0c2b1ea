package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Server      struct {
		Port            string `env:"PORT" envDefault:"3000"`
		ReadTimeout     int    `env:"READ_TIMEOUT" envDefault:"10"`
		WriteTimeout    int    `env:"WRITE_TIMEOUT" envDefault:"15"`
		IdleTimeout     int    `env:"IDLE_TIMEOUT" envDefault:"60"`
		ShutdownTimeout int    `env:"SHUTDOWN_TIMEOUT" envDefault:"10"`
	} `envPrefix:"SERVER_"`
	Database struct {
		DSN                string `env:"DSN,required"`
		ConnectTimeout     int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		QueryTimeout       int    `env:"QUERY_TIMEOUT" envDefault:"10"`
		TransactionTimeout int    `env:"TRANSACTION_TIMEOUT" envDefault:"20"`
		MaxOpenConns       int    `env:"MAX_OPEN_CONNS" envDefault:"10"`
		MaxIdleConns       int    `env:"MAX_IDLE_CONNS" envDefault:"10"`
		MaxIdleTime        int    `env:"MAX_IDLE_TIME" envDefault:"60"`
		Migrate            bool   `env:"MIGRATE" envDefault:"true"` // 启动时执行内嵌的 schema.sql
	} `envPrefix:"DATABASE_"`
	JWT struct {
		Secret string `env:"SECRET,required"`
		Issuer string `env:"ISSUER" envDefault:"appraisal-ops-auth"`
	} `envPrefix:"JWT_"`
	Email struct {
		From string `env:"FROM,required"`
		SMTP struct {
			Username    string `env:"USERNAME,required"`
			Password    string `env:"PASSWORD,required"`
			Host        string `env:"HOST,required"`
			Port        int    `env:"PORT" envDefault:"465"`
			DialTimeout int    `env:"DIAL_TIMEOUT" envDefault:"10"`
		} `envPrefix:"SMTP_"`
	} `envPrefix:"EMAIL_"`
	RabbitMQ struct {
		DSN            string `env:"DSN,required"`
		Queue          string `env:"QUEUE" envDefault:"scheduling_events"`
		PublishTimeout int    `env:"PUBLISH_TIMEOUT" envDefault:"10"`
		Prefetch       int    `env:"PREFETCH" envDefault:"10"`
	} `envPrefix:"RABBITMQ_"`
	Redis struct {
		Host             string `env:"HOST" envDefault:"localhost"`
		Port             int    `env:"PORT" envDefault:"6379"`
		Password         string `env:"PASSWORD"`
		ConnectTimeout   int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		OperationTimeout int    `env:"OPERATION_TIMEOUT" envDefault:"2"`
	} `envPrefix:"REDIS_"`
	Scheduling struct {
		DefaultTimezone   string `env:"DEFAULT_TIMEZONE" envDefault:"UTC"`
		Parallelism       int    `env:"PARALLELISM" envDefault:"4"`
		Alternatives      int    `env:"ALTERNATIVES" envDefault:"3"`
		TerritoryCacheTTL int    `env:"TERRITORY_CACHE_TTL" envDefault:"300"` // 秒，0 表示不缓存
	} `envPrefix:"SCHEDULING_"`
	Telemetry struct {
		Enabled        bool   `env:"ENABLED" envDefault:"false"`
		Stdout         bool   `env:"STDOUT" envDefault:"false"`
		OTLPEndpoint   string `env:"OTLP_ENDPOINT"`
		ServiceName    string `env:"SERVICE_NAME" envDefault:"field-scheduler"`
		ServiceVersion string `env:"SERVICE_VERSION" envDefault:"dev"`
		ExportInterval int    `env:"EXPORT_INTERVAL" envDefault:"30"`
	} `envPrefix:"TELEMETRY_"`
	Startup struct {
		MaxElapsedTime int `env:"MAX_ELAPSED_TIME" envDefault:"60"` // 连接数据库与 RabbitMQ 的最长重试时间，秒
	} `envPrefix:"STARTUP_"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		aggErr := env.AggregateError{}
		if ok := errors.As(err, &aggErr); ok {
			// 只返回第一个错误使得日志更清晰
			return nil, aggErr.Errors[0]
		}
		return nil, err
	}

	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	if cfg.Scheduling.Parallelism <= 0 {
		return nil, fmt.Errorf("SCHEDULING_PARALLELISM 必须为正数，当前为 %d", cfg.Scheduling.Parallelism)
	}
	if cfg.Scheduling.Alternatives < 0 {
		return nil, fmt.Errorf("SCHEDULING_ALTERNATIVES 不能为负数，当前为 %d", cfg.Scheduling.Alternatives)
	}

	return cfg, nil
}

// Location 资源未配置时区时使用的默认时区
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Scheduling.DefaultTimezone)
	if err != nil {
		return nil, fmt.Errorf("无法解析 SCHEDULING_DEFAULT_TIMEZONE %q: %w", c.Scheduling.DefaultTimezone, err)
	}
	return loc, nil
}

func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.Database.QueryTimeout) * time.Second
}

func (c *Config) TransactionTimeout() time.Duration {
	return time.Duration(c.Database.TransactionTimeout) * time.Second
}
