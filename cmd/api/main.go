package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/appraisal-ops/field-scheduler/backend/internal/config"
	"github.com/appraisal-ops/field-scheduler/backend/internal/events"
	"github.com/appraisal-ops/field-scheduler/backend/internal/handler"
	"github.com/appraisal-ops/field-scheduler/backend/internal/repository"
	"github.com/appraisal-ops/field-scheduler/backend/internal/scheduler"
	"github.com/appraisal-ops/field-scheduler/backend/internal/telemetry"
	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	/**********************************************
	 * 创建 logger
	 **********************************************/
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	/**********************************************
	 * 加载配置
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法加载配置文件", "error", err)
		return
	}
	loc, _ := cfg.Location() // LoadConfig 已经校验过

	/**********************************************
	 * 初始化 telemetry
	 **********************************************/
	err = telemetry.Init(context.Background(), telemetry.Options{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: cfg.Telemetry.ServiceVersion,
		Stdout:         cfg.Telemetry.Stdout,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		ExportInterval: time.Duration(cfg.Telemetry.ExportInterval) * time.Second,
	})
	if err != nil {
		logger.Error("无法初始化 telemetry", "error", err)
		return
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(ctx); err != nil {
			logger.Error("关闭 telemetry 失败", "error", err)
		}
	}()

	/**********************************************
	 * 连接数据库
	 **********************************************/
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("无法创建数据库连接池", "error", err)
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	// sql.Open 只是创建数据库连接池对象，并不会立即连接到数据库，因此需要显式地 ping 一下；
	// 依赖的服务可能比本服务晚启动，所以在重试预算内按指数退避重试
	err = retry(cfg, logger, "数据库", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
		defer cancel()
		return dbpool.PingContext(ctx)
	})
	if err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}

	/**********************************************
	 * 创建 repository 并初始化表结构
	 **********************************************/
	repo := repository.NewRepository(cfg, dbpool)
	if cfg.Database.Migrate {
		if err := repo.Migrate(context.Background()); err != nil {
			logger.Error("无法初始化表结构", "error", err)
			return
		}
	}

	/**********************************************
	 * 连接 rabbitmq
	 **********************************************/
	var conn *amqp.Connection
	err = retry(cfg, logger, "rabbitmq", func() error {
		var err error
		conn, err = amqp.Dial(cfg.RabbitMQ.DSN)
		return err
	})
	if err != nil {
		logger.Error("无法连接到 rabbitmq", "error", err)
		return
	}
	defer conn.Close()

	// 建立通道
	ch, err := conn.Channel()
	if err != nil {
		logger.Error("无法建立通道", "error", err)
		return
	}
	defer ch.Close()

	// 声明队列
	if _, err := events.DeclareQueue(ch, cfg.RabbitMQ.Queue); err != nil {
		logger.Error("无法声明队列", "error", err)
		return
	}
	publisher := events.NewPublisher(ch, cfg.RabbitMQ.Queue, time.Duration(cfg.RabbitMQ.PublishTimeout)*time.Second)

	/**********************************************
	 * 连接 redis
	 **********************************************/
	rdb := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password:    cfg.Redis.Password,
		DB:          0,
		DialTimeout: time.Duration(cfg.Redis.ConnectTimeout) * time.Second,
	})
	defer rdb.Close()

	// redis 只用作区域解析缓存，连不上时仍然可以直接查询数据库
	pingCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Redis.ConnectTimeout)*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("无法连接到 redis，区域解析将直接查询数据库", "error", err)
	}
	cancel()

	territories := repository.NewTerritoryCache(
		repo,
		rdb,
		time.Duration(cfg.Scheduling.TerritoryCacheTTL)*time.Second,
		time.Duration(cfg.Redis.OperationTimeout)*time.Second,
		logger,
	)

	/**********************************************
	 * 创建调度引擎
	 **********************************************/
	sched := scheduler.New(repo,
		scheduler.WithTerritoryIndex(territories),
		scheduler.WithEventPublisher(publisher),
		scheduler.WithLogger(logger),
		scheduler.WithDefaultLocation(loc),
		scheduler.WithParallelism(cfg.Scheduling.Parallelism),
		scheduler.WithAlternatives(cfg.Scheduling.Alternatives),
	)

	/**********************************************
	 * 创建 handler
	 **********************************************/
	handler, err := handler.NewHandler(cfg, sched)
	if err != nil {
		logger.Error("无法创建 handler", "error", err)
		return
	}
	handler.RegisterRoutes()

	/**********************************************
	 * 启动 HTTP 服务器
	 **********************************************/
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      handler.Mux,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("正在启动服务器...", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("无法启动服务器", slog.String("error", err.Error()))
			quit <- syscall.SIGTERM
		}
	}()

	<-quit
	logger.Info("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("关闭服务器失败", slog.String("error", err.Error()))
	}
	logger.Info("服务器已成功关闭")
}

// retry 只用于启动阶段的连接，业务操作从不重试
func retry(cfg *config.Config, logger *slog.Logger, target string, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = time.Duration(cfg.Startup.MaxElapsedTime) * time.Second

	return backoff.RetryNotify(op, b, func(err error, wait time.Duration) {
		logger.Warn("连接失败，稍后重试", slog.String("target", target), slog.Duration("wait", wait), slog.String("error", err.Error()))
	})
}
