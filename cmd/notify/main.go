package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/appraisal-ops/field-scheduler/backend/internal/config"
	"github.com/appraisal-ops/field-scheduler/backend/internal/events"
	"github.com/appraisal-ops/field-scheduler/backend/internal/notify"
	"github.com/appraisal-ops/field-scheduler/backend/internal/repository"
	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/wneessen/go-mail"
	"golang.org/x/sync/errgroup"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	/**********************************************
	 * 创建 logger
	 **********************************************/
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	/**********************************************
	 * 读取配置文件
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		return
	}
	loc, _ := cfg.Location()

	/**********************************************
	 * 创建邮件客户端
	 **********************************************/
	client, err := mail.NewClient(cfg.Email.SMTP.Host,
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithSSL(),
		mail.WithPort(cfg.Email.SMTP.Port),
		mail.WithUsername(cfg.Email.SMTP.Username),
		mail.WithPassword(cfg.Email.SMTP.Password),
		mail.WithTimeout(time.Duration(cfg.Email.SMTP.DialTimeout)*time.Second),
	)
	if err != nil {
		logger.Error("无法创建邮件客户端", slog.String("error", err.Error()))
		return
	}
	defer client.Close()

	// 验证邮件客户端是否连接成功
	clientDialCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Email.SMTP.DialTimeout)*time.Second)
	defer cancel()
	if err := client.DialWithContext(clientDialCtx); err != nil {
		logger.Error("无法连接到邮件服务器", slog.String("error", err.Error()))
		return
	}

	/**********************************************
	 * 连接数据库，用于查询收件人
	 **********************************************/
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("无法创建数据库连接池", slog.String("error", err.Error()))
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	err = retry(cfg, logger, "数据库", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
		defer cancel()
		return dbpool.PingContext(ctx)
	})
	if err != nil {
		logger.Error("无法连接到数据库", slog.String("error", err.Error()))
		return
	}
	repo := repository.NewRepository(cfg, dbpool)

	notifier, err := notify.New(cfg.Email.From, repo, loc)
	if err != nil {
		logger.Error("无法解析邮件模板", slog.String("error", err.Error()))
		return
	}

	/**********************************************
	 * 连接 RabbitMQ
	 **********************************************/
	var conn *amqp.Connection
	err = retry(cfg, logger, "rabbitmq", func() error {
		var err error
		conn, err = amqp.Dial(cfg.RabbitMQ.DSN)
		return err
	})
	if err != nil {
		logger.Error("无法连接到 RabbitMQ", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	// 创建通道
	ch, err := conn.Channel()
	if err != nil {
		logger.Error("无法创建通道", slog.String("error", err.Error()))
		return
	}
	defer ch.Close()

	// 声明队列
	q, err := events.DeclareQueue(ch, cfg.RabbitMQ.Queue)
	if err != nil {
		logger.Error("无法声明队列", slog.String("error", err.Error()))
		return
	}

	// 限制未确认消息的数量，避免邮件服务器变慢时消息堆积在本进程
	if err := ch.Qos(cfg.RabbitMQ.Prefetch, 0, false); err != nil {
		logger.Error("无法设置 prefetch", slog.String("error", err.Error()))
		return
	}

	// 消费消息
	msgs, err := ch.Consume(
		q.Name, // 队列
		"",     // 消费者标识，设置为空字符串，表示由 RabbitMQ 自动分配
		false,  // 是否自动确认消息
		false,  // 是否独占队列
		false,  // 是否禁止消费者接受自己发送的消息，必须设置为 false，因为 RabbitMQ 不支持这个参数
		false,  // 是否不等待，等待 RabbitMQ 响应
		nil,    // 额外参数
	)
	if err != nil {
		logger.Error("无法消费消息", slog.String("error", err.Error()))
		return
	}

	/**********************************************
	 * 处理消息，直到收到 CTRL+C
	 **********************************************/
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	worker := notify.NewWorker(notifier, client, logger, time.Duration(cfg.Email.SMTP.DialTimeout)*time.Second)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Run(ctx, msgs)
	})

	logger.Info("等待消息...（按 CTRL+C 退出）", slog.String("queue", q.Name))
	if err := g.Wait(); err != nil {
		logger.Error("notify worker 异常退出", slog.String("error", err.Error()))
		return
	}
	logger.Info("notify worker 已成功关闭")
}

func retry(cfg *config.Config, logger *slog.Logger, target string, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = time.Duration(cfg.Startup.MaxElapsedTime) * time.Second

	return backoff.RetryNotify(op, b, func(err error, wait time.Duration) {
		logger.Warn("连接失败，稍后重试", slog.String("target", target), slog.Duration("wait", wait), slog.String("error", err.Error()))
	})
}
