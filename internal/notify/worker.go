package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/appraisal-ops/field-scheduler/backend/internal/events"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/wneessen/go-mail"
)

type Sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

type Worker struct {
	notifier    *Notifier
	sender      Sender
	logger      *slog.Logger
	sendTimeout time.Duration
}

func NewWorker(notifier *Notifier, sender Sender, logger *slog.Logger, sendTimeout time.Duration) *Worker {
	return &Worker{
		notifier:    notifier,
		sender:      sender,
		logger:      logger,
		sendTimeout: sendTimeout,
	}
}

// Run 逐条处理投递，直到 ctx 取消或通道关闭
func (w *Worker) Run(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("RabbitMQ 投递通道已关闭")
			}
			w.Handle(ctx, d)
		}
	}
}

func (w *Worker) Handle(ctx context.Context, d amqp.Delivery) {
	msg, err := events.Decode(d.Body)
	if err != nil {
		w.logger.Error("事件反序列化失败", slog.String("messageID", d.MessageId), slog.String("error", err.Error()))
		_ = d.Nack(false, false)
		return
	}

	logger := w.logger.With(slog.String("messageID", msg.ID), slog.String("type", string(msg.Type)))

	m, err := w.notifier.Build(ctx, msg)
	switch {
	case errors.Is(err, ErrSkip):
		logger.Info("事件无需发送邮件")
		_ = d.Ack(false)
		return
	case errors.Is(err, ErrUnsupported):
		logger.Error("不支持的事件类型")
		_ = d.Nack(false, false)
		return
	case err != nil:
		// 读取资源失败可能只是暂时的，重新入队
		logger.Error("无法生成邮件", slog.String("error", err.Error()))
		_ = d.Nack(false, true)
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, w.sendTimeout)
	defer cancel()
	if err := w.sender.DialAndSendWithContext(sendCtx, m); err != nil {
		logger.Error("邮件发送失败", slog.String("error", err.Error()))
		_ = d.Nack(false, true)
		return
	}

	logger.Info("邮件已发送")
	_ = d.Ack(false)
}
