// 文件: cmd/notifier/main.go
// 通知进程: 消费到点闹钟事件, 渲染提醒并交给聊天平台
//
// 聊天平台适配不在本仓库, 默认只把渲染好的消息写日志
//
// RAIDHUB_NOTIFY=nats  队列订阅 raid.alarms.due
// RAIDHUB_NOTIFY=kafka 消费者组消费 raid_alarm_due

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"raidhub.com/pkg/config"
	"raidhub.com/pkg/kafka"
	"raidhub.com/pkg/logger"
	"raidhub.com/pkg/nats"
	"raidhub.com/pkg/notify"
)

// 覆盖轮询补偿窗口 + 重投
const dedupeTTL = 2 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("config error: " + err.Error() + "\n")
		os.Exit(2)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger init error: " + err.Error() + "\n")
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	receiver := notify.NewReceiver(notify.NewLogDeliverer(log.Named("deliver")), dedupeTTL, log.Named("receiver"))

	switch cfg.Notify {
	case config.NotifyNats:
		runNats(ctx, cfg, receiver, log)
	case config.NotifyKafka:
		runKafka(ctx, cfg, receiver, log)
	default:
		log.Fatal("notifier needs RAIDHUB_NOTIFY=nats or kafka", zap.String("notify", cfg.Notify))
	}
	log.Info("notifier stopped")
}

func runNats(ctx context.Context, cfg config.Config, receiver *notify.Receiver, log *zap.Logger) {
	sub, err := nats.NewSubscriber(cfg.NatsURL, func(subject string, data []byte) error {
		return receiver.Handle(ctx, data)
	}, log)
	if err != nil {
		log.Fatal("nats connect failed", zap.Error(err))
	}
	defer sub.Close()

	if err := sub.SubscribeQueue(notify.SubjectAlarmDue, notify.QueueNotifiers); err != nil {
		log.Fatal("nats subscribe failed", zap.Error(err))
	}
	log.Info("notifier consuming nats", zap.String("subject", notify.SubjectAlarmDue))
	<-ctx.Done()
}

func runKafka(ctx context.Context, cfg config.Config, receiver *notify.Receiver, log *zap.Logger) {
	consumerCfg := kafka.DefaultConsumerConfig(cfg.KafkaBrokers, notify.QueueNotifiers, []string{notify.TopicAlarmDue})
	consumer, err := kafka.NewConsumer(consumerCfg, func(ctx context.Context, msg kafka.ConsumedMessage) error {
		return receiver.Handle(ctx, msg.Value)
	}, log)
	if err != nil {
		log.Fatal("kafka consumer failed", zap.Error(err))
	}

	consumer.Start(ctx)
	<-ctx.Done()
	if err := consumer.Stop(); err != nil {
		log.Warn("kafka consumer stop failed", zap.Error(err))
	}
}
