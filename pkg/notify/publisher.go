// 文件: pkg/notify/publisher.go
// 事件发布
//
// 实现:
// - NatsPublisher:  subject raid.alarms.due, 通知进程队列订阅
// - KafkaPublisher: topic raid_alarm_due, key = 团队 ID
// - LogPublisher:   只写日志 (开发模式)
// - MultiPublisher: 扇出到多个发布者

package notify

import (
	"context"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"raidhub.com/pkg/kafka"
)

// Publisher 事件发布接口
type Publisher interface {
	Publish(ctx context.Context, ev *DueAlarmEvent) error
}

// =============================================================================
// NATS
// =============================================================================

// rawPublisher nats.Publisher 的子集
type rawPublisher interface {
	PublishRaw(subject string, data []byte) error
}

// NatsPublisher NATS 发布
type NatsPublisher struct {
	pub     rawPublisher
	subject string
}

// NewNatsPublisher pub 通常是 *nats.Publisher
func NewNatsPublisher(pub rawPublisher) *NatsPublisher {
	return &NatsPublisher{pub: pub, subject: SubjectAlarmDue}
}

func (p *NatsPublisher) Publish(ctx context.Context, ev *DueAlarmEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := ev.Value()
	if err != nil {
		return err
	}
	return p.pub.PublishRaw(p.subject, data)
}

// =============================================================================
// Kafka
// =============================================================================

// messageSender kafka.Producer 的子集
type messageSender interface {
	Send(ctx context.Context, msg kafka.Message) error
}

// KafkaPublisher Kafka 发布
type KafkaPublisher struct {
	producer messageSender
}

// NewKafkaPublisher producer 通常是 *kafka.Producer
func NewKafkaPublisher(producer messageSender) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev *DueAlarmEvent) error {
	return p.producer.Send(ctx, ev)
}

// =============================================================================
// Log
// =============================================================================

// LogPublisher 只记日志
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(ctx context.Context, ev *DueAlarmEvent) error {
	p.log.Info("[Notify] alarm due",
		zap.Int64("event_id", ev.EventID),
		zap.Time("fire_at", ev.FireAt),
		zap.Int64("raid_group_id", ev.RaidGroupID),
		zap.Int64("definition_id", ev.DefinitionID),
		zap.String("type", string(ev.Type)),
		zap.String("target", ev.TargetName),
		zap.String("text", ev.Text()))
	return nil
}

// =============================================================================
// Multi
// =============================================================================

// MultiPublisher 依次发布到全部发布者, 单个失败不影响其余
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, ev *DueAlarmEvent) error {
	var err error
	for _, p := range m {
		err = multierr.Append(err, p.Publish(ctx, ev))
	}
	return err
}
