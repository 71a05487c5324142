// 文件: pkg/notify/receiver.go
// 通知进程接收端
//
// 同一定义同一分钟只投递一次 (重复投递 / 多个轮询实例都会造成重复)

package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"raidhub.com/pkg/schedule"
)

// Deliverer 聊天平台投递, 平台适配层实现
type Deliverer interface {
	Deliver(ctx context.Context, target schedule.Target, text string) error
}

// LogDeliverer 只记日志
type LogDeliverer struct {
	log *zap.Logger
}

func NewLogDeliverer(log *zap.Logger) *LogDeliverer {
	return &LogDeliverer{log: log}
}

func (d *LogDeliverer) Deliver(ctx context.Context, target schedule.Target, text string) error {
	fields := []zap.Field{
		zap.String("kind", string(target.Kind())),
		zap.String("target_id", target.ID()),
		zap.String("text", text),
	}
	if ch, ok := target.(schedule.ChannelMessage); ok && ch.RoleID != "" {
		fields = append(fields, zap.String("role_id", ch.RoleID))
	}
	d.log.Info("[Notify] deliver", fields...)
	return nil
}

type deliveryKey struct {
	definitionID int64
	fireAt       int64 // unix minute
}

// Receiver 解码事件, 去重后交给 Deliverer
type Receiver struct {
	deliverer Deliverer
	log       *zap.Logger
	ttl       time.Duration

	mu   sync.Mutex
	seen map[deliveryKey]time.Time
	now  func() time.Time
}

// NewReceiver ttl 内的重复事件被丢弃
func NewReceiver(deliverer Deliverer, ttl time.Duration, log *zap.Logger) *Receiver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Receiver{
		deliverer: deliverer,
		log:       log,
		ttl:       ttl,
		seen:      make(map[deliveryKey]time.Time),
		now:       time.Now,
	}
}

// Handle 处理一条原始消息
func (r *Receiver) Handle(ctx context.Context, data []byte) error {
	ev, err := Decode(data)
	if err != nil {
		return err
	}
	if !r.markFirst(ev) {
		r.log.Debug("[Notify] duplicate dropped",
			zap.Int64("event_id", ev.EventID),
			zap.Int64("definition_id", ev.DefinitionID))
		return nil
	}
	if err := r.deliverer.Deliver(ctx, ev.Target(), ev.Text()); err != nil {
		r.forget(ev)
		return err
	}
	return nil
}

func (r *Receiver) markFirst(ev *DueAlarmEvent) bool {
	key := deliveryKey{definitionID: ev.DefinitionID, fireAt: ev.FireAt.Unix() / 60}
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	for k, exp := range r.seen {
		if now.After(exp) {
			delete(r.seen, k)
		}
	}
	if _, ok := r.seen[key]; ok {
		return false
	}
	r.seen[key] = now.Add(r.ttl)
	return true
}

// forget 投递失败时允许重投
func (r *Receiver) forget(ev *DueAlarmEvent) {
	r.mu.Lock()
	delete(r.seen, deliveryKey{definitionID: ev.DefinitionID, fireAt: ev.FireAt.Unix() / 60})
	r.mu.Unlock()
}
