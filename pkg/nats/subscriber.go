// 文件: pkg/nats/subscriber.go
// NATS 消息订阅者

package nats

import (
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// MessageHandler 消息处理函数
type MessageHandler func(subject string, data []byte) error

// Subscriber NATS 订阅者
type Subscriber struct {
	conn    *nats.Conn
	subs    []*nats.Subscription
	handler MessageHandler
	log     *zap.Logger
}

// NewSubscriber 创建订阅者
func NewSubscriber(url string, handler MessageHandler, log *zap.Logger) (*Subscriber, error) {
	conn, err := Connect(url, "raidhub-subscriber", log)
	if err != nil {
		return nil, err
	}
	return NewSubscriberWithConn(conn, handler, log), nil
}

// NewSubscriberWithConn 复用已有连接
func NewSubscriberWithConn(conn *nats.Conn, handler MessageHandler, log *zap.Logger) *Subscriber {
	if log == nil {
		log = zap.NewNop()
	}
	return &Subscriber{
		conn:    conn,
		handler: handler,
		log:     log,
	}
}

func (s *Subscriber) dispatch(msg *nats.Msg) {
	if err := s.handler(msg.Subject, msg.Data); err != nil {
		s.log.Warn("[NATS] handle error", zap.String("subject", msg.Subject), zap.Error(err))
	}
}

// SubscribeQueue 队列订阅 (同组内只有一个订阅者收到)
func (s *Subscriber) SubscribeQueue(subject, queue string) error {
	sub, err := s.conn.QueueSubscribe(subject, queue, s.dispatch)
	if err != nil {
		return fmt.Errorf("queue subscribe %s/%s: %w", subject, queue, err)
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close 退订并关闭连接
func (s *Subscriber) Close() error {
	for _, sub := range s.subs {
		if err := sub.Unsubscribe(); err != nil {
			s.log.Debug("[NATS] unsubscribe failed", zap.String("subject", sub.Subject), zap.Error(err))
		}
	}
	s.conn.Close()
	return nil
}
