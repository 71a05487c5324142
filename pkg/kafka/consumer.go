// 文件: pkg/kafka/consumer.go
// Kafka 消费者组
//
// 特点:
// - 消费者组, 多个通知进程分摊分区
// - 处理失败只记日志, 继续下一条
// - Stop 取消消费并等待当前批次结束

package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// =============================================================================
// Consumer 配置
// =============================================================================

// ConsumerConfig 消费者配置
type ConsumerConfig struct {
	Brokers       []string // Kafka broker 地址列表
	GroupID       string   // 消费者组 ID
	Topics        []string // 订阅的 topics
	OffsetInitial int64    // 初始 offset: -1=newest, -2=oldest
	AutoCommit    bool     // 是否自动提交 offset
}

// DefaultConsumerConfig 默认配置
func DefaultConsumerConfig(brokers []string, groupID string, topics []string) ConsumerConfig {
	return ConsumerConfig{
		Brokers:       brokers,
		GroupID:       groupID,
		Topics:        topics,
		OffsetInitial: sarama.OffsetNewest,
		AutoCommit:    true,
	}
}

// ConsumedMessage 收到的一条消息
type ConsumedMessage struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
}

// MessageHandler 消息处理函数
type MessageHandler func(ctx context.Context, msg ConsumedMessage) error

// =============================================================================
// Consumer 消费者
// =============================================================================

// Consumer Kafka 消费者组
type Consumer struct {
	client  sarama.ConsumerGroup
	config  ConsumerConfig
	handler MessageHandler
	log     *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewConsumer 创建消费者
func NewConsumer(cfg ConsumerConfig, handler MessageHandler, log *zap.Logger) (*Consumer, error) {
	if log == nil {
		log = zap.NewNop()
	}

	sc := sarama.NewConfig()
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	sc.Consumer.Offsets.Initial = cfg.OffsetInitial
	sc.Consumer.Offsets.AutoCommit.Enable = cfg.AutoCommit

	client, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, sc)
	if err != nil {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}

	return &Consumer{
		client:  client,
		config:  cfg,
		handler: handler,
		log:     log,
	}, nil
}

// Start 启动消费, ctx 取消或 Stop 时退出
func (c *Consumer) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		handler := &groupHandler{handler: c.handler, log: c.log}
		for {
			// 重平衡后 Consume 返回, 需要重新加入
			err := c.client.Consume(ctx, c.config.Topics, handler)
			if err != nil && !errors.Is(err, sarama.ErrClosedConsumerGroup) {
				c.log.Error("[Kafka] consume error", zap.Error(err))
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	c.log.Info("[Kafka] consumer started",
		zap.String("group", c.config.GroupID),
		zap.Strings("topics", c.config.Topics))
}

// Stop 停止消费
func (c *Consumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	return c.client.Close()
}

// =============================================================================
// sarama.ConsumerGroupHandler 实现
// =============================================================================

type groupHandler struct {
	handler MessageHandler
	log     *zap.Logger
}

func (h *groupHandler) Setup(_ sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(_ sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			consumed := ConsumedMessage{
				Topic:     msg.Topic,
				Partition: msg.Partition,
				Offset:    msg.Offset,
				Key:       msg.Key,
				Value:     msg.Value,
			}
			if err := h.handler(session.Context(), consumed); err != nil {
				h.log.Warn("[Kafka] handle error",
					zap.String("topic", msg.Topic),
					zap.Int64("offset", msg.Offset),
					zap.Error(err))
			}
			session.MarkMessage(msg, "")
		case <-session.Context().Done():
			return nil
		}
	}
}
