// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"

	"rag-chatbot-go/internal/config"
	"rag-chatbot-go/pkg/log"
	"rag-chatbot-go/pkg/tasks"
)

// TaskProcessor 处理一条索引任务。
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.IndexTask) error
}

// Producer 向索引主题发送任务。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 创建 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	log.Info("Kafka 生产者初始化成功")
	return &Producer{writer: &kafka.Writer{
		Addr:     kafka.TCP(brokers(cfg.Brokers)...),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}}
}

// SendIndexTask 发送一个索引任务，消息 key 为文档 ID。
func (p *Producer) SendIndexTask(ctx context.Context, task tasks.IndexTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.DocumentID),
		Value: taskBytes,
	})
}

// Close 关闭生产者。
func (p *Producer) Close() error {
	return p.writer.Close()
}

// AttemptCounter 记录任务失败次数。
type AttemptCounter interface {
	Incr(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

// RedisAttempts 用 Redis 计数，计数键 24 小时后过期。
type RedisAttempts struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisAttempts 创建基于 Redis 的失败计数器。
func NewRedisAttempts(rdb *redis.Client) *RedisAttempts {
	return &RedisAttempts{rdb: rdb, ttl: 24 * time.Hour}
}

// Incr 实现 AttemptCounter。
func (a *RedisAttempts) Incr(ctx context.Context, key string) (int64, error) {
	n, err := a.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	_ = a.rdb.Expire(ctx, key, a.ttl).Err()
	return n, nil
}

// Reset 实现 AttemptCounter。
func (a *RedisAttempts) Reset(ctx context.Context, key string) error {
	return a.rdb.Del(ctx, key).Err()
}

// messageReader 是 *kafka.Reader 中被消费者使用的部分。
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const (
	defaultRetryBackoff = time.Second
	maxRetryBackoff     = 30 * time.Second
)

// Consumer 从索引主题读取任务并交给 TaskProcessor 处理。
// 失败的任务在当前消息上按退避重试，达到 maxAttempts 后提交 offset 放弃。
type Consumer struct {
	reader      messageReader
	topic       string
	processor   TaskProcessor
	attempts    AttemptCounter
	maxAttempts int64
	backoff     time.Duration
}

// NewConsumer 创建消费者。attempts 为 nil 时失败次数只在进程内计数。
func NewConsumer(cfg config.KafkaConfig, processor TaskProcessor, attempts AttemptCounter) *Consumer {
	maxAttempts := int64(cfg.MaxAttempts)
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers(cfg.Brokers),
			Topic:    cfg.Topic,
			GroupID:  cfg.GroupID,
			MinBytes: 1,
			MaxBytes: 10e6, // 10MB
		}),
		topic:       cfg.Topic,
		processor:   processor,
		attempts:    attempts,
		maxAttempts: maxAttempts,
		backoff:     defaultRetryBackoff,
	}
}

// Run 持续消费直到 ctx 被取消。读取失败时退避后继续。
func (c *Consumer) Run(ctx context.Context) {
	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", c.topic)
	defer func() {
		if err := c.reader.Close(); err != nil {
			log.Errorf("关闭 Kafka 消费者失败: %v", err)
		}
	}()

	failures := 0
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("Kafka 消费者已停止")
				return
			}
			failures++
			log.Error("从 Kafka 读取消息失败", err)
			if !c.sleep(ctx, failures) {
				log.Info("Kafka 消费者已停止")
				return
			}
			continue
		}
		failures = 0

		if !c.handle(ctx, m.Value) {
			// ctx 已取消，消息未提交，重启后会重新投递
			log.Info("Kafka 消费者已停止")
			return
		}
		if err := c.reader.CommitMessages(ctx, m); err != nil {
			log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
		}
	}
}

// handle 处理一条消息，返回 false 表示 ctx 在重试期间被取消、不应提交 offset。
func (c *Consumer) handle(ctx context.Context, value []byte) bool {
	var task tasks.IndexTask
	if err := json.Unmarshal(value, &task); err != nil || task.DocumentID == "" {
		// 消息格式错误，直接提交，避免阻塞队列
		log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(value))
		return true
	}

	attemptsKey := fmt.Sprintf("kafka:attempts:%s", task.DocumentID)
	for local := 1; ; local++ {
		attempt := c.nextAttempt(ctx, attemptsKey, int64(local))
		if attempt > c.maxAttempts {
			log.Errorf("索引任务已失败 %d 次，提交 offset 放弃: DocumentID=%s", attempt-1, task.DocumentID)
			c.resetAttempts(ctx, attemptsKey)
			return true
		}

		err := c.processor.Process(ctx, task)
		if err == nil {
			log.Infof("索引任务处理成功: DocumentID=%s", task.DocumentID)
			c.resetAttempts(ctx, attemptsKey)
			return true
		}
		log.Errorf("处理索引任务失败 (%d/%d): DocumentID=%s, Error: %v", attempt, c.maxAttempts, task.DocumentID, err)
		if attempt >= c.maxAttempts {
			log.Errorf("索引任务失败 %d 次，提交 offset 放弃: DocumentID=%s", attempt, task.DocumentID)
			c.resetAttempts(ctx, attemptsKey)
			return true
		}
		if !c.sleep(ctx, local) {
			return false
		}
	}
}

// nextAttempt 返回本次尝试的序号。Redis 中的计数跨进程重启累计，不可用时使用进程内序号。
func (c *Consumer) nextAttempt(ctx context.Context, key string, local int64) int64 {
	if c.attempts == nil {
		return local
	}
	n, err := c.attempts.Incr(ctx, key)
	if err != nil {
		log.Warnf("读取任务失败次数失败, 使用进程内计数: %v", err)
		return local
	}
	return n
}

func (c *Consumer) resetAttempts(ctx context.Context, key string) {
	if c.attempts != nil {
		_ = c.attempts.Reset(ctx, key)
	}
}

// sleep 按第 n 次失败的指数退避等待，ctx 取消时返回 false。
func (c *Consumer) sleep(ctx context.Context, n int) bool {
	d := c.backoff
	if d <= 0 {
		d = defaultRetryBackoff
	}
	for i := 1; i < n && d < maxRetryBackoff; i++ {
		d *= 2
	}
	if d > maxRetryBackoff {
		d = maxRetryBackoff
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func brokers(list string) []string {
	var out []string
	for _, b := range strings.Split(list, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
