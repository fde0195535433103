// Package notification реализует публикацию событий заказов без гарантий доставки.
package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Топики событий заказов.
const (
	TopicOrderCreated = "orders.created"
	TopicOrderUpdated = "orders.updated"
)

// Sink описывает приёмник событий. Публикация выполняется по принципу
// fire-and-forget: ошибка доставки не влияет на уже зафиксированные данные.
type Sink interface {
	Publish(ctx context.Context, topic string, event any) error
}

// RedisSink публикует события в каналы Redis.
type RedisSink struct {
	client *redis.Client
}

// NewRedisSink создаёт приёмник событий поверх Redis по указанному адресу.
func NewRedisSink(addr string) *RedisSink {
	return &RedisSink{
		client: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

// Publish сериализует событие в JSON и отправляет его в канал topic.
func (s *RedisSink) Publish(ctx context.Context, topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := s.client.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	return nil
}

// Close закрывает соединение с Redis.
func (s *RedisSink) Close() error {
	return s.client.Close()
}

// NoopSink отбрасывает все события. Используется, когда Redis не настроен.
type NoopSink struct{}

// Publish ничего не делает.
func (NoopSink) Publish(ctx context.Context, topic string, event any) error {
	return nil
}
