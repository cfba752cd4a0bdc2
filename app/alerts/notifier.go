package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event is emitted when a tracked term drops to a new low at or below its threshold
type Event struct {
	AlertID     string    `json:"alert_id"`
	Email       string    `json:"email"`
	SearchTerm  string    `json:"search_term"`
	Threshold   float64   `json:"threshold"`
	ProductName string    `json:"product_name"`
	Price       float64   `json:"price"`
	Currency    string    `json:"currency"`
	Source      string    `json:"source"`
	Seller      string    `json:"seller"`
	URL         string    `json:"url"`
	TriggeredAt time.Time `json:"triggered_at"`
}

type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// LogNotifier writes alert events to the log. It stands in for email delivery.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, event Event) error {
	slog.Info("Price alert triggered",
		"alert", event.AlertID,
		"email", event.Email,
		"term", event.SearchTerm,
		"product", event.ProductName,
		"price", event.Price,
		"source", event.Source,
		"seller", event.Seller)
	return nil
}

// RedisNotifier appends alert events to a Redis stream for downstream delivery
type RedisNotifier struct {
	client *redis.Client
	stream string
}

func NewRedisNotifier(addr, stream string) (*RedisNotifier, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisNotifier{client: client, stream: stream}, nil
}

func (n *RedisNotifier) Notify(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal alert event: %w", err)
	}

	err = n.client.XAdd(ctx, &redis.XAddArgs{
		Stream: n.stream,
		Values: map[string]any{
			"alert_id": event.AlertID,
			"event":    string(payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish alert event to %s: %w", n.stream, err)
	}

	return nil
}

func (n *RedisNotifier) Close() error {
	return n.client.Close()
}

// MultiNotifier fans an event out to every notifier and joins their errors
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, event Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
