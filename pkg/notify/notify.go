// Package notify fans posture alerts out to external subscribers.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/teslashibe/go-posture/pkg/protocol"
)

// ErrClosed is returned when publishing on a closed publisher.
var ErrClosed = errors.New("notify: publisher closed")

// HistorySize is the number of recent alerts kept in the history list.
const HistorySize = 100

// Publisher delivers alerts to subscribers.
type Publisher interface {
	Publish(ctx context.Context, alert protocol.AlertData) error
	Close() error
}

// RedisConfig configures the Redis publisher.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// Channel is the pub/sub channel alerts are published on.
	// Alerts are also kept in the list "<Channel>:recent".
	Channel string

	Logger *slog.Logger
}

// Redis publishes alerts on a Redis pub/sub channel.
type Redis struct {
	client  *redis.Client
	channel string
	history string
	logger  *slog.Logger
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	if cfg.Addr == "" {
		return nil, errors.New("notify: redis address required")
	}
	if cfg.Channel == "" {
		return nil, errors.New("notify: channel required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 2 * time.Second,
		MaxRetries:  1,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("notify: connect to redis at %s: %w", cfg.Addr, err)
	}

	logger.Info("connected to redis", "addr", cfg.Addr, "channel", cfg.Channel)
	return &Redis{
		client:  client,
		channel: cfg.Channel,
		history: cfg.Channel + ":recent",
		logger:  logger,
	}, nil
}

// Publish sends the alert to subscribers and records it in the history list.
func (r *Redis) Publish(ctx context.Context, alert protocol.AlertData) error {
	data, err := Payload(alert)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Publish(ctx, r.channel, data)
		pipe.LPush(ctx, r.history, data)
		pipe.LTrim(ctx, r.history, 0, HistorySize-1)
		return nil
	})
	if errors.Is(err, redis.ErrClosed) {
		return ErrClosed
	}
	if err != nil {
		return fmt.Errorf("notify: publish alert %s: %w", alert.ID, err)
	}

	r.logger.Debug("alert published", "id", alert.ID, "channel", r.channel)
	return nil
}

// Recent returns up to n alerts from the history list, newest first.
func (r *Redis) Recent(ctx context.Context, n int) ([]protocol.AlertData, error) {
	if n <= 0 || n > HistorySize {
		n = HistorySize
	}
	raw, err := r.client.LRange(ctx, r.history, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("notify: read history: %w", err)
	}

	return decodeHistory(raw), nil
}

// decodeHistory parses stored alert envelopes. Entries that do not decode
// are skipped.
func decodeHistory(raw []string) []protocol.AlertData {
	alerts := make([]protocol.AlertData, 0, len(raw))
	for _, s := range raw {
		msg, err := protocol.ParseMessage([]byte(s))
		if err != nil || msg.Type != protocol.TypeAlert {
			continue
		}
		a, err := msg.GetAlertData()
		if err != nil || a.ID == "" {
			continue
		}
		alerts = append(alerts, *a)
	}
	return alerts
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Payload encodes an alert as a protocol envelope.
func Payload(alert protocol.AlertData) ([]byte, error) {
	msg, err := protocol.NewAlertMessage(alert)
	if err != nil {
		return nil, err
	}
	return msg.Bytes()
}

// Async publishes in the background so the frame path never waits on the
// network. Errors are reported to onError.
type Async struct {
	pub     Publisher
	queue   chan protocol.AlertData
	timeout time.Duration
	onError func(error)
	done    chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewAsync wraps pub with a bounded queue. Alerts are dropped when the
// queue is full.
func NewAsync(pub Publisher, size int, onError func(error)) *Async {
	if size <= 0 {
		size = 16
	}
	a := &Async{
		pub:     pub,
		queue:   make(chan protocol.AlertData, size),
		timeout: 5 * time.Second,
		onError: onError,
		done:    make(chan struct{}),
	}
	go a.loop()
	return a
}

func (a *Async) loop() {
	defer close(a.done)
	for alert := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		err := a.pub.Publish(ctx, alert)
		cancel()
		if err != nil && a.onError != nil {
			a.onError(err)
		}
	}
}

// Send queues an alert. It reports false if the queue was full or the
// publisher has been closed.
func (a *Async) Send(alert protocol.AlertData) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return false
	}
	select {
	case a.queue <- alert:
		return true
	default:
		return false
	}
}

// Close drains the queue and closes the underlying publisher.
// Later Sends are rejected. Calling Close twice returns ErrClosed.
func (a *Async) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	<-a.done
	return a.pub.Close()
}
