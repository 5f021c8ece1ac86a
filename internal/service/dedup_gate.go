package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/models"
)

// Reservation is the outcome of asking the gate for permission to send.
type Reservation struct {
	Already bool
}

// NotificationGate suppresses duplicate notifications inside a time window.
type NotificationGate interface {
	TryReserve(ctx context.Context, key models.ReceiptKey) (Reservation, error)
}

// GateWindows configures how long a receipt suppresses repeats.
type GateWindows struct {
	Reminder time.Duration
	Default  time.Duration
}

// For returns the window that applies to kind.
func (w GateWindows) For(kind models.NotificationKind) time.Duration {
	if kind == models.NotificationReminder {
		if w.Reminder > 0 {
			return w.Reminder
		}
		return time.Minute
	}
	if w.Default > 0 {
		return w.Default
	}
	return 5 * time.Minute
}

type receiptStore interface {
	Reserve(ctx context.Context, key models.ReceiptKey, window time.Duration, now time.Time) (bool, error)
}

// PostgresGate keeps receipts in the notification_receipts table.
type PostgresGate struct {
	store   receiptStore
	windows GateWindows
	now     func() time.Time
}

// NewPostgresGate constructs the database backed gate.
func NewPostgresGate(store receiptStore, windows GateWindows) *PostgresGate {
	return &PostgresGate{store: store, windows: windows, now: time.Now}
}

// TryReserve records a receipt unless a recent one exists.
func (g *PostgresGate) TryReserve(ctx context.Context, key models.ReceiptKey) (Reservation, error) {
	key = key.Normalized()
	if key.Recipient == "" {
		return Reservation{}, fmt.Errorf("recipient required")
	}
	reserved, err := g.store.Reserve(ctx, key, g.windows.For(key.Kind), g.now().UTC())
	if err != nil {
		return Reservation{}, err
	}
	return Reservation{Already: !reserved}, nil
}

// RedisGate keeps receipts as expiring keys.
type RedisGate struct {
	client  redis.Cmdable
	windows GateWindows
	prefix  string
}

// NewRedisGate constructs the Redis backed gate.
func NewRedisGate(client redis.Cmdable, windows GateWindows) *RedisGate {
	return &RedisGate{client: client, windows: windows, prefix: "approvalflow:receipt"}
}

// TryReserve sets the receipt key only if absent, expiring after the window.
func (g *RedisGate) TryReserve(ctx context.Context, key models.ReceiptKey) (Reservation, error) {
	key = key.Normalized()
	if key.Recipient == "" {
		return Reservation{}, fmt.Errorf("recipient required")
	}
	redisKey := strings.Join([]string{g.prefix, key.Recipient, key.DocumentID, string(key.Kind), key.SlotToken}, ":")
	ok, err := g.client.SetNX(ctx, redisKey, time.Now().UTC().Unix(), g.windows.For(key.Kind)).Result()
	if err != nil {
		return Reservation{}, fmt.Errorf("reserve notification receipt: %w", err)
	}
	return Reservation{Already: !ok}, nil
}
