// Package locker provides a short-lived redis lock held across a single
// receipt issuance, shrinking the window where two callers could both
// reach the fiscal API. The receipts unique index is the real guarantee;
// this keeps the loser from making a doomed external call.
package locker

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const lockTTL = 45 * time.Second

type Locker struct {
	client *redis.Client
	logger *zap.Logger
}

func New(addr, password string, db int, logger *zap.Logger) (*Locker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:            addr,
		Password:        password,
		DB:              db,
		PoolSize:        20,
		MinIdleConns:    2,
		PoolTimeout:     4 * time.Second,
		ConnMaxIdleTime: 5 * time.Minute,

		MaxRetries:      3,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	logger.Info("redis connected", zap.String("addr", addr))
	return &Locker{client: client, logger: logger}, nil
}

func lockKey(paymentID int64) string {
	return fmt.Sprintf("issue:lock:v1:%d", paymentID)
}

// Acquire takes the per-payment lock. Returns false when another issuance
// holds it. A nil Locker always acquires (redis disabled).
func (l *Locker) Acquire(ctx context.Context, paymentID int64) (bool, error) {
	if l == nil {
		return true, nil
	}
	ok, err := l.client.SetNX(ctx, lockKey(paymentID), 1, lockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("lock acquire: %w", err)
	}
	return ok, nil
}

// Release drops the lock. Best effort: the TTL bounds a leaked lock.
func (l *Locker) Release(ctx context.Context, paymentID int64) {
	if l == nil {
		return
	}
	if err := l.client.Del(ctx, lockKey(paymentID)).Err(); err != nil {
		l.logger.Warn("failed to release issuance lock",
			zap.Int64("payment_id", paymentID),
			zap.Error(err))
	}
}

func (l *Locker) Close() error {
	if l == nil {
		return nil
	}
	return l.client.Close()
}
