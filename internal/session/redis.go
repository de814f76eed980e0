package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// busyTTL bounds how long a crashed process can keep an account busy.
const busyTTL = 10 * time.Minute

// RedisStore shares sessions between bot replicas.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(addr, password string, db int, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

func sessionKey(telegramID int64) string {
	return fmt.Sprintf("session:%d", telegramID)
}

func busyKey(telegramID int64) string {
	return fmt.Sprintf("busy:%d", telegramID)
}

func (r *RedisStore) Get(ctx context.Context, telegramID int64) (*Session, error) {
	data, err := r.client.Get(ctx, sessionKey(telegramID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return &Session{TelegramID: telegramID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return decode(telegramID, data)
}

func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	if s.Idle() {
		return r.Clear(ctx, s.TelegramID)
	}
	data, err := encode(s)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, sessionKey(s.TelegramID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (r *RedisStore) Clear(ctx context.Context, telegramID int64) error {
	return r.client.Del(ctx, sessionKey(telegramID)).Err()
}

func (r *RedisStore) TryAcquire(ctx context.Context, telegramID int64) (bool, error) {
	ok, err := r.client.SetNX(ctx, busyKey(telegramID), time.Now().Unix(), busyTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to set busy flag: %w", err)
	}
	return ok, nil
}

func (r *RedisStore) Release(ctx context.Context, telegramID int64) error {
	return r.client.Del(ctx, busyKey(telegramID)).Err()
}

func (r *RedisStore) Busy(ctx context.Context, telegramID int64) (bool, error) {
	n, err := r.client.Exists(ctx, busyKey(telegramID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check busy flag: %w", err)
	}
	return n > 0, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func encode(s *Session) ([]byte, error) {
	c := s.clone()
	c.UpdatedAt = time.Now()
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}
	return data, nil
}

// decode falls back to an Idle session when the stored value is unreadable.
func decode(telegramID int64, data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return &Session{TelegramID: telegramID}, nil
	}
	s.TelegramID = telegramID
	return &s, nil
}
