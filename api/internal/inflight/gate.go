// Package inflight keeps at most one recognition running per chat and
// remembers the last observed ocr.State of that run in Redis.
package inflight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"image-to-text/api/internal/ocr"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	lockKeyPrefix  = "ocr:inflight:"
	stateKeyPrefix = "ocr:state:"
)

// снимаем блокировку, только если она всё ещё наша
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0`)

// Record — последнее состояние операции в чате.
type Record struct {
	State     ocr.State `json:"state"`
	FileName  string    `json:"fileName,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Gate struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewGate returns a gate whose locks expire after ttl, so a crashed run
// never blocks a chat forever.
func NewGate(rdb *redis.Client, ttl time.Duration) *Gate {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Gate{rdb: rdb, ttl: ttl}
}

// Acquire tries to take the chat's slot. ok == false means another run holds it.
func (g *Gate) Acquire(ctx context.Context, chatID int64) (token string, ok bool, err error) {
	token = uuid.NewString()
	ok, err = g.rdb.SetNX(ctx, lockKey(chatID), token, g.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("inflight acquire: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release frees the slot if token still owns it.
func (g *Gate) Release(ctx context.Context, chatID int64, token string) error {
	if token == "" {
		return nil
	}
	if err := releaseScript.Run(ctx, g.rdb, []string{lockKey(chatID)}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("inflight release: %w", err)
	}
	return nil
}

func (g *Gate) SetState(ctx context.Context, chatID int64, rec Record) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return g.rdb.Set(ctx, stateKey(chatID), payload, g.ttl).Err()
}

// State returns the last recorded state; a chat with nothing recorded is idle.
func (g *Gate) State(ctx context.Context, chatID int64) (Record, error) {
	data, err := g.rdb.Get(ctx, stateKey(chatID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{State: ocr.StateIdle}, nil
		}
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Notifier records every state change and then forwards it to next.
// Redis failures are ignored: the run itself must not depend on them.
func (g *Gate) Notifier(ctx context.Context, chatID int64, fileName string, next ocr.Notifier) ocr.Notifier {
	return func(s ocr.State) {
		_ = g.SetState(ctx, chatID, Record{State: s, FileName: fileName})
		if next != nil {
			next(s)
		}
	}
}

func (g *Gate) Ping(ctx context.Context) error {
	return g.rdb.Ping(ctx).Err()
}

func lockKey(chatID int64) string  { return lockKeyPrefix + strconv.FormatInt(chatID, 10) }
func stateKey(chatID int64) string { return stateKeyPrefix + strconv.FormatInt(chatID, 10) }
