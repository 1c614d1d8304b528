package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Checker-Finance/x402-adapter/pkg/model"
)

const (
	redisKeyPrefix = "x402:quote:"
	redisExpiryIdx = "x402:quote_expiry"
)

// consumeScript performs the full consume validation server-side. Redis
// evaluates scripts on a single thread, which gives the same at-most-once
// guarantee the memory store gets from its mutex.
var consumeScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
  return {'rej', 'not_found'}
end
local rec = cjson.decode(raw)
if tonumber(ARGV[2]) >= tonumber(rec['expires_at_ms']) then
  return {'rej', 'expired'}
end
if rec['owner_id'] ~= ARGV[1] then
  return {'rej', 'owner_mismatch'}
end
if rec['consumed'] then
  return {'rej', 'already_consumed'}
end
rec['consumed'] = true
redis.call('SET', KEYS[1], cjson.encode(rec))
return {'ok', raw}
`)

// redisQuote is the wire form of a QuoteRecord in Redis. Expiry is stored as
// an absolute millisecond timestamp and enforced by TryConsume/EvictExpired
// rather than by redis key TTLs, so eviction semantics stay identical to the
// other backends.
type redisQuote struct {
	Amount      string `json:"amount"`
	OwnerID     string `json:"owner_id"`
	ExpiresAtMs int64  `json:"expires_at_ms"`
	Consumed    bool   `json:"consumed"`
}

// RedisStore is a Redis-backed quote store for multi-instance deployments.
type RedisStore struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewRedis connects to Redis and returns a quote store backed by it.
func NewRedis(addr, pass string, db int, logger *zap.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: pass,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStore{rdb: rdb, logger: logger}, nil
}

// newRedisWithClient wires an existing client; used by tests with miniredis.
func newRedisWithClient(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, logger: zap.NewNop()}
}

func (s *RedisStore) Put(ctx context.Context, rec model.QuoteRecord) error {
	data, err := json.Marshal(redisQuote{
		Amount:      rec.Amount,
		OwnerID:     rec.OwnerID,
		ExpiresAtMs: rec.ExpiresAt.UnixMilli(),
		Consumed:    rec.Consumed,
	})
	if err != nil {
		return err
	}

	ok, err := s.rdb.SetNX(ctx, redisKeyPrefix+rec.QuoteID, data, 0).Result()
	if err != nil {
		return fmt.Errorf("redis put: %w", err)
	}
	if !ok {
		return ErrDuplicateID
	}

	err = s.rdb.ZAdd(ctx, redisExpiryIdx, redis.Z{
		Score:  float64(rec.ExpiresAt.UnixMilli()),
		Member: rec.QuoteID,
	}).Err()
	if err != nil {
		return fmt.Errorf("redis put expiry index: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, quoteID string) (model.QuoteRecord, bool, error) {
	raw, err := s.rdb.Get(ctx, redisKeyPrefix+quoteID).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.QuoteRecord{}, false, nil
	}
	if err != nil {
		return model.QuoteRecord{}, false, fmt.Errorf("redis get: %w", err)
	}

	var rq redisQuote
	if err := json.Unmarshal(raw, &rq); err != nil {
		return model.QuoteRecord{}, false, fmt.Errorf("redis get decode: %w", err)
	}
	return toRecord(quoteID, rq), true, nil
}

func (s *RedisStore) TryConsume(ctx context.Context, quoteID, ownerID string, now time.Time) (model.QuoteRecord, error) {
	res, err := consumeScript.Run(ctx, s.rdb,
		[]string{redisKeyPrefix + quoteID},
		ownerID,
		strconv.FormatInt(now.UnixMilli(), 10),
	).Slice()
	if err != nil {
		return model.QuoteRecord{}, fmt.Errorf("redis consume: %w", err)
	}
	if len(res) != 2 {
		return model.QuoteRecord{}, fmt.Errorf("redis consume: unexpected reply %v", res)
	}

	tag, _ := res[0].(string)
	body, _ := res[1].(string)
	if tag == "rej" {
		return model.QuoteRecord{}, &RejectionError{QuoteID: quoteID, Reason: RejectReason(body)}
	}

	var rq redisQuote
	if err := json.Unmarshal([]byte(body), &rq); err != nil {
		return model.QuoteRecord{}, fmt.Errorf("redis consume decode: %w", err)
	}
	rec := toRecord(quoteID, rq)
	rec.Consumed = true
	return rec, nil
}

func (s *RedisStore) EvictExpired(ctx context.Context, now time.Time) (int, error) {
	max := strconv.FormatInt(now.UnixMilli(), 10)
	ids, err := s.rdb.ZRangeByScore(ctx, redisExpiryIdx, &redis.ZRangeBy{
		Min: "-inf",
		Max: max,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("redis evict scan: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = redisKeyPrefix + id
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return 0, fmt.Errorf("redis evict del: %w", err)
	}
	if err := s.rdb.ZRemRangeByScore(ctx, redisExpiryIdx, "-inf", max).Err(); err != nil {
		return 0, fmt.Errorf("redis evict index: %w", err)
	}
	return len(ids), nil
}

func (s *RedisStore) HealthCheck(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func toRecord(quoteID string, rq redisQuote) model.QuoteRecord {
	return model.QuoteRecord{
		QuoteID:   quoteID,
		Amount:    rq.Amount,
		OwnerID:   rq.OwnerID,
		ExpiresAt: time.UnixMilli(rq.ExpiresAtMs),
		Consumed:  rq.Consumed,
	}
}
