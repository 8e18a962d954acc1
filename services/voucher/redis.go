package voucher

import (
	"context"
	"errors"
	"strconv"
	"time"

	"voucherledger/pkg/errutil"
	"voucherledger/pkg/rediskey"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on a shared Redis instance. The redemption
// commit runs as a server-side Lua script so the usage-limit check, the
// idempotency marker and the audit append are one indivisible unit even with
// multiple service instances on the same store.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// commitScript arbitrates concurrent redemptions. KEYS: voucher hash, idem
// set, record hash, by-voucher list, by-account list, record index zset.
// ARGV: account id, record id, index score, then record field/value pairs.
var commitScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 'NOT_FOUND'
end
if redis.call('SISMEMBER', KEYS[2], ARGV[1]) == 1 then
  return 'ALREADY_REDEEMED'
end
local maxUses = tonumber(redis.call('HGET', KEYS[1], 'maxUses') or '0')
local usedCount = tonumber(redis.call('HGET', KEYS[1], 'usedCount') or '0')
if maxUses > 0 and usedCount >= maxUses then
  return 'CODE_EXHAUSTED'
end
redis.call('HINCRBY', KEYS[1], 'usedCount', 1)
redis.call('SADD', KEYS[2], ARGV[1])
redis.call('HSET', KEYS[3], unpack(ARGV, 4))
redis.call('LPUSH', KEYS[4], ARGV[2])
redis.call('LPUSH', KEYS[5], ARGV[2])
redis.call('ZADD', KEYS[6], ARGV[3], ARGV[2])
return 'OK'
`)

func (s *RedisStore) PutVoucher(ctx context.Context, v *Voucher) error {
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, rediskey.BuildVoucherKey(v.ID), v.toHash())
	pipe.HSet(ctx, rediskey.VoucherHashMap, v.CodeHash, v.ID)
	pipe.ZAdd(ctx, rediskey.VoucherIndex, redis.Z{
		Score:  float64(v.CreatedAt.UnixNano()),
		Member: v.ID,
	})
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) GetVoucher(ctx context.Context, id string) (*Voucher, error) {
	h, err := s.rdb.HGetAll(ctx, rediskey.BuildVoucherKey(id)).Result()
	if err != nil {
		return nil, err
	}
	return voucherFromHash(h)
}

func (s *RedisStore) UpdateVoucher(ctx context.Context, id string, upd VoucherUpdate) (*Voucher, error) {
	if _, err := s.GetVoucher(ctx, id); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if upd.Name != nil {
		fields["name"] = *upd.Name
	}
	if upd.Amount != nil {
		fields["amount"] = upd.Amount.String()
	}
	if upd.MaxUses != nil {
		fields["maxUses"] = strconv.FormatInt(*upd.MaxUses, 10)
	}
	if upd.ClearExpiry {
		fields["expiresAt"] = ""
	} else if upd.ExpiresAt != nil {
		fields["expiresAt"] = upd.ExpiresAt.UTC().Format(time.RFC3339Nano)
	}
	if upd.IsActive != nil {
		fields["isActive"] = strconv.FormatBool(*upd.IsActive)
	}
	if upd.Tags != nil {
		tags, err := tagsJSON(upd.Tags)
		if err != nil {
			return nil, err
		}
		fields["tags"] = tags
	}

	if len(fields) > 0 {
		if err := s.rdb.HSet(ctx, rediskey.BuildVoucherKey(id), fields).Err(); err != nil {
			return nil, err
		}
	}

	return s.GetVoucher(ctx, id)
}

func (s *RedisStore) DeleteVoucher(ctx context.Context, id string) error {
	v, err := s.GetVoucher(ctx, id)
	if err != nil {
		return err
	}

	pipe := s.rdb.TxPipeline()
	pipe.HDel(ctx, rediskey.VoucherHashMap, v.CodeHash)
	pipe.Del(ctx, rediskey.BuildVoucherKey(id))
	pipe.ZRem(ctx, rediskey.VoucherIndex, id)
	pipe.Del(ctx, rediskey.BuildIdemKey(id))
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) ListVouchers(ctx context.Context) ([]*Voucher, error) {
	ids, err := s.rdb.ZRevRange(ctx, rediskey.VoucherIndex, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	vouchers := make([]*Voucher, 0, len(ids))
	for _, id := range ids {
		v, err := s.GetVoucher(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue // index entry outlived the record
		}
		if err != nil {
			return nil, err
		}
		vouchers = append(vouchers, v)
	}
	return vouchers, nil
}

func (s *RedisStore) ResolveCode(ctx context.Context, lookupHash string) (string, error) {
	id, err := s.rdb.HGet(ctx, rediskey.VoucherHashMap, lookupHash).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *RedisStore) HasRedeemed(ctx context.Context, voucherID, accountID string) (bool, error) {
	return s.rdb.SIsMember(ctx, rediskey.BuildIdemKey(voucherID), accountID).Result()
}

func (s *RedisStore) Commit(ctx context.Context, voucherID, accountID string, rec *RedemptionRecord) error {
	keys := []string{
		rediskey.BuildVoucherKey(voucherID),
		rediskey.BuildIdemKey(voucherID),
		rediskey.BuildRecordKey(rec.ID),
		rediskey.BuildByVoucherKey(voucherID),
		rediskey.BuildByAccountKey(accountID),
		rediskey.RecordIndex,
	}

	args := []interface{}{
		accountID,
		rec.ID,
		strconv.FormatInt(rec.RedeemedAt.UnixNano(), 10),
	}
	for field, value := range rec.toHash() {
		args = append(args, field, value)
	}

	res, err := commitScript.Run(ctx, s.rdb, keys, args...).Result()
	if err != nil {
		return err
	}

	switch res {
	case "OK":
		return nil
	case "ALREADY_REDEEMED":
		return ErrAlreadyRedeemed
	case "CODE_EXHAUSTED":
		return ErrCodeExhausted
	case "NOT_FOUND":
		return ErrNotFound
	default:
		return errutil.Internal("unexpected commit result")
	}
}

func (s *RedisStore) GetRecord(ctx context.Context, id string) (*RedemptionRecord, error) {
	h, err := s.rdb.HGetAll(ctx, rediskey.BuildRecordKey(id)).Result()
	if err != nil {
		return nil, err
	}
	return recordFromHash(h)
}

func (s *RedisStore) RecordsByVoucher(ctx context.Context, voucherID string, limit int64) ([]*RedemptionRecord, error) {
	ids, err := s.rdb.LRange(ctx, rediskey.BuildByVoucherKey(voucherID), 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	return s.fetchRecords(ctx, ids)
}

func (s *RedisStore) RecordsByAccount(ctx context.Context, accountID string, limit int64) ([]*RedemptionRecord, error) {
	ids, err := s.rdb.LRange(ctx, rediskey.BuildByAccountKey(accountID), 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	return s.fetchRecords(ctx, ids)
}

func (s *RedisStore) ListRecords(ctx context.Context, limit int64) ([]*RedemptionRecord, error) {
	ids, err := s.rdb.ZRevRange(ctx, rediskey.RecordIndex, 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	return s.fetchRecords(ctx, ids)
}

func (s *RedisStore) fetchRecords(ctx context.Context, ids []string) ([]*RedemptionRecord, error) {
	records := make([]*RedemptionRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := s.GetRecord(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *RedisStore) Attempts(ctx context.Context, sourceKey string) (int64, error) {
	n, err := s.rdb.Get(ctx, rediskey.BuildAttemptKey(sourceKey)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

func (s *RedisStore) RecordAttempt(ctx context.Context, sourceKey string, window time.Duration) error {
	key := rediskey.BuildAttemptKey(sourceKey)
	pipe := s.rdb.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	_, err := pipe.Exec(ctx)
	return err
}
