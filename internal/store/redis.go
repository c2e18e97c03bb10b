package store

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/go-redis/redis/v8"
	"github.com/vmihailenco/msgpack/v5"
)

const redisMaxRetries = 10

// Redis is a redis backend. Each record is a MessagePack string under
// "{prefix}rec:{key}", and each foreign key a set of referencing keys
// under "{prefix}ref:{foreign}". Writes run in WATCH/MULTI transactions
// and are retried on conflict.
type Redis struct {
	client *redis.Client
	prefix string
	owned  bool
}

// NewRedis wraps an existing client. Close does not close it.
func NewRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

// OpenRedis connects to a redis:// URL.
func OpenRedis(url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("store: redis: %w", err)
	}
	r := &Redis{client: redis.NewClient(opts), prefix: "typekey:", owned: true}
	if err := r.client.Ping(context.Background()).Err(); err != nil {
		r.client.Close()
		return nil, fmt.Errorf("store: redis: %w", err)
	}
	return r, nil
}

func (r *Redis) recKey(key string) string     { return r.prefix + "rec:" + key }
func (r *Redis) refKey(foreign string) string { return r.prefix + "ref:" + foreign }

func (r *Redis) Set(ctx context.Context, key string, rec Record) error {
	if err := validKey(key); err != nil {
		return err
	}
	rec = normalize(rec)
	raw, err := msgpack.Marshal(rec)
	if err != nil {
		return fmt.Errorf("set %q: encode: %w", key, err)
	}

	return r.transact(ctx, key, func(tx *redis.Tx, old *Record) error {
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if old != nil {
				for _, f := range old.ForeignKeys {
					pipe.SRem(ctx, r.refKey(f), key)
				}
			}
			pipe.Set(ctx, r.recKey(key), raw, 0)
			for _, f := range rec.ForeignKeys {
				pipe.SAdd(ctx, r.refKey(f), key)
			}
			return nil
		})
		return err
	})
}

func (r *Redis) Get(ctx context.Context, key string) (Record, error) {
	raw, err := r.client.Get(ctx, r.recKey(key)).Bytes()
	if err == redis.Nil { // not found
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get %q: %w", key, err)
	}
	var rec Record
	if err := msgpack.Unmarshal(raw, &rec); err != nil {
		return Record{}, fmt.Errorf("get %q: decode: %w", key, err)
	}
	return normalize(rec), nil
}

func (r *Redis) Delete(ctx context.Context, key string) (bool, error) {
	var found bool
	err := r.transact(ctx, key, func(tx *redis.Tx, old *Record) error {
		found = old != nil
		if !found {
			return nil
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, f := range old.ForeignKeys {
				pipe.SRem(ctx, r.refKey(f), key)
			}
			pipe.Del(ctx, r.recKey(key))
			return nil
		})
		return err
	})
	return found, err
}

func (r *Redis) References(ctx context.Context, foreign string) ([]string, error) {
	members, err := r.client.SMembers(ctx, r.refKey(foreign)).Result()
	if err != nil {
		return nil, fmt.Errorf("references %q: %w", foreign, err)
	}
	slices.Sort(members)
	return members, nil
}

// Close closes the client if OpenRedis created it.
func (r *Redis) Close() error {
	if !r.owned {
		return nil
	}
	return r.client.Close()
}

// transact watches key's record, passes its current value (nil if absent)
// to fn and retries when another client changes the record first.
func (r *Redis) transact(ctx context.Context, key string, fn func(tx *redis.Tx, old *Record) error) error {
	watched := r.recKey(key)
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, watched).Bytes()
		if err != nil && err != redis.Nil {
			return err
		}
		var old *Record
		if err == nil {
			old = &Record{}
			if err := msgpack.Unmarshal(raw, old); err != nil {
				return fmt.Errorf("decode %q: %w", key, err)
			}
		}
		return fn(tx, old)
	}

	for i := 0; i < redisMaxRetries; i++ {
		err := r.client.Watch(ctx, txf, watched)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("store: redis %q: %w", key, err)
		}
		return nil
	}
	return fmt.Errorf("store: redis %q: transaction retries exhausted", key)
}
