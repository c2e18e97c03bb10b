package store

import (
	"context"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"
)

var (
	boltRecords = []byte("records")
	boltRefs    = []byte("refs")
)

// Bolt is a bbolt backend. Records are MessagePack-encoded in the
// "records" bucket; "refs" holds one nested bucket per foreign key whose
// keys are the referencing wire keys, so References is a cursor walk in
// byte order.
type Bolt struct {
	bdb *bbolt.DB
}

// OpenBolt opens or creates the bbolt file at path.
func OpenBolt(path string) (*Bolt, error) {
	bopt := *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	bopt.FreelistType = bbolt.FreelistMapType

	bdb, err := bbolt.Open(path, 0o666, &bopt)
	if err != nil {
		return nil, fmt.Errorf("store: bolt: %w", err)
	}
	err = bdb.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{boltRecords, boltRefs} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		bdb.Close()
		return nil, fmt.Errorf("store: bolt: create buckets: %w", err)
	}
	return &Bolt{bdb: bdb}, nil
}

// Bolt returns the underlying database.
func (b *Bolt) Bolt() *bbolt.DB { return b.bdb }

func (b *Bolt) Set(ctx context.Context, key string, rec Record) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	rec = normalize(rec)
	raw, err := msgpack.Marshal(rec)
	if err != nil {
		return fmt.Errorf("set %q: encode: %w", key, err)
	}

	return b.bdb.Update(func(tx *bbolt.Tx) error {
		records, refs := tx.Bucket(boltRecords), tx.Bucket(boltRefs)
		if err := unlinkBolt(records, refs, key); err != nil {
			return err
		}
		if err := records.Put([]byte(key), raw); err != nil {
			return fmt.Errorf("set %q: %w", key, err)
		}
		for _, f := range rec.ForeignKeys {
			fb, err := refs.CreateBucketIfNotExists([]byte(f))
			if err != nil {
				return fmt.Errorf("set %q: ref %q: %w", key, f, err)
			}
			if err := fb.Put([]byte(key), []byte{}); err != nil {
				return fmt.Errorf("set %q: ref %q: %w", key, f, err)
			}
		}
		return nil
	})
}

func (b *Bolt) Get(ctx context.Context, key string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	var rec Record
	err := b.bdb.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(boltRecords).Get([]byte(key))
		if raw == nil {
			return ErrNotFound
		}
		return decodeBoltRecord(raw, &rec)
	})
	if err != nil {
		return Record{}, err
	}
	return normalize(rec), nil
}

func (b *Bolt) Delete(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var found bool
	err := b.bdb.Update(func(tx *bbolt.Tx) error {
		records, refs := tx.Bucket(boltRecords), tx.Bucket(boltRefs)
		if records.Get([]byte(key)) == nil {
			return nil
		}
		found = true
		if err := unlinkBolt(records, refs, key); err != nil {
			return err
		}
		return records.Delete([]byte(key))
	})
	return found, err
}

func (b *Bolt) References(ctx context.Context, foreign string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := []string{}
	err := b.bdb.View(func(tx *bbolt.Tx) error {
		fb := tx.Bucket(boltRefs).Bucket([]byte(foreign))
		if fb == nil {
			return nil
		}
		c := fb.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			out = append(out, string(k))
		}
		return nil
	})
	return out, err
}

func (b *Bolt) Close() error { return b.bdb.Close() }

// unlinkBolt removes key from the ref buckets of its current record.
func unlinkBolt(records, refs *bbolt.Bucket, key string) error {
	raw := records.Get([]byte(key))
	if raw == nil {
		return nil
	}
	var old Record
	if err := decodeBoltRecord(raw, &old); err != nil {
		return err
	}
	for _, f := range old.ForeignKeys {
		fb := refs.Bucket([]byte(f))
		if fb == nil {
			continue
		}
		if err := fb.Delete([]byte(key)); err != nil {
			return err
		}
		if k, _ := fb.Cursor().First(); k == nil {
			if err := refs.DeleteBucket([]byte(f)); err != nil {
				return err
			}
		}
	}
	return nil
}

func decodeBoltRecord(raw []byte, rec *Record) error {
	if err := msgpack.Unmarshal(raw, rec); err != nil {
		return fmt.Errorf("store: bolt: decode record: %w", err)
	}
	return nil
}
