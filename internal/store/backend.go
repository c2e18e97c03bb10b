package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// ErrNotFound is returned by Get when no record is stored under a key.
// It is distinct from every keyerr kind: a well-formed key that names
// nothing is not a codec failure.
var ErrNotFound = errors.New("store: record not found")

// Record is what a backend stores under a wire key.
type Record struct {
	Data        []byte   `json:"data" msgpack:"data"`
	ForeignKeys []string `json:"foreign_keys,omitempty" msgpack:"foreign_keys,omitempty"`
}

// Backend stores records under opaque wire keys. Backends never parse keys.
//
// Set replaces any existing record, including its foreign keys.
// References returns the keys of records listing foreign among their
// foreign keys, sorted bytewise.
type Backend interface {
	Set(ctx context.Context, key string, rec Record) error
	Get(ctx context.Context, key string) (Record, error)
	Delete(ctx context.Context, key string) (bool, error)
	References(ctx context.Context, foreign string) ([]string, error)
	Close() error
}

// Drivers lists the names accepted by Open.
var Drivers = []string{"memory", "file", "sqlite3", "postgres", "bolt", "redis"}

// Open returns the backend for driver. The dsn is a file path for file,
// sqlite3 and bolt, a connection string for postgres, a redis:// URL for
// redis, and ignored for memory.
func Open(driver, dsn string) (Backend, error) {
	switch driver {
	case "memory":
		return NewMemory(), nil
	case "file":
		return OpenFile(dsn)
	case "sqlite3", "postgres":
		return OpenSQL(driver, dsn)
	case "bolt":
		return OpenBolt(dsn)
	case "redis":
		return OpenRedis(dsn)
	default:
		return nil, fmt.Errorf("store: unknown driver %q (want one of %v)", driver, Drivers)
	}
}

// normalize returns a copy of rec with foreign keys sorted and
// deduplicated. Every backend stores records in this form.
func normalize(rec Record) Record {
	out := Record{Data: slices.Clone(rec.Data)}
	if len(rec.ForeignKeys) > 0 {
		out.ForeignKeys = slices.Clone(rec.ForeignKeys)
		slices.Sort(out.ForeignKeys)
		out.ForeignKeys = slices.Compact(out.ForeignKeys)
	}
	if out.Data == nil {
		out.Data = []byte{}
	}
	return out
}

func validKey(key string) error {
	if key == "" {
		return errors.New("store: empty key")
	}
	return nil
}
