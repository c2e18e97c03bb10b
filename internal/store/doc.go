// Package store provides pluggable storage keyed by composite keys.
//
// Backends see only opaque wire strings produced by keycodec. They store a
// Record (document bytes plus the wire forms of its foreign keys) and can
// answer the reverse question: which records reference a given key.
//
// # Backends
//
//   - memory: maps guarded by a RWMutex
//   - file: one JSON file, cross-process locked with flock
//   - sqlite3, postgres: database/sql, statements built with squirrel
//   - bolt: bbolt buckets, MessagePack records
//   - redis: WATCH/MULTI transactions, reference sets
//
// All backends return foreign keys and references sorted bytewise, so
// results are identical whichever backend is configured.
//
// # Store
//
// Store wraps a backend with a docconv.Converter: keys go through the
// converter's serializer and values are written as documents tagged with
// the key and its subject type. Reading a record checks both.
package store
