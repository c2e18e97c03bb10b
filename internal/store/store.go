package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/typekey/internal/docconv"
	"github.com/roach88/typekey/internal/keys"
)

// Store is the typed facade over a Backend. Keys are serialized with the
// converter's serializer; values are stored as documents carrying their
// key and subject type.
//
// Thread-safety: safe for concurrent use when the backend is.
type Store struct {
	backend Backend
	conv    *docconv.Converter
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for storage events. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New returns a store over backend.
func New(backend Backend, conv *docconv.Converter, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		conv:    conv,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Backend returns the underlying backend.
func (s *Store) Backend() Backend { return s.backend }

// Set stores value under k, replacing any existing record. The foreign
// keys are recorded so that References on any of them finds k.
func (s *Store) Set(ctx context.Context, k keys.Key, value any, foreign ...keys.Key) error {
	wire, err := s.conv.Serializer().Serialize(k)
	if err != nil {
		return fmt.Errorf("store: set: %w", err)
	}
	rec := Record{ForeignKeys: make([]string, 0, len(foreign))}
	for _, f := range foreign {
		fw, err := s.conv.Serializer().Serialize(f)
		if err != nil {
			return fmt.Errorf("store: set %s: foreign key: %w", k, err)
		}
		rec.ForeignKeys = append(rec.ForeignKeys, fw)
	}
	if rec.Data, err = s.conv.MarshalDocument(k, value); err != nil {
		return fmt.Errorf("store: set %s: %w", k, err)
	}

	if err := s.backend.Set(ctx, wire, rec); err != nil {
		return err
	}
	s.logger.Debug("record stored", "key", wire, "foreign_keys", len(rec.ForeignKeys))
	return nil
}

// Get decodes the value stored under k into out. It returns ErrNotFound
// when k names no record.
func (s *Store) Get(ctx context.Context, k keys.Key, out any) error {
	wire, err := s.conv.Serializer().Serialize(k)
	if err != nil {
		return fmt.Errorf("store: get: %w", err)
	}
	rec, err := s.backend.Get(ctx, wire)
	if err != nil {
		return err
	}
	stored, err := s.conv.UnmarshalDocument(rec.Data, out)
	if err != nil {
		return fmt.Errorf("store: get %s: %w", k, err)
	}
	if !stored.Equal(k) {
		return fmt.Errorf("store: get %s: record holds key %s", k, stored)
	}
	s.logger.Debug("record loaded", "key", wire)
	return nil
}

// ForeignKeys returns the foreign keys recorded for k.
func (s *Store) ForeignKeys(ctx context.Context, k keys.Key) ([]keys.Key, error) {
	wire, err := s.conv.Serializer().Serialize(k)
	if err != nil {
		return nil, fmt.Errorf("store: foreign keys: %w", err)
	}
	rec, err := s.backend.Get(ctx, wire)
	if err != nil {
		return nil, err
	}
	return s.deserializeAll(rec.ForeignKeys)
}

// Delete removes the record under k. It reports whether one existed.
func (s *Store) Delete(ctx context.Context, k keys.Key) (bool, error) {
	wire, err := s.conv.Serializer().Serialize(k)
	if err != nil {
		return false, fmt.Errorf("store: delete: %w", err)
	}
	found, err := s.backend.Delete(ctx, wire)
	if err != nil {
		return false, err
	}
	s.logger.Debug("record deleted", "key", wire, "found", found)
	return found, nil
}

// References returns the keys of records that list k as a foreign key,
// ordered by wire form.
func (s *Store) References(ctx context.Context, k keys.Key) ([]keys.Key, error) {
	wire, err := s.conv.Serializer().Serialize(k)
	if err != nil {
		return nil, fmt.Errorf("store: references: %w", err)
	}
	wires, err := s.backend.References(ctx, wire)
	if err != nil {
		return nil, err
	}
	return s.deserializeAll(wires)
}

// Close closes the backend.
func (s *Store) Close() error { return s.backend.Close() }

func (s *Store) deserializeAll(wires []string) ([]keys.Key, error) {
	out := make([]keys.Key, 0, len(wires))
	for _, w := range wires {
		k, err := s.conv.Serializer().Deserialize(w)
		if err != nil {
			return nil, fmt.Errorf("store: stored key %q: %w", w, err)
		}
		out = append(out, k)
	}
	return out, nil
}

// Get loads the T stored under k.
func Get[T any](ctx context.Context, s *Store, k keys.Typed[T]) (T, error) {
	var v T
	err := s.Get(ctx, k.Key(), &v)
	return v, err
}

// Set stores v under k.
func Set[T any](ctx context.Context, s *Store, k keys.Typed[T], v T, foreign ...keys.Key) error {
	return s.Set(ctx, k.Key(), v, foreign...)
}
