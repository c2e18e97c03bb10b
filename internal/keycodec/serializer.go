package keycodec

import (
	"fmt"

	"github.com/roach88/typekey/internal/keys"
	"github.com/roach88/typekey/internal/typedesc"
)

// Settings pair a naming strategy with an encoding strategy. The same
// settings must be used to serialize and deserialize a key.
type Settings struct {
	Naming   TypeNamer
	Encoding Encoding
}

// DefaultSettings names types with the descriptor codec and uses the
// segmented encoding.
func DefaultSettings(codec *typedesc.Codec) Settings {
	return Settings{Naming: NewDescriptorNaming(codec), Encoding: Segmented{}}
}

func (s Settings) validate() error {
	if s.Naming == nil {
		return fmt.Errorf("keycodec: settings have no naming strategy")
	}
	if s.Encoding == nil {
		return fmt.Errorf("keycodec: settings have no encoding")
	}
	return nil
}

// Serializer converts keys to and from wire strings under fixed settings.
//
// Thread-safety: safe for concurrent use when its naming strategy is.
// All built-in strategies are, provided lookup tables are not mutated
// concurrently.
type Serializer struct {
	settings Settings
}

// NewSerializer returns a serializer for settings.
func NewSerializer(settings Settings) (*Serializer, error) {
	if err := settings.validate(); err != nil {
		return nil, err
	}
	return &Serializer{settings: settings}, nil
}

// Settings returns the serializer's settings.
func (s *Serializer) Settings() Settings { return s.settings }

// Serialize renders k as one wire string.
func (s *Serializer) Serialize(k keys.Key) (string, error) {
	if k.IsZero() {
		return "", keys.ErrEmpty
	}
	fields := make([]Field, k.Len())
	for i := range fields {
		p := k.Part(i)
		name, err := s.settings.Naming.TypeName(p.Type)
		if err != nil {
			return "", err
		}
		fields[i] = Field{Type: name, Value: p.Value}
	}
	return s.settings.Encoding.Join(fields)
}

// Deserialize parses a wire string produced by Serialize with the same
// settings.
func (s *Serializer) Deserialize(wire string) (keys.Key, error) {
	fields, err := s.settings.Encoding.Split(wire)
	if err != nil {
		return keys.Key{}, err
	}
	parts := make([]keys.Part, len(fields))
	for i, f := range fields {
		d, err := s.settings.Naming.ParseTypeName(f.Type)
		if err != nil {
			return keys.Key{}, err
		}
		parts[i] = keys.Part{Type: d, Value: f.Value}
	}
	return keys.FromParts(parts...)
}

// Serialize renders k under settings.
func Serialize(k keys.Key, settings Settings) (string, error) {
	s, err := NewSerializer(settings)
	if err != nil {
		return "", err
	}
	return s.Serialize(k)
}

// Deserialize parses wire under settings.
func Deserialize(wire string, settings Settings) (keys.Key, error) {
	s, err := NewSerializer(settings)
	if err != nil {
		return keys.Key{}, err
	}
	return s.Deserialize(wire)
}

// Convert re-encodes a wire string from one set of settings to another.
func Convert(wire string, from, to Settings) (string, error) {
	k, err := Deserialize(wire, from)
	if err != nil {
		return "", err
	}
	return Serialize(k, to)
}
