package keycodec

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/roach88/typekey/internal/keyerr"
)

// Field is one key part after naming: the rendered type and the raw value.
type Field struct {
	Type  string
	Value string
}

// Encoding joins named fields into a wire string and splits them back.
type Encoding interface {
	Name() string
	Join(fields []Field) (string, error)
	Split(wire string) ([]Field, error)
}

// Plain encoding tokens.
const (
	TypeSeparator = "{:}"
	PartSeparator = "{+}"
)

// Segmented encodes each field with standard base64 and joins them as
// "type:value,type:value". The base64 alphabet contains neither ':' nor
// ',' so no escaping is needed. It is the canonical wire form.
type Segmented struct{}

func (Segmented) Name() string { return "segmented" }

func (Segmented) Join(fields []Field) (string, error) {
	if len(fields) == 0 {
		return "", keyerr.New(keyerr.MalformedWireFormat, "", "no parts to join")
	}
	enc := base64.StdEncoding
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(enc.EncodeToString([]byte(f.Type)))
		b.WriteByte(':')
		b.WriteString(enc.EncodeToString([]byte(f.Value)))
	}
	return b.String(), nil
}

func (Segmented) Split(wire string) ([]Field, error) {
	if wire == "" {
		return nil, keyerr.New(keyerr.MalformedWireFormat, wire, "empty wire string")
	}
	enc := base64.StdEncoding
	entries := strings.Split(wire, ",")
	fields := make([]Field, 0, len(entries))
	for i, entry := range entries {
		segs := strings.Split(entry, ":")
		if len(segs) != 2 {
			return nil, keyerr.New(keyerr.MalformedWireFormat, wire,
				"part %d has %d segments, want 2", i, len(segs))
		}
		typ, err := enc.DecodeString(segs[0])
		if err != nil {
			return nil, keyerr.Wrap(keyerr.MalformedWireFormat, wire, err, "part %d type", i)
		}
		val, err := enc.DecodeString(segs[1])
		if err != nil {
			return nil, keyerr.Wrap(keyerr.MalformedWireFormat, wire, err, "part %d value", i)
		}
		fields = append(fields, Field{Type: string(typ), Value: string(val)})
	}
	return fields, nil
}

// Plain renders "type{:}value{+}type{:}value" for humans. Values are
// escaped by doubling every ':' and '+'; type strings are written as is
// and must not contain either separator token.
type Plain struct{}

func (Plain) Name() string { return "plain" }

func (Plain) Join(fields []Field) (string, error) {
	if len(fields) == 0 {
		return "", keyerr.New(keyerr.MalformedWireFormat, "", "no parts to join")
	}
	var b strings.Builder
	for i, f := range fields {
		if strings.Contains(f.Type, TypeSeparator) || strings.Contains(f.Type, PartSeparator) {
			return "", keyerr.New(keyerr.MalformedWireFormat, f.Type,
				"type string contains a reserved separator token")
		}
		if i > 0 {
			b.WriteString(PartSeparator)
		}
		b.WriteString(f.Type)
		b.WriteString(TypeSeparator)
		b.WriteString(EscapeValue(f.Value))
	}
	return b.String(), nil
}

func (Plain) Split(wire string) ([]Field, error) {
	if wire == "" {
		return nil, keyerr.New(keyerr.MalformedWireFormat, wire, "empty wire string")
	}
	entries := strings.Split(wire, PartSeparator)
	fields := make([]Field, 0, len(entries))
	for i, entry := range entries {
		typ, escaped, ok := strings.Cut(entry, TypeSeparator)
		if !ok {
			return nil, keyerr.New(keyerr.MalformedWireFormat, wire,
				"part %d has no %s separator", i, TypeSeparator)
		}
		val, err := UnescapeValue(escaped)
		if err != nil {
			return nil, keyerr.Wrap(keyerr.MalformedWireFormat, wire, err, "part %d", i)
		}
		fields = append(fields, Field{Type: typ, Value: val})
	}
	return fields, nil
}

// EscapeValue doubles every ':' and '+' in v.
func EscapeValue(v string) string {
	if !strings.ContainsAny(v, ":+") {
		return v
	}
	var b strings.Builder
	b.Grow(len(v) + 8)
	for i := 0; i < len(v); i++ {
		c := v[i]
		b.WriteByte(c)
		if c == ':' || c == '+' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// UnescapeValue reverses EscapeValue. A ':' or '+' that is not part of a
// doubled pair is malformed.
func UnescapeValue(s string) (string, error) {
	if !strings.ContainsAny(s, ":+") {
		return s, nil
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ':' || c == '+' {
			if i+1 >= len(s) || s[i+1] != c {
				return "", keyerr.New(keyerr.MalformedWireFormat, s,
					"unpaired %q at offset %d", c, i)
			}
			i++
		}
		b.WriteByte(c)
	}
	return b.String(), nil
}

// EncodingByName returns the encoding called name ("segmented" or "plain").
func EncodingByName(name string) (Encoding, error) {
	switch name {
	case "segmented", "":
		return Segmented{}, nil
	case "plain":
		return Plain{}, nil
	}
	return nil, fmt.Errorf("keycodec: unknown encoding %q", name)
}
