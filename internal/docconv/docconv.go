// Package docconv bridges composite keys and type descriptors into
// structured documents.
//
// A document is an envelope around a value:
//
//	{"$type": "TestClass1, example.com/fixtures", "$key": "<wire>", "value": {...}}
//
// "$type" is the descriptor of the key's subject and "$key" the key's wire
// form under the converter's serializer. Documents can be rendered as JSON
// or as MessagePack; both carry the same three fields.
package docconv

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/roach88/typekey/internal/keycodec"
	"github.com/roach88/typekey/internal/keys"
	"github.com/roach88/typekey/internal/typedesc"
)

// ErrTypeMismatch is returned when a document's "$type" disagrees with
// the subject of its "$key".
var ErrTypeMismatch = errors.New("docconv: document type does not match key subject")

// Format selects the document encoding.
type Format int

const (
	JSON Format = iota
	MsgPack
)

func (f Format) String() string {
	switch f {
	case JSON:
		return "json"
	case MsgPack:
		return "msgpack"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

type jsonDocument struct {
	Type  string          `json:"$type"`
	Key   string          `json:"$key"`
	Value json.RawMessage `json:"value"`
}

type msgpackDocument struct {
	Type  string             `msgpack:"$type"`
	Key   string             `msgpack:"$key"`
	Value msgpack.RawMessage `msgpack:"value"`
}

// Converter renders keys, type tags and documents.
//
// Thread-safety: safe for concurrent use when its serializer is.
type Converter struct {
	serializer *keycodec.Serializer
	codec      *typedesc.Codec
	format     Format
}

// NewConverter returns a converter. Keys are rendered with serializer and
// type tags resolved with codec.
func NewConverter(serializer *keycodec.Serializer, codec *typedesc.Codec, format Format) *Converter {
	return &Converter{serializer: serializer, codec: codec, format: format}
}

// Serializer returns the key serializer.
func (c *Converter) Serializer() *keycodec.Serializer { return c.serializer }

// Format returns the document encoding.
func (c *Converter) Format() Format { return c.format }

// MarshalKey renders k as a JSON string holding its wire form.
func (c *Converter) MarshalKey(k keys.Key) ([]byte, error) {
	wire, err := c.serializer.Serialize(k)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wire)
}

// UnmarshalKey parses the output of MarshalKey.
func (c *Converter) UnmarshalKey(data []byte) (keys.Key, error) {
	var wire string
	if err := json.Unmarshal(data, &wire); err != nil {
		return keys.Key{}, fmt.Errorf("docconv: key is not a JSON string: %w", err)
	}
	return c.serializer.Deserialize(wire)
}

// MarshalTypeTag renders d as a JSON string holding its descriptor.
func (c *Converter) MarshalTypeTag(d typedesc.Descriptor) ([]byte, error) {
	s, err := typedesc.Encode(d)
	if err != nil {
		return nil, err
	}
	return json.Marshal(s)
}

// UnmarshalTypeTag parses and resolves the output of MarshalTypeTag.
func (c *Converter) UnmarshalTypeTag(data []byte) (typedesc.Descriptor, error) {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return typedesc.Descriptor{}, fmt.Errorf("docconv: type tag is not a JSON string: %w", err)
	}
	return c.codec.Decode(s)
}

// MarshalDocument wraps value in an envelope identified by k.
func (c *Converter) MarshalDocument(k keys.Key, value any) ([]byte, error) {
	wire, err := c.serializer.Serialize(k)
	if err != nil {
		return nil, err
	}
	tag, err := typedesc.Encode(k.Subject())
	if err != nil {
		return nil, err
	}

	switch c.format {
	case MsgPack:
		raw, err := msgpack.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("docconv: encode %T: %w", value, err)
		}
		return msgpack.Marshal(msgpackDocument{Type: tag, Key: wire, Value: raw})
	default:
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("docconv: encode %T: %w", value, err)
		}
		return json.Marshal(jsonDocument{Type: tag, Key: wire, Value: raw})
	}
}

// UnmarshalDocument decodes an envelope into out and returns its key. The
// "$type" tag must resolve and equal the key's subject.
func (c *Converter) UnmarshalDocument(data []byte, out any) (keys.Key, error) {
	var tag, wire string
	var decodeValue func() error

	switch c.format {
	case MsgPack:
		var doc msgpackDocument
		if err := msgpack.Unmarshal(data, &doc); err != nil {
			return keys.Key{}, fmt.Errorf("docconv: decode document: %w", err)
		}
		tag, wire = doc.Type, doc.Key
		decodeValue = func() error { return msgpack.Unmarshal(doc.Value, out) }
	default:
		var doc jsonDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return keys.Key{}, fmt.Errorf("docconv: decode document: %w", err)
		}
		tag, wire = doc.Type, doc.Key
		decodeValue = func() error { return json.Unmarshal(doc.Value, out) }
	}

	k, err := c.serializer.Deserialize(wire)
	if err != nil {
		return keys.Key{}, err
	}
	d, err := c.codec.Decode(tag)
	if err != nil {
		return keys.Key{}, err
	}
	if !d.Equal(k.Subject()) {
		return keys.Key{}, fmt.Errorf("%w: $type %s, key subject %s", ErrTypeMismatch, tag, k.Subject())
	}
	if out != nil {
		if err := decodeValue(); err != nil {
			return keys.Key{}, fmt.Errorf("docconv: decode value into %T: %w", out, err)
		}
	}
	return k, nil
}
