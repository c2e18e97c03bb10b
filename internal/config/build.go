package config

import (
	"fmt"
	"log/slog"

	"github.com/roach88/typekey/internal/docconv"
	"github.com/roach88/typekey/internal/keycodec"
	"github.com/roach88/typekey/internal/store"
	"github.com/roach88/typekey/internal/typedesc"
)

// Env is everything a configuration describes, ready to use.
type Env struct {
	Registry   *typedesc.Registry
	Codec      *typedesc.Codec
	Serializer *keycodec.Serializer
	Converter  *docconv.Converter
}

// Build defines the configured types in a fresh registry and assembles the
// serializer and document converter over it.
func (c *Config) Build() (*Env, error) {
	reg := typedesc.NewRegistry()
	for i, t := range c.Types {
		if _, err := reg.Define(t.Module, t.Name, t.Arity); err != nil {
			return nil, fmt.Errorf("config: types[%d]: %w", i, err)
		}
	}
	codec := typedesc.NewCodec(typedesc.NewModuleCache(reg))

	naming, err := c.naming(reg, codec)
	if err != nil {
		return nil, err
	}
	enc, err := keycodec.EncodingByName(c.Encoding)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	ser, err := keycodec.NewSerializer(keycodec.Settings{Naming: naming, Encoding: enc})
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	format := docconv.JSON
	if c.Documents == DocumentsMsgPack {
		format = docconv.MsgPack
	}
	return &Env{
		Registry:   reg,
		Codec:      codec,
		Serializer: ser,
		Converter:  docconv.NewConverter(ser, codec, format),
	}, nil
}

func (c *Config) naming(reg *typedesc.Registry, codec *typedesc.Codec) (keycodec.TypeNamer, error) {
	switch c.Naming {
	case NamingQualified:
		return keycodec.NewQualifiedNaming(reg), nil
	case NamingLookup:
		lookup := keycodec.NewLookupTableNaming(codec)
		for i, a := range c.Aliases {
			d, err := codec.Decode(a.Type)
			if err != nil {
				return nil, fmt.Errorf("config: aliases[%d] %q: %w", i, a.Alias, err)
			}
			if err := lookup.Alias(d, a.Alias); err != nil {
				return nil, fmt.Errorf("config: aliases[%d] %q: %w", i, a.Alias, err)
			}
		}
		return lookup, nil
	case NamingDescriptor:
		return keycodec.NewDescriptorNaming(codec), nil
	default:
		return nil, fmt.Errorf("config: unknown naming %q", c.Naming)
	}
}

// OpenStore opens the configured backend and wraps it in a store using
// env's converter.
func (c *Config) OpenStore(env *Env, logger *slog.Logger) (*store.Store, error) {
	backend, err := store.Open(c.Storage.Driver, c.Storage.DSN)
	if err != nil {
		return nil, err
	}
	logger.Debug("store opened", "driver", c.Storage.Driver)
	return store.New(backend, env.Converter, store.WithLogger(logger)), nil
}
