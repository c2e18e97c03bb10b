package typedesc

import (
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/typekey/internal/keyerr"
)

// Module is a loaded compiled unit that can resolve type names.
type Module interface {
	// Path returns the module identifier used in descriptors.
	Path() string

	// Lookup returns the definition of the named type with the given arity.
	// Generic definitions are returned unbound.
	Lookup(name string, arity int) (Descriptor, bool)
}

// ModuleLoader loads modules by identifier. It is supplied by the host
// environment; *Registry is the in-process implementation.
type ModuleLoader interface {
	LoadModule(path string) (Module, error)
}

// ModuleCache caches loaded modules for its lifetime.
//
// Thread-safety: read-mostly. The first caller for a module performs the
// load; concurrent callers for the same module wait on that load and share
// its result. Failed loads are not cached, so a module that becomes
// available later can still be resolved.
type ModuleCache struct {
	loader  ModuleLoader
	modules sync.Map // path -> Module
	group   singleflight.Group
}

// NewModuleCache returns an empty cache backed by loader.
func NewModuleCache(loader ModuleLoader) *ModuleCache {
	return &ModuleCache{loader: loader}
}

// Module returns the module for path, loading it on first use.
func (c *ModuleCache) Module(path string) (Module, error) {
	if m, ok := c.modules.Load(path); ok {
		return m.(Module), nil
	}
	v, err, shared := c.group.Do(path, func() (any, error) {
		if m, ok := c.modules.Load(path); ok {
			return m, nil
		}
		m, err := c.loader.LoadModule(path)
		if err != nil {
			return nil, err
		}
		actual, _ := c.modules.LoadOrStore(path, m)
		slog.Debug("module loaded", "module", path)
		return actual, nil
	})
	if err != nil {
		if keyerr.Is(err, keyerr.UnresolvedModule) {
			return nil, err
		}
		return nil, keyerr.Wrap(keyerr.UnresolvedModule, path, err, "load module")
	}
	if shared {
		slog.Debug("module load coalesced", "module", path)
	}
	return v.(Module), nil
}

// Resolve looks up name with the given arity in module.
func (c *ModuleCache) Resolve(module, name string, arity int) (Descriptor, error) {
	m, err := c.Module(module)
	if err != nil {
		return Descriptor{}, err
	}
	d, ok := m.Lookup(name, arity)
	if !ok {
		return Descriptor{}, keyerr.New(keyerr.UnresolvedType, name+nameSeparator+module,
			"no type %q with arity %d in module %q", name, arity, module)
	}
	return d, nil
}

// Len returns the number of cached modules.
func (c *ModuleCache) Len() int {
	n := 0
	c.modules.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
