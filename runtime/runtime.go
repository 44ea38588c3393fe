package runtime

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/weaver/engine"
	"github.com/wippyai/weaver/errors"
	"github.com/wippyai/weaver/il"
)

// Config configures a Runtime.
type Config struct {
	// SearchPaths are the directories referenced modules are loaded from.
	SearchPaths []string
	// MaxDepth bounds nested calls; zero uses engine.DefaultMaxDepth.
	MaxDepth int
}

type Runtime struct {
	machine  *engine.Machine
	resolver *il.Resolver
	hosts    *HostRegistry

	mu      sync.RWMutex
	modules map[string]*Module
}

func New(cfg Config) *Runtime {
	res := il.NewResolver(append([]string(nil), cfg.SearchPaths...)...)
	return &Runtime{
		machine:  engine.New(engine.Config{Resolver: res, MaxDepth: cfg.MaxDepth}),
		resolver: res,
		hosts:    NewHostRegistry(),
		modules:  make(map[string]*Module),
	}
}

// RegisterHost registers all exported methods of h as implementations of
// the native methods of h.TypeName().
// Must be called BEFORE loading modules that declare these methods.
// Go names map to IL names by HostName (GetCount -> get_Count).
func (r *Runtime) RegisterHost(h Host) error {
	return r.hosts.RegisterHost(h)
}

// RegisterFunc registers fn as the native method typeName::method.
func (r *Runtime) RegisterFunc(typeName, method string, fn any) error {
	return r.hosts.RegisterFunc(typeName, method, fn)
}

func (r *Runtime) Hosts() *HostRegistry {
	return r.hosts
}

// Machine returns the interpreter shared by all loaded modules.
func (r *Runtime) Machine() *engine.Machine {
	return r.machine
}

// Resolver returns the resolver loaded modules are registered with.
func (r *Runtime) Resolver() *il.Resolver {
	return r.resolver
}

// Load decodes a binary module and loads it.
func (r *Runtime) Load(data []byte) (*Module, error) {
	m, err := il.ParseModule(data)
	if err != nil {
		return nil, errors.Load("decode module", err)
	}
	return r.LoadModule(m)
}

// LoadFile reads a module file and loads it.
func (r *Runtime) LoadFile(path string) (*Module, error) {
	m, err := il.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return r.LoadModule(m)
}

// LoadModule validates m, makes its types visible to every loaded module
// and binds registered host functions to its native methods.
// Loading a second module with the same name replaces the first.
func (r *Runtime) LoadModule(m *il.Module) (*Module, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if err := r.hosts.Bind(r.machine, m); err != nil {
		return nil, err
	}
	r.resolver.Add(m)

	mod := &Module{runtime: r, module: m}
	r.mu.Lock()
	r.modules[m.Name] = mod
	r.mu.Unlock()

	Logger().Debug("module loaded",
		zap.String("module", m.Name),
		zap.Int("types", len(m.Types)))
	return mod, nil
}

// Module returns a loaded module by name.
func (r *Runtime) Module(name string) (*Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[name]
	return m, ok
}

// Close drops all loaded modules. The runtime stays usable.
func (r *Runtime) Close(_ context.Context) error {
	r.mu.Lock()
	r.modules = make(map[string]*Module)
	r.mu.Unlock()
	return nil
}
