package savable

import (
	"fmt"
	"reflect"
	"slices"
	"sync"
)

// Factory returns a fresh, empty instance of one concrete type.
type Factory func() Savable

// Registry maps type identifiers to factories and concrete types back to
// identifiers. It replaces reflective class lookup with an explicit table
// that the host fills at startup.
//
// A Registry is safe for concurrent use; after setup it is only read.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	ids       map[reflect.Type]string
	aliases   map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		ids:       make(map[reflect.Type]string),
		aliases:   make(map[string]string),
	}
}

// Default is the registry used when options leave Registry nil.
var Default = NewRegistry()

// Register adds a type under id. The factory is called once to learn the
// concrete type it produces.
func (r *Registry) Register(id string, factory Factory) error {
	if id == "" {
		return fmt.Errorf("savable: register: empty type identifier")
	}
	if factory == nil {
		return fmt.Errorf("savable: register %q: nil factory", id)
	}
	sample := factory()
	if isNil(sample) {
		return fmt.Errorf("savable: register %q: factory returned nil", id)
	}
	typ := reflect.TypeOf(sample)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.factories[id]; ok {
		return fmt.Errorf("savable: register %q: identifier already registered", id)
	}
	if _, ok := r.aliases[id]; ok {
		return fmt.Errorf("savable: register %q: identifier is an alias", id)
	}
	if prev, ok := r.ids[typ]; ok {
		return fmt.Errorf("savable: register %q: type %s already registered as %q", id, typ, prev)
	}
	r.factories[id] = factory
	r.ids[typ] = id
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(id string, factory Factory) {
	if err := r.Register(id, factory); err != nil {
		panic(err)
	}
}

// RegisterType registers *T under id using new(T) as the factory.
func RegisterType[T any, PT interface {
	*T
	Savable
}](r *Registry, id string) error {
	return r.Register(id, func() Savable { return PT(new(T)) })
}

// Alias makes a legacy identifier construct the type registered under id.
// Aliases are only consulted on read; writes always use id.
func (r *Registry) Alias(legacy, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.factories[id]; !ok {
		return fmt.Errorf("savable: alias %q: target %q not registered", legacy, id)
	}
	if _, ok := r.factories[legacy]; ok {
		return fmt.Errorf("savable: alias %q: identifier already registered", legacy)
	}
	r.aliases[legacy] = id
	return nil
}

// IdentifierOf returns the type identifier for v's concrete type.
// A value implementing Identified names itself.
func (r *Registry) IdentifierOf(v Savable) (string, error) {
	if isNil(v) {
		return "", fmt.Errorf("savable: identifier of nil value: %w", ErrUnknownType)
	}
	if named, ok := v.(Identified); ok {
		if id := named.SavableType(); id != "" {
			return id, nil
		}
	}
	typ := reflect.TypeOf(v)

	r.mu.RLock()
	id, ok := r.ids[typ]
	r.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("savable: type %s is not registered: %w", typ, ErrUnknownType)
	}
	return id, nil
}

// Construct returns a fresh, empty instance of the type named id.
func (r *Registry) Construct(id string) (s Savable, err error) {
	r.mu.RLock()
	factory, ok := r.factories[id]
	if !ok {
		if target, aliased := r.aliases[id]; aliased {
			factory, ok = r.factories[target]
		}
	}
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("savable: type %q is not registered: %w", id, ErrUnknownType)
	}

	defer func() {
		if p := recover(); p != nil {
			s = nil
			err = fmt.Errorf("savable: construct %q: factory panicked: %v: %w", id, p, ErrUnknownType)
		}
	}()
	s = factory()
	if isNil(s) {
		return nil, fmt.Errorf("savable: construct %q: factory returned nil: %w", id, ErrUnknownType)
	}
	return s, nil
}

// Has reports whether id (or an alias of it) is known.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.factories[id]; ok {
		return true
	}
	_, ok := r.aliases[id]
	return ok
}

// IDs returns all registered identifiers, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Register adds a type to the Default registry.
func Register(id string, factory Factory) error {
	return Default.Register(id, factory)
}

// MustRegister adds a type to the Default registry and panics on error.
func MustRegister(id string, factory Factory) {
	Default.MustRegister(id, factory)
}
