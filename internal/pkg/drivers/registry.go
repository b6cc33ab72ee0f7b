package drivers

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

var (
	ErrDriverNotFound     = errors.New("driver not found")
	ErrDuplicateDriver    = errors.New("duplicate driver name")
	ErrAlreadyInitialized = errors.New("driver registry already initialized")
)

// Source looks up drivers by name
type Source interface {
	Get(name string) (Driver, error)
}

// Registry is an immutable set of drivers keyed by name.  It is safe for
// concurrent use.
type Registry struct {
	drivers map[string]Driver
}

// NewRegistry builds a registry from the given drivers.  Names must be unique
// and non-empty.
func NewRegistry(drivers ...Driver) (*Registry, error) {
	r := &Registry{
		drivers: make(map[string]Driver, len(drivers)),
	}

	for _, d := range drivers {
		name := d.Name()
		if name == "" {
			return nil, errors.Errorf("driver %T has no name", d)
		}
		if _, ok := r.drivers[name]; ok {
			return nil, errors.Wrapf(ErrDuplicateDriver, "registering %s", name)
		}
		r.drivers[name] = d
	}

	return r, nil
}

// Get returns the named driver
func (r *Registry) Get(name string) (Driver, error) {
	if r != nil {
		if d, ok := r.drivers[name]; ok {
			return d, nil
		}
	}

	return nil, errors.Wrapf(ErrDriverNotFound, "looking up %q", name)
}

// Names lists the registered driver names in sorted order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.drivers))
	for n := range r.drivers {
		names = append(names, n)
	}
	sort.Strings(names)

	return names
}

/*
 *  The process wide registry.  Init is called once from the server start up,
 *  before any request is served; everything afterwards only reads.
 */

var (
	gRegistry = &Registry{drivers: map[string]Driver{}}
	gInitOnce sync.Once
)

// Init installs the process wide driver registry.  It may only succeed once.
func Init(drivers ...Driver) error {
	err := ErrAlreadyInitialized

	gInitOnce.Do(func() {
		var r *Registry
		r, err = NewRegistry(drivers...)
		if err == nil {
			gRegistry = r
		}
	})

	return err
}

// Default returns the process wide registry
func Default() *Registry {
	return gRegistry
}
