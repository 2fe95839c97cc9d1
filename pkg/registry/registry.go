package registry

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrSealed    = errors.New("registry is sealed")
	ErrDuplicate = errors.New("already registered")
	ErrEmptyName = errors.New("name cannot be empty")
)

// Registry is a named collection that can be frozen once populated.
type Registry[T any] interface {
	Register(name string, item T) error
	Get(name string) (T, bool)
	List() []T
	Names() []string
	Count() int
	Seal()
	Sealed() bool
}

// OrderedRegistry keeps items in registration order. Reads are lock-free
// of writers once Seal has been called, since nothing mutates afterwards.
type OrderedRegistry[T any] struct {
	mu     sync.RWMutex
	items  map[string]T
	order  []string
	sealed bool
}

func NewOrderedRegistry[T any]() *OrderedRegistry[T] {
	return &OrderedRegistry[T]{
		items: make(map[string]T),
	}
}

func (r *OrderedRegistry[T]) Register(name string, item T) error {
	if name == "" {
		return ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("register '%s': %w", name, ErrSealed)
	}
	if _, exists := r.items[name]; exists {
		return fmt.Errorf("item '%s' %w", name, ErrDuplicate)
	}

	r.items[name] = item
	r.order = append(r.order, name)
	return nil
}

func (r *OrderedRegistry[T]) Get(name string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, exists := r.items[name]
	return item, exists
}

// List returns items in registration order.
func (r *OrderedRegistry[T]) List() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]T, 0, len(r.order))
	for _, name := range r.order {
		items = append(items, r.items[name])
	}
	return items
}

func (r *OrderedRegistry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.order...)
}

func (r *OrderedRegistry[T]) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.items)
}

// Seal freezes the registry. Subsequent Register calls fail with ErrSealed.
func (r *OrderedRegistry[T]) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

func (r *OrderedRegistry[T]) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}
