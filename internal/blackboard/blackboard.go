// Package blackboard provides the scoped key-value store shared by the nodes
// of a behavior tree.
//
// A Blackboard may have a parent. Reads fall through to the parent when a key
// is not set locally, while writes stay local, so a child scope shadows its
// parent. Selected local keys may instead be remapped onto a (possibly
// differently named) parent key, in which case reads and writes of that key
// are routed to the parent.
package blackboard

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/dop251/goja"
)

var (
	// ErrKeyNotFound is returned when reading a key that is not set in the
	// scope or any of its ancestors.
	ErrKeyNotFound = errors.New("blackboard: key not found")

	// ErrTypeMismatch is returned by typed reads when the stored value cannot
	// be represented as the requested type.
	ErrTypeMismatch = errors.New("blackboard: type mismatch")
)

// Blackboard is a thread-safe, optionally scoped key-value store.
//
// The zero value is a usable root scope. The internal map is lazily
// initialized on the first write.
type Blackboard struct {
	mu   sync.RWMutex
	data map[string]any

	// parent is a non-owning back-reference; nil for a root scope.
	parent *Blackboard
	// remap routes local keys to keys of the parent scope.
	remap map[string]string
	// autoRemap routes every local key to the same-named parent key.
	autoRemap bool
}

// New returns an empty root blackboard.
func New() *Blackboard {
	return new(Blackboard)
}

// NewScope returns a child scope of b. Keys present in remap are routed to
// the named parent key; if autoRemap is true every key is routed to the
// parent under its own name. The remap table is copied.
func (b *Blackboard) NewScope(remap map[string]string, autoRemap bool) *Blackboard {
	child := &Blackboard{
		parent:    b,
		autoRemap: autoRemap,
	}
	if len(remap) > 0 {
		child.remap = make(map[string]string, len(remap))
		for k, v := range remap {
			child.remap[k] = v
		}
	}
	return child
}

// Parent returns the enclosing scope, or nil for a root scope.
func (b *Blackboard) Parent() *Blackboard {
	return b.parent
}

// init initializes the blackboard's internal map if needed.
// Must be called with b.mu held for writing.
func (b *Blackboard) init() {
	if b.data == nil {
		b.data = make(map[string]any)
	}
}

// Resolve returns the scope and key that ultimately own key, following the
// remapping rules up the chain. Apart from keys stored with SetLocal, it does
// not consider whether the key is set.
func (b *Blackboard) Resolve(key string) (*Blackboard, string) {
	for {
		if b.parent == nil {
			return b, key
		}
		if target, ok := b.remap[key]; ok {
			b, key = b.parent, target
			continue
		}
		if b.autoRemap {
			if _, pinned := b.local(key); pinned {
				return b, key
			}
			b = b.parent
			continue
		}
		return b, key
	}
}

// Lookup returns the value for key, searching this scope and then its
// ancestors. It returns an error wrapping ErrKeyNotFound if the key is unset.
func (b *Blackboard) Lookup(key string) (any, error) {
	scope, k := b.Resolve(key)
	for s := scope; s != nil; s = s.parent {
		if v, ok := s.local(k); ok {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
}

func (b *Blackboard) local(key string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.data == nil {
		return nil, false
	}
	v, ok := b.data[key]
	return v, ok
}

// Get retrieves a value from the blackboard.
// Returns nil if the key doesn't exist.
func (b *Blackboard) Get(key string) any {
	v, _ := b.Lookup(key)
	return v
}

// Set stores a value in the scope that owns key.
func (b *Blackboard) Set(key string, value any) {
	scope, k := b.Resolve(key)
	scope.mu.Lock()
	defer scope.mu.Unlock()
	scope.init()
	scope.data[k] = value
}

// SetLocal stores a value in this scope, ignoring remapping. In an
// auto-remapped scope the key then stays local for the life of the scope.
func (b *Blackboard) SetLocal(key string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.init()
	b.data[key] = value
}

// Has returns true if the key is visible from this scope.
func (b *Blackboard) Has(key string) bool {
	_, err := b.Lookup(key)
	return err == nil
}

// Delete removes a key from the scope that owns it. Values held by ancestors
// under the same key are not affected unless the key is remapped.
func (b *Blackboard) Delete(key string) {
	scope, k := b.Resolve(key)
	scope.mu.Lock()
	defer scope.mu.Unlock()
	if scope.data == nil {
		return
	}
	delete(scope.data, k)
}

// Keys returns the keys set locally in this scope, sorted.
func (b *Blackboard) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.data == nil {
		return nil
	}
	keys := make([]string, 0, len(b.data))
	for k := range b.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clear removes all entries set locally in this scope.
func (b *Blackboard) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = make(map[string]any)
}

// Len returns the number of keys set locally in this scope.
func (b *Blackboard) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}

// Snapshot returns a shallow copy of the values set locally in this scope.
//
// WARNING: This is a SHALLOW copy. Mutable values (slices, maps, pointers)
// are shared with the blackboard.
func (b *Blackboard) Snapshot() map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.data == nil {
		return nil
	}
	result := make(map[string]any, len(b.data))
	for k, v := range b.data {
		result[k] = v
	}
	return result
}

// Visible returns a shallow copy of every value visible from this scope:
// ancestors first, overridden by nearer scopes, with remapped keys reported
// under their local names.
func (b *Blackboard) Visible() map[string]any {
	var result map[string]any
	if b.parent != nil {
		result = b.parent.Visible()
	} else {
		result = make(map[string]any)
	}
	for k, v := range b.Snapshot() {
		result[k] = v
	}
	if b.parent != nil {
		for local, target := range b.remap {
			if v, err := b.parent.Lookup(target); err == nil {
				result[local] = v
			}
		}
	}
	return result
}

// GetAs reads key and converts it to T. Numeric values are converted between
// numeric kinds, since values written by scripts or parsed from descriptions
// rarely carry the exact Go type a reader expects.
func GetAs[T any](b *Blackboard, key string) (T, error) {
	var zero T
	v, err := b.Lookup(key)
	if err != nil {
		return zero, err
	}
	out, ok := Convert[T](v)
	if !ok {
		return zero, fmt.Errorf("%w: key %q holds %T, want %s", ErrTypeMismatch, key, v, reflect.TypeFor[T]())
	}
	return out, nil
}

// Convert converts v to T, allowing conversions between numeric kinds.
func Convert[T any](v any) (T, bool) {
	if out, ok := v.(T); ok {
		return out, true
	}
	var zero T
	out, ok := ConvertValue(v, reflect.TypeFor[T]())
	if !ok {
		return zero, false
	}
	return out.(T), true
}

// ConvertValue is the reflective form of Convert.
func ConvertValue(v any, target reflect.Type) (any, bool) {
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(target) {
		return v, true
	}
	if isNumeric(rv.Kind()) && isNumeric(target.Kind()) {
		return rv.Convert(target).Interface(), true
	}
	return nil, false
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// ExposeToJS creates a JavaScript object with accessor methods for this blackboard.
// Methods are bound so they can be called directly from JavaScript:
//
//	bb.get("key")
//	bb.set("key", value)
//	bb.has("key")
//	bb.delete("key")
//	bb.keys()
func (b *Blackboard) ExposeToJS(vm *goja.Runtime) goja.Value {
	obj := vm.NewObject()
	// Set cannot fail for these keys, they are valid identifiers.
	_ = obj.Set("get", b.Get)
	_ = obj.Set("set", b.Set)
	_ = obj.Set("has", b.Has)
	_ = obj.Set("delete", b.Delete)
	_ = obj.Set("keys", func() []string {
		m := b.Visible()
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return keys
	})
	return obj
}
