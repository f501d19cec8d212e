package dict

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ProtocolRegistry is the "dedicated owner value explicitly threaded
// through the loader" that spec.md §9's Design Notes call for in place of
// the original's process-wide global protocol table. A single registry is
// normally shared by every load in a process (so PROTOCOL name/number
// conflict checks and group-fixup secondary loads see each other's work),
// but nothing here reaches for a package-level global: callers own their
// registry and pass it in explicitly.
type ProtocolRegistry struct {
	mu       sync.RWMutex
	byName   map[string]*Dictionary
	byNumber map[uint64]*Dictionary
	sf       singleflight.Group
}

// NewProtocolRegistry creates an empty registry pre-seeded with the
// internal (protocol 0) dictionary.
func NewProtocolRegistry() *ProtocolRegistry {
	r := &ProtocolRegistry{
		byName:   make(map[string]*Dictionary),
		byNumber: make(map[uint64]*Dictionary),
	}
	internal := NewInternal()
	r.byName[InternalProtocolName] = internal
	r.byNumber[InternalProtocolNum] = internal
	return r
}

var (
	ErrProtocolNameNumberMismatch = errors.New("protocol name/number does not match already-registered dictionary")
	ErrProtocolTypeSizeMismatch   = errors.New("protocol type_size does not match already-registered dictionary")
	ErrProtocolNumberRange        = errors.New("protocol number must be between 1 and 255")
)

// Get returns the dictionary already registered under name, if any.
func (r *ProtocolRegistry) Get(name string) (*Dictionary, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byName[name]
	return d, ok
}

// GetByNumber returns the dictionary registered under a protocol number.
func (r *ProtocolRegistry) GetByNumber(number uint64) (*Dictionary, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byNumber[number]
	return d, ok
}

// Internal returns the process's internal (protocol 0) dictionary.
func (r *ProtocolRegistry) Internal() *Dictionary {
	d, _ := r.GetByNumber(InternalProtocolNum)
	return d
}

// CheckOrRegister implements spec.md §4.4 PROTOCOL: "If a protocol by that
// name or number already exists, cross-checks name↔number↔type_size match.
// If new, allocates a dictionary...and registers it." A new dictionary is
// only allocated when no existing registration is found.
func (r *ProtocolRegistry) CheckOrRegister(name string, number uint64, typeSize uint8) (*Dictionary, error) {
	if number < 1 || number > 255 {
		return nil, fmt.Errorf("%w: got %d", ErrProtocolNumberRange, number)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.byName[name]; ok {
		if d.Number != number || d.TypeSize != typeSize {
			return nil, fmt.Errorf("%w: %q", ErrProtocolNameNumberMismatch, name)
		}
		return d, nil
	}
	if d, ok := r.byNumber[number]; ok {
		return nil, fmt.Errorf("%w: protocol number %d already used by %q", ErrProtocolNameNumberMismatch, number, d.Name)
	}
	d := New(name, number)
	d.TypeSize = typeSize
	r.byName[name] = d
	r.byNumber[number] = d
	return d, nil
}

// LoadOrCreate collapses concurrent identical LoadProtocol(name) calls onto
// one in-flight load (spec.md §5: the shared registry "may be consulted
// from any thread without synchronization"; individual dictionary loads
// stay single-threaded per-protocol, but the registry they publish into is
// shared). create is invoked at most once per distinct name among
// concurrently-overlapping callers.
func (r *ProtocolRegistry) LoadOrCreate(name string, create func() (*Dictionary, error)) (*Dictionary, error) {
	if d, ok := r.Get(name); ok {
		return d, nil
	}
	v, err, _ := r.sf.Do(name, func() (interface{}, error) {
		if d, ok := r.Get(name); ok {
			return d, nil
		}
		d, err := create()
		if err != nil {
			return nil, err
		}
		return d, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Dictionary), nil
}
