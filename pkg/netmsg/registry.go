package netmsg

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/protocol"
)

// Registry errors.
var (
	ErrDuplicateTag = errors.New("message tag already registered")
	ErrReservedTag  = errors.New("message tag reserved for control messages")
	ErrTagRange     = errors.New("message tag out of range")
	ErrNilFactory   = errors.New("nil message factory")
)

// Handler processes a decoded message. Returning false marks the packet as
// fatally malformed.
type Handler func(msg Message) bool

// Factory creates an empty message for decoding.
type Factory func() Message

type entry struct {
	name    string
	factory Factory
	handler Handler
}

// Registry maps wire tags to factories and handlers. It is safe for
// concurrent use, so one registry can serve every channel of a host.
type Registry struct {
	mu      sync.RWMutex
	entries [protocol.MaxMessageType + 1]*entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register associates tag with a factory and handler.
func (r *Registry) Register(tag int, name string, factory Factory, handler Handler) error {
	if tag < 0 || tag > protocol.MaxMessageType {
		return fmt.Errorf("%w: %d", ErrTagRange, tag)
	}
	if tag <= protocol.LastControlMessage {
		return fmt.Errorf("%w: %d", ErrReservedTag, tag)
	}
	if factory == nil {
		return ErrNilFactory
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e := r.entries[tag]; e != nil {
		return fmt.Errorf("%w: %d (%s)", ErrDuplicateTag, tag, e.name)
	}
	r.entries[tag] = &entry{name: name, factory: factory, handler: handler}
	return nil
}

// Register adds message type T, taking the tag and name from a zero value.
func Register[T any, PT interface {
	*T
	Message
}](r *Registry, handler func(PT) bool) error {
	zero := PT(new(T))
	var h Handler
	if handler != nil {
		h = func(m Message) bool {
			typed, ok := m.(PT)
			return ok && handler(typed)
		}
	}
	return r.Register(zero.Type(), zero.Name(), func() Message { return PT(new(T)) }, h)
}

// SetHandler replaces the handler of a registered tag.
func (r *Registry) SetHandler(tag int, handler Handler) bool {
	if tag < 0 || tag > protocol.MaxMessageType {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entries[tag]
	if e == nil {
		return false
	}
	r.entries[tag] = &entry{name: e.name, factory: e.factory, handler: handler}
	return true
}

// Unregister removes a tag.
func (r *Registry) Unregister(tag int) {
	if tag < 0 || tag > protocol.MaxMessageType {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[tag] = nil
}

// Lookup returns the factory and handler for tag.
func (r *Registry) Lookup(tag int) (Factory, Handler, bool) {
	if tag < 0 || tag > protocol.MaxMessageType {
		return nil, nil, false
	}
	r.mu.RLock()
	e := r.entries[tag]
	r.mu.RUnlock()
	if e == nil {
		return nil, nil, false
	}
	return e.factory, e.handler, true
}

// Name returns the registered name of tag.
func (r *Registry) Name(tag int) string {
	if tag >= 0 && tag <= protocol.MaxMessageType {
		r.mu.RLock()
		e := r.entries[tag]
		r.mu.RUnlock()
		if e != nil {
			return e.name
		}
	}
	switch tag {
	case protocol.NetNOP:
		return "net_NOP"
	case protocol.NetDisconnect:
		return "net_Disconnect"
	case protocol.NetFile:
		return "net_File"
	}
	return fmt.Sprintf("unknown(%d)", tag)
}

// Tags returns the registered tags in ascending order.
func (r *Registry) Tags() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var tags []int
	for tag, e := range r.entries {
		if e != nil {
			tags = append(tags, tag)
		}
	}
	sort.Ints(tags)
	return tags
}
