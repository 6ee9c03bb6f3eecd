package message

import (
	"fmt"
	"sync"

	"github.com/backkem/citp/pkg/wire"
)

// Factory returns a new zero payload ready for Decode.
type Factory func() Payload

type layerEntry struct {
	layer     Layer
	factories map[ContentType]Factory
}

// Registry resolves (layer cookie, message tag) pairs to payload factories.
// It is safe for concurrent use; registration normally happens once at
// startup.
type Registry struct {
	mu     sync.RWMutex
	layers map[ContentType]*layerEntry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		layers: make(map[ContentType]*layerEntry),
	}
}

// RegisterLayer declares a layer. Registering the same cookie again replaces
// its format but keeps registered messages.
func (r *Registry) RegisterLayer(l Layer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.layerLocked(l)
}

func (r *Registry) layerLocked(l Layer) *layerEntry {
	e, ok := r.layers[l.Cookie]
	if !ok {
		e = &layerEntry{factories: make(map[ContentType]Factory)}
		r.layers[l.Cookie] = e
	}
	e.layer = l
	return e
}

// Register declares message tag ct of layer l, declaring the layer if needed.
func (r *Registry) Register(l Layer, ct ContentType, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.layerLocked(l).factories[ct] = f
}

// Layer returns the registered layer for cookie.
func (r *Registry) Layer(cookie ContentType) (Layer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.layers[cookie]
	if !ok {
		return Layer{}, false
	}
	return e.layer, true
}

// Lookup returns the factory for message ct of the layer named by cookie.
func (r *Registry) Lookup(cookie, ct ContentType) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.layers[cookie]
	if !ok {
		return nil, false
	}
	f, ok := e.factories[ct]
	return f, ok
}

// Decode decodes exactly one message from the start of frame.
//
// Bytes after message_size are ignored. A layer or message tag that is not
// registered yields an *Unknown payload and a nil error. Errors wrap
// wire.ErrTruncated, wire.ErrMalformed, ErrBadCookie or
// ErrMessageSizeTooSmall.
func (r *Registry) Decode(frame []byte) (*Message, error) {
	if len(frame) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes, envelope needs %d", wire.ErrTruncated, len(frame), HeaderSize)
	}

	m := &Message{}
	if err := m.Header.Decode(wire.NewReader(frame[:HeaderSize])); err != nil {
		return nil, err
	}
	if err := m.Header.Validate(); err != nil {
		return nil, err
	}
	if uint64(len(frame)) < uint64(m.Header.MessageSize) {
		return nil, fmt.Errorf("%w: %d bytes, message_size %d", wire.ErrTruncated, len(frame), m.Header.MessageSize)
	}

	body := wire.NewReader(frame[HeaderSize:m.Header.MessageSize])

	layer, ok := r.Layer(m.Header.ContentType)
	if !ok {
		u := &Unknown{LayerID: Layer{Cookie: m.Header.ContentType}, Bare: true}
		_ = u.Decode(body)
		m.Payload = u
		return m, nil
	}

	if err := m.LayerHeader.Decode(body, layer.Format); err != nil {
		return nil, fmt.Errorf("message: %s header: %w", layer, err)
	}

	factory, ok := r.Lookup(layer.Cookie, m.LayerHeader.ContentType)
	if !ok {
		u := &Unknown{LayerID: layer, Tag: m.LayerHeader.ContentType}
		_ = u.Decode(body)
		m.Payload = u
		return m, nil
	}

	p := factory()
	if err := p.Decode(body); err != nil {
		return nil, fmt.Errorf("message: decode %s/%s: %w", layer, m.LayerHeader.ContentType, err)
	}
	if err := body.Err(); err != nil {
		return nil, fmt.Errorf("message: decode %s/%s: %w", layer, m.LayerHeader.ContentType, err)
	}
	m.Payload = p
	return m, nil
}
