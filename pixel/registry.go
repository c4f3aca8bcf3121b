package pixel

import "sync"

// Registry memoizes one Pixel per transport device identity, so
// repeated connection requests to the same physical die return the
// same logical object. It is plain in-memory state owned by the
// caller; nothing is persisted.
type Registry struct {
	mu     sync.Mutex
	pixels map[string]*Pixel
}

func NewRegistry() *Registry {
	return &Registry{pixels: make(map[string]*Pixel)}
}

// Obtain returns the controller for link's identity, constructing it
// with opts on first sight. Options are ignored for an already-known
// die.
func (r *Registry) Obtain(link Link, opts ...Option) *Pixel {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.pixels[link.Identity()]; ok {
		return p
	}
	p := New(link, opts...)
	r.pixels[link.Identity()] = p
	return p
}

// Get looks up a known die by identity.
func (r *Registry) Get(identity string) (*Pixel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pixels[identity]
	return p, ok
}

// All returns every controller seen so far.
func (r *Registry) All() []*Pixel {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]*Pixel, 0, len(r.pixels))
	for _, p := range r.pixels {
		all = append(all, p)
	}
	return all
}
