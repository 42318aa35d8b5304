// Package blob keeps short-lived in-memory objects addressable by opaque
// references, similar to browser object URLs. A reference is valid until it is
// revoked or swept after sitting idle for longer than the configured TTL.
package blob

import (
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/segmentio/ksuid"

	"github.com/chaos-io/rembg-web/metrics"
)

const refPrefix = "blob:"

// Ref is an opaque handle such as "blob:2HbR...".
type Ref string

// ID returns the reference without its scheme, suitable for URL paths.
func (r Ref) ID() string {
	return strings.TrimPrefix(string(r), refPrefix)
}

// RefFromID is the inverse of Ref.ID.
func RefFromID(id string) Ref {
	return Ref(refPrefix + id)
}

// Object is a copy-free view of a stored blob. Callers must not mutate Data.
type Object struct {
	ContentType string
	Data        []byte
	CreatedAt   time.Time
}

type entry struct {
	obj        Object
	lastAccess time.Time
}

// Registry is safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	objects map[Ref]*entry
}

type Option func(*Registry)

func WithClock(clock clockwork.Clock) Option {
	return func(r *Registry) {
		r.clock = clock
	}
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		clock:   clockwork.NewRealClock(),
		objects: make(map[Ref]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create stores data and returns a fresh reference to it.
func (r *Registry) Create(contentType string, data []byte) Ref {
	ref := Ref(refPrefix + ksuid.New().String())
	now := r.clock.Now()

	r.mu.Lock()
	r.objects[ref] = &entry{
		obj:        Object{ContentType: contentType, Data: data, CreatedAt: now},
		lastAccess: now,
	}
	n := len(r.objects)
	r.mu.Unlock()

	metrics.BlobsActive.Set(float64(n))
	return ref
}

// Get returns the object and refreshes its idle timer.
func (r *Registry) Get(ref Ref) (Object, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.objects[ref]
	if !ok {
		return Object{}, false
	}
	e.lastAccess = r.clock.Now()
	return e.obj, true
}

// Revoke releases the object. Revoking an unknown reference is a no-op.
func (r *Registry) Revoke(ref Ref) bool {
	r.mu.Lock()
	_, ok := r.objects[ref]
	delete(r.objects, ref)
	n := len(r.objects)
	r.mu.Unlock()

	if ok {
		metrics.BlobsReleased.WithLabelValues("revoked").Inc()
		metrics.BlobsActive.Set(float64(n))
	}
	return ok
}

// Sweep releases every object idle for longer than maxAge and returns how many were released.
func (r *Registry) Sweep(maxAge time.Duration) int {
	cutoff := r.clock.Now().Add(-maxAge)

	r.mu.Lock()
	released := 0
	for ref, e := range r.objects {
		if e.lastAccess.Before(cutoff) {
			delete(r.objects, ref)
			released++
		}
	}
	n := len(r.objects)
	r.mu.Unlock()

	if released > 0 {
		metrics.BlobsReleased.WithLabelValues("expired").Add(float64(released))
	}
	metrics.BlobsActive.Set(float64(n))
	return released
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.objects)
}
