package realtime

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"taskflow/internal/platform/metrics"
)

// Subscriber is a registry member. Send must not block; it reports whether
// the payload was handed off and returns false once the subscriber is closed.
type Subscriber interface {
	ID() string
	Send(payload []byte) bool
}

// Registry maps project ids to the subscribers interested in them.
//
// Each project has its own entry with a copy-on-write snapshot, so Broadcast
// reads a slice without locking and never serializes with other projects.
// Membership changes take the subscriber's lock, then the entry's lock.
type Registry struct {
	mu       sync.RWMutex
	projects map[string]*projectEntry

	membersMu sync.Mutex
	members   map[string]*membership

	logger  *slog.Logger
	metrics *metrics.Metrics
}

type projectEntry struct {
	mu   sync.Mutex
	byID map[string]Subscriber
	// dead is set once the entry is empty and scheduled for removal.
	dead     atomic.Bool
	snapshot atomic.Pointer[[]Subscriber]
}

type membership struct {
	mu       sync.Mutex
	projects map[string]struct{}
	gone     bool
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the logger for swallowed delivery failures.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRegistryMetrics records deliveries and drops.
func WithRegistryMetrics(m *metrics.Metrics) RegistryOption {
	return func(r *Registry) {
		r.metrics = m
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		projects: make(map[string]*projectEntry),
		members:  make(map[string]*membership),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Subscribe adds sub to projectID. Repeated calls are no-ops. Every
// Broadcast that starts after Subscribe returns reaches sub.
func (r *Registry) Subscribe(projectID string, sub Subscriber) {
	if projectID == "" || sub == nil {
		return
	}
	m := r.membership(sub.ID(), true)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gone {
		// Raced with UnsubscribeAll; the subscriber is on its way out.
		return
	}
	for {
		e := r.liveEntry(projectID)
		e.mu.Lock()
		if e.dead.Load() {
			e.mu.Unlock()
			continue
		}
		if _, ok := e.byID[sub.ID()]; !ok {
			e.byID[sub.ID()] = sub
			e.publish()
		}
		e.mu.Unlock()
		break
	}
	m.projects[projectID] = struct{}{}
}

// Unsubscribe removes sub from projectID. Unknown pairs are ignored.
func (r *Registry) Unsubscribe(projectID string, sub Subscriber) {
	if projectID == "" || sub == nil {
		return
	}
	m := r.membership(sub.ID(), false)
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gone {
		return
	}
	delete(m.projects, projectID)
	r.remove(projectID, sub.ID())
}

// UnsubscribeAll removes sub from every project. It is safe to call more than once.
func (r *Registry) UnsubscribeAll(sub Subscriber) {
	if sub == nil {
		return
	}
	id := sub.ID()
	r.membersMu.Lock()
	m := r.members[id]
	delete(r.members, id)
	r.membersMu.Unlock()
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.gone = true
	for projectID := range m.projects {
		r.remove(projectID, id)
	}
	m.projects = nil
}

// Broadcast hands payload to every subscriber of projectID and returns how
// many accepted it. Failures are logged and never abort the loop.
func (r *Registry) Broadcast(projectID string, payload []byte) int {
	r.mu.RLock()
	e := r.projects[projectID]
	r.mu.RUnlock()
	if e == nil {
		return 0
	}
	subs := e.snapshot.Load()
	if subs == nil {
		return 0
	}

	delivered := 0
	for _, sub := range *subs {
		if r.deliver(sub, payload) {
			delivered++
		} else if r.metrics != nil {
			r.metrics.DeliveriesDropped.Inc()
		}
	}
	if r.metrics != nil {
		r.metrics.Deliveries.Add(float64(delivered))
	}
	return delivered
}

func (r *Registry) deliver(sub Subscriber, payload []byte) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("realtime delivery panicked",
				"connection_id", sub.ID(),
				"panic", rec,
			)
			ok = false
		}
	}()
	return sub.Send(payload)
}

func (r *Registry) membership(id string, create bool) *membership {
	r.membersMu.Lock()
	defer r.membersMu.Unlock()
	m := r.members[id]
	if m == nil && create {
		m = &membership{projects: make(map[string]struct{})}
		r.members[id] = m
	}
	return m
}

// liveEntry returns the project's entry, replacing one that is being torn down.
func (r *Registry) liveEntry(projectID string) *projectEntry {
	r.mu.RLock()
	e := r.projects[projectID]
	r.mu.RUnlock()
	if e != nil && !e.dead.Load() {
		return e
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	e = r.projects[projectID]
	if e == nil || e.dead.Load() {
		e = &projectEntry{byID: make(map[string]Subscriber)}
		r.projects[projectID] = e
	}
	return e
}

func (r *Registry) remove(projectID, id string) {
	r.mu.RLock()
	e := r.projects[projectID]
	r.mu.RUnlock()
	if e == nil {
		return
	}

	e.mu.Lock()
	if _, ok := e.byID[id]; ok {
		delete(e.byID, id)
		e.publish()
	}
	empty := len(e.byID) == 0 && !e.dead.Load()
	if empty {
		e.dead.Store(true)
	}
	e.mu.Unlock()

	if empty {
		r.mu.Lock()
		if r.projects[projectID] == e {
			delete(r.projects, projectID)
		}
		r.mu.Unlock()
	}
}

// publish swaps in a fresh snapshot; callers hold e.mu.
func (e *projectEntry) publish() {
	subs := make([]Subscriber, 0, len(e.byID))
	for _, s := range e.byID {
		subs = append(subs, s)
	}
	e.snapshot.Store(&subs)
}
