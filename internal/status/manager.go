package status

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/devesh1011/vyloc-backend-api/internal/domain"
)

// Observer is one live viewer of a job's progress. A failed Send or
// Heartbeat is treated as a disconnect, never as a job error.
type Observer interface {
	// Send delivers one status event to the observer.
	Send(evt *domain.StatusEvent) error

	// Heartbeat delivers a liveness probe on idle connections.
	Heartbeat() error
}

// ObserverHandle identifies one (job, observer) subscription. It is closed
// by Unsubscribe, by a delivery failure, or after the job's terminal event
// has been delivered.
type ObserverHandle struct {
	jobID    uuid.UUID
	observer Observer

	// floor is the snapshot delivered at subscribe time. Events already
	// buffered in the relay when the snapshot was read may be older than
	// it; the relay skips those so progress never moves backward.
	floor *domain.StatusEvent

	done      chan struct{}
	closeOnce sync.Once
}

// Done is closed when the subscription has ended.
func (h *ObserverHandle) Done() <-chan struct{} { return h.done }

func (h *ObserverHandle) close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// stale reports whether evt predates this observer's subscribe-time
// snapshot.
func (h *ObserverHandle) stale(evt *domain.StatusEvent) bool {
	if h.floor == nil {
		return false
	}
	if evt.Status != h.floor.Status {
		return evt.Status.CanTransitionTo(h.floor.Status)
	}
	return evt.Progress < h.floor.Progress
}

// Manager tracks live observers per job and relays every event published on
// a job's channel to each of them. One background relay runs per observed
// job; it tears down once the last observer detaches or the job's terminal
// event has been delivered.
type Manager struct {
	channel   Channel
	store     Store
	logger    *zap.Logger
	heartbeat time.Duration

	mu     sync.Mutex
	relays map[uuid.UUID]*relay
}

// NewManager creates a connection manager relaying from channel, seeding
// late subscribers from store, and probing idle observers every heartbeat.
func NewManager(channel Channel, store Store, heartbeat time.Duration, logger *zap.Logger) *Manager {
	return &Manager{
		channel:   channel,
		store:     store,
		logger:    logger,
		heartbeat: heartbeat,
		relays:    make(map[uuid.UUID]*relay),
	}
}

// Subscribe attaches an observer to a job's updates. The observer
// immediately receives the job's current snapshot (when one exists) before
// any subsequent event. If that snapshot is already terminal it is
// delivered and the subscription is closed at once.
func (m *Manager) Subscribe(ctx context.Context, jobID uuid.UUID, obs Observer) (*ObserverHandle, error) {
	handle := &ObserverHandle{
		jobID:    jobID,
		observer: obs,
		done:     make(chan struct{}),
	}

	r, err := m.relayFor(ctx, jobID)
	if err != nil {
		return nil, err
	}

	// Events consumed by the relay before the observer is registered are
	// subsumed by the snapshot: the store is written before each publish,
	// so the snapshot read under the relay lock is at least as new as any
	// event the observer missed.
	r.mu.Lock()
	snapshot, err := m.store.Get(ctx, jobID)
	if err == nil {
		if sendErr := obs.Send(snapshot); sendErr != nil {
			r.mu.Unlock()
			handle.close()
			m.dropRelayIfEmpty(r)
			return handle, nil
		}
		if snapshot.Status.IsTerminal() {
			r.mu.Unlock()
			handle.close()
			m.dropRelayIfEmpty(r)
			return handle, nil
		}
		handle.floor = snapshot
	} else if err != domain.ErrStatusNotFound {
		r.mu.Unlock()
		m.dropRelayIfEmpty(r)
		return nil, err
	}
	r.observers[handle] = struct{}{}
	r.mu.Unlock()

	return handle, nil
}

// Unsubscribe detaches a single observer. The job itself is never affected.
func (m *Manager) Unsubscribe(handle *ObserverHandle) {
	if handle == nil {
		return
	}
	m.mu.Lock()
	r, ok := m.relays[handle.jobID]
	m.mu.Unlock()
	if ok {
		r.remove(handle)
		m.dropRelayIfEmpty(r)
	}
	handle.close()
}

// relayFor returns the running relay for a job, starting one on first use.
func (m *Manager) relayFor(ctx context.Context, jobID uuid.UUID) (*relay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.relays[jobID]; ok {
		return r, nil
	}

	sub, err := m.channel.Subscribe(ctx, jobID)
	if err != nil {
		return nil, err
	}
	r := &relay{
		jobID:     jobID,
		sub:       sub,
		observers: make(map[*ObserverHandle]struct{}),
		stop:      make(chan struct{}),
	}
	m.relays[jobID] = r
	go m.run(r)
	return r, nil
}

// run forwards channel events to every observer of one job until the
// terminal event has been delivered or the relay is stopped.
func (m *Manager) run(r *relay) {
	defer r.sub.Close()

	ticker := time.NewTicker(m.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case evt, ok := <-r.sub.Events():
			if !ok {
				m.teardown(r)
				return
			}
			r.broadcast(evt, m.logger)
			if evt.Status.IsTerminal() {
				m.logger.Debug("terminal event delivered, closing relay",
					zap.String("job_id", r.jobID.String()))
				m.teardown(r)
				return
			}
			ticker.Reset(m.heartbeat)
		case <-ticker.C:
			r.probe()
		}
	}
}

// teardown closes every remaining observer and removes the relay.
func (m *Manager) teardown(r *relay) {
	r.mu.Lock()
	for h := range r.observers {
		delete(r.observers, h)
		h.close()
	}
	r.mu.Unlock()

	m.mu.Lock()
	if m.relays[r.jobID] == r {
		delete(m.relays, r.jobID)
	}
	m.mu.Unlock()
}

// dropRelayIfEmpty stops a relay that has no observers left.
func (m *Manager) dropRelayIfEmpty(r *relay) {
	r.mu.Lock()
	empty := len(r.observers) == 0
	r.mu.Unlock()
	if !empty {
		return
	}

	m.mu.Lock()
	if m.relays[r.jobID] == r {
		delete(m.relays, r.jobID)
	}
	m.mu.Unlock()
	r.stopOnce.Do(func() { close(r.stop) })
}

type relay struct {
	jobID uuid.UUID
	sub   Subscription

	mu        sync.Mutex
	observers map[*ObserverHandle]struct{}

	stop     chan struct{}
	stopOnce sync.Once
}

// broadcast forwards one event to every observer, removing any observer
// whose delivery fails. Events older than an observer's subscribe-time
// snapshot are skipped for that observer.
func (r *relay) broadcast(evt *domain.StatusEvent, logger *zap.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for h := range r.observers {
		if h.stale(evt) {
			continue
		}
		if err := h.observer.Send(evt); err != nil {
			logger.Debug("observer delivery failed, dropping",
				zap.String("job_id", r.jobID.String()), zap.Error(err))
			delete(r.observers, h)
			h.close()
		}
	}
}

// probe sends a heartbeat to every observer, removing dead ones.
func (r *relay) probe() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for h := range r.observers {
		if err := h.observer.Heartbeat(); err != nil {
			delete(r.observers, h)
			h.close()
		}
	}
}

func (r *relay) remove(h *ObserverHandle) {
	r.mu.Lock()
	delete(r.observers, h)
	r.mu.Unlock()
}
