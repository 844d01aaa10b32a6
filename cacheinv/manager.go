package cacheinv

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/anchorware/ward-lifecycle"
	wardlog "github.com/anchorware/ward-log"
)

// PropagationPeriod is how often the publish and poll loops wake up
// when a Bus is configured.
const PropagationPeriod = 2 * time.Second

// outboundEviction is one not-yet-published eviction intent.
type outboundEviction struct {
	cacheName  string
	encodedKey []byte
}

// Manager is the registry of named local caches and, when a Bus is
// configured, the driver of the two background loops that publish
// outbound evictions and apply inbound ones. A Manager with a nil Bus
// still works as a local registry: Evict calls do the local removal and
// buffer the eviction, but no loop runs to publish it.
type Manager struct {
	bus Bus
	log wardlog.Logger

	runner *lifecycle.Runner

	mu         sync.Mutex
	caches     map[string]registeredCache
	outbound   []outboundEviction
	lastPollAt time.Time
}

// NewManager constructs a Manager. bus may be nil, in which case
// registered caches never propagate evictions. log may be nil.
func NewManager(bus Bus, log wardlog.Logger) *Manager {
	if log == nil {
		log = wardlog.Discard{}
	}
	return &Manager{
		bus:    bus,
		log:    log,
		runner: lifecycle.New(log),
		caches: make(map[string]registeredCache),
	}
}

func (m *Manager) register(cache registeredCache) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.caches[cache.Name()]; exists {
		return wrap(fmt.Errorf(`cache name %q already registered`, cache.Name()))
	}
	m.caches[cache.Name()] = cache
	return nil
}

func (m *Manager) enqueue(cacheName string, encodedKey []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outbound = append(m.outbound, outboundEviction{cacheName: cacheName, encodedKey: encodedKey})
}

// Start seeds the poll cursor from the Bus's own clock (never this
// process's local clock, so cross-process skew can't hide or replay
// events) and begins the publish/poll loops. A Manager with no Bus
// configured starts with both loops no-ops. Idempotent.
func (m *Manager) Start(ctx context.Context) error {
	return m.runner.Start(func(startCtx context.Context) error {
		if m.bus != nil {
			now, err := m.bus.Now(ctx)
			if err != nil {
				return err
			}
			m.mu.Lock()
			m.lastPollAt = now
			m.mu.Unlock()

			m.runner.RunWhileUp(m.publishDue, PropagationPeriod)
			m.runner.RunWhileUp(m.pollDue, PropagationPeriod)
		}
		return nil
	})
}

// Stop ends the background loops. Idempotent.
func (m *Manager) Stop() { m.runner.Stop(nil) }

// publishDue drains the outbound buffer and hands it to the Bus. On
// failure, the drained batch is put back so the next tick retries -
// publication is at-least-once, matching the Bus contract's delivery
// guarantee.
func (m *Manager) publishDue(ctx context.Context) error {
	m.mu.Lock()
	batch := m.outbound
	m.outbound = nil
	m.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	events := make([]EvictionEvent, len(batch))
	for i, o := range batch {
		events[i] = EvictionEvent{CacheName: o.cacheName, Key: o.encodedKey}
	}

	if err := m.bus.PublishEviction(ctx, events); err != nil {
		m.mu.Lock()
		m.outbound = append(batch, m.outbound...)
		m.mu.Unlock()
		m.log.WithError(err).WithField(wardlog.FieldBatchCount, len(events)).Warn(`cacheinv: publish failed, will retry`)
		return nil
	}
	return nil
}

// pollDue fetches events recorded since the last poll for every
// registered cache name, applies each via that cache's non-propagating
// removal path, and advances the cursor past the latest event seen -
// even past one that failed to decode, so a permanently malformed
// event can't wedge the cursor forever.
func (m *Manager) pollDue(ctx context.Context) error {
	m.mu.Lock()
	if len(m.caches) == 0 {
		m.mu.Unlock()
		return nil
	}
	names := make([]string, 0, len(m.caches))
	for name := range m.caches {
		names = append(names, name)
	}
	since := m.lastPollAt
	m.mu.Unlock()

	events, err := m.bus.PollEvents(ctx, names, since)
	if err != nil {
		m.log.WithError(err).WithField(wardlog.FieldBatchCount, len(names)).Warn(`cacheinv: poll failed`)
		return nil
	}
	if len(events) == 0 {
		return nil
	}

	newCursor := since
	for _, ev := range events {
		if ev.RecordedAt.After(newCursor) {
			newCursor = ev.RecordedAt
		}

		m.mu.Lock()
		cache, ok := m.caches[ev.CacheName]
		m.mu.Unlock()
		if !ok {
			continue
		}

		if err := cache.remove(ev.Key); err != nil {
			wardlog.WithCache(m.log, ev.CacheName).WithError(err).Warn(`cacheinv: failed to apply remote eviction`)
		}
	}

	m.mu.Lock()
	m.lastPollAt = newCursor
	m.mu.Unlock()
	return nil
}
