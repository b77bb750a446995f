// Package host routes decoded client messages to per-slot plugin sessions
// and pushes editor frames back out. It owns the session registry and the
// action dispatch table; the transport below it only moves frames.
package host

import (
	"sync"

	"github.com/novadaw/novahost/internal/logger"
	"github.com/novadaw/novahost/internal/plugin"
)

// SessionKey identifies one plugin session. A client may hold any number of
// slots; the same slot name under two clients is two independent sessions.
type SessionKey struct {
	ClientID string
	SlotID   string
}

// SessionEntry pairs a key with its live instance for snapshot iteration.
type SessionEntry struct {
	Key      SessionKey
	Instance plugin.Instance
}

// Registry maps (client, slot) pairs to loaded plugin instances. All map
// access goes through one mutex; instance creation and teardown run outside
// it so a slow plugin cannot stall unrelated sessions.
type Registry struct {
	mu       sync.Mutex
	sessions map[SessionKey]plugin.Instance
	log      *logger.Logger
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[SessionKey]plugin.Instance),
		log:      logger.Global().WithPrefix("sessions"),
	}
}

// Create builds an instance via factory and binds it to (clientID, slotID).
// Loading into an occupied slot replaces the previous instance: the old one
// is closed exactly once, before the new binding becomes visible. A factory
// error leaves any existing binding untouched.
func (r *Registry) Create(clientID, slotID string, factory func() (plugin.Instance, error)) (plugin.Instance, error) {
	inst, err := factory()
	if err != nil {
		return nil, err
	}

	key := SessionKey{ClientID: clientID, SlotID: slotID}

	r.mu.Lock()
	old := r.sessions[key]
	delete(r.sessions, key)
	r.mu.Unlock()

	if old != nil {
		r.log.Debug("replacing session %s/%s (%s)", clientID, slotID, old.Name())
		old.Close()
	}

	r.mu.Lock()
	r.sessions[key] = inst
	r.mu.Unlock()
	return inst, nil
}

// Get returns the instance bound to (clientID, slotID), if any.
func (r *Registry) Get(clientID, slotID string) (plugin.Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.sessions[SessionKey{ClientID: clientID, SlotID: slotID}]
	return inst, ok
}

// DestroyOne unbinds and closes the session at (clientID, slotID). Unknown
// sessions are ignored.
func (r *Registry) DestroyOne(clientID, slotID string) {
	key := SessionKey{ClientID: clientID, SlotID: slotID}

	r.mu.Lock()
	inst, ok := r.sessions[key]
	if ok {
		delete(r.sessions, key)
	}
	r.mu.Unlock()

	if ok {
		inst.Close()
	}
}

// DestroyAllForClient unbinds and closes every session the client holds.
func (r *Registry) DestroyAllForClient(clientID string) {
	r.mu.Lock()
	var doomed []plugin.Instance
	for key, inst := range r.sessions {
		if key.ClientID == clientID {
			doomed = append(doomed, inst)
			delete(r.sessions, key)
		}
	}
	r.mu.Unlock()

	if len(doomed) > 0 {
		r.log.Debug("destroyed %d session(s) for %s", len(doomed), clientID)
	}
	for _, inst := range doomed {
		inst.Close()
	}
}

// SnapshotAll returns a point-in-time copy of every session, so callers can
// iterate without holding the registry lock.
func (r *Registry) SnapshotAll() []SessionEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]SessionEntry, 0, len(r.sessions))
	for key, inst := range r.sessions {
		entries = append(entries, SessionEntry{Key: key, Instance: inst})
	}
	return entries
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
