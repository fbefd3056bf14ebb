// Package capability tracks, per connected producer session, the
// optional introspection capabilities the producer advertises. Discovery
// runs once per connection; the cached set tells the rest of the hub
// whether framework-specific follow-up calls are worth attempting.
//
// Structural no-self-observation rule: a Describer is a control-plane
// handle only. It carries no span emitter and nothing in this package
// touches the span ingestion path, so the hub can never trace its own
// discovery calls back into itself.
package capability

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hindsight/hub/internal/logger"
	"github.com/hindsight/hub/internal/metrics"
)

// DefaultDiscoveryTimeout bounds a discovery call when no timeout is
// configured.
const DefaultDiscoveryTimeout = 3 * time.Second

// SessionID identifies one producer connection.
type SessionID = uuid.UUID

// NewSessionID allocates a session identifier for a new connection.
func NewSessionID() SessionID {
	return uuid.New()
}

// Describer enumerates the services a producer exposes. Implementations
// live in the transport layer; the call must respect ctx cancellation.
type Describer interface {
	DescribeServices(ctx context.Context) ([]string, error)
}

// CapabilitySet is the per-connection record of advertised capabilities.
// An empty Services set means the producer is treated as generic.
type CapabilitySet struct {
	SessionID    SessionID `json:"session_id"`
	Services     []string  `json:"services"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// Has reports whether the session advertised the named service.
func (c CapabilitySet) Has(service string) bool {
	i := sort.SearchStrings(c.Services, service)
	return i < len(c.Services) && c.Services[i] == service
}

// Registry caches capability sets keyed by session id. Written once per
// connection lifecycle and read frequently, so reads take only an
// RWMutex read lock over an immutable set value.
type Registry struct {
	timeout time.Duration
	metrics *metrics.TraceMetrics
	log     zerolog.Logger

	mu       sync.RWMutex
	sessions map[SessionID]CapabilitySet
}

// NewRegistry creates a capability registry with the given discovery
// timeout.
func NewRegistry(timeout time.Duration, m *metrics.TraceMetrics) *Registry {
	if timeout <= 0 {
		timeout = DefaultDiscoveryTimeout
	}
	return &Registry{
		timeout:  timeout,
		metrics:  m,
		log:      logger.WithComponent("capability"),
		sessions: make(map[SessionID]CapabilitySet),
	}
}

// Register records a pending session with an empty capability set at
// connection time. Discover fills the set in later; a Remove that lands
// while discovery is still in flight wins, so a disconnected session is
// never resurrected by its own late discovery result.
func (r *Registry) Register(sessionID SessionID) {
	r.mu.Lock()
	r.sessions[sessionID] = CapabilitySet{SessionID: sessionID}
	n := len(r.sessions)
	r.mu.Unlock()

	r.metrics.SetSessions(n)
}

// Discover issues the single per-connection discovery call and caches
// the result for a session previously recorded with Register. Timeout
// or error is not fatal: the session keeps an empty capability set and
// the producer is treated as generic. Callers must not hold any store
// lock while waiting; the method blocks at most for the configured
// timeout.
func (r *Registry) Discover(ctx context.Context, sessionID SessionID, producer Describer) CapabilitySet {
	set := CapabilitySet{
		SessionID:    sessionID,
		DiscoveredAt: time.Now(),
	}

	if producer != nil {
		callCtx, cancel := context.WithTimeout(ctx, r.timeout)
		services, err := producer.DescribeServices(callCtx)
		cancel()
		if err != nil {
			// Recoverable: ingestion continues, rediscovery happens
			// on the next reconnect.
			r.metrics.RecordDiscovery("failed")
			r.log.Warn().
				Err(err).
				Str("session_id", sessionID.String()).
				Msg("Capability discovery failed, treating producer as generic")
		} else {
			set.Services = append([]string(nil), services...)
			sort.Strings(set.Services)
			r.metrics.RecordDiscovery("ok")
			r.log.Info().
				Str("session_id", sessionID.String()).
				Strs("services", set.Services).
				Msg("Capability discovery completed")
		}
	} else {
		r.metrics.RecordDiscovery("skipped")
	}

	// Store only while the session is still registered. The same lock
	// serializes this against Remove, so a detach during discovery is
	// never undone.
	r.mu.Lock()
	if _, registered := r.sessions[sessionID]; registered {
		r.sessions[sessionID] = set
	}
	r.mu.Unlock()

	return set
}

// Get returns the cached capability set for a session.
func (r *Registry) Get(sessionID SessionID) (CapabilitySet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.sessions[sessionID]
	return set, ok
}

// Remove discards a session's capability set on disconnect.
func (r *Registry) Remove(sessionID SessionID) {
	r.mu.Lock()
	_, ok := r.sessions[sessionID]
	delete(r.sessions, sessionID)
	n := len(r.sessions)
	r.mu.Unlock()

	if ok {
		r.metrics.SetSessions(n)
		r.log.Debug().Str("session_id", sessionID.String()).Msg("Session removed")
	}
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
