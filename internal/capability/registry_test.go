package capability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDescriber answers discovery calls from a canned response.
type fakeDescriber struct {
	services []string
	err      error
	delay    time.Duration
}

func (f *fakeDescriber) DescribeServices(ctx context.Context) ([]string, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.services, f.err
}

// gatedDescriber blocks discovery until released.
type gatedDescriber struct {
	release  chan struct{}
	services []string
}

func (g *gatedDescriber) DescribeServices(ctx context.Context) ([]string, error) {
	select {
	case <-g.release:
		return g.services, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func registered(t *testing.T, r *Registry) SessionID {
	t.Helper()
	sessionID := NewSessionID()
	r.Register(sessionID)
	return sessionID
}

func TestDiscoverSuccess(t *testing.T) {
	r := NewRegistry(time.Second, nil)
	sessionID := registered(t, r)

	set := r.Discover(context.Background(), sessionID, &fakeDescriber{
		services: []string{"picante.introspect", "dodeca.pages"},
	})

	assert.Equal(t, sessionID, set.SessionID)
	assert.Equal(t, []string{"dodeca.pages", "picante.introspect"}, set.Services)
	assert.False(t, set.DiscoveredAt.IsZero())

	cached, ok := r.Get(sessionID)
	require.True(t, ok)
	assert.Equal(t, set.Services, cached.Services)
	assert.Equal(t, 1, r.Len())
}

func TestRegisterPendingSession(t *testing.T) {
	r := NewRegistry(time.Second, nil)
	sessionID := registered(t, r)

	// The session is visible with an empty set before discovery returns.
	cached, ok := r.Get(sessionID)
	require.True(t, ok)
	assert.Empty(t, cached.Services)
}

func TestDiscoverFailureYieldsEmptySet(t *testing.T) {
	r := NewRegistry(time.Second, nil)
	sessionID := registered(t, r)

	set := r.Discover(context.Background(), sessionID, &fakeDescriber{
		err: errors.New("producer unreachable"),
	})

	// Failure is recoverable: the session exists with no capabilities.
	assert.Empty(t, set.Services)

	cached, ok := r.Get(sessionID)
	require.True(t, ok)
	assert.Empty(t, cached.Services)
}

func TestDiscoverTimeout(t *testing.T) {
	r := NewRegistry(20*time.Millisecond, nil)
	sessionID := registered(t, r)

	start := time.Now()
	set := r.Discover(context.Background(), sessionID, &fakeDescriber{
		services: []string{"never.delivered"},
		delay:    time.Second,
	})

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Empty(t, set.Services)

	_, ok := r.Get(sessionID)
	assert.True(t, ok)
}

func TestDiscoverNilProducer(t *testing.T) {
	r := NewRegistry(time.Second, nil)
	sessionID := registered(t, r)

	set := r.Discover(context.Background(), sessionID, nil)
	assert.Empty(t, set.Services)

	_, ok := r.Get(sessionID)
	assert.True(t, ok)
}

func TestRemoveDuringDiscovery(t *testing.T) {
	r := NewRegistry(time.Second, nil)
	sessionID := registered(t, r)

	// Discovery is in flight when the session disconnects. The removal
	// must stick: the late discovery result does not resurrect it.
	producer := &gatedDescriber{
		release:  make(chan struct{}),
		services: []string{"picante.introspect"},
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Discover(context.Background(), sessionID, producer)
	}()

	r.Remove(sessionID)
	close(producer.release)
	<-done

	_, ok := r.Get(sessionID)
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}

func TestCapabilitySetHas(t *testing.T) {
	r := NewRegistry(time.Second, nil)
	sessionID := registered(t, r)
	set := r.Discover(context.Background(), sessionID, &fakeDescriber{
		services: []string{"c.service", "a.service", "b.service"},
	})

	assert.True(t, set.Has("a.service"))
	assert.True(t, set.Has("c.service"))
	assert.False(t, set.Has("d.service"))
	assert.False(t, CapabilitySet{}.Has("anything"))
}

func TestRemove(t *testing.T) {
	r := NewRegistry(time.Second, nil)
	sessionID := registered(t, r)
	r.Discover(context.Background(), sessionID, nil)
	require.Equal(t, 1, r.Len())

	r.Remove(sessionID)
	assert.Equal(t, 0, r.Len())

	_, ok := r.Get(sessionID)
	assert.False(t, ok)

	// Removing twice is harmless.
	r.Remove(sessionID)
}

func TestDefaultTimeout(t *testing.T) {
	r := NewRegistry(0, nil)
	assert.Equal(t, DefaultDiscoveryTimeout, r.timeout)
}
