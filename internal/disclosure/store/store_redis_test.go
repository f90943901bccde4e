package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRedisStore_KeyTTLFollowsInjectedClock(t *testing.T) {
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	s := NewRedis(nil, WithRedisClock(func() time.Time { return base }))

	// The key must outlive the logical expiry by exactly the used-marker
	// grace, measured against the injected clock rather than the wall clock.
	assert.Equal(t, 2*time.Minute+usedMarkerGrace, s.keyTTL(base.Add(2*time.Minute)))
	assert.Equal(t, 30*time.Second+usedMarkerGrace, s.keyTTL(base.Add(30*time.Second)))

	// An already-expired token still leaves the marker window.
	assert.Equal(t, usedMarkerGrace-time.Second, s.keyTTL(base.Add(-time.Second)))
}

func TestRedisStore_DefaultClock(t *testing.T) {
	s := NewRedis(nil)
	ttl := s.keyTTL(time.Now().Add(time.Minute))
	assert.InDelta(t, (time.Minute + usedMarkerGrace).Seconds(), ttl.Seconds(), 1)
}
