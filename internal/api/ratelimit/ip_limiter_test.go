package ratelimit

import (
	"testing"
	"time"
)

func TestIPLimiter_Burst(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewIPLimiter(1, 3)
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !l.Allow("10.0.0.1") {
			t.Fatalf("request %d should be allowed within burst", i+1)
		}
	}
	if l.Allow("10.0.0.1") {
		t.Error("request over burst should be rejected")
	}
	if !l.Allow("10.0.0.2") {
		t.Error("other IPs have their own bucket")
	}

	now = now.Add(time.Second)
	if !l.Allow("10.0.0.1") {
		t.Error("bucket should refill after one second")
	}
}

func TestIPLimiter_EvictsIdle(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewIPLimiter(1, 1)
	l.now = func() time.Time { return now }

	l.Allow("10.0.0.1")
	now = now.Add(idleTTL + time.Minute)
	l.Allow("10.0.0.2")

	if _, ok := l.visitors["10.0.0.1"]; ok {
		t.Error("idle visitor should be evicted")
	}
}
