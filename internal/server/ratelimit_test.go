package server

import "testing"

func TestInputRateLimiterAllowsBurstThenThrottles(t *testing.T) {
	rl := NewInputRateLimiter(20, 2)
	if !rl.Allow("peer-1") || !rl.Allow("peer-1") {
		t.Fatal("expected burst of 2 to be allowed immediately")
	}
	if rl.Allow("peer-1") {
		t.Fatal("expected third immediate request to be throttled")
	}
}

func TestInputRateLimiterIsPerPeer(t *testing.T) {
	rl := NewInputRateLimiter(20, 1)
	if !rl.Allow("peer-1") {
		t.Fatal("expected peer-1's first request allowed")
	}
	if !rl.Allow("peer-2") {
		t.Fatal("expected peer-2 to have its own independent bucket")
	}
}

func TestInputRateLimiterRemoveDropsBucket(t *testing.T) {
	rl := NewInputRateLimiter(20, 1)
	rl.Allow("peer-1")
	rl.Remove("peer-1")
	if _, ok := rl.limiters["peer-1"]; ok {
		t.Fatal("expected bucket removed")
	}
}
