package auth

import (
	"testing"
	"time"
)

func TestThrottle(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	th := NewThrottle(3, time.Minute, 5*time.Minute)
	th.now = func() time.Time { return now }

	for i := range 2 {
		if locked := th.Fail("10.0.0.5"); locked {
			t.Fatalf("Fail() #%d locked out early", i+1)
		}
	}
	if !th.Allow("10.0.0.5") {
		t.Fatal("Allow() = false before the limit")
	}
	if locked := th.Fail("10.0.0.5"); !locked {
		t.Fatal("Fail() #3 did not lock out")
	}
	if th.Allow("10.0.0.5") {
		t.Error("Allow() = true while locked out")
	}
	if !th.Allow("10.0.0.6") {
		t.Error("lockout leaked to another client")
	}

	now = now.Add(5*time.Minute + time.Second)
	if !th.Allow("10.0.0.5") {
		t.Error("Allow() = false after lockout expired")
	}
}

func TestThrottle_WindowResets(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	th := NewThrottle(2, time.Minute, time.Hour)
	th.now = func() time.Time { return now }

	th.Fail("kiosk")
	now = now.Add(2 * time.Minute)
	if locked := th.Fail("kiosk"); locked {
		t.Error("failure outside the window counted toward the limit")
	}
}

func TestThrottle_SucceedAndPrune(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	th := NewThrottle(2, time.Minute, time.Minute)
	th.now = func() time.Time { return now }

	th.Fail("a")
	th.Succeed("a")
	if locked := th.Fail("a"); locked {
		t.Error("Succeed() did not clear failures")
	}

	th.Fail("b")
	now = now.Add(3 * time.Minute)
	th.Prune()
	if len(th.clients) != 0 {
		t.Errorf("clients = %d after Prune, want 0", len(th.clients))
	}
}
