package expiry

import (
	"testing"
	"time"
)

func TestIsExpiredInsideBuffer(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	if !IsExpired(now.Add(100*time.Second).Unix(), now, 300*time.Second) {
		t.Fatal("token expiring in 100s with 300s buffer must be expired")
	}
	if IsExpired(now.Add(400*time.Second).Unix(), now, 300*time.Second) {
		t.Fatal("token expiring in 400s with 300s buffer must be fresh")
	}
}

func TestIsExpiredAbsentExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	if IsExpired(0, now, 300*time.Second) {
		t.Fatal("absent expiry must fail open")
	}
}

func TestIsExpiredBoundary(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	// expiresAt == now+buffer is already expired.
	if !IsExpired(now.Add(300*time.Second).Unix(), now, 300*time.Second) {
		t.Fatal("boundary expiry must be treated as expired")
	}
	if !IsExpired(now.Add(-time.Hour).Unix(), now, 0) {
		t.Fatal("past expiry with zero buffer must be expired")
	}
}

func TestIsExpiredNegativeBufferClamped(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	if IsExpired(now.Add(10*time.Second).Unix(), now, -time.Hour) {
		t.Fatal("negative buffer must behave as zero buffer")
	}
}

func TestTimeToExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	d, ok := TimeToExpiry(now.Add(400*time.Second).Unix(), now, 300*time.Second)
	if !ok {
		t.Fatal("expected known expiry")
	}
	if d != 100*time.Second {
		t.Fatalf("expected 100s to policy expiry, got %v", d)
	}

	if _, ok := TimeToExpiry(0, now, 300*time.Second); ok {
		t.Fatal("absent expiry must report ok=false")
	}

	d, ok = TimeToExpiry(now.Add(100*time.Second).Unix(), now, 300*time.Second)
	if !ok || d >= 0 {
		t.Fatalf("token inside buffer must report non-positive duration, got %v ok=%v", d, ok)
	}
}
