package expiry

import "time"

// DefaultBuffer is the safety margin before a token's real expiry at which it
// is already treated as expired.
const DefaultBuffer = 300 * time.Second

// IsExpired reports whether a token expiring at expiresAt (epoch seconds) must
// be treated as expired at now, given the safety buffer.
//
// expiresAt == 0 means no known expiry; the token is then never considered
// expired by this policy.
func IsExpired(expiresAt int64, now time.Time, buffer time.Duration) bool {
	if expiresAt == 0 {
		return false
	}
	if buffer < 0 {
		buffer = 0
	}
	return expiresAt <= now.Add(buffer).Unix()
}

// TimeToExpiry returns the duration until the policy starts treating the token
// as expired. A non-positive result means the token is already inside the
// buffer. Returns ok=false when expiresAt is absent.
func TimeToExpiry(expiresAt int64, now time.Time, buffer time.Duration) (time.Duration, bool) {
	if expiresAt == 0 {
		return 0, false
	}
	if buffer < 0 {
		buffer = 0
	}
	return time.Unix(expiresAt, 0).Add(-buffer).Sub(now), true
}
