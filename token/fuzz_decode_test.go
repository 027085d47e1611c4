package token

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// FuzzStoredRecordDecode exercises Read against arbitrary stored bytes.
// Goal: no panics; malformed records surface ErrRecordCorrupt, never garbage
// tokens.
func FuzzStoredRecordDecode(f *testing.F) {
	// Seed with a valid record.
	valid, err := json.Marshal(Token{
		AccessToken:  "at-fuzz",
		RefreshToken: "rt-fuzz",
		ExpiresAt:    1700003600,
	})
	if err == nil {
		f.Add(valid)
	}

	// Empty, truncated, and non-JSON inputs.
	f.Add([]byte{})
	f.Add([]byte("{"))
	f.Add([]byte("null"))
	f.Add([]byte(`{"access_token":42}`))
	f.Add([]byte{255, 255, 255})
	if len(valid) > 10 {
		f.Add(valid[:10])
	}

	mr := miniredis.RunT(f)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, "fuzz")

	f.Fuzz(func(t *testing.T, data []byte) {
		if err := mr.Set("fuzz:token", string(data)); err != nil {
			t.Skip()
		}

		// Must not panic. Errors are expected for malformed records.
		tok, found, err := store.Read(context.Background())
		if err != nil {
			return
		}
		if !found {
			return
		}

		// A record that decoded must re-encode cleanly.
		if _, err := json.Marshal(tok); err != nil {
			t.Fatalf("decoded token failed to re-encode: %v", err)
		}
	})
}
