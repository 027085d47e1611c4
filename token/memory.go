package token

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store for single-binary deployments and tests.
type MemoryStore struct {
	mu  sync.Mutex
	tok Token
	set bool
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Read implements Store.
func (s *MemoryStore) Read(ctx context.Context) (Token, bool, error) {
	if err := ctx.Err(); err != nil {
		return Token{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tok, s.set, nil
}

// Write implements Store.
func (s *MemoryStore) Write(ctx context.Context, tok Token) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tok = tok
	s.set = true
	return nil
}

// Clear implements Store.
func (s *MemoryStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tok = Token{}
	s.set = false
	return nil
}
