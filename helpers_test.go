package authcore

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/sylvize/authcore/password"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func testConfig(t *testing.T) Config {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("keygen failed: %v", err)
	}

	cfg := DefaultConfig()
	cfg.Token.PrivateKey = priv
	cfg.Token.PublicKey = pub
	cfg.Password.Cost = 10
	return cfg
}

type memStore struct {
	mu        sync.RWMutex
	bySubject map[string]PasswordRecord
	byIdent   map[string]string
	saveErr   error
	saves     int
}

func newMemStore() *memStore {
	return &memStore{
		bySubject: make(map[string]PasswordRecord),
		byIdent:   make(map[string]string),
	}
}

func (s *memStore) Put(rec PasswordRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bySubject[rec.Subject] = rec
	s.byIdent[rec.Identifier] = rec.Subject
}

func (s *memStore) Hash(subject string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bySubject[subject].PasswordHash
}

func (s *memStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

func (s *memStore) GetPasswordRecord(_ context.Context, identifier string) (*PasswordRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subject, ok := s.byIdent[identifier]
	if !ok {
		return nil, fmt.Errorf("record not found")
	}
	rec := s.bySubject[subject]
	return &rec, nil
}

func (s *memStore) SavePasswordRecord(_ context.Context, subject string, newHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saveErr != nil {
		return s.saveErr
	}
	rec, ok := s.bySubject[subject]
	if !ok {
		return fmt.Errorf("record not found")
	}
	rec.PasswordHash = newHash
	s.bySubject[subject] = rec
	s.saves++
	return nil
}

func seedUser(t *testing.T, store *memStore, cfg Config, identifier, secret string) {
	t.Helper()
	seedUserAtCost(t, store, cfg.Password.Cost, identifier, secret)
}

func seedUserAtCost(t *testing.T, store *memStore, cost int, identifier, secret string) {
	t.Helper()

	hasher, err := password.NewHasher(password.Config{Cost: cost, Workers: 1, QueueDepth: 4})
	if err != nil {
		t.Fatalf("hasher init failed: %v", err)
	}
	defer hasher.Close()

	hash, err := hasher.Hash(context.Background(), secret)
	if err != nil {
		t.Fatalf("seed hash failed: %v", err)
	}

	store.Put(PasswordRecord{
		Subject:      "subject-" + identifier,
		Identifier:   identifier,
		PasswordHash: hash,
	})
}

func buildTestEngine(t *testing.T, cfg Config, mutate func(*Builder)) (*Engine, *memStore, func()) {
	t.Helper()

	mr, rdb := newTestRedis(t)
	store := newMemStore()

	builder := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(store)
	if mutate != nil {
		mutate(builder)
	}

	engine, err := builder.Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}

	return engine, store, func() {
		engine.Close()
		mr.Close()
	}
}
