// Package storetest provides an in-memory store.Repository and a compliance
// suite that every Repository implementation should pass.
package storetest

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/ashureev/chatpulse/internal/domain"
	"github.com/ashureev/chatpulse/internal/store"
)

// Memory is a map-backed store.Repository for tests. The *Err fields force
// the matching method to fail.
type Memory struct {
	mu       sync.Mutex
	users    map[string]*domain.User
	analyses []*domain.Analysis
	revoked  map[string]*domain.RevokedToken

	SaveErr   error
	ListErr   error
	RevokeErr error
	PingErr   error
}

var _ store.Repository = (*Memory)(nil)

// NewMemory returns an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{
		users:   make(map[string]*domain.User),
		revoked: make(map[string]*domain.RevokedToken),
	}
}

func (m *Memory) GetUser(_ context.Context, userID string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[userID]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Memory) CreateUser(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.UserID]; ok {
		return store.ErrUserExists
	}
	for _, u := range m.users {
		if u.Email == user.Email {
			return store.ErrUserExists
		}
	}
	cp := *user
	m.users[user.UserID] = &cp
	return nil
}

func (m *Memory) SaveAnalysis(_ context.Context, a *domain.Analysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	cp := *a
	m.analyses = append(m.analyses, &cp)
	return nil
}

func (m *Memory) ListAnalyses(_ context.Context, userID string) ([]*domain.Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	out := make([]*domain.Analysis, 0)
	// Walk backwards so equal upload times keep newest-inserted first.
	for i := len(m.analyses) - 1; i >= 0; i-- {
		if a := m.analyses[i]; a.UserID == userID {
			cp := *a
			out = append(out, &cp)
		}
	}
	slices.SortStableFunc(out, func(a, b *domain.Analysis) int {
		return b.UploadDate.Compare(a.UploadDate)
	})
	return out, nil
}

func (m *Memory) RevokeToken(_ context.Context, token *domain.RevokedToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RevokeErr != nil {
		return m.RevokeErr
	}
	if _, ok := m.revoked[token.TokenID]; !ok {
		cp := *token
		m.revoked[token.TokenID] = &cp
	}
	return nil
}

func (m *Memory) IsTokenRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revoked[tokenID]
	return ok, nil
}

func (m *Memory) DeleteExpiredRevocations(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, t := range m.revoked {
		if t.Expired(now) {
			delete(m.revoked, id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.PingErr
}

func (m *Memory) Close() error { return nil }
