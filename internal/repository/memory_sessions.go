package repository

import (
	"context"
	"slices"
	"sync"

	"appointment-bot/internal/domain"
)

// MemorySessions keeps scratch records in process memory.
type MemorySessions struct {
	mu    sync.RWMutex
	convs map[string]domain.Conversation
}

func NewMemorySessions() *MemorySessions {
	return &MemorySessions{convs: make(map[string]domain.Conversation)}
}

func (m *MemorySessions) Get(_ context.Context, key string) (domain.Conversation, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conv, ok := m.convs[key]
	if !ok {
		return domain.Conversation{}, false, nil
	}
	conv.SelectedTeam = slices.Clone(conv.SelectedTeam)
	return conv, true, nil
}

func (m *MemorySessions) Put(_ context.Context, conv domain.Conversation) error {
	conv.SelectedTeam = slices.Clone(conv.SelectedTeam)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.convs[conv.Key] = conv
	return nil
}

func (m *MemorySessions) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.convs, key)
	return nil
}

// Take removes and returns the scratch record under the write lock.
func (m *MemorySessions) Take(_ context.Context, key string) (domain.Conversation, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.convs[key]
	if !ok {
		return domain.Conversation{}, false, nil
	}
	delete(m.convs, key)
	return conv, true, nil
}
