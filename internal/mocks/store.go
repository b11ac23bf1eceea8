package mocks

import (
	"context"
	"sync"
	"time"

	"assistant/pkg/persistence"
)

// MemoryUserStore implements persistence.UserStore in memory.
// Err, when set, is returned by every write.
type MemoryUserStore struct {
	mu        sync.Mutex
	users     map[string]*persistence.UserProfile
	history   map[string][]string
	reminders map[string][]persistence.Reminder

	Err error
}

// NewMemoryUserStore creates an empty store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		users:     make(map[string]*persistence.UserProfile),
		history:   make(map[string][]string),
		reminders: make(map[string][]persistence.Reminder),
	}
}

func (s *MemoryUserStore) ensure(id string) *persistence.UserProfile {
	u, ok := s.users[id]
	if !ok {
		now := time.Now()
		u = &persistence.UserProfile{ID: id, PreferredLanguage: "en", CreatedAt: now, UpdatedAt: now}
		s.users[id] = u
	}
	return u
}

// FindUser returns a copy of the stored profile.
func (s *MemoryUserStore) FindUser(_ context.Context, id string) (*persistence.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, persistence.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

// AppendHistory records text for id.
func (s *MemoryUserStore) AppendHistory(_ context.Context, id, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.ensure(id)
	s.history[id] = append(s.history[id], text)
	return nil
}

// AppendReminder records r for id.
func (s *MemoryUserStore) AppendReminder(_ context.Context, id string, r persistence.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.ensure(id)
	s.reminders[id] = append(s.reminders[id], r)
	return nil
}

// UpdateAssistantName sets the assistant name for id.
func (s *MemoryUserStore) UpdateAssistantName(_ context.Context, id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.ensure(id).AssistantName = name
	return nil
}

// UpdatePreferredLanguage sets the language code for id.
func (s *MemoryUserStore) UpdatePreferredLanguage(_ context.Context, id, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.ensure(id).PreferredLanguage = code
	return nil
}

// UpsertUser stores a copy of u.
func (s *MemoryUserStore) UpsertUser(_ context.Context, u *persistence.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	cp := *u
	if cp.PreferredLanguage == "" {
		cp.PreferredLanguage = "en"
	}
	s.users[u.ID] = &cp
	return nil
}

// History returns the texts appended for id, oldest first.
func (s *MemoryUserStore) History(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.history[id]...)
}

// Reminders returns the reminders appended for id.
func (s *MemoryUserStore) Reminders(id string) []persistence.Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]persistence.Reminder(nil), s.reminders[id]...)
}
