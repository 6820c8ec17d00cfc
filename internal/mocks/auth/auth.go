package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"sync"
	"time"

	domainauth "github.com/campusworks/campus-ui-api/internal/domain/auth"
	"github.com/campusworks/campus-ui-api/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.CredentialStore = (*MemoryCredentialStore)(nil)
	_ ports.ProfileCache    = (*MemoryProfileCache)(nil)
	_ ports.AuditSink       = (*RecordingAuditSink)(nil)
	_ ports.RoleMapper      = (*StaticRoleMapper)(nil)
)

// MemoryCredentialStore keeps credentials in process memory. It backs unit
// tests and the storage-disabled fallback path.
type MemoryCredentialStore struct {
	mu sync.Mutex

	access  string
	refresh string
	user    *domainauth.User

	// SetErr, when non-nil, is returned from every setter to simulate a
	// client that refuses persistence.
	SetErr error
	// UserErr, when non-nil, is returned from User to simulate a
	// malformed persisted snapshot.
	UserErr error
}

func (s *MemoryCredentialStore) SetAccessToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SetErr != nil {
		return s.SetErr
	}
	s.access = token
	return nil
}

func (s *MemoryCredentialStore) SetRefreshToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SetErr != nil {
		return s.SetErr
	}
	s.refresh = token
	return nil
}

func (s *MemoryCredentialStore) SetUser(user domainauth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SetErr != nil {
		return s.SetErr
	}
	u := user
	s.user = &u
	return nil
}

func (s *MemoryCredentialStore) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.access
}

func (s *MemoryCredentialStore) RefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refresh
}

func (s *MemoryCredentialStore) User() (domainauth.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UserErr != nil {
		return domainauth.User{}, false, s.UserErr
	}
	if s.user == nil {
		return domainauth.User{}, false, nil
	}
	return *s.user, true, nil
}

func (s *MemoryCredentialStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = ""
	s.refresh = ""
	s.user = nil
}

// MemoryProfileCache is a map-backed ProfileCache. TTLs are recorded but
// not enforced; expiry behavior is covered by the redis adapter tests.
type MemoryProfileCache struct {
	mu      sync.Mutex
	entries map[int]domainauth.User

	// LastTTL records the ttl passed to the most recent Set.
	LastTTL time.Duration
	// GetErr/SetErr simulate an unavailable cache.
	GetErr error
	SetErr error
}

func (c *MemoryProfileCache) Get(_ context.Context, userID int) (domainauth.User, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.GetErr != nil {
		return domainauth.User{}, false, c.GetErr
	}
	u, ok := c.entries[userID]
	return u, ok, nil
}

func (c *MemoryProfileCache) Set(_ context.Context, user domainauth.User, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SetErr != nil {
		return c.SetErr
	}
	if c.entries == nil {
		c.entries = make(map[int]domainauth.User)
	}
	c.entries[user.ID] = user
	c.LastTTL = ttl
	return nil
}

func (c *MemoryProfileCache) Invalidate(_ context.Context, userID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
	return nil
}

// RecordingAuditSink captures audit events for assertions.
type RecordingAuditSink struct {
	mu     sync.Mutex
	events []ports.AuditEvent
}

func (s *RecordingAuditSink) Record(_ context.Context, event ports.AuditEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

// Events returns a copy of everything recorded so far.
func (s *RecordingAuditSink) Events() []ports.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ports.AuditEvent, len(s.events))
	copy(out, s.events)
	return out
}

// Actions returns just the action names, in record order.
func (s *RecordingAuditSink) Actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = e.Action
	}
	return out
}

// StaticRoleMapper returns a fixed role regardless of groups.
type StaticRoleMapper struct {
	Role domainauth.Role
}

func (m *StaticRoleMapper) Map(_ []string) domainauth.Role {
	return m.Role
}
