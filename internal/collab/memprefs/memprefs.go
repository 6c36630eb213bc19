// Package memprefs provides an in-memory PreferenceStore, the default
// collaborator for the User Preferences Store (C9).
package memprefs

import (
	"sync"

	"fenrir/internal/domain"
)

// Store is a thread-safe, in-memory implementation of collab.PreferenceStore.
type Store struct {
	mu     sync.RWMutex
	byUser map[string]domain.UserPreferences
}

// New builds an empty preference store. Callers typically Update a default
// set of preferences per user on first contact.
func New() *Store {
	return &Store{byUser: make(map[string]domain.UserPreferences)}
}

// Get returns the stored preferences for userID, or false if none exist.
func (s *Store) Get(userID string) (domain.UserPreferences, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byUser[userID]
	return p, ok
}

// Update applies patch to the user's preferences, creating a sensible
// all-channels-enabled default first if none existed yet.
func (s *Store) Update(userID string, patch func(*domain.UserPreferences)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byUser[userID]
	if !ok {
		p = defaultPreferences(userID)
	}
	patch(&p)
	s.byUser[userID] = p
}

func defaultPreferences(userID string) domain.UserPreferences {
	return domain.UserPreferences{
		UserID:             userID,
		Channels:           []domain.NotificationChannel{domain.ChannelEmail},
		Contacts:           map[domain.NotificationChannel]string{},
		TradeNotifications: true,
		RiskAlerts:         true,
		MarginCalls:        true,
		ComplianceAlerts:   true,
		DailyReports:       false,
		MarketOpening:      false,
	}
}
