package memprefs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fenrir/internal/domain"
)

func TestGetMissingUserReturnsFalse(t *testing.T) {
	s := New()
	_, ok := s.Get("alice")
	assert.False(t, ok)
}

func TestUpdateSeedsDefaultsOnFirstContact(t *testing.T) {
	s := New()
	s.Update("alice", func(p *domain.UserPreferences) {
		p.DailyReports = true
	})

	prefs, ok := s.Get("alice")
	require.True(t, ok)
	assert.True(t, prefs.DailyReports)
	assert.True(t, prefs.TradeNotifications)
	assert.Equal(t, []domain.NotificationChannel{domain.ChannelEmail}, prefs.Channels)
}

func TestUpdatePreservesPriorPatchesAcrossCalls(t *testing.T) {
	s := New()
	s.Update("alice", func(p *domain.UserPreferences) { p.RiskAlerts = false })
	s.Update("alice", func(p *domain.UserPreferences) { p.MarginCalls = false })

	prefs, ok := s.Get("alice")
	require.True(t, ok)
	assert.False(t, prefs.RiskAlerts)
	assert.False(t, prefs.MarginCalls)
}
