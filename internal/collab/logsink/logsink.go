// Package logsink provides zerolog-backed default NotificationSink and
// AuditSink implementations, matching the teacher repo's style of logging
// everything through github.com/rs/zerolog rather than fmt.Printf.
package logsink

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"fenrir/internal/collab"
	"fenrir/internal/domain"
)

// Notifier logs notifications instead of dispatching them over a real
// channel (email/SMS/telegram are out of scope per spec.md §1). It still
// respects the per-event-type and per-channel preferences so the
// orchestrator's routing logic is exercised the same way a real sink would
// see it.
type Notifier struct {
	logger zerolog.Logger
}

// NewNotifier builds a log-backed NotificationSink.
func NewNotifier() *Notifier {
	return &Notifier{logger: log.With().Str("component", "notification").Logger()}
}

func (n *Notifier) Notify(userID, eventKind string, payload map[string]any, prefs domain.UserPreferences) {
	for _, ch := range prefs.Channels {
		contact := prefs.Contacts[ch]
		n.logger.Info().
			Str("userId", userID).
			Str("eventKind", eventKind).
			Str("channel", string(ch)).
			Str("contact", contact).
			Interface("payload", payload).
			Msg("notification dispatched")
	}
}

// Auditor appends audit records to the structured log, standing in for a
// durable append-only store (spec.md §6: the core's audit collaborator is
// external; persistence is out of scope per spec.md §1).
type Auditor struct {
	logger zerolog.Logger
}

// NewAuditor builds a log-backed AuditSink.
func NewAuditor() *Auditor {
	return &Auditor{logger: log.With().Str("component", "audit").Logger()}
}

func (a *Auditor) Record(rec collab.AuditRecord) {
	a.logger.Info().
		Str("userId", rec.UserID).
		Str("action", rec.Action).
		Time("timestamp", rec.Timestamp).
		Interface("details", rec.Details).
		Msg("audit record")
}
