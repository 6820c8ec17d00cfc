package data

import (
	"context"
	"log/slog"

	"github.com/campusworks/campus-ui-api/internal/ports"
)

// SlogAuditSink writes audit events to the structured log. It is the
// fallback sink when no database is configured.
type SlogAuditSink struct {
	Log *slog.Logger
}

var _ ports.AuditSink = (*SlogAuditSink)(nil)

func (s *SlogAuditSink) logger() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

// Record logs the event at info level.
func (s *SlogAuditSink) Record(ctx context.Context, event ports.AuditEvent) {
	s.logger().InfoContext(ctx, "auth audit",
		"action", event.Action,
		"email", event.Email,
		"user_id", event.UserID,
		"remote_addr", event.RemoteAddr,
		"detail", event.Detail,
	)
}
