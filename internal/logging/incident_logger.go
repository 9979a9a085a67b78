package logging

import (
	"go.uber.org/zap"
)

// ActionLogEntry describes one outbound moderation action for operator logs.
type ActionLogEntry struct {
	GuildID   string
	MemberID  string
	ChannelID string
	Action    string
	Detail    string
}

func (e ActionLogEntry) fields() []zap.Field {
	fields := make([]zap.Field, 0, 5)
	fields = append(fields, zap.String("guild", e.GuildID), zap.String("action", e.Action))
	if e.MemberID != "" {
		fields = append(fields, zap.String("member", e.MemberID))
	}
	if e.ChannelID != "" {
		fields = append(fields, zap.String("channel", e.ChannelID))
	}
	if e.Detail != "" {
		fields = append(fields, zap.String("detail", e.Detail))
	}
	return fields
}

// LogAction records the outcome of a platform call. A nil err is logged at
// info, anything else at warn; the caller never retries.
func LogAction(entry ActionLogEntry, err error) {
	l := L()
	if err != nil {
		l.Warn("moderation action failed", append(entry.fields(), zap.Error(err))...)
		return
	}
	l.Info("moderation action", entry.fields()...)
}

// LogSkipped records a no-op outcome such as a stale reference.
func LogSkipped(entry ActionLogEntry, reason string) {
	L().Debug("moderation action skipped", append(entry.fields(), zap.String("reason", reason))...)
}
