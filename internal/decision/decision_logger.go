package decision

import (
	"go.uber.org/zap"

	"go-modguard/internal/logging"
	"go-modguard/internal/metrics"
	"go-modguard/internal/models"
)

// logVerdict records a non-allow verdict for operators.
func logVerdict(guildID, memberID, channelID string, v models.Verdict) {
	if v.Type == models.VerdictAllow {
		return
	}
	metrics.RecordVerdict(v.Rule, v.Type.String())
	logging.L().Info("verdict",
		zap.String("guild_id", guildID),
		zap.String("member_id", memberID),
		zap.String("channel_id", channelID),
		zap.String("rule", v.Rule),
		zap.Stringer("verdict", v.Type),
		zap.Bool("delete", v.DeleteMessage),
		zap.Stringer("punishment", v.Punishment),
	)
}
