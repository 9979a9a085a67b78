package decision

import (
	"go-modguard/internal/models"
)

// PunishmentRequest is a punishment the engine decided to apply.
type PunishmentRequest struct {
	GuildID    string
	MemberID   string
	ChannelID  string
	Punishment models.Punishment
	Rule       string
	Reason     string
	// quiet suppresses the per-member punishment report, e.g. during a raid
	// which is reported once for the whole wave.
	quiet bool
}
