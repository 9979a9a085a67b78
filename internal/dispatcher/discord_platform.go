package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"go-modguard/internal/models"
	"go-modguard/internal/notifier"
)

// DiscordPlatform implements Platform over a discordgo session. Ban, unban
// and kick go through the fasthttp executor.
type DiscordPlatform struct {
	session *discordgo.Session
	bans    *BanRequestExecutor
}

func NewDiscordPlatform(session *discordgo.Session, bans *BanRequestExecutor) *DiscordPlatform {
	return &DiscordPlatform{session: session, bans: bans}
}

func (p *DiscordPlatform) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	err := p.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx))
	return classifyREST("delete message", err)
}

func (p *DiscordPlatform) ApplyPunishment(ctx context.Context, guildID, memberID string, pun models.Punishment, reason string) error {
	opt := discordgo.WithContext(ctx)
	switch pun.Kind {
	case models.PunishNone:
		return nil
	case models.PunishRoleMute:
		if pun.RoleID == "" {
			return errors.New("role mute: no mute role configured")
		}
		return classifyREST("role mute", p.session.GuildMemberRoleAdd(guildID, memberID, pun.RoleID, opt, withReason(reason)))
	case models.PunishVoiceMute:
		return classifyREST("voice mute", p.session.GuildMemberMute(guildID, memberID, true, opt, withReason(reason)))
	case models.PunishDeafen:
		return classifyREST("deafen", p.session.GuildMemberDeafen(guildID, memberID, true, opt, withReason(reason)))
	case models.PunishKick:
		return p.bans.ExecuteKick(ctx, guildID, memberID, reason)
	case models.PunishBan:
		return p.bans.ExecuteBan(ctx, guildID, memberID, reason)
	default:
		return fmt.Errorf("unknown punishment kind %d", pun.Kind)
	}
}

func (p *DiscordPlatform) ReversePunishment(ctx context.Context, guildID, memberID string, pun models.Punishment) error {
	opt := discordgo.WithContext(ctx)
	reason := withReason("Punishment expired")
	switch pun.Kind {
	case models.PunishRoleMute:
		if pun.RoleID == "" {
			return fmt.Errorf("role mute: %w", ErrStaleReference)
		}
		return classifyREST("role unmute", p.session.GuildMemberRoleRemove(guildID, memberID, pun.RoleID, opt, reason))
	case models.PunishVoiceMute:
		return classifyREST("voice unmute", p.session.GuildMemberMute(guildID, memberID, false, opt, reason))
	case models.PunishDeafen:
		return classifyREST("undeafen", p.session.GuildMemberDeafen(guildID, memberID, false, opt, reason))
	case models.PunishBan:
		return p.bans.ExecuteUnban(ctx, guildID, memberID)
	case models.PunishNone, models.PunishKick:
		return fmt.Errorf("%s: %w", pun.Kind, ErrNotReversible)
	default:
		return fmt.Errorf("unknown punishment kind %d", pun.Kind)
	}
}

func (p *DiscordPlatform) PostReport(ctx context.Context, channelID string, report models.Report) error {
	_, err := p.session.ChannelMessageSendEmbed(channelID, notifier.ReportEmbed(report), discordgo.WithContext(ctx))
	return classifyREST("post report", err)
}

func withReason(reason string) discordgo.RequestOption {
	return discordgo.WithAuditLogReason(reason)
}

// classifyREST wraps discordgo errors with the dispatcher's sentinels.
func classifyREST(action string, err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) {
		if restErr.Response != nil && restErr.Response.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%s: %w", action, ErrRateLimited)
		}
		if restErr.Message != nil && isStaleCode(restErr.Message.Code) {
			return fmt.Errorf("%s: %s: %w", action, restErr.Message.Message, ErrStaleReference)
		}
	}
	return fmt.Errorf("%s: %w", action, err)
}

var _ Platform = (*DiscordPlatform)(nil)
