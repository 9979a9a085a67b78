package bot

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"go-modguard/internal/logging"
	"go-modguard/internal/models"
)

// Handler receives translated gateway events.
type Handler interface {
	OnMessageCreated(ctx context.Context, msg models.MessageCreated)
	OnMessageEdited(ctx context.Context, msg models.MessageCreated)
	OnMessageDeleted(ctx context.Context, ev models.MessageDeleted)
	OnMemberJoined(ctx context.Context, ev models.MemberJoined)
	OnMemberLeft(ctx context.Context, guildID, memberID string)
	OnMemberUnbanned(ctx context.Context, guildID, memberID string)
	OnGuildRemoved(ctx context.Context, guildID string)
}

// GuildSyncer makes sure a stored configuration exists for a guild.
type GuildSyncer interface {
	EnsureGuild(ctx context.Context, guildID string) error
}

// SetupEventHandlers registers the gateway handlers. ctx is passed to every
// handler call and should live as long as the session.
func (s *Session) SetupEventHandlers(ctx context.Context, h Handler, syncer GuildSyncer) {
	logging.Info("[BOT] Setting up Discord event handlers...")

	s.discord.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		logging.Info("[BOT] Ready as %s in %d guild(s)", r.User.Username, len(r.Guilds))
	})

	s.discord.AddHandler(func(_ *discordgo.Session, g *discordgo.GuildCreate) {
		if syncer == nil || g.Guild == nil {
			return
		}
		if err := syncer.EnsureGuild(ctx, g.ID); err != nil {
			logging.Warn("[BOT] Failed to ensure config for guild %s: %v", g.ID, err)
		}
	})

	s.discord.AddHandler(func(_ *discordgo.Session, g *discordgo.GuildDelete) {
		// unavailable guilds are outages, not removals
		if g.Guild == nil || g.Unavailable {
			return
		}
		logging.Info("[BOT] Removed from guild %s, clearing tracked state", g.ID)
		h.OnGuildRemoved(ctx, g.ID)
	})

	s.discord.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		if ev, ok := messageEvent(m.Message); ok {
			h.OnMessageCreated(ctx, ev)
		}
	})

	s.discord.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageUpdate) {
		// embed-only updates carry no content change
		if m.BeforeUpdate != nil && m.Message != nil && m.BeforeUpdate.Content == m.Content {
			return
		}
		if ev, ok := messageEvent(m.Message); ok {
			h.OnMessageEdited(ctx, ev)
		}
	})

	s.discord.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageDelete) {
		if ev, ok := deleteEvent(m.Message, m.BeforeDelete); ok {
			h.OnMessageDeleted(ctx, ev)
		}
	})

	s.discord.AddHandler(func(_ *discordgo.Session, m *discordgo.GuildMemberAdd) {
		if ev, ok := joinEvent(m.Member); ok {
			h.OnMemberJoined(ctx, ev)
		}
	})

	s.discord.AddHandler(func(_ *discordgo.Session, m *discordgo.GuildMemberRemove) {
		if m.Member == nil || m.User == nil || m.GuildID == "" {
			return
		}
		h.OnMemberLeft(ctx, m.GuildID, m.User.ID)
	})

	s.discord.AddHandler(func(_ *discordgo.Session, b *discordgo.GuildBanRemove) {
		if b.GuildID == "" || b.User == nil {
			return
		}
		h.OnMemberUnbanned(ctx, b.GuildID, b.User.ID)
	})
}
