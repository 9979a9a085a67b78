package bot

import (
	"github.com/bwmarrin/discordgo"

	"go-modguard/internal/models"
)

// messageEvent converts a gateway message. Partial updates without an
// author or guild are reported as not ok.
func messageEvent(m *discordgo.Message) (models.MessageCreated, bool) {
	if m == nil || m.Author == nil || m.GuildID == "" {
		return models.MessageCreated{}, false
	}
	ev := models.MessageCreated{
		GuildID:     m.GuildID,
		ChannelID:   m.ChannelID,
		MessageID:   m.ID,
		AuthorID:    m.Author.ID,
		AuthorIsBot: m.Author.Bot,
		Timestamp:   m.Timestamp,
		Text:        m.Content,
		Attachments: attachments(m.Attachments),
	}
	if m.Member != nil {
		ev.AuthorRoles = m.Member.Roles
	}
	for _, e := range m.Embeds {
		if e == nil {
			continue
		}
		ev.Embeds = append(ev.Embeds, models.Embed{Type: string(e.Type), URL: e.URL})
	}
	for _, u := range m.Mentions {
		if u != nil {
			ev.MentionedIDs = append(ev.MentionedIDs, u.ID)
		}
	}
	return ev, true
}

func attachments(in []*discordgo.MessageAttachment) []models.Attachment {
	if len(in) == 0 {
		return nil
	}
	out := make([]models.Attachment, 0, len(in))
	for _, a := range in {
		if a == nil {
			continue
		}
		out = append(out, models.Attachment{
			ID:          a.ID,
			Filename:    a.Filename,
			ContentType: a.ContentType,
			URL:         a.URL,
		})
	}
	return out
}

// deleteEvent converts a deletion. before is the cached copy of the message,
// nil when the cache did not hold it.
func deleteEvent(m *discordgo.Message, before *discordgo.Message) (models.MessageDeleted, bool) {
	if m == nil || m.GuildID == "" {
		return models.MessageDeleted{}, false
	}
	ev := models.MessageDeleted{
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		MessageID: m.ID,
	}
	if before != nil && before.Author != nil {
		ev.Snapshot = &models.MessageSnapshot{
			ID:          before.ID,
			ChannelID:   before.ChannelID,
			AuthorID:    before.Author.ID,
			AuthorName:  displayName(before.Author),
			Text:        before.Content,
			Timestamp:   before.Timestamp,
			Attachments: attachments(before.Attachments),
		}
	}
	return ev, true
}

func joinEvent(m *discordgo.Member) (models.MemberJoined, bool) {
	if m == nil || m.User == nil || m.GuildID == "" {
		return models.MemberJoined{}, false
	}
	return models.MemberJoined{
		GuildID:  m.GuildID,
		MemberID: m.User.ID,
		JoinedAt: m.JoinedAt,
		Username: displayName(m.User),
	}, true
}

func displayName(u *discordgo.User) string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}
