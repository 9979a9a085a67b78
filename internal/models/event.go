package models

import (
	"time"
)

type Attachment struct {
	ID          string
	Filename    string
	ContentType string
	URL         string
}

// Embed carries only what the spam evaluator inspects.
type Embed struct {
	Type string
	URL  string
}

// MessageCreated is delivered for new messages and, with the original
// timestamp, for edits.
type MessageCreated struct {
	GuildID      string
	ChannelID    string
	MessageID    string
	AuthorID     string
	AuthorRoles  []string
	AuthorIsBot  bool
	Timestamp    time.Time
	Text         string
	Attachments  []Attachment
	Embeds       []Embed
	MentionedIDs []string
}

// MessageSnapshot is what the platform cache remembered about a deleted message.
type MessageSnapshot struct {
	ID          string
	ChannelID   string
	AuthorID    string
	AuthorName  string
	Text        string
	Timestamp   time.Time
	Attachments []Attachment
}

type MessageDeleted struct {
	GuildID   string
	ChannelID string
	MessageID string
	// Snapshot is nil when the message was not cached.
	Snapshot *MessageSnapshot
}

type MemberJoined struct {
	GuildID  string
	MemberID string
	JoinedAt time.Time
	Username string
}

// HasRole reports whether any of roles is present in set.
func HasRole(roles []string, set map[string]struct{}) bool {
	if len(set) == 0 {
		return false
	}
	for _, r := range roles {
		if _, ok := set[r]; ok {
			return true
		}
	}
	return false
}

// DistinctMentions returns mentioned ids without duplicates, preserving order.
func (m *MessageCreated) DistinctMentions() []string {
	seen := make(map[string]struct{}, len(m.MentionedIDs))
	out := make([]string, 0, len(m.MentionedIDs))
	for _, id := range m.MentionedIDs {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
