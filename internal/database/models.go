package database

// GuildDocument is a stored guild moderation configuration. Document holds
// the JSON encoding of config.GuildModeration. Revision grows with every
// save across all guilds.
type GuildDocument struct {
	GuildID   string
	Document  string
	Revision  int64
	CreatedAt int64
	UpdatedAt int64
}

// ActionLog is one row of the moderation log.
type ActionLog struct {
	ID         string
	GuildID    string
	MemberID   string
	Kind       string
	Reversal   bool
	DurationMS int64
	Reason     string
	Error      string
	CreatedAt  int64 // unix millis
}
