package bot

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"go-modguard/internal/config"
	"go-modguard/internal/logging"
)

const intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsGuildBans |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsMessageContent

type Session struct {
	discord *discordgo.Session
	BotID   string
}

// New creates the gateway session. The state cache keeps cfg.MessageCache
// messages per channel so deletions can be reported with their content.
func New(cfg config.BotConfig) (*Session, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("bot token is not set")
	}
	dg, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	dg.Identify.Intents = intents
	dg.State.MaxMessageCount = cfg.MessageCache
	dg.State.TrackPresences = false
	dg.State.TrackVoice = false

	return &Session{discord: dg}, nil
}

// Discord returns the underlying discordgo session.
func (s *Session) Discord() *discordgo.Session {
	return s.discord
}

// Run opens the gateway connection and keeps it open until ctx is done.
func (s *Session) Run(ctx context.Context) error {
	if err := s.discord.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}
	if u := s.discord.State.User; u != nil {
		s.BotID = u.ID
		logging.Info("[BOT] Connected as %s (%s)", u.Username, u.ID)
	}

	<-ctx.Done()
	logging.Info("[BOT] Closing gateway connection")
	return s.discord.Close()
}
