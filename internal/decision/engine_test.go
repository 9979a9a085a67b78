package decision

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-modguard/internal/config"
	"go-modguard/internal/models"
	"go-modguard/internal/schedule"
	"go-modguard/internal/state"
)

type applied struct {
	GuildID  string
	MemberID string
	P        models.Punishment
}

type recordingActions struct {
	mu       sync.Mutex
	deleted  []string
	applied  []applied
	reversed []applied
	reports  []models.Report
	channels []string
}

func (a *recordingActions) DeleteMessage(guildID, channelID, messageID, reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.deleted = append(a.deleted, messageID)
}

func (a *recordingActions) ApplyPunishment(guildID, memberID string, p models.Punishment, reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.applied = append(a.applied, applied{guildID, memberID, p})
}

func (a *recordingActions) ReversePunishment(guildID, memberID string, p models.Punishment) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reversed = append(a.reversed, applied{guildID, memberID, p})
}

func (a *recordingActions) PostReport(guildID, channelID string, report models.Report) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reports = append(a.reports, report)
	a.channels = append(a.channels, channelID)
}

func (a *recordingActions) reportsOf(kind models.ReportKind) []models.Report {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []models.Report
	for _, r := range a.reports {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	engine   *Engine
	actions  *recordingActions
	configs  *config.Store
	trackers *state.Trackers
	registry *schedule.Registry
	clk      *clock
}

func newFixture(t *testing.T, mutate func(*config.GuildModeration)) *fixture {
	t.Helper()
	clk := &clock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	configs := config.NewStore()
	_, err := configs.Update("g", func(g *config.GuildModeration) {
		g.ReportChannelID = "logs"
		g.MuteRoleID = "muted"
		if mutate != nil {
			mutate(g)
		}
	})
	require.NoError(t, err)

	f := &fixture{
		actions:  &recordingActions{},
		configs:  configs,
		trackers: state.NewTrackers(),
		registry: schedule.NewRegistry(),
		clk:      clk,
	}
	f.engine = NewEngine(configs, f.trackers, f.registry, schedule.NewDebouncer(time.Second), f.actions, Options{
		RegexCacheSize: 16,
		Now:            clk.Now,
	})
	return f
}

func (f *fixture) message(id, author, text string, mentions ...string) models.MessageCreated {
	return models.MessageCreated{
		GuildID:      "g",
		ChannelID:    "c",
		MessageID:    id,
		AuthorID:     author,
		Timestamp:    f.clk.Now(),
		Text:         text,
		MentionedIDs: mentions,
	}
}

func TestEscalate(t *testing.T) {
	tiers := []config.PunishmentTier{
		{Count: 2, Punishment: models.PunishRoleMute},
		{Count: 4, Punishment: models.PunishBan},
	}
	_, ok := Escalate(1, tiers)
	assert.False(t, ok)
	tier, ok := Escalate(4, tiers)
	require.True(t, ok)
	assert.Equal(t, models.PunishBan, tier.Punishment)
	_, ok = Escalate(5, tiers)
	assert.False(t, ok, "tiers match exactly, not at or above")
}

func TestBannedPhraseMutesAndResetsCounter(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t, func(g *config.GuildModeration) {
		g.BannedPhrases = []config.BannedPhrase{{Pattern: "spam", Punishment: models.PunishRoleMute}}
		g.Tiers[models.PunishRoleMute] = []config.PunishmentTier{{Count: 1, Punishment: models.PunishRoleMute}}
	})

	f.engine.OnMessageCreated(context.Background(), f.message("m1", "a", "this is spam"))

	assert.Equal([]string{"m1"}, f.actions.deleted)
	require.Len(t, f.actions.applied, 1)
	assert.Equal(models.PunishRoleMute, f.actions.applied[0].P.Kind)
	assert.Equal("muted", f.actions.applied[0].P.RoleID)
	assert.Len(f.actions.reportsOf(models.ReportPunishment), 1)

	f.trackers.PeekMember("g", "a", func(in *state.Infractions) {
		assert.Zero(in.PhraseCount(models.PunishRoleMute))
	})
	// permanent mute leaves nothing to reverse
	assert.Zero(f.registry.Len())
}

func TestBannedPhraseBelowTierOnlyDeletes(t *testing.T) {
	f := newFixture(t, func(g *config.GuildModeration) {
		g.BannedPhrases = []config.BannedPhrase{{Pattern: "spam", Punishment: models.PunishRoleMute}}
		g.Tiers[models.PunishRoleMute] = []config.PunishmentTier{
			{Count: 2, Punishment: models.PunishRoleMute, Duration: config.Duration(10 * time.Minute)},
		}
	})

	f.engine.OnMessageCreated(context.Background(), f.message("m1", "a", "spam"))
	assert.Len(t, f.actions.deleted, 1)
	assert.Empty(t, f.actions.applied)

	f.engine.OnMessageCreated(context.Background(), f.message("m2", "a", "SPAM again"))
	require.Len(t, f.actions.applied, 1)

	entry, ok := f.registry.Get("g", "a", models.PunishRoleMute)
	require.True(t, ok)
	assert.Equal(t, f.clk.Now().Add(10*time.Minute), entry.DueAt)
}

func TestRoleMuteWithoutMuteRoleIsSkipped(t *testing.T) {
	f := newFixture(t, func(g *config.GuildModeration) {
		g.BannedPhrases = []config.BannedPhrase{{Pattern: "spam", Punishment: models.PunishRoleMute}}
		g.Tiers[models.PunishRoleMute] = []config.PunishmentTier{{Count: 1, Punishment: models.PunishRoleMute}}
	})
	_, err := f.configs.Update("g", func(g *config.GuildModeration) { g.MuteRoleID = "" })
	require.NoError(t, err)

	f.engine.OnMessageCreated(context.Background(), f.message("m1", "a", "spam"))
	assert.Len(t, f.actions.deleted, 1)
	assert.Empty(t, f.actions.applied)
}

func TestSpamVotesKickMember(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t, func(g *config.GuildModeration) {
		g.SpamRules = []config.SpamRule{{
			Type:       config.SpamMention,
			Enabled:    true,
			Threshold:  3,
			Count:      1,
			Window:     config.Duration(10 * time.Second),
			Votes:      2,
			Punishment: models.PunishKick,
		}}
	})
	ctx := context.Background()

	f.engine.OnMessageCreated(ctx, f.message("m1", "a", "hi", "u1", "u2", "u3", "u4", "u5"))
	assert.Equal([]string{"m1"}, f.actions.deleted)
	notices := f.actions.reportsOf(models.ReportVotesNeeded)
	require.Len(t, notices, 1)
	assert.Contains(notices[0].Text, "2 more vote(s)")
	assert.Equal("c", f.actions.channels[0])

	f.clk.Advance(time.Second)
	f.engine.OnMessageCreated(ctx, f.message("m2", "b", "<@a> spams", "a"))
	assert.Empty(f.actions.applied)

	// a repeat vote from the same member does not count
	f.engine.OnMessageCreated(ctx, f.message("m3", "b", "<@a> again", "a"))
	assert.Empty(f.actions.applied)

	f.clk.Advance(time.Second)
	f.engine.OnMessageCreated(ctx, f.message("m4", "c", "<@a> yes", "a"))
	require.Len(t, f.actions.applied, 1)
	assert.Equal("a", f.actions.applied[0].MemberID)
	assert.Equal(models.PunishKick, f.actions.applied[0].P.Kind)

	f.trackers.PeekMember("g", "a", func(in *state.Infractions) {
		assert.False(in.Votes.Punishable)
		assert.Zero(in.Votes.Count())
		assert.True(in.Votes.AlreadyKicked)
		assert.Zero(in.SpamCount(config.SpamMention, f.clk.Now(), 10*time.Second))
	})
	assert.Equal([]string{"m1"}, f.actions.deleted, "vote messages are not spam")
}

func TestSpamWithoutVotesPunishesImmediately(t *testing.T) {
	f := newFixture(t, func(g *config.GuildModeration) {
		g.SpamRules = []config.SpamRule{{
			Type:       config.SpamMessage,
			Enabled:    true,
			Count:      3,
			Window:     config.Duration(5 * time.Second),
			Punishment: models.PunishVoiceMute,
			Duration:   config.Duration(time.Minute),
		}}
	})
	ctx := context.Background()
	for i, id := range []string{"m1", "m2", "m3"} {
		f.clk.Advance(time.Duration(i) * time.Second)
		f.engine.OnMessageCreated(ctx, f.message(id, "a", "hello"))
	}

	require.Len(t, f.actions.applied, 1)
	assert.Equal(t, models.PunishVoiceMute, f.actions.applied[0].P.Kind)
	assert.Empty(t, f.actions.reportsOf(models.ReportVotesNeeded))
	_, ok := f.registry.Get("g", "a", models.PunishVoiceMute)
	assert.True(t, ok)
}

func TestBotsAndDisabledGuildsAreIgnored(t *testing.T) {
	f := newFixture(t, func(g *config.GuildModeration) {
		g.BannedPhrases = []config.BannedPhrase{{Pattern: "spam", Punishment: models.PunishKick}}
	})
	msg := f.message("m1", "bot", "spam")
	msg.AuthorIsBot = true
	f.engine.OnMessageCreated(context.Background(), msg)
	assert.Empty(t, f.actions.deleted)

	_, err := f.configs.Update("g", func(g *config.GuildModeration) { g.Enabled = false })
	require.NoError(t, err)
	f.engine.OnMessageCreated(context.Background(), f.message("m2", "a", "spam"))
	assert.Empty(t, f.actions.deleted)
}

func TestPermanentPunishmentCancelsPendingReversal(t *testing.T) {
	f := newFixture(t, nil)
	cfg := f.configs.Get("g")
	now := f.clk.Now()

	f.engine.punish(cfg, PunishmentRequest{
		GuildID: "g", MemberID: "a",
		Punishment: models.Punishment{Kind: models.PunishBan, Duration: time.Hour},
	}, now)
	_, ok := f.registry.Get("g", "a", models.PunishBan)
	require.True(t, ok)

	f.engine.punish(cfg, PunishmentRequest{
		GuildID: "g", MemberID: "a",
		Punishment: models.Punishment{Kind: models.PunishBan},
	}, now)
	_, ok = f.registry.Get("g", "a", models.PunishBan)
	assert.False(t, ok)
	assert.Len(t, f.actions.applied, 2)
}

func TestRapidJoinsReportedOnce(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t, func(g *config.GuildModeration) {
		g.RaidRules = []config.RaidRule{{
			Type:       config.RaidRapidJoins,
			Enabled:    true,
			Count:      3,
			Window:     config.Duration(10 * time.Second),
			Punishment: models.PunishKick,
		}}
	})
	ctx := context.Background()
	for _, id := range []string{"j1", "j2", "j3", "j4", "j5"} {
		f.engine.OnMemberJoined(ctx, models.MemberJoined{GuildID: "g", MemberID: id, JoinedAt: f.clk.Now(), Username: id})
		f.clk.Advance(time.Second)
	}

	assert.Len(f.actions.applied, 3)
	raids := f.actions.reportsOf(models.ReportRaid)
	require.Len(t, raids, 1)
	assert.Empty(f.actions.reportsOf(models.ReportPunishment))
}

func TestMemberLeftCancelsMutesButNotBans(t *testing.T) {
	f := newFixture(t, nil)
	now := f.clk.Now()
	f.registry.Schedule("g", "a", models.Punishment{Kind: models.PunishRoleMute, Duration: time.Minute, RoleID: "muted"}, now.Add(time.Minute))
	f.registry.Schedule("g", "a", models.Punishment{Kind: models.PunishBan, Duration: time.Hour}, now.Add(time.Hour))

	f.engine.OnMemberLeft(context.Background(), "g", "a")
	_, muted := f.registry.Get("g", "a", models.PunishRoleMute)
	_, banned := f.registry.Get("g", "a", models.PunishBan)
	assert.False(t, muted)
	assert.True(t, banned)

	f.engine.OnMemberUnbanned(context.Background(), "g", "a")
	assert.Zero(t, f.registry.Len())
}

func TestDeletionsBatchIntoReportChannel(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.engine.OnMessageDeleted(ctx, models.MessageDeleted{GuildID: "g", ChannelID: "c", MessageID: "1"})
	f.engine.OnMessageDeleted(ctx, models.MessageDeleted{GuildID: "g", ChannelID: "logs", MessageID: "2"})

	pending, ok := f.engine.debouncer.Pending("g", "c")
	require.True(t, ok)
	assert.Equal(t, 1, pending.Size())
	_, ok = f.engine.debouncer.Pending("g", "logs")
	assert.False(t, ok, "deletions in the report channel itself are not reported")
}

func TestCooldownManager(t *testing.T) {
	cm := NewCooldownManager(time.Minute)
	now := time.Now()
	assert.True(t, cm.TryExecute("g", models.ReportRaid, now))
	assert.False(t, cm.TryExecute("g", models.ReportRaid, now.Add(30*time.Second)))
	assert.True(t, cm.TryExecute("h", models.ReportRaid, now))
	assert.Equal(t, 30*time.Second, cm.GetRemainingCooldown("g", models.ReportRaid, now.Add(30*time.Second)))
	cm.Reset("g")
	assert.Zero(t, cm.GetRemainingCooldown("g", models.ReportRaid, now))
	assert.True(t, cm.TryExecute("g", models.ReportRaid, now))
}

func TestEditIntroducingBannedPhraseIsDeletedAndCounted(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t, func(g *config.GuildModeration) {
		g.BannedPhrases = []config.BannedPhrase{{Pattern: "spam", Punishment: models.PunishRoleMute}}
		g.Tiers[models.PunishRoleMute] = []config.PunishmentTier{
			{Count: 2, Punishment: models.PunishRoleMute, Duration: config.Duration(10 * time.Minute)},
		}
		g.Slowmode = config.SlowmodeRule{Enabled: true, Allowance: 3, Interval: config.Duration(time.Minute)}
	})
	ctx := context.Background()

	m1 := f.message("m1", "a", "hello")
	f.engine.OnMessageCreated(ctx, m1)
	m2 := f.message("m2", "a", "hi")
	f.engine.OnMessageCreated(ctx, m2)
	assert.Empty(f.actions.deleted)

	f.clk.Advance(5 * time.Second)
	m1.Text = "buy spam now"
	f.engine.OnMessageEdited(ctx, m1)
	assert.Equal([]string{"m1"}, f.actions.deleted)
	assert.Empty(f.actions.applied)
	f.trackers.PeekMember("g", "a", func(in *state.Infractions) {
		assert.Equal(1, in.PhraseCount(models.PunishRoleMute))
	})

	// edits do not spend slowmode allowance
	f.engine.OnMessageCreated(ctx, f.message("m3", "a", "ok"))
	assert.Equal([]string{"m1"}, f.actions.deleted)

	m2.Text = "more spam"
	f.engine.OnMessageEdited(ctx, m2)
	assert.Equal([]string{"m1", "m2"}, f.actions.deleted)
	require.Len(t, f.actions.applied, 1)
	assert.Equal(models.PunishRoleMute, f.actions.applied[0].P.Kind)
}

func TestEditOfCountedSpamMessageIsNotCountedTwice(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t, func(g *config.GuildModeration) {
		g.SpamRules = []config.SpamRule{{
			Type:       config.SpamMention,
			Enabled:    true,
			Threshold:  3,
			Count:      2,
			Window:     config.Duration(10 * time.Second),
			Punishment: models.PunishKick,
		}}
	})
	ctx := context.Background()
	window := 10 * time.Second

	m1 := f.message("m1", "a", "hi", "u1", "u2", "u3")
	f.engine.OnMessageCreated(ctx, m1)
	assert.Equal([]string{"m1"}, f.actions.deleted)

	f.clk.Advance(time.Second)
	m1.Text = "hi all"
	f.engine.OnMessageEdited(ctx, m1)
	assert.Empty(f.actions.applied)
	f.trackers.PeekMember("g", "a", func(in *state.Infractions) {
		assert.Equal(1, in.SpamCount(config.SpamMention, f.clk.Now(), window))
	})

	f.clk.Advance(time.Second)
	f.engine.OnMessageCreated(ctx, f.message("m2", "a", "hey", "u1", "u2", "u3"))
	require.Len(t, f.actions.applied, 1)
	assert.Equal(models.PunishKick, f.actions.applied[0].P.Kind)
}
