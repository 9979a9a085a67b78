package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-modguard/internal/config"
	"go-modguard/internal/models"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "modguard.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleGuild(id string) *config.GuildModeration {
	g := config.DefaultGuildModeration(id)
	g.ReportChannelID = "logs"
	g.MuteRoleID = "muted"
	g.PrivilegedRoles = []string{"mods"}
	g.BannedPhrases = []config.BannedPhrase{{Pattern: "spam", Punishment: models.PunishRoleMute}}
	g.Tiers[models.PunishRoleMute] = []config.PunishmentTier{
		{Count: 2, Punishment: models.PunishRoleMute, Duration: config.Duration(10 * time.Minute)},
	}
	g.SpamRules = []config.SpamRule{{
		Type: config.SpamMention, Enabled: true, Threshold: 3, Count: 1,
		Window: config.Duration(10 * time.Second), Votes: 2, Punishment: models.PunishKick,
	}}
	return g
}

func TestGuildRoundTripThroughStore(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, db.SaveGuild(ctx, sampleGuild("g")))

	store := config.NewStore()
	n, err := NewConfigSync(db, store).Reload(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	g, ok := store.Lookup("g")
	require.True(t, ok)
	assert.Equal(t, "logs", g.ReportChannelID)
	assert.True(t, g.IsPrivileged([]string{"mods"}))
	require.Len(t, g.TiersFor(models.PunishRoleMute), 1)
	assert.Equal(t, 10*time.Minute, g.TiersFor(models.PunishRoleMute)[0].Duration.Std())
	rule, ok := g.SpamRule(config.SpamMention)
	require.True(t, ok)
	assert.Equal(t, models.PunishKick, rule.Punishment)
}

func TestSaveGuildRejectsInvalidConfig(t *testing.T) {
	db := openTestDB(t)
	g := sampleGuild("g")
	g.BannedPhrases = append(g.BannedPhrases, config.BannedPhrase{Pattern: "(", Regex: true})
	assert.Error(t, db.SaveGuild(context.Background(), g))

	_, err := db.LoadGuild(context.Background(), "g")
	assert.ErrorIs(t, err, ErrGuildNotFound)
}

func TestReloadSkipsUndecodableDocument(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, db.SaveGuild(ctx, sampleGuild("good")))
	_, err := db.db.ExecContext(ctx,
		`INSERT INTO guild_moderation (guild_id, document, revision, created_at, updated_at) VALUES ('bad', '{not json', 100, 0, 0)`)
	require.NoError(t, err)

	store := config.NewStore()
	n, err := NewConfigSync(db, store).Reload(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, ok := store.Lookup("bad")
	assert.False(t, ok)
}

func TestEnsureGuildStoresDefaults(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := config.NewStore()
	sync := NewConfigSync(db, store)

	require.NoError(t, sync.EnsureGuild(ctx, "g"))
	g, err := db.LoadGuild(ctx, "g")
	require.NoError(t, err)
	assert.True(t, g.Enabled)

	_, err = sync.Update(ctx, "g", func(g *config.GuildModeration) { g.ReportChannelID = "logs" })
	require.NoError(t, err)

	// an existing document is not overwritten
	require.NoError(t, sync.EnsureGuild(ctx, "g"))
	g, err = db.LoadGuild(ctx, "g")
	require.NoError(t, err)
	assert.Equal(t, "logs", g.ReportChannelID)
	assert.Equal(t, "logs", store.Get("g").ReportChannelID)
}

func TestModerationLog(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	for i, rec := range []models.ActionRecord{
		{ID: "1", GuildID: "g", MemberID: "a", Kind: models.PunishRoleMute, Duration: time.Minute, Reason: "spam"},
		{ID: "2", GuildID: "g", MemberID: "a", Kind: models.PunishRoleMute, Reversal: true},
		{ID: "3", GuildID: "h", MemberID: "b", Kind: models.PunishBan, Err: "forbidden"},
	} {
		rec.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, db.RecordAction(ctx, rec))
	}

	logs, err := db.RecentActions(ctx, "g", 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "2", logs[0].ID)
	assert.True(t, logs[0].Reversal)
	assert.Equal(t, "role_mute", logs[1].Kind)
	assert.EqualValues(t, 60000, logs[1].DurationMS)

	n, err := db.PruneActions(ctx, base.Add(90*time.Second))
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestPollPicksUpSavesFromAnotherHandle(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "modguard.db")
	running, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { running.Close() })
	require.NoError(t, running.SaveGuild(ctx, sampleGuild("g")))

	store := config.NewStore()
	sync := NewConfigSync(running, store)
	_, err = sync.Reload(ctx)
	require.NoError(t, err)

	n, err := sync.Poll(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "nothing changed since the reload")

	writer, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { writer.Close() })
	changed := sampleGuild("g")
	changed.ReportChannelID = "audit"
	require.NoError(t, writer.SaveGuild(ctx, changed))
	require.NoError(t, writer.SaveGuild(ctx, sampleGuild("h")))

	n, err = sync.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "audit", store.Get("g").ReportChannelID)
	_, ok := store.Lookup("h")
	assert.True(t, ok)

	n, err = sync.Poll(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRunAppliesChangesOnTick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	db := openTestDB(t)
	store := config.NewStore()
	sync := NewConfigSync(db, store)
	_, err := sync.Reload(ctx)
	require.NoError(t, err)

	ticks := make(chan struct{}, 16)
	done := make(chan error, 1)
	go func() {
		done <- sync.Run(ctx, 10*time.Millisecond, func() {
			select {
			case ticks <- struct{}{}:
			default:
			}
		})
	}()

	g := sampleGuild("g")
	g.MuteRoleID = "silenced"
	require.NoError(t, db.SaveGuild(ctx, g))

	assert.Eventually(t, func() bool {
		got, ok := store.Lookup("g")
		return ok && got.MuteRoleID == "silenced"
	}, 5*time.Second, 10*time.Millisecond)
	<-ticks

	cancel()
	require.NoError(t, <-done)
}
