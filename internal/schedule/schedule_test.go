package schedule

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-modguard/internal/config"
	"go-modguard/internal/models"
	"go-modguard/internal/state"
)

type reversal struct {
	GuildID  string
	MemberID string
	P        models.Punishment
}

type recordingActions struct {
	mu        sync.Mutex
	reversals []reversal
	reports   []models.Report
	channels  []string
}

func (a *recordingActions) DeleteMessage(guildID, channelID, messageID, reason string) {}

func (a *recordingActions) ApplyPunishment(guildID, memberID string, p models.Punishment, reason string) {
}

func (a *recordingActions) ReversePunishment(guildID, memberID string, p models.Punishment) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reversals = append(a.reversals, reversal{guildID, memberID, p})
}

func (a *recordingActions) PostReport(guildID, channelID string, report models.Report) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reports = append(a.reports, report)
	a.channels = append(a.channels, channelID)
}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func mute(d time.Duration) models.Punishment {
	return models.Punishment{Kind: models.PunishRoleMute, Duration: d, RoleID: "muted"}
}

func TestRegistrySupersedeKeepsOneEntry(t *testing.T) {
	assert := assert.New(t)

	r := NewRegistry()
	now := time.Now()
	first, prev := r.Schedule("g", "m", mute(10*time.Minute), now.Add(10*time.Minute))
	assert.Nil(prev)

	second, prev := r.Schedule("g", "m", mute(5*time.Minute), now.Add(6*time.Minute))
	require.NotNil(t, prev)
	assert.Equal(first.Generation, prev.Generation)
	assert.Greater(second.Generation, first.Generation)
	assert.Equal(1, r.Len())

	// the superseded generation can never be claimed
	assert.False(r.Claim(first))
	assert.True(r.Claim(second))
	assert.False(r.Claim(second))
	assert.Zero(r.Len())
}

func TestRegistryKeysAreIndependent(t *testing.T) {
	r := NewRegistry()
	now := time.Now()
	r.Schedule("g", "m", mute(time.Minute), now)
	r.Schedule("g", "m", models.Punishment{Kind: models.PunishBan, Duration: time.Minute}, now)
	r.Schedule("g", "n", mute(time.Minute), now)
	r.Schedule("h", "m", mute(time.Minute), now)
	assert.Equal(t, 4, r.Len())

	assert.Equal(t, 1, r.CancelMember("g", "m", models.PunishRoleMute, models.PunishVoiceMute))
	_, ok := r.Get("g", "m", models.PunishBan)
	assert.True(t, ok)
	assert.Equal(t, 3, r.Len())
}

func TestRegistryTakeDue(t *testing.T) {
	r := NewRegistry()
	now := time.Now()
	r.Schedule("g", "a", mute(time.Minute), now.Add(-time.Second))
	r.Schedule("g", "b", mute(time.Minute), now)
	r.Schedule("g", "c", mute(time.Minute), now.Add(time.Second))

	due := r.TakeDue(now)
	var members []string
	for _, e := range due {
		members = append(members, e.Key.MemberID)
	}
	assert.ElementsMatch(t, []string{"a", "b"}, members)
	assert.Empty(t, r.TakeDue(now))
	assert.Equal(t, 1, r.Len())
}

func TestRegistryConcurrentClaimFiresOnce(t *testing.T) {
	r := NewRegistry()
	now := time.Now()
	for i := 0; i < 100; i++ {
		r.Schedule("g", fmt.Sprint(i), mute(time.Minute), now)
	}

	var fired atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fired.Add(int64(len(r.TakeDue(now))))
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 100, fired.Load())
}

func TestSupersededMuteNeverReverses(t *testing.T) {
	assert := assert.New(t)

	clk := &clock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	start := clk.Now()
	actions := &recordingActions{}
	reg := NewRegistry()
	trackers := state.NewTrackers()
	sweep := NewSweep(reg, NewDebouncer(time.Second), trackers, config.NewStore(), actions, SweepOptions{Now: clk.Now})

	reg.Schedule("g", "m", mute(10*time.Minute), clk.Now().Add(10*time.Minute))
	clk.Advance(time.Minute)
	reg.Schedule("g", "m", mute(5*time.Minute), clk.Now().Add(5*time.Minute))

	for clk.Now().Before(start.Add(15 * time.Minute)) {
		clk.Advance(2 * time.Second)
		stats := sweep.Tick()
		if stats.Reversals > 0 {
			assert.False(clk.Now().Before(start.Add(6*time.Minute)), "fired early at %s", clk.Now().Sub(start))
			assert.True(clk.Now().Before(start.Add(6*time.Minute+3*time.Second)), "fired late at %s", clk.Now().Sub(start))
		}
	}

	require.Len(t, actions.reversals, 1)
	assert.Equal(5*time.Minute, actions.reversals[0].P.Duration)
	assert.Equal("muted", actions.reversals[0].P.RoleID)
	assert.Zero(reg.Len())
}

func snapshot(id string, ts time.Time) *models.MessageSnapshot {
	return &models.MessageSnapshot{ID: id, AuthorID: "u", Text: "msg " + id, Timestamp: ts}
}

func TestDebouncerBurstFlushesOnceInOrder(t *testing.T) {
	assert := assert.New(t)

	quiet := 3 * time.Second
	d := NewDebouncer(quiet)
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	now := base

	// deletions arrive out of order relative to the messages' own timestamps
	ids := []int{4, 1, 3, 0, 2, 6, 5}
	for _, id := range ids {
		d.Add(models.MessageDeleted{
			GuildID:   "g",
			ChannelID: "c",
			Snapshot:  snapshot(fmt.Sprint(id), base.Add(-time.Hour+time.Duration(id)*time.Minute)),
		}, now)
		assert.Empty(d.TakeDue(now))
		now = now.Add(quiet - time.Millisecond)
		assert.Empty(d.TakeDue(now), "flushed before quiet period")
	}
	d.Add(models.MessageDeleted{GuildID: "g", ChannelID: "c"}, now)
	last := now

	assert.Empty(d.TakeDue(last.Add(quiet - time.Nanosecond)))
	due := d.TakeDue(last.Add(quiet))
	require.Len(t, due, 1)
	assert.Len(due[0].Messages, len(ids))
	assert.Equal(1, due[0].Uncached)
	assert.Equal(len(ids)+1, due[0].Size())
	for i, m := range due[0].Messages {
		assert.Equal(fmt.Sprint(i), m.ID)
	}
	assert.Zero(d.Len())
	assert.Empty(d.TakeDue(last.Add(time.Hour)))
}

func TestDebouncerChannelsAreIndependent(t *testing.T) {
	d := NewDebouncer(time.Second)
	now := time.Now()
	d.Add(models.MessageDeleted{GuildID: "g", ChannelID: "a", Snapshot: snapshot("1", now)}, now)
	d.Add(models.MessageDeleted{GuildID: "g", ChannelID: "b", Snapshot: snapshot("2", now)}, now.Add(500*time.Millisecond))

	due := d.TakeDue(now.Add(time.Second))
	require.Len(t, due, 1)
	assert.Equal(t, "a", due[0].Key.ChannelID)

	_, pending := d.Pending("g", "b")
	assert.True(t, pending)
}

func TestBatchReport(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	b := DeletionBatch{
		Key:      ChannelKey{GuildID: "g", ChannelID: "c"},
		Messages: []models.MessageSnapshot{*snapshot("1", now)},
		Uncached: 2,
		FirstAt:  now,
	}
	r := BatchReport(b, now)
	assert.Equal(t, models.ReportDeletedBatch, r.Kind)
	assert.Equal(t, "3 message(s) deleted", r.Title)
	assert.Contains(t, r.Text, "msg 1")
	assert.Contains(t, r.Text, "+2 message(s) not in cache")
	assert.NotEmpty(t, r.ID)
}

func TestSweepFlushesToReportChannelAndRefillsSlowmode(t *testing.T) {
	assert := assert.New(t)

	clk := &clock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	actions := &recordingActions{}
	configs := config.NewStore()
	_, err := configs.Update("g", func(g *config.GuildModeration) {
		g.ReportChannelID = "logs"
		g.Slowmode = config.SlowmodeRule{Enabled: true, Allowance: 2, Interval: config.Duration(10 * time.Second)}
	})
	require.NoError(t, err)

	trackers := state.NewTrackers()
	trackers.WithMember("g", "m", func(in *state.Infractions) {
		in.Slowmode = state.SlowmodeAllowance{Active: true, Remaining: 0, DueAt: clk.Now().Add(time.Second)}
	})

	deb := NewDebouncer(time.Second)
	deb.Add(models.MessageDeleted{GuildID: "g", ChannelID: "c", Snapshot: snapshot("1", clk.Now())}, clk.Now())
	deb.Add(models.MessageDeleted{GuildID: "other", ChannelID: "c"}, clk.Now())

	var beats int
	sweep := NewSweep(NewRegistry(), deb, trackers, configs, actions, SweepOptions{
		Now:       clk.Now,
		Heartbeat: func(time.Time) { beats++ },
	})

	clk.Advance(time.Second)
	stats := sweep.Tick()
	assert.Equal(2, stats.Flushes)
	assert.Equal(1, stats.Refills)
	assert.Equal(1, beats)
	require.Len(t, actions.reports, 1)
	assert.Equal("logs", actions.channels[0])

	trackers.PeekMember("g", "m", func(in *state.Infractions) {
		assert.Equal(2, in.Slowmode.Remaining)
	})
}
