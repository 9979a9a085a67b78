package state

import (
	"sync"
	"time"

	"go-modguard/internal/config"
)

type RaidKey struct {
	GuildID string
	Type    config.RaidType
}

// RaidWindow holds join timestamps for one guild and raid type. A join is
// in the window iff now - joinedAt <= window.
type RaidWindow struct {
	mu     sync.Mutex
	dead   bool
	joins  []time.Time
	window time.Duration
}

// idle is called with w.mu held.
func (w *RaidWindow) idle(now time.Time) bool {
	return len(w.joins) == 0 || now.Sub(w.joins[len(w.joins)-1]) > w.window
}

// AddRaidJoin records joinedAt in the guild's window for rt, drops expired
// joins and returns the in-window count.
func (t *Trackers) AddRaidJoin(guildID string, rt config.RaidType, joinedAt, now time.Time, window time.Duration) int {
	key := RaidKey{GuildID: guildID, Type: rt}
	for {
		w, _ := t.raids.LoadOrCompute(key, func() *RaidWindow {
			return &RaidWindow{}
		})
		w.mu.Lock()
		if w.dead {
			w.mu.Unlock()
			continue
		}
		w.window = window
		w.joins = insertSorted(pruneBefore(w.joins, now, window), joinedAt)
		n := countInWindow(w.joins, now, window)
		w.mu.Unlock()
		return n
	}
}

func (t *Trackers) dropRaid(key RaidKey, force bool, now time.Time) {
	t.raids.Compute(key, func(w *RaidWindow, loaded bool) (*RaidWindow, bool) {
		if !loaded {
			return w, true
		}
		w.mu.Lock()
		defer w.mu.Unlock()
		if force || w.idle(now) {
			w.dead = true
			return w, true
		}
		return w, false
	})
}

// ClearGuild drops every tracker belonging to guildID, e.g. when the bot
// leaves the guild.
func (t *Trackers) ClearGuild(guildID string) {
	t.members.Range(func(key MemberKey, ms *memberState) bool {
		if key.GuildID != guildID {
			return true
		}
		t.members.Compute(key, func(old *memberState, loaded bool) (*memberState, bool) {
			if loaded {
				old.mu.Lock()
				old.dead = true
				old.mu.Unlock()
			}
			return old, true
		})
		return true
	})
	t.raids.Range(func(key RaidKey, _ *RaidWindow) bool {
		if key.GuildID == guildID {
			t.dropRaid(key, true, time.Time{})
		}
		return true
	})
}
