package state

import (
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"go-modguard/internal/config"
	"go-modguard/internal/models"
)

type MemberKey struct {
	GuildID  string
	MemberID string
}

// SpamVotes is the vote state for a member flagged by the spam evaluator.
type SpamVotes struct {
	Punishable bool
	Voters     map[string]struct{}
	Required   int
	Severity   models.PunishmentKind
	Duration   time.Duration
	// AlreadyKicked survives Reset so a kick tier escalates instead of
	// kicking the same member twice.
	AlreadyKicked bool
}

// Flag marks the member punishable, keeping the lowest vote requirement and
// the harshest punishment seen across triggering rules.
func (v *SpamVotes) Flag(required int, kind models.PunishmentKind, d time.Duration) {
	if required < 0 {
		required = 0
	}
	if !v.Punishable {
		v.Punishable = true
		v.Required = required
		v.Severity = kind
		v.Duration = d
		return
	}
	if required < v.Required {
		v.Required = required
	}
	if kind.Severity() > v.Severity.Severity() {
		v.Severity = kind
		v.Duration = d
	} else if kind == v.Severity && d > v.Duration {
		v.Duration = d
	}
}

// AddVote records voterID once and returns whether it was new.
func (v *SpamVotes) AddVote(voterID string) bool {
	if v.Voters == nil {
		v.Voters = make(map[string]struct{})
	}
	if _, ok := v.Voters[voterID]; ok {
		return false
	}
	v.Voters[voterID] = struct{}{}
	return true
}

func (v *SpamVotes) Count() int {
	return len(v.Voters)
}

func (v *SpamVotes) Remaining() int {
	r := v.Required - len(v.Voters)
	if r < 0 {
		return 0
	}
	return r
}

func (v *SpamVotes) Reset() {
	kicked := v.AlreadyKicked
	*v = SpamVotes{AlreadyKicked: kicked}
}

// SlowmodeAllowance tracks how many messages a member may still send in
// the current window.
type SlowmodeAllowance struct {
	Active    bool
	Remaining int
	DueAt     time.Time
}

// Infractions is everything tracked for one member in one guild. It is only
// reachable through Trackers.WithMember, which serialises access per member.
type Infractions struct {
	PhraseCounts map[models.PunishmentKind]int
	SpamHits     map[config.SpamType][]time.Time
	Votes        SpamVotes
	Slowmode     SlowmodeAllowance
}

func (in *Infractions) IncrementPhrase(kind models.PunishmentKind) int {
	if in.PhraseCounts == nil {
		in.PhraseCounts = make(map[models.PunishmentKind]int)
	}
	in.PhraseCounts[kind]++
	return in.PhraseCounts[kind]
}

func (in *Infractions) PhraseCount(kind models.PunishmentKind) int {
	return in.PhraseCounts[kind]
}

func (in *Infractions) ResetPhrase(kind models.PunishmentKind) {
	delete(in.PhraseCounts, kind)
}

// AddSpamHit records ts for t unless that exact timestamp is already present
// (a re-delivered or edited message) and returns the in-window count.
func (in *Infractions) AddSpamHit(t config.SpamType, ts time.Time, window time.Duration) (int, bool) {
	if in.SpamHits == nil {
		in.SpamHits = make(map[config.SpamType][]time.Time)
	}
	hits := pruneBefore(in.SpamHits[t], ts, window)
	added := true
	for _, h := range hits {
		if h.Equal(ts) {
			added = false
			break
		}
	}
	if added {
		hits = insertSorted(hits, ts)
	}
	in.SpamHits[t] = hits
	return countInWindow(hits, ts, window), added
}

func (in *Infractions) SpamCount(t config.SpamType, now time.Time, window time.Duration) int {
	return countInWindow(in.SpamHits[t], now, window)
}

// ResetSpam clears spam windows and votes, keeping the sticky kick flag.
func (in *Infractions) ResetSpam() {
	in.SpamHits = nil
	in.Votes.Reset()
}

func (in *Infractions) empty() bool {
	for _, c := range in.PhraseCounts {
		if c != 0 {
			return false
		}
	}
	for _, hits := range in.SpamHits {
		if len(hits) > 0 {
			return false
		}
	}
	return !in.Votes.Punishable && !in.Votes.AlreadyKicked && !in.Slowmode.Active
}

type memberState struct {
	mu   sync.Mutex
	dead bool
	data Infractions
}

// Trackers owns all per-member and per-guild counters. Each member has its
// own lock; unrelated members never contend.
type Trackers struct {
	members *xsync.MapOf[MemberKey, *memberState]
	raids   *xsync.MapOf[RaidKey, *RaidWindow]
}

func NewTrackers() *Trackers {
	return &Trackers{
		members: xsync.NewMapOf[MemberKey, *memberState](),
		raids:   xsync.NewMapOf[RaidKey, *RaidWindow](),
	}
}

// WithMember runs fn with exclusive access to the member's infractions,
// creating them on first use. fn must not call back into Trackers.
func (t *Trackers) WithMember(guildID, memberID string, fn func(*Infractions)) {
	key := MemberKey{GuildID: guildID, MemberID: memberID}
	for {
		ms, _ := t.members.LoadOrCompute(key, func() *memberState {
			return &memberState{}
		})
		ms.mu.Lock()
		if ms.dead {
			// pruned between load and lock; retry with a fresh entry
			ms.mu.Unlock()
			continue
		}
		fn(&ms.data)
		ms.mu.Unlock()
		return
	}
}

// PeekMember runs fn only if the member already has state.
func (t *Trackers) PeekMember(guildID, memberID string, fn func(*Infractions)) bool {
	ms, ok := t.members.Load(MemberKey{GuildID: guildID, MemberID: memberID})
	if !ok {
		return false
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.dead {
		return false
	}
	fn(&ms.data)
	return true
}

// RangeMembers visits every member with exclusive access, one at a time.
func (t *Trackers) RangeMembers(fn func(key MemberKey, in *Infractions)) {
	t.members.Range(func(key MemberKey, ms *memberState) bool {
		ms.mu.Lock()
		if !ms.dead {
			fn(key, &ms.data)
		}
		ms.mu.Unlock()
		return true
	})
}

// Prune drops members whose state has returned to zero and expired raid
// windows. It returns the number of member entries removed.
func (t *Trackers) Prune(now time.Time) int {
	removed := 0
	t.members.Range(func(key MemberKey, _ *memberState) bool {
		t.members.Compute(key, func(ms *memberState, loaded bool) (*memberState, bool) {
			if !loaded {
				return ms, true
			}
			ms.mu.Lock()
			defer ms.mu.Unlock()
			if ms.data.empty() {
				ms.dead = true
				removed++
				return ms, true
			}
			return ms, false
		})
		return true
	})
	t.raids.Range(func(key RaidKey, _ *RaidWindow) bool {
		t.dropRaid(key, false, now)
		return true
	})
	return removed
}

func (t *Trackers) MemberCount() int {
	return t.members.Size()
}

func pruneBefore(hits []time.Time, now time.Time, window time.Duration) []time.Time {
	i := 0
	for i < len(hits) && now.Sub(hits[i]) > window {
		i++
	}
	if i == 0 {
		return hits
	}
	return append(hits[:0:0], hits[i:]...)
}

func countInWindow(hits []time.Time, now time.Time, window time.Duration) int {
	n := 0
	for _, h := range hits {
		if now.Sub(h) <= window {
			n++
		}
	}
	return n
}

func insertSorted(hits []time.Time, ts time.Time) []time.Time {
	i := len(hits)
	for i > 0 && hits[i-1].After(ts) {
		i--
	}
	hits = append(hits, time.Time{})
	copy(hits[i+1:], hits[i:])
	hits[i] = ts
	return hits
}
