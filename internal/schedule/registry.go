package schedule

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"go-modguard/internal/models"
)

type PunishmentKey struct {
	GuildID  string
	MemberID string
	Kind     models.PunishmentKind
}

// RemovablePunishment is a scheduled reversal. Generation is unique per
// scheduling; a claim only succeeds for the generation currently stored.
type RemovablePunishment struct {
	ID         string
	Key        PunishmentKey
	Punishment models.Punishment
	DueAt      time.Time
	Generation uint64
}

// Registry holds at most one scheduled reversal per (guild, member, kind).
type Registry struct {
	entries *xsync.MapOf[PunishmentKey, RemovablePunishment]
	gen     atomic.Uint64
}

func NewRegistry() *Registry {
	return &Registry{entries: xsync.NewMapOf[PunishmentKey, RemovablePunishment]()}
}

// Schedule stores a reversal for p due at dueAt, superseding any entry for
// the same key. It returns the new entry and the superseded one, if any.
func (r *Registry) Schedule(guildID, memberID string, p models.Punishment, dueAt time.Time) (RemovablePunishment, *RemovablePunishment) {
	key := PunishmentKey{GuildID: guildID, MemberID: memberID, Kind: p.Kind}
	entry := RemovablePunishment{
		ID:         uuid.NewString(),
		Key:        key,
		Punishment: p,
		DueAt:      dueAt,
		Generation: r.gen.Add(1),
	}

	var superseded *RemovablePunishment
	r.entries.Compute(key, func(old RemovablePunishment, loaded bool) (RemovablePunishment, bool) {
		if loaded {
			prev := old
			superseded = &prev
		}
		return entry, false
	})
	return entry, superseded
}

func (r *Registry) Get(guildID, memberID string, kind models.PunishmentKind) (RemovablePunishment, bool) {
	return r.entries.Load(PunishmentKey{GuildID: guildID, MemberID: memberID, Kind: kind})
}

// Cancel removes the entry without reversing it.
func (r *Registry) Cancel(guildID, memberID string, kind models.PunishmentKind) bool {
	_, ok := r.entries.LoadAndDelete(PunishmentKey{GuildID: guildID, MemberID: memberID, Kind: kind})
	return ok
}

// CancelMember cancels the member's entries for each of kinds.
func (r *Registry) CancelMember(guildID, memberID string, kinds ...models.PunishmentKind) int {
	n := 0
	for _, kind := range kinds {
		if r.Cancel(guildID, memberID, kind) {
			n++
		}
	}
	return n
}

// Claim removes entry if it is still the current generation for its key.
// Only the caller that gets true may fire the reversal.
func (r *Registry) Claim(entry RemovablePunishment) bool {
	claimed := false
	r.entries.Compute(entry.Key, func(cur RemovablePunishment, loaded bool) (RemovablePunishment, bool) {
		if !loaded {
			return cur, true
		}
		if cur.Generation != entry.Generation {
			return cur, false
		}
		claimed = true
		return cur, true
	})
	return claimed
}

// TakeDue claims every entry whose due time is not after now.
func (r *Registry) TakeDue(now time.Time) []RemovablePunishment {
	var candidates []RemovablePunishment
	r.entries.Range(func(_ PunishmentKey, e RemovablePunishment) bool {
		if !e.DueAt.After(now) {
			candidates = append(candidates, e)
		}
		return true
	})

	due := candidates[:0]
	for _, e := range candidates {
		if r.Claim(e) {
			due = append(due, e)
		}
	}
	return due
}

func (r *Registry) Len() int {
	return r.entries.Size()
}
