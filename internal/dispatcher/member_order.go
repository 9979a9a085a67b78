package dispatcher

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"go-modguard/internal/models"
)

type orderKey struct {
	GuildID  string
	MemberID string
	Kind     models.PunishmentKind
}

type orderState struct {
	mu      sync.Mutex
	applies uint64
	pending int
}

// memberOrder keeps apply and reverse jobs for one (guild, member, kind)
// consistent across workers and priority lanes. A reversal is skipped when
// an apply for the same key was submitted after it, and the platform calls
// for one key never overlap.
type memberOrder struct {
	keys *xsync.MapOf[orderKey, *orderState]
}

func newMemberOrder() *memberOrder {
	return &memberOrder{keys: xsync.NewMapOf[orderKey, *orderState]()}
}

func orderKeyOf(job *Job) (orderKey, bool) {
	if job.Type != JobApplyPunishment && job.Type != JobReversePunishment {
		return orderKey{}, false
	}
	return orderKey{GuildID: job.GuildID, MemberID: job.MemberID, Kind: job.Punishment.Kind}, true
}

// submit registers job before it is queued and stamps reversals with the
// apply count they were submitted after.
func (o *memberOrder) submit(job *Job) {
	key, ok := orderKeyOf(job)
	if !ok {
		return
	}
	o.keys.Compute(key, func(st *orderState, loaded bool) (*orderState, bool) {
		if !loaded {
			st = &orderState{}
		}
		st.pending++
		if job.Type == JobApplyPunishment {
			st.applies++
		}
		job.applySeq = st.applies
		return st, false
	})
}

// release drops job's registration once it has run or was never queued.
func (o *memberOrder) release(job *Job) {
	key, ok := orderKeyOf(job)
	if !ok {
		return
	}
	o.keys.Compute(key, func(st *orderState, loaded bool) (*orderState, bool) {
		if !loaded {
			return st, true
		}
		st.pending--
		return st, st.pending <= 0
	})
}

// run executes fn under the key's lock. It returns false without calling fn
// for a reversal that a later apply has superseded.
func (o *memberOrder) run(job *Job, fn func()) bool {
	key, ok := orderKeyOf(job)
	if !ok {
		fn()
		return true
	}
	st, ok := o.keys.Load(key)
	if !ok {
		fn()
		return true
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if job.Type == JobReversePunishment && o.applies(key) != job.applySeq {
		return false
	}
	fn()
	return true
}

func (o *memberOrder) applies(key orderKey) uint64 {
	var n uint64
	o.keys.Compute(key, func(st *orderState, loaded bool) (*orderState, bool) {
		if loaded {
			n = st.applies
		}
		return st, !loaded
	})
	return n
}
