package schedule

import (
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"go-modguard/internal/models"
)

const DefaultQuietPeriod = 3 * time.Second

type ChannelKey struct {
	GuildID   string
	ChannelID string
}

// DeletionBatch accumulates deletions for one channel until the channel has
// been quiet for the debouncer's quiet period.
type DeletionBatch struct {
	Key        ChannelKey
	Messages   []models.MessageSnapshot
	Uncached   int
	FirstAt    time.Time
	DueAt      time.Time
	Generation uint64
}

func (b DeletionBatch) Size() int {
	return len(b.Messages) + b.Uncached
}

type Debouncer struct {
	batches *xsync.MapOf[ChannelKey, DeletionBatch]
	quiet   time.Duration
	gen     atomic.Uint64
}

func NewDebouncer(quiet time.Duration) *Debouncer {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	return &Debouncer{
		batches: xsync.NewMapOf[ChannelKey, DeletionBatch](),
		quiet:   quiet,
	}
}

// Add appends the deletion to its channel's batch and pushes the flush back
// to now plus the quiet period. It returns the batch size after the append.
func (d *Debouncer) Add(ev models.MessageDeleted, now time.Time) int {
	key := ChannelKey{GuildID: ev.GuildID, ChannelID: ev.ChannelID}
	gen := d.gen.Add(1)

	updated, _ := d.batches.Compute(key, func(b DeletionBatch, loaded bool) (DeletionBatch, bool) {
		if !loaded {
			b = DeletionBatch{Key: key, FirstAt: now}
		}
		if ev.Snapshot != nil {
			b.Messages = append(slices.Clip(b.Messages), *ev.Snapshot)
		} else {
			b.Uncached++
		}
		b.DueAt = now.Add(d.quiet)
		b.Generation = gen
		return b, false
	})
	return updated.Size()
}

// TakeDue removes and returns every batch whose quiet period has elapsed,
// with messages in chronological order.
func (d *Debouncer) TakeDue(now time.Time) []DeletionBatch {
	var candidates []DeletionBatch
	d.batches.Range(func(_ ChannelKey, b DeletionBatch) bool {
		if !b.DueAt.After(now) {
			candidates = append(candidates, b)
		}
		return true
	})

	due := candidates[:0]
	for _, c := range candidates {
		var taken DeletionBatch
		claimed := false
		d.batches.Compute(c.Key, func(cur DeletionBatch, loaded bool) (DeletionBatch, bool) {
			if !loaded {
				return cur, true
			}
			if cur.Generation != c.Generation || cur.DueAt.After(now) {
				return cur, false
			}
			taken, claimed = cur, true
			return cur, true
		})
		if !claimed {
			continue
		}
		slices.SortStableFunc(taken.Messages, func(a, b models.MessageSnapshot) int {
			return a.Timestamp.Compare(b.Timestamp)
		})
		due = append(due, taken)
	}
	return due
}

func (d *Debouncer) Pending(guildID, channelID string) (DeletionBatch, bool) {
	return d.batches.Load(ChannelKey{GuildID: guildID, ChannelID: channelID})
}

func (d *Debouncer) Len() int {
	return d.batches.Size()
}

const maxBatchLine = 200

// BatchReport renders a flushed batch as one report.
func BatchReport(b DeletionBatch, now time.Time) models.Report {
	var sb strings.Builder
	for _, m := range b.Messages {
		text := m.Text
		if text == "" && len(m.Attachments) > 0 {
			text = fmt.Sprintf("[%d attachment(s)]", len(m.Attachments))
		}
		text = strings.ReplaceAll(text, "\n", " ")
		if r := []rune(text); len(r) > maxBatchLine {
			text = string(r[:maxBatchLine-1]) + "…"
		}
		author := m.AuthorName
		if author == "" {
			author = m.AuthorID
		}
		fmt.Fprintf(&sb, "`%s` **%s** (<@%s>): %s\n", m.Timestamp.UTC().Format("15:04:05"), author, m.AuthorID, text)
	}
	if b.Uncached > 0 {
		fmt.Fprintf(&sb, "*+%d message(s) not in cache*\n", b.Uncached)
	}

	return models.Report{
		ID:      uuid.NewString(),
		Kind:    models.ReportDeletedBatch,
		GuildID: b.Key.GuildID,
		Title:   fmt.Sprintf("%d message(s) deleted", b.Size()),
		Text:    sb.String(),
		Fields: []models.ReportField{
			{Name: "Channel", Value: "<#" + b.Key.ChannelID + ">", Inline: true},
			{Name: "First deletion", Value: fmt.Sprintf("<t:%d:T>", b.FirstAt.Unix()), Inline: true},
		},
		Timestamp: now,
	}
}
