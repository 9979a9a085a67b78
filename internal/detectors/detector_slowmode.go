package detectors

import (
	"time"

	"go-modguard/internal/config"
	"go-modguard/internal/models"
	"go-modguard/internal/state"
)

// SlowmodeLimiter gives each member an allowance of messages per interval.
type SlowmodeLimiter struct {
	trackers *state.Trackers
}

func NewSlowmodeLimiter(trackers *state.Trackers) *SlowmodeLimiter {
	return &SlowmodeLimiter{trackers: trackers}
}

// Evaluate spends one message of the author's allowance, or returns a
// delete verdict once the allowance is used up.
func (l *SlowmodeLimiter) Evaluate(cfg *config.GuildModeration, msg *models.MessageCreated, now time.Time) models.Verdict {
	rule := cfg.Slowmode
	if !rule.Enabled || rule.Validate() != nil || cfg.IsSlowmodeImmune(msg.AuthorRoles) {
		return models.Allow()
	}

	verdict := models.Allow()
	l.trackers.WithMember(msg.GuildID, msg.AuthorID, func(in *state.Infractions) {
		a := &in.Slowmode
		refill(a, rule, now)
		if !a.Active {
			*a = state.SlowmodeAllowance{
				Active:    true,
				Remaining: rule.Allowance,
				DueAt:     now.Add(rule.Interval.Std()),
			}
		}
		if a.Remaining == 0 {
			verdict = models.Verdict{
				Type:          models.VerdictInfract,
				Rule:          "slowmode",
				DeleteMessage: true,
				Reason:        "slowmode",
			}
			return
		}
		a.Remaining--
	})
	return verdict
}

// Sweep refills every due allowance. lookup returns the guild's current
// config; members of guilds with slowmode turned off are released.
func (l *SlowmodeLimiter) Sweep(now time.Time, lookup func(guildID string) (*config.GuildModeration, bool)) int {
	refilled := 0
	l.trackers.RangeMembers(func(key state.MemberKey, in *state.Infractions) {
		a := &in.Slowmode
		if !a.Active {
			return
		}
		cfg, ok := lookup(key.GuildID)
		if !ok || !cfg.Slowmode.Enabled || cfg.Slowmode.Validate() != nil {
			*a = state.SlowmodeAllowance{}
			return
		}
		if refill(a, cfg.Slowmode, now) {
			refilled++
		}
	})
	return refilled
}

// refill resets a due allowance. A used allowance goes back to base and its
// window moves forward by one interval; an untouched one is dropped.
func refill(a *state.SlowmodeAllowance, rule config.SlowmodeRule, now time.Time) bool {
	if !a.Active || now.Before(a.DueAt) {
		return false
	}
	if a.Remaining >= rule.Allowance {
		*a = state.SlowmodeAllowance{}
		return false
	}
	a.Remaining = rule.Allowance
	a.DueAt = now.Add(rule.Interval.Std())
	return true
}
