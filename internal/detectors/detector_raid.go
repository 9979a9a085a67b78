package detectors

import (
	"time"

	"go-modguard/internal/config"
	"go-modguard/internal/logging"
	"go-modguard/internal/models"
	"go-modguard/internal/state"
)

// RaidVerdict is the raid decision for one join. RapidJoins is set when the
// rolling window crossed its threshold; JoinCount is the in-window count.
type RaidVerdict struct {
	models.Verdict
	RapidJoins bool
	JoinCount  int
}

type RaidEvaluator struct {
	trackers *state.Trackers
}

func NewRaidEvaluator(trackers *state.Trackers) *RaidEvaluator {
	return &RaidEvaluator{trackers: trackers}
}

// Evaluate runs the regular and rapid-joins rules for ev. When both fire the
// harsher punishment wins.
func (e *RaidEvaluator) Evaluate(cfg *config.GuildModeration, ev *models.MemberJoined, now time.Time) RaidVerdict {
	out := RaidVerdict{Verdict: models.Allow()}

	if rule, ok := cfg.RaidRule(config.RaidRegular); ok && rule.Enabled {
		out.punish(rule, "raid:regular")
	}

	if rule, ok := cfg.RaidRule(config.RaidRapidJoins); ok && rule.Enabled {
		if err := rule.Validate(); err != nil {
			logging.Warn("[RAID] Skipping invalid rapid-joins rule in guild %s: %v", cfg.GuildID, err)
			return out
		}
		joinedAt := ev.JoinedAt
		if joinedAt.IsZero() {
			joinedAt = now
		}
		out.JoinCount = e.trackers.AddRaidJoin(cfg.GuildID, config.RaidRapidJoins, joinedAt, now, rule.Window.Std())
		if out.JoinCount >= rule.Count {
			out.RapidJoins = true
			out.punish(rule, "raid:rapid_joins")
		}
	}
	return out
}

func (v *RaidVerdict) punish(rule config.RaidRule, name string) {
	if rule.Punishment == models.PunishNone {
		return
	}
	if v.Type == models.VerdictPunish && rule.Punishment.Severity() <= v.Punishment.Kind.Severity() {
		return
	}
	v.Type = models.VerdictPunish
	v.Rule = name
	v.Reason = "raid protection (" + rule.Type.String() + ")"
	v.Punishment = models.Punishment{Kind: rule.Punishment, Duration: rule.Duration.Std()}
}
