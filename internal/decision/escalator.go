package decision

import (
	"go-modguard/internal/config"
	"go-modguard/internal/models"
	"go-modguard/internal/state"
)

// Escalate returns the first tier whose count equals count exactly.
func Escalate(count int, tiers []config.PunishmentTier) (config.PunishmentTier, bool) {
	for _, t := range tiers {
		if t.Count == count {
			return t, true
		}
	}
	return config.PunishmentTier{}, false
}

// Escalator feeds banned-phrase matches into the member's tier counters.
type Escalator struct {
	trackers *state.Trackers
}

func NewEscalator(trackers *state.Trackers) *Escalator {
	return &Escalator{trackers: trackers}
}

// Record counts one match fed into kind's counter. When a tier exists for
// the new count the counter resets and the tier's punishment is returned.
func (e *Escalator) Record(cfg *config.GuildModeration, memberID string, kind models.PunishmentKind) (models.Punishment, int, bool) {
	var (
		count int
		tier  config.PunishmentTier
		fired bool
	)
	e.trackers.WithMember(cfg.GuildID, memberID, func(in *state.Infractions) {
		count = in.IncrementPhrase(kind)
		tier, fired = Escalate(count, cfg.TiersFor(kind))
		if fired {
			in.ResetPhrase(kind)
		}
	})
	if !fired {
		return models.Punishment{}, count, false
	}
	return models.Punishment{Kind: tier.Punishment, Duration: tier.Duration.Std()}, count, true
}
