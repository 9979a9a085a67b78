package config

import (
	"errors"
	"regexp"
	"slices"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"go-modguard/internal/models"
)

// GuildModeration is an immutable snapshot of a guild's moderation settings.
// Writers go through Store.Update, which publishes a fresh copy.
type GuildModeration struct {
	GuildID         string                                     `json:"guild_id"`
	Enabled         bool                                       `json:"enabled"`
	ReportChannelID string                                     `json:"report_channel_id"`
	MuteRoleID      string                                     `json:"mute_role_id"`
	PrivilegedRoles []string                                   `json:"privileged_roles"`
	BannedPhrases   []BannedPhrase                             `json:"banned_phrases"`
	Tiers           map[models.PunishmentKind][]PunishmentTier `json:"tiers"`
	SpamRules       []SpamRule                                 `json:"spam_rules"`
	RaidRules       []RaidRule                                 `json:"raid_rules"`
	Slowmode        SlowmodeRule                               `json:"slowmode"`

	privileged map[string]struct{}
	immune     map[string]struct{}
	folded     []foldedPhrase
}

type foldedPhrase struct {
	pattern string
	folded  string
}

func DefaultGuildModeration(guildID string) *GuildModeration {
	g := &GuildModeration{
		GuildID: guildID,
		Enabled: true,
		Tiers:   make(map[models.PunishmentKind][]PunishmentTier),
	}
	g.index()
	return g
}

func (g *GuildModeration) index() {
	g.privileged = toSet(g.PrivilegedRoles)
	g.immune = toSet(g.Slowmode.ImmuneRoles)
	g.folded = make([]foldedPhrase, len(g.BannedPhrases))
	for i, p := range g.BannedPhrases {
		if !p.Regex {
			g.folded[i] = foldedPhrase{pattern: p.Pattern, folded: Fold(p.Pattern)}
		}
	}
}

// Fold normalises and case-folds s for substring comparison. Casers are not
// safe for concurrent use, so one is built per call.
func Fold(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

// FoldedPattern returns the folded pattern of the i-th exact banned phrase.
func (g *GuildModeration) FoldedPattern(i int) string {
	pattern := g.BannedPhrases[i].Pattern
	if i < len(g.folded) && g.folded[i].pattern == pattern {
		return g.folded[i].folded
	}
	return Fold(pattern)
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func (g *GuildModeration) IsPrivileged(roles []string) bool {
	return models.HasRole(roles, g.privileged)
}

func (g *GuildModeration) IsSlowmodeImmune(roles []string) bool {
	return models.HasRole(roles, g.immune)
}

func (g *GuildModeration) Clone() *GuildModeration {
	c := *g
	c.PrivilegedRoles = slices.Clone(g.PrivilegedRoles)
	c.BannedPhrases = slices.Clone(g.BannedPhrases)
	c.SpamRules = slices.Clone(g.SpamRules)
	c.RaidRules = slices.Clone(g.RaidRules)
	c.Slowmode.ImmuneRoles = slices.Clone(g.Slowmode.ImmuneRoles)
	c.Tiers = make(map[models.PunishmentKind][]PunishmentTier, len(g.Tiers))
	for k, v := range g.Tiers {
		c.Tiers[k] = slices.Clone(v)
	}
	c.index()
	return &c
}

// Validate reports configuration inconsistencies. Configuration writers call
// it before publishing; evaluators still skip bad rules on their own.
func (g *GuildModeration) Validate() error {
	var errs []error
	for _, p := range g.BannedPhrases {
		if p.Pattern == "" {
			errs = append(errs, errors.New("banned phrase: empty pattern"))
			continue
		}
		if p.Regex {
			if _, err := regexp.Compile(p.Pattern); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if err := validateTiers(g.Tiers); err != nil {
		errs = append(errs, err)
	}
	for _, r := range g.SpamRules {
		if err := r.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, r := range g.RaidRules {
		if err := r.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := g.Slowmode.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// TiersFor returns the tier table fed by kind.
func (g *GuildModeration) TiersFor(kind models.PunishmentKind) []PunishmentTier {
	return g.Tiers[kind]
}

// SpamRule returns the rule configured for t, if any.
func (g *GuildModeration) SpamRule(t SpamType) (SpamRule, bool) {
	for _, r := range g.SpamRules {
		if r.Type == t {
			return r, true
		}
	}
	return SpamRule{}, false
}

func (g *GuildModeration) RaidRule(t RaidType) (RaidRule, bool) {
	for _, r := range g.RaidRules {
		if r.Type == t {
			return r, true
		}
	}
	return RaidRule{}, false
}

// Store holds one published snapshot per guild.
type Store struct {
	profiles *xsync.MapOf[string, *GuildModeration]
}

func NewStore() *Store {
	return &Store{profiles: xsync.NewMapOf[string, *GuildModeration]()}
}

// Get returns the current snapshot, creating defaults on first use.
func (s *Store) Get(guildID string) *GuildModeration {
	profile, _ := s.profiles.LoadOrCompute(guildID, func() *GuildModeration {
		return DefaultGuildModeration(guildID)
	})
	return profile
}

func (s *Store) Lookup(guildID string) (*GuildModeration, bool) {
	return s.profiles.Load(guildID)
}

// Set publishes profile as the guild's snapshot after validation.
func (s *Store) Set(profile *GuildModeration) error {
	if err := profile.Validate(); err != nil {
		return err
	}
	c := profile.Clone()
	s.profiles.Store(c.GuildID, c)
	return nil
}

// Update applies mutate to a copy of the current snapshot and publishes it.
// The previous snapshot stays in place when mutate produces an invalid config.
func (s *Store) Update(guildID string, mutate func(*GuildModeration)) (*GuildModeration, error) {
	var verr error
	updated, _ := s.profiles.Compute(guildID, func(old *GuildModeration, loaded bool) (*GuildModeration, bool) {
		if !loaded {
			old = DefaultGuildModeration(guildID)
		}
		next := old.Clone()
		mutate(next)
		next.GuildID = guildID
		next.index()
		if err := next.Validate(); err != nil {
			verr = err
			return old, false
		}
		return next, false
	})
	return updated, verr
}

func (s *Store) Len() int {
	return s.profiles.Size()
}
