package config

import (
	"fmt"
	"strings"

	"go-modguard/internal/models"
)

type SpamType uint8

const (
	SpamMessage SpamType = iota
	SpamLongMessage
	SpamLink
	SpamImage
	SpamMention
)

var spamTypeNames = map[SpamType]string{
	SpamMessage:     "message",
	SpamLongMessage: "long_message",
	SpamLink:        "link",
	SpamImage:       "image",
	SpamMention:     "mention",
}

func (t SpamType) String() string {
	if name, ok := spamTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("spam(%d)", uint8(t))
}

func (t SpamType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *SpamType) UnmarshalText(text []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(text)))
	for k, name := range spamTypeNames {
		if name == s {
			*t = k
			return nil
		}
	}
	return fmt.Errorf("unknown spam type %q", s)
}

// SpamRule: a message whose score reaches Threshold is an instance; Count
// instances inside Window make the author punishable once Votes members
// have mentioned them.
type SpamRule struct {
	Type       SpamType              `json:"type"`
	Enabled    bool                  `json:"enabled"`
	Threshold  int                   `json:"threshold"`
	Count      int                   `json:"count"`
	Window     Duration              `json:"window"`
	Votes      int                   `json:"votes"`
	Punishment models.PunishmentKind `json:"punishment"`
	Duration   Duration              `json:"duration"`
}

func (r SpamRule) Validate() error {
	if r.Count <= 0 {
		return fmt.Errorf("spam rule %s: count must be positive", r.Type)
	}
	if r.Window <= 0 {
		return fmt.Errorf("spam rule %s: window must be positive", r.Type)
	}
	if r.Votes < 0 {
		return fmt.Errorf("spam rule %s: votes must not be negative", r.Type)
	}
	if r.Type != SpamMessage && r.Threshold <= 0 {
		return fmt.Errorf("spam rule %s: threshold must be positive", r.Type)
	}
	return nil
}

type RaidType uint8

const (
	RaidRegular RaidType = iota
	RaidRapidJoins
)

func (t RaidType) String() string {
	switch t {
	case RaidRegular:
		return "regular"
	case RaidRapidJoins:
		return "rapid_joins"
	default:
		return fmt.Sprintf("raid(%d)", uint8(t))
	}
}

func (t RaidType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *RaidType) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "regular":
		*t = RaidRegular
	case "rapid_joins":
		*t = RaidRapidJoins
	default:
		return fmt.Errorf("unknown raid type %q", text)
	}
	return nil
}

type RaidRule struct {
	Type       RaidType              `json:"type"`
	Enabled    bool                  `json:"enabled"`
	Count      int                   `json:"count"`
	Window     Duration              `json:"window"`
	Punishment models.PunishmentKind `json:"punishment"`
	Duration   Duration              `json:"duration"`
}

func (r RaidRule) Validate() error {
	if r.Type == RaidRapidJoins && (r.Count <= 0 || r.Window <= 0) {
		return fmt.Errorf("raid rule %s: count and window must be positive", r.Type)
	}
	return nil
}

type SlowmodeRule struct {
	Enabled     bool     `json:"enabled"`
	Allowance   int      `json:"allowance"`
	Interval    Duration `json:"interval"`
	ImmuneRoles []string `json:"immune_roles"`
}

func (r SlowmodeRule) Validate() error {
	if !r.Enabled {
		return nil
	}
	if r.Allowance <= 0 || r.Interval <= 0 {
		return fmt.Errorf("slowmode: allowance and interval must be positive")
	}
	return nil
}

// PunishmentTier fires when the counter fed by a banned phrase reaches
// exactly Count.
type PunishmentTier struct {
	Count      int                   `json:"count"`
	Punishment models.PunishmentKind `json:"punishment"`
	Duration   Duration              `json:"duration"`
}

type BannedPhrase struct {
	Pattern    string                `json:"pattern"`
	Regex      bool                  `json:"regex"`
	Punishment models.PunishmentKind `json:"punishment"`
}

func validateTiers(tiers map[models.PunishmentKind][]PunishmentTier) error {
	for feed, list := range tiers {
		seen := make(map[int]struct{}, len(list))
		for _, t := range list {
			if t.Count <= 0 {
				return fmt.Errorf("%s tier: count must be positive", feed)
			}
			if _, dup := seen[t.Count]; dup {
				return fmt.Errorf("%s tier: duplicate count %d", feed, t.Count)
			}
			seen[t.Count] = struct{}{}
		}
	}
	return nil
}
