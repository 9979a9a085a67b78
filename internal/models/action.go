package models

import (
	"fmt"
	"strings"
	"time"
)

type PunishmentKind uint8

const (
	PunishNone PunishmentKind = iota
	PunishRoleMute
	PunishVoiceMute
	PunishDeafen
	PunishKick
	PunishBan
)

var punishmentNames = map[PunishmentKind]string{
	PunishNone:      "none",
	PunishRoleMute:  "role_mute",
	PunishVoiceMute: "voice_mute",
	PunishDeafen:    "deafen",
	PunishKick:      "kick",
	PunishBan:       "ban",
}

func (k PunishmentKind) String() string {
	if name, ok := punishmentNames[k]; ok {
		return name
	}
	return fmt.Sprintf("punishment(%d)", uint8(k))
}

// ParsePunishmentKind accepts the names produced by String.
func ParsePunishmentKind(s string) (PunishmentKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range punishmentNames {
		if name == s {
			return k, nil
		}
	}
	return PunishNone, fmt.Errorf("unknown punishment kind %q", s)
}

func (k PunishmentKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *PunishmentKind) UnmarshalText(text []byte) error {
	parsed, err := ParsePunishmentKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Reversible reports whether the platform can undo the punishment later.
func (k PunishmentKind) Reversible() bool {
	switch k {
	case PunishRoleMute, PunishVoiceMute, PunishDeafen, PunishBan:
		return true
	case PunishNone, PunishKick:
		return false
	default:
		return false
	}
}

// Severity orders kinds so spam rules can keep the harshest one.
func (k PunishmentKind) Severity() int {
	switch k {
	case PunishNone:
		return 0
	case PunishRoleMute:
		return 1
	case PunishVoiceMute:
		return 2
	case PunishDeafen:
		return 3
	case PunishKick:
		return 4
	case PunishBan:
		return 5
	default:
		return 0
	}
}

// Punishment is a request to apply Kind to a member. Duration zero means
// permanent; RoleID is set for role mutes.
type Punishment struct {
	Kind     PunishmentKind
	Duration time.Duration
	RoleID   string
}

// Timed reports whether the punishment should be scheduled for reversal.
func (p Punishment) Timed() bool {
	return p.Kind.Reversible() && p.Duration > 0
}

func (p Punishment) String() string {
	if p.Duration > 0 {
		return fmt.Sprintf("%s for %s", p.Kind, p.Duration)
	}
	return p.Kind.String()
}

// ActionRecord is one applied or reversed punishment, kept for operators.
type ActionRecord struct {
	ID        string
	GuildID   string
	MemberID  string
	Kind      PunishmentKind
	Reversal  bool
	Duration  time.Duration
	Reason    string
	Err       string
	CreatedAt time.Time
}
