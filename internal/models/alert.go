package models

import (
	"time"
)

type VerdictType uint8

const (
	VerdictAllow VerdictType = iota
	VerdictInfract
	VerdictPunish
)

func (v VerdictType) String() string {
	switch v {
	case VerdictAllow:
		return "allow"
	case VerdictInfract:
		return "infract"
	case VerdictPunish:
		return "punish"
	default:
		return "unknown"
	}
}

// Verdict is what a rule evaluator decided for one event.
type Verdict struct {
	Type          VerdictType
	Rule          string
	DeleteMessage bool
	// FeedKind names the counter that fed the verdict (banned phrases).
	FeedKind   PunishmentKind
	Punishment Punishment
	Reason     string
	Notice     string
}

func Allow() Verdict {
	return Verdict{Type: VerdictAllow}
}

type ReportKind uint8

const (
	ReportPunishment ReportKind = iota
	ReportVotesNeeded
	ReportRaid
	ReportDeletedBatch
)

type ReportField struct {
	Name   string
	Value  string
	Inline bool
}

// Report is rendered by the platform client; Text is used when no embed
// rendering is available.
type Report struct {
	ID        string
	Kind      ReportKind
	GuildID   string
	Title     string
	Text      string
	Fields    []ReportField
	Timestamp time.Time
}
