package detectors

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"go-modguard/internal/config"
	"go-modguard/internal/logging"
	"go-modguard/internal/models"
	"go-modguard/internal/state"
)

var urlCandidate = regexp.MustCompile(`(?i)[a-z][a-z0-9+.\-]*://[^\s<>"'` + "`" + `]+`)

// Score returns the message's score for spam type t.
func Score(t config.SpamType, msg *models.MessageCreated) int {
	switch t {
	case config.SpamMessage:
		return 1
	case config.SpamLongMessage:
		return utf8.RuneCountInString(msg.Text)
	case config.SpamLink:
		return CountLinks(msg.Text)
	case config.SpamImage:
		return countMedia(msg)
	case config.SpamMention:
		return len(msg.DistinctMentions())
	default:
		return 0
	}
}

// CountLinks counts well-formed absolute URLs in text.
func CountLinks(text string) int {
	n := 0
	for _, candidate := range urlCandidate.FindAllString(text, -1) {
		candidate = strings.TrimRight(candidate, ".,;:!?)]}>")
		u, err := url.Parse(candidate)
		if err != nil || !u.IsAbs() || u.Host == "" {
			continue
		}
		n++
	}
	return n
}

func countMedia(msg *models.MessageCreated) int {
	n := 0
	for _, a := range msg.Attachments {
		ct := strings.ToLower(a.ContentType)
		if strings.HasPrefix(ct, "image/") || strings.HasPrefix(ct, "video/") {
			n++
		}
	}
	for _, e := range msg.Embeds {
		switch strings.ToLower(e.Type) {
		case "image", "video", "gifv":
			n++
		}
	}
	return n
}

// qualifies applies the rule threshold. Message rate always qualifies.
func qualifies(rule config.SpamRule, score int) bool {
	if rule.Type == config.SpamMessage {
		return true
	}
	return score >= rule.Threshold
}

// SpamEvaluator tracks spam instances per member and the votes needed to
// punish a flagged member.
type SpamEvaluator struct {
	trackers *state.Trackers
}

func NewSpamEvaluator(trackers *state.Trackers) *SpamEvaluator {
	return &SpamEvaluator{trackers: trackers}
}

// Evaluate scores msg against every enabled rule of cfg. The verdict is
// Allow when nothing qualified, Infract when the message is spam, and
// Punish when the member became punishable with no votes required.
func (e *SpamEvaluator) Evaluate(cfg *config.GuildModeration, msg *models.MessageCreated) models.Verdict {
	if len(cfg.SpamRules) == 0 {
		return models.Allow()
	}

	verdict := models.Allow()
	e.trackers.WithMember(msg.GuildID, msg.AuthorID, func(in *state.Infractions) {
		wasPunishable := in.Votes.Punishable
		prevRequired := in.Votes.Required
		flagged := false
		var rules []string

		for _, rule := range cfg.SpamRules {
			if !rule.Enabled {
				continue
			}
			if err := rule.Validate(); err != nil {
				logging.Warn("[SPAM] Skipping invalid rule in guild %s: %v", cfg.GuildID, err)
				continue
			}
			if !qualifies(rule, Score(rule.Type, msg)) {
				continue
			}
			count, _ := in.AddSpamHit(rule.Type, msg.Timestamp, rule.Window.Std())
			verdict.Type = models.VerdictInfract
			verdict.DeleteMessage = true
			rules = append(rules, rule.Type.String())
			if count >= rule.Count {
				in.Votes.Flag(rule.Votes, rule.Punishment, rule.Duration.Std())
				flagged = true
			}
		}
		if verdict.Type == models.VerdictAllow {
			return
		}
		verdict.Rule = "spam:" + strings.Join(rules, ",")
		verdict.Reason = "spam (" + strings.Join(rules, ", ") + ")"
		if !flagged {
			return
		}

		if in.Votes.Remaining() == 0 {
			verdict.Type = models.VerdictPunish
			verdict.Punishment = takeSpamPunishment(in)
			return
		}
		if !wasPunishable || in.Votes.Required < prevRequired {
			verdict.Notice = fmt.Sprintf("<@%s> was flagged for spam. %d more vote(s) needed to %s them: mention them to vote.",
				msg.AuthorID, in.Votes.Remaining(), in.Votes.Severity)
		}
	})
	return verdict
}

// VoteOutcome is the effect of one vote cast on a punishable member.
type VoteOutcome struct {
	TargetID   string
	Remaining  int
	Punished   bool
	Punishment models.Punishment
}

// Vote registers one vote from msg's author for every punishable member
// the message mentions.
func (e *SpamEvaluator) Vote(msg *models.MessageCreated) []VoteOutcome {
	var out []VoteOutcome
	for _, target := range msg.DistinctMentions() {
		if target == msg.AuthorID {
			continue
		}
		e.trackers.PeekMember(msg.GuildID, target, func(in *state.Infractions) {
			if !in.Votes.Punishable {
				return
			}
			if !in.Votes.AddVote(msg.AuthorID) {
				return
			}
			outcome := VoteOutcome{TargetID: target, Remaining: in.Votes.Remaining()}
			if outcome.Remaining == 0 {
				outcome.Punished = true
				outcome.Punishment = takeSpamPunishment(in)
			}
			out = append(out, outcome)
		})
	}
	return out
}

// takeSpamPunishment resolves the accumulated severity and resets spam state.
// A member already kicked once is banned instead.
func takeSpamPunishment(in *state.Infractions) models.Punishment {
	p := models.Punishment{Kind: in.Votes.Severity, Duration: in.Votes.Duration}
	if p.Kind == models.PunishKick {
		if in.Votes.AlreadyKicked {
			p.Kind = models.PunishBan
			p.Duration = 0
		} else {
			in.Votes.AlreadyKicked = true
		}
	}
	in.ResetSpam()
	return p
}
