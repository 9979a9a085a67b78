package decision

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"go-modguard/internal/config"
	"go-modguard/internal/detectors"
	"go-modguard/internal/dispatcher"
	"go-modguard/internal/logging"
	"go-modguard/internal/metrics"
	"go-modguard/internal/models"
	"go-modguard/internal/schedule"
	"go-modguard/internal/state"
)

const defaultReportCooldown = 30 * time.Second

// Engine turns inbound platform events into moderation actions. It is safe
// for concurrent use; per-member state is serialised in state.Trackers.
type Engine struct {
	configs   *config.Store
	trackers  *state.Trackers
	registry  *schedule.Registry
	debouncer *schedule.Debouncer
	actions   dispatcher.Actions

	phrases   *detectors.PhraseMatcher
	spam      *detectors.SpamEvaluator
	raids     *detectors.RaidEvaluator
	slowmode  *detectors.SlowmodeLimiter
	escalator *Escalator
	reports   *CooldownManager

	now func() time.Time
}

type Options struct {
	RegexCacheSize int
	StaleAfter     time.Duration
	// ReportCooldown throttles raid reports per guild.
	ReportCooldown time.Duration
	Now            func() time.Time
}

func OptionsFromConfig(cfg config.ModerationConfig) Options {
	return Options{
		RegexCacheSize: cfg.RegexCacheSize,
		StaleAfter:     cfg.StaleAfter.Std(),
	}
}

func NewEngine(configs *config.Store, trackers *state.Trackers, registry *schedule.Registry, debouncer *schedule.Debouncer, actions dispatcher.Actions, opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ReportCooldown <= 0 {
		opts.ReportCooldown = defaultReportCooldown
	}
	return &Engine{
		configs:   configs,
		trackers:  trackers,
		registry:  registry,
		debouncer: debouncer,
		actions:   actions,
		phrases:   detectors.NewPhraseMatcher(opts.RegexCacheSize, opts.StaleAfter),
		spam:      detectors.NewSpamEvaluator(trackers),
		raids:     detectors.NewRaidEvaluator(trackers),
		slowmode:  detectors.NewSlowmodeLimiter(trackers),
		escalator: NewEscalator(trackers),
		reports:   NewCooldownManager(opts.ReportCooldown),
		now:       opts.Now,
	}
}

func (e *Engine) config(guildID string) (*config.GuildModeration, bool) {
	if guildID == "" {
		return nil, false
	}
	cfg := e.configs.Get(guildID)
	return cfg, cfg.Enabled
}

// OnMessageCreated evaluates a new message: votes for flagged members first,
// then banned phrases, spam and slowmode.
func (e *Engine) OnMessageCreated(ctx context.Context, msg models.MessageCreated) {
	metrics.IncrementIngress("message_create")
	if msg.AuthorIsBot {
		return
	}
	cfg, ok := e.config(msg.GuildID)
	if !ok {
		return
	}
	now := e.now()

	for _, vote := range e.spam.Vote(&msg) {
		if !vote.Punished {
			logging.Debug("[ENGINE] Vote by %s on %s in guild %s, %d remaining",
				msg.AuthorID, vote.TargetID, msg.GuildID, vote.Remaining)
			continue
		}
		e.punish(cfg, PunishmentRequest{
			GuildID:    msg.GuildID,
			MemberID:   vote.TargetID,
			ChannelID:  msg.ChannelID,
			Punishment: vote.Punishment,
			Rule:       "spam:vote",
			Reason:     "Spam (confirmed by community vote)",
		}, now)
	}

	e.evaluateMessage(cfg, &msg, now, true)
}

// OnMessageEdited re-runs content checks on an edited message. The message
// keeps its original timestamp, so spam windows do not count it twice.
func (e *Engine) OnMessageEdited(ctx context.Context, msg models.MessageCreated) {
	metrics.IncrementIngress("message_update")
	if msg.AuthorIsBot {
		return
	}
	cfg, ok := e.config(msg.GuildID)
	if !ok {
		return
	}
	e.evaluateMessage(cfg, &msg, e.now(), false)
}

func (e *Engine) evaluateMessage(cfg *config.GuildModeration, msg *models.MessageCreated, now time.Time, withSlowmode bool) {
	if v := e.phrases.Evaluate(cfg, msg, now); v.Type != models.VerdictAllow {
		logVerdict(msg.GuildID, msg.AuthorID, msg.ChannelID, v)
		e.deleteMessage(msg, v.Reason)
		p, count, fired := e.escalator.Record(cfg, msg.AuthorID, v.FeedKind)
		if !fired {
			logging.Debug("[ENGINE] %s has %d %s phrase infraction(s) in guild %s",
				msg.AuthorID, count, v.FeedKind, msg.GuildID)
			return
		}
		e.punish(cfg, PunishmentRequest{
			GuildID:    msg.GuildID,
			MemberID:   msg.AuthorID,
			ChannelID:  msg.ChannelID,
			Punishment: p,
			Rule:       v.Rule,
			Reason:     fmt.Sprintf("Banned phrase (infraction %d)", count),
		}, now)
		return
	}

	v := e.spam.Evaluate(cfg, msg)
	if v.Type != models.VerdictAllow {
		logVerdict(msg.GuildID, msg.AuthorID, msg.ChannelID, v)
		e.deleteMessage(msg, v.Reason)
		if v.Notice != "" {
			e.actions.PostReport(msg.GuildID, msg.ChannelID, models.Report{
				ID:        uuid.NewString(),
				Kind:      models.ReportVotesNeeded,
				GuildID:   msg.GuildID,
				Title:     "Spam detected",
				Text:      v.Notice,
				Timestamp: now,
			})
		}
		if v.Type == models.VerdictPunish {
			e.punish(cfg, PunishmentRequest{
				GuildID:    msg.GuildID,
				MemberID:   msg.AuthorID,
				ChannelID:  msg.ChannelID,
				Punishment: v.Punishment,
				Rule:       v.Rule,
				Reason:     "Spam",
			}, now)
		}
		return
	}

	if !withSlowmode {
		return
	}
	if v := e.slowmode.Evaluate(cfg, msg, now); v.Type != models.VerdictAllow {
		logVerdict(msg.GuildID, msg.AuthorID, msg.ChannelID, v)
		e.deleteMessage(msg, v.Reason)
	}
}

// OnMessageDeleted adds the deletion to its channel's batch. Guilds without
// a report channel are not tracked.
func (e *Engine) OnMessageDeleted(ctx context.Context, ev models.MessageDeleted) {
	metrics.IncrementIngress("message_delete")
	cfg, ok := e.config(ev.GuildID)
	if !ok || cfg.ReportChannelID == "" || ev.ChannelID == cfg.ReportChannelID {
		return
	}
	n := e.debouncer.Add(ev, e.now())
	logging.Debug("[ENGINE] Deletion batch for channel %s in guild %s now holds %d", ev.ChannelID, ev.GuildID, n)
}

func (e *Engine) OnMemberJoined(ctx context.Context, ev models.MemberJoined) {
	metrics.IncrementIngress("member_join")
	cfg, ok := e.config(ev.GuildID)
	if !ok {
		return
	}
	now := e.now()

	v := e.raids.Evaluate(cfg, &ev, now)
	if v.Type == models.VerdictAllow {
		return
	}
	logVerdict(ev.GuildID, ev.MemberID, "", v.Verdict)

	if v.RapidJoins && cfg.ReportChannelID != "" && e.reports.TryExecute(ev.GuildID, models.ReportRaid, now) {
		e.actions.PostReport(ev.GuildID, cfg.ReportChannelID, models.Report{
			ID:      uuid.NewString(),
			Kind:    models.ReportRaid,
			GuildID: ev.GuildID,
			Title:   "Raid detected",
			Text:    fmt.Sprintf("%d members joined within the raid window. New joins are punished with %s.", v.JoinCount, v.Punishment),
			Fields: []models.ReportField{
				{Name: "Triggered by", Value: fmt.Sprintf("<@%s> (%s)", ev.MemberID, ev.Username), Inline: true},
				{Name: "Joins in window", Value: fmt.Sprint(v.JoinCount), Inline: true},
			},
			Timestamp: now,
		})
	} else if v.RapidJoins {
		logging.Debug("[ENGINE] Raid report for guild %s suppressed, %s until the next one",
			ev.GuildID, e.reports.GetRemainingCooldown(ev.GuildID, models.ReportRaid, now))
	}

	e.punish(cfg, PunishmentRequest{
		GuildID:    ev.GuildID,
		MemberID:   ev.MemberID,
		Punishment: v.Punishment,
		Rule:       v.Rule,
		Reason:     v.Reason,
		quiet:      v.RapidJoins,
	}, now)
}

// OnMemberLeft drops pending mute reversals; the platform clears roles and
// voice state when a member leaves. Ban reversals stay scheduled.
func (e *Engine) OnMemberLeft(ctx context.Context, guildID, memberID string) {
	metrics.IncrementIngress("member_remove")
	n := e.registry.CancelMember(guildID, memberID,
		models.PunishRoleMute, models.PunishVoiceMute, models.PunishDeafen)
	if n > 0 {
		logging.Info("[ENGINE] Cancelled %d scheduled reversal(s) for %s who left guild %s", n, memberID, guildID)
	}
}

// OnMemberUnbanned drops a scheduled unban after a manual unban.
func (e *Engine) OnMemberUnbanned(ctx context.Context, guildID, memberID string) {
	metrics.IncrementIngress("ban_remove")
	if e.registry.Cancel(guildID, memberID, models.PunishBan) {
		logging.Info("[ENGINE] Cancelled scheduled unban for %s in guild %s", memberID, guildID)
	}
}

// OnGuildRemoved forgets all tracked state for a guild the bot left.
func (e *Engine) OnGuildRemoved(ctx context.Context, guildID string) {
	e.trackers.ClearGuild(guildID)
	e.reports.Reset(guildID)
}

func (e *Engine) deleteMessage(msg *models.MessageCreated, reason string) {
	if msg.MessageID == "" {
		return
	}
	e.actions.DeleteMessage(msg.GuildID, msg.ChannelID, msg.MessageID, reason)
}

func (e *Engine) punish(cfg *config.GuildModeration, req PunishmentRequest, now time.Time) {
	p := req.Punishment
	switch p.Kind {
	case models.PunishNone:
		return
	case models.PunishRoleMute:
		if cfg.MuteRoleID == "" {
			logging.Warn("[ENGINE] Guild %s has no mute role, skipping role mute for %s", req.GuildID, req.MemberID)
			return
		}
		p.RoleID = cfg.MuteRoleID
	case models.PunishVoiceMute, models.PunishDeafen, models.PunishKick, models.PunishBan:
	default:
		logging.Warn("[ENGINE] Unknown punishment kind %d for %s in guild %s", p.Kind, req.MemberID, req.GuildID)
		return
	}

	if p.Timed() {
		entry, prev := e.registry.Schedule(req.GuildID, req.MemberID, p, now.Add(p.Duration))
		if prev != nil {
			logging.Info("[ENGINE] %s for %s in guild %s superseded entry %s, now due %s",
				p.Kind, req.MemberID, req.GuildID, prev.ID, entry.DueAt.Format(time.RFC3339))
		}
	} else if p.Kind.Reversible() {
		// a permanent punishment must not be lifted by an older timer
		e.registry.Cancel(req.GuildID, req.MemberID, p.Kind)
	}

	e.actions.ApplyPunishment(req.GuildID, req.MemberID, p, req.Reason)

	if cfg.ReportChannelID == "" || req.quiet {
		return
	}
	fields := []models.ReportField{
		{Name: "Member", Value: fmt.Sprintf("<@%s>", req.MemberID), Inline: true},
		{Name: "Action", Value: p.String(), Inline: true},
		{Name: "Rule", Value: req.Rule, Inline: true},
	}
	if req.ChannelID != "" {
		fields = append(fields, models.ReportField{Name: "Channel", Value: "<#" + req.ChannelID + ">", Inline: true})
	}
	e.actions.PostReport(req.GuildID, cfg.ReportChannelID, models.Report{
		ID:        uuid.NewString(),
		Kind:      models.ReportPunishment,
		GuildID:   req.GuildID,
		Title:     "Member punished",
		Text:      req.Reason,
		Fields:    fields,
		Timestamp: now,
	})
}
