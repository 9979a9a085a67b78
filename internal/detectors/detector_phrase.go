package detectors

import (
	"regexp"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"go-modguard/internal/config"
	"go-modguard/internal/logging"
	"go-modguard/internal/models"
)

const DefaultStaleAfter = time.Hour

// PhraseMatcher checks messages against a guild's banned phrases.
type PhraseMatcher struct {
	regexes    *lru.Cache[string, *regexp.Regexp]
	broken     *lru.Cache[string, struct{}]
	staleAfter time.Duration
}

func NewPhraseMatcher(cacheSize int, staleAfter time.Duration) *PhraseMatcher {
	if cacheSize <= 0 {
		cacheSize = 512
	}
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	regexes, _ := lru.New[string, *regexp.Regexp](cacheSize)
	broken, _ := lru.New[string, struct{}](cacheSize)
	return &PhraseMatcher{
		regexes:    regexes,
		broken:     broken,
		staleAfter: staleAfter,
	}
}

// Skip reports whether the message is exempt from phrase matching: too old
// or written by a privileged member.
func (m *PhraseMatcher) Skip(cfg *config.GuildModeration, msg *models.MessageCreated, now time.Time) bool {
	if now.Sub(msg.Timestamp) > m.staleAfter {
		return true
	}
	return cfg.IsPrivileged(msg.AuthorRoles)
}

// Match returns the first banned phrase found in text. Exact phrases are
// checked before regex phrases.
func (m *PhraseMatcher) Match(cfg *config.GuildModeration, text string) (config.BannedPhrase, bool) {
	if len(cfg.BannedPhrases) == 0 || text == "" {
		return config.BannedPhrase{}, false
	}

	folded := config.Fold(text)
	for i, p := range cfg.BannedPhrases {
		if p.Regex || p.Pattern == "" {
			continue
		}
		if strings.Contains(folded, cfg.FoldedPattern(i)) {
			return p, true
		}
	}

	for _, p := range cfg.BannedPhrases {
		if !p.Regex || p.Pattern == "" {
			continue
		}
		re := m.compile(cfg.GuildID, p.Pattern)
		if re != nil && re.MatchString(text) {
			return p, true
		}
	}
	return config.BannedPhrase{}, false
}

// Evaluate returns an infract verdict fed by the phrase's punishment kind,
// or Allow.
func (m *PhraseMatcher) Evaluate(cfg *config.GuildModeration, msg *models.MessageCreated, now time.Time) models.Verdict {
	if m.Skip(cfg, msg, now) {
		return models.Allow()
	}
	phrase, ok := m.Match(cfg, msg.Text)
	if !ok {
		return models.Allow()
	}
	return models.Verdict{
		Type:          models.VerdictInfract,
		Rule:          "banned_phrase",
		DeleteMessage: true,
		FeedKind:      phrase.Punishment,
		Reason:        "banned phrase",
	}
}

func (m *PhraseMatcher) compile(guildID, pattern string) *regexp.Regexp {
	if re, ok := m.regexes.Get(pattern); ok {
		return re
	}
	if m.broken.Contains(pattern) {
		return nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		m.broken.Add(pattern, struct{}{})
		logging.Warn("[PHRASE] Skipping malformed regex %q in guild %s: %v", pattern, guildID, err)
		return nil
	}
	m.regexes.Add(pattern, re)
	return re
}
