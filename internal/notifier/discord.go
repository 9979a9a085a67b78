package notifier

import (
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"go-modguard/internal/models"
)

// Embed limits enforced by the platform.
const (
	maxTitle       = 256
	maxDescription = 4096
	maxFieldName   = 256
	maxFieldValue  = 1024
	maxFields      = 25
)

var reportColors = map[models.ReportKind]int{
	models.ReportPunishment:   0xED4245,
	models.ReportVotesNeeded:  0xFEE75C,
	models.ReportRaid:         0xEB459E,
	models.ReportDeletedBatch: 0x5865F2,
}

var reportIcons = map[models.ReportKind]string{
	models.ReportPunishment:   "🔨",
	models.ReportVotesNeeded:  "🗳️",
	models.ReportRaid:         "🚨",
	models.ReportDeletedBatch: "🗑️",
}

// ReportEmbed renders report as a single embed, truncating every part to the
// platform limits.
func ReportEmbed(report models.Report) *discordgo.MessageEmbed {
	ts := report.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	title := report.Title
	if icon, ok := reportIcons[report.Kind]; ok && title != "" {
		title = icon + " " + title
	}

	embed := &discordgo.MessageEmbed{
		Title:       Truncate(title, maxTitle),
		Description: Truncate(report.Text, maxDescription),
		Color:       reportColors[report.Kind],
		Timestamp:   ts.Format(time.RFC3339),
	}
	if report.ID != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "ref " + report.ID}
	}

	for i, f := range report.Fields {
		if i == maxFields {
			break
		}
		value := f.Value
		if value == "" {
			value = "-"
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   Truncate(f.Name, maxFieldName),
			Value:  Truncate(value, maxFieldValue),
			Inline: f.Inline,
		})
	}
	return embed
}

// Truncate cuts s to at most limit runes, marking the cut with an ellipsis.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-1]) + "…"
}
