package notifier

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-modguard/internal/models"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abcd…", Truncate("abcdefgh", 5))
	assert.Equal(t, "ééé…", Truncate("ééééé", 4))
	assert.Equal(t, "", Truncate("abc", 0))
}

func TestReportEmbedRespectsLimits(t *testing.T) {
	report := models.Report{
		ID:        "abc",
		Kind:      models.ReportDeletedBatch,
		Title:     "Messages deleted",
		Text:      strings.Repeat("x", 5000),
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for i := 0; i < 30; i++ {
		report.Fields = append(report.Fields, models.ReportField{Name: "n", Value: strings.Repeat("y", 2000)})
	}
	report.Fields[0].Value = ""

	embed := ReportEmbed(report)
	assert.Equal(t, maxDescription, utf8.RuneCountInString(embed.Description))
	require.Len(t, embed.Fields, maxFields)
	assert.Equal(t, "-", embed.Fields[0].Value)
	assert.Equal(t, maxFieldValue, utf8.RuneCountInString(embed.Fields[1].Value))
	assert.Equal(t, "2024-01-01T00:00:00Z", embed.Timestamp)
	assert.True(t, strings.HasSuffix(embed.Title, "Messages deleted"))
	require.NotNil(t, embed.Footer)
	assert.Equal(t, 0x5865F2, embed.Color)
}
