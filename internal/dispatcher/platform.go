package dispatcher

import (
	"context"
	"errors"

	"go-modguard/internal/models"
)

var (
	// ErrStaleReference means the target no longer exists (member left,
	// message or ban already gone). Callers treat it as success.
	ErrStaleReference = errors.New("stale reference")
	ErrRateLimited    = errors.New("rate limited")
	ErrNotReversible  = errors.New("punishment is not reversible")
)

// Platform is the outbound side of the chat platform client. Every call is
// best effort and bounded by ctx.
type Platform interface {
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	ApplyPunishment(ctx context.Context, guildID, memberID string, p models.Punishment, reason string) error
	ReversePunishment(ctx context.Context, guildID, memberID string, p models.Punishment) error
	PostReport(ctx context.Context, channelID string, report models.Report) error
}

// Actions is the fire-and-report interface used by the engine and the
// sweep. Implementations must not block the caller on the platform.
type Actions interface {
	DeleteMessage(guildID, channelID, messageID, reason string)
	ApplyPunishment(guildID, memberID string, p models.Punishment, reason string)
	ReversePunishment(guildID, memberID string, p models.Punishment)
	PostReport(guildID, channelID string, report models.Report)
}

// ActionRecorder persists applied and reversed punishments.
type ActionRecorder interface {
	RecordAction(ctx context.Context, rec models.ActionRecord) error
}

func IsStale(err error) bool {
	return errors.Is(err, ErrStaleReference)
}
