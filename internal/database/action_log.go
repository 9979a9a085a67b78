package database

import (
	"context"
	"time"

	"go-modguard/internal/models"
)

// RecordAction appends rec to the moderation log.
func (d *Database) RecordAction(ctx context.Context, rec models.ActionRecord) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO moderation_log (id, guild_id, member_id, kind, reversal, duration_ms, reason, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.GuildID, rec.MemberID, rec.Kind.String(), rec.Reversal,
		rec.Duration.Milliseconds(), rec.Reason, rec.Err, rec.CreatedAt.UnixMilli(),
	)
	return err
}

// RecentActions returns up to limit log rows for guildID, newest first.
func (d *Database) RecentActions(ctx context.Context, guildID string, limit int) ([]*ActionLog, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, guild_id, member_id, kind, reversal, duration_ms, reason, error, created_at
		 FROM moderation_log WHERE guild_id = ? ORDER BY created_at DESC LIMIT ?`,
		guildID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*ActionLog
	for rows.Next() {
		var log ActionLog
		if err := rows.Scan(&log.ID, &log.GuildID, &log.MemberID, &log.Kind, &log.Reversal,
			&log.DurationMS, &log.Reason, &log.Error, &log.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, &log)
	}
	return logs, rows.Err()
}

// PruneActions deletes log rows older than before and returns how many went.
func (d *Database) PruneActions(ctx context.Context, before time.Time) (int64, error) {
	res, err := d.db.ExecContext(ctx,
		`DELETE FROM moderation_log WHERE created_at < ?`, before.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
