package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go-modguard/internal/config"
	"go-modguard/internal/logging"
)

var ErrGuildNotFound = errors.New("guild configuration not found")

const DefaultConfigPollInterval = 5 * time.Second

const guildColumns = `guild_id, document, revision, created_at, updated_at`

func scanGuild(row interface{ Scan(...any) error }, doc *GuildDocument) error {
	return row.Scan(&doc.GuildID, &doc.Document, &doc.Revision, &doc.CreatedAt, &doc.UpdatedAt)
}

// GetGuildDocument returns the stored document for guildID.
func (d *Database) GetGuildDocument(ctx context.Context, guildID string) (*GuildDocument, error) {
	var doc GuildDocument
	err := scanGuild(d.db.QueryRowContext(ctx,
		`SELECT `+guildColumns+` FROM guild_moderation WHERE guild_id = ?`, guildID), &doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGuildNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// guildDocumentsSince returns every document saved after revision, oldest
// first.
func (d *Database) guildDocumentsSince(ctx context.Context, revision int64) ([]GuildDocument, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+guildColumns+` FROM guild_moderation WHERE revision > ? ORDER BY revision`, revision)
	if err != nil {
		return nil, fmt.Errorf("failed to query guild configs: %w", err)
	}
	defer rows.Close()

	var docs []GuildDocument
	for rows.Next() {
		var doc GuildDocument
		if err := scanGuild(rows, &doc); err != nil {
			return nil, fmt.Errorf("failed to scan guild config: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// LoadGuild decodes the stored configuration for guildID.
func (d *Database) LoadGuild(ctx context.Context, guildID string) (*config.GuildModeration, error) {
	doc, err := d.GetGuildDocument(ctx, guildID)
	if err != nil {
		return nil, err
	}
	return decodeGuild(doc)
}

func decodeGuild(doc *GuildDocument) (*config.GuildModeration, error) {
	g := config.DefaultGuildModeration(doc.GuildID)
	if err := json.Unmarshal([]byte(doc.Document), g); err != nil {
		return nil, fmt.Errorf("guild %s: decode config: %w", doc.GuildID, err)
	}
	g.GuildID = doc.GuildID
	return g, nil
}

// SaveGuild validates and stores g under the next revision.
func (d *Database) SaveGuild(ctx context.Context, g *config.GuildModeration) error {
	if err := g.Validate(); err != nil {
		return fmt.Errorf("guild %s: %w", g.GuildID, err)
	}
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("guild %s: encode config: %w", g.GuildID, err)
	}

	now := time.Now().Unix()
	_, err = d.db.ExecContext(ctx,
		`INSERT INTO guild_moderation (guild_id, document, revision, created_at, updated_at)
		 VALUES (?, ?, (SELECT COALESCE(MAX(revision), 0) + 1 FROM guild_moderation), ?, ?)
		 ON CONFLICT(guild_id) DO UPDATE SET
			document = excluded.document,
			revision = excluded.revision,
			updated_at = excluded.updated_at`,
		g.GuildID, string(data), now, now,
	)
	return err
}

// ConfigSync keeps a config.Store in step with the stored documents.
type ConfigSync struct {
	db    *Database
	store *config.Store
	seen  atomic.Int64
}

func NewConfigSync(db *Database, store *config.Store) *ConfigSync {
	return &ConfigSync{db: db, store: store}
}

// Reload publishes every stored guild configuration into the store. A
// document that fails to decode or validate is logged and skipped, leaving
// the guild's previous snapshot in place.
func (s *ConfigSync) Reload(ctx context.Context) (int, error) {
	docs, err := s.db.guildDocumentsSince(ctx, -1)
	if err != nil {
		return 0, err
	}
	loaded := s.publish(docs)
	logging.Info("[DB] Loaded %d/%d guild configuration(s)", loaded, len(docs))
	return loaded, nil
}

// Poll publishes the documents saved since the last Reload or Poll,
// including saves made by other processes.
func (s *ConfigSync) Poll(ctx context.Context) (int, error) {
	docs, err := s.db.guildDocumentsSince(ctx, s.seen.Load())
	if err != nil {
		return 0, err
	}
	loaded := s.publish(docs)
	if len(docs) > 0 {
		logging.Info("[DB] Applied %d/%d changed guild configuration(s)", loaded, len(docs))
	}
	return loaded, nil
}

// Run polls for changed configurations every interval until ctx is done.
// tick, when set, is called after every poll.
func (s *ConfigSync) Run(ctx context.Context, interval time.Duration, tick func()) error {
	if interval <= 0 {
		interval = DefaultConfigPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Poll(ctx); err != nil && ctx.Err() == nil {
				logging.Warn("[DB] Guild config poll failed: %v", err)
			}
			if tick != nil {
				tick()
			}
		}
	}
}

func (s *ConfigSync) publish(docs []GuildDocument) int {
	loaded := 0
	for i := range docs {
		g, err := decodeGuild(&docs[i])
		if err == nil {
			err = s.store.Set(g)
		}
		s.advance(docs[i].Revision)
		if err != nil {
			logging.Warn("[DB] Skipping config for guild %s: %v", docs[i].GuildID, err)
			continue
		}
		loaded++
	}
	return loaded
}

func (s *ConfigSync) advance(revision int64) {
	for {
		cur := s.seen.Load()
		if revision <= cur || s.seen.CompareAndSwap(cur, revision) {
			return
		}
	}
}

// EnsureGuild publishes the stored configuration for guildID, storing the
// defaults first when the guild has none.
func (s *ConfigSync) EnsureGuild(ctx context.Context, guildID string) error {
	g, err := s.db.LoadGuild(ctx, guildID)
	switch {
	case errors.Is(err, ErrGuildNotFound):
		g = config.DefaultGuildModeration(guildID)
		if err := s.db.SaveGuild(ctx, g); err != nil {
			return err
		}
	case err != nil:
		return err
	}
	return s.store.Set(g)
}

// Update applies mutate through the store and persists the result.
func (s *ConfigSync) Update(ctx context.Context, guildID string, mutate func(*config.GuildModeration)) (*config.GuildModeration, error) {
	g, err := s.store.Update(guildID, mutate)
	if err != nil {
		return nil, err
	}
	if err := s.db.SaveGuild(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}
