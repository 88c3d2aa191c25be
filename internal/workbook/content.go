package workbook

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/eventbook/internal/provision"
	"github.com/roach88/eventbook/internal/record"
)

// Meta keys written by the factory.
const (
	metaTitle       = "title"
	metaEventID     = "event_id"
	metaEventName   = "event_name"
	metaEventSlug   = "event_slug"
	metaStartDate   = "start_date"
	metaTag         = "tag"
	metaLinkAdmin   = "link_admin"
	metaLinkPublic  = "link_public"
	metaLinkDisplay = "link_display"
)

// seedSettings are the settings rows every fresh workbook starts with.
var seedSettings = [][2]string{
	{"check_in_open", "0"},
	{"score_entry_open", "0"},
	{"current_round", "0"},
}

// Seed writes the initial settings a fresh workbook needs. Idempotent:
// existing rows are left untouched, so re-seeding never resets values
// an operator has already changed.
func (f *Factory) Seed(ctx context.Context, ref record.ResourceRef) error {
	db, err := f.openExisting(ref)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback()

	for _, kv := range seedSettings {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO NOTHING`,
			kv[0], kv[1],
		)
		if err != nil {
			return fmt.Errorf("seed setting %s: %w", kv[0], err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	return nil
}

// WriteMetadata upserts the event identity and link placeholders into
// the workbook's meta table. Later calls overwrite earlier values.
func (f *Factory) WriteMetadata(ctx context.Context, ref record.ResourceRef, meta provision.Metadata) error {
	db, err := f.openExisting(ref)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin metadata write: %w", err)
	}
	defer tx.Rollback()

	rows := [][2]string{
		{metaEventID, meta.EventID},
		{metaEventName, meta.Name},
		{metaEventSlug, meta.Slug},
		{metaStartDate, meta.StartDate},
		{metaTag, meta.Tag},
		{metaLinkAdmin, meta.Links.Admin},
		{metaLinkPublic, meta.Links.Public},
		{metaLinkDisplay, meta.Links.Display},
	}
	for _, kv := range rows {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			kv[0], kv[1],
		)
		if err != nil {
			return fmt.Errorf("write metadata %s: %w", kv[0], err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit metadata write: %w", err)
	}
	return nil
}

// upsertMeta writes one meta row outside a caller-managed transaction.
func upsertMeta(ctx context.Context, db *sql.DB, key, value string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("write meta %s: %w", key, err)
	}
	return nil
}
