package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/eventbook/internal/record"
)

// InsertRecord inserts an event record into the index.
// Returns inserted=false when a record with the same id or the same
// (slug, start_date) natural key already exists - ON CONFLICT DO NOTHING
// makes duplicate creation idempotent at the constraint, so two racing
// writers can both call this safely.
//
// CreatedSeq is assigned here from the store's monotonic counter; the
// value in rec is ignored.
func (s *Store) InsertRecord(ctx context.Context, rec record.EventRecord) (inserted bool, err error) {
	// Use a transaction so the seq read and the insert are atomic
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("insert record: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var seq int64
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(created_seq), 0) + 1 FROM events",
	).Scan(&seq); err != nil {
		return false, fmt.Errorf("insert record: next seq: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO events
		(id, name, slug, start_date, tag, status, status_detail, is_default,
		 seed_mode, elim_type, resource_id, resource_addr,
		 admin_url, public_url, display_url,
		 latitude, longitude, geohash, venue, city, state, country, created_seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		rec.ID,
		rec.Name,
		rec.Slug,
		rec.StartDate,
		rec.Tag,
		string(rec.Status),
		rec.StatusDetail,
		rec.IsDefault,
		string(rec.SeedMode),
		string(rec.ElimType),
		rec.Resource.ID,
		rec.Resource.Addr,
		rec.Links.Admin,
		rec.Links.Public,
		rec.Links.Display,
		rec.Geo.Latitude,
		rec.Geo.Longitude,
		rec.Geo.Geohash,
		rec.Geo.Venue,
		rec.Geo.City,
		rec.Geo.State,
		rec.Geo.Country,
		seq,
	)
	if err != nil {
		return false, fmt.Errorf("insert record: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert record: rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("insert record: commit: %w", err)
	}

	return rowsAffected > 0, nil
}

// SetDefault marks the record with the given id as the default event and
// clears the flag everywhere else, in a single transaction. At most one
// row carries is_default after this returns, whatever state preceded it.
// Returns sql.ErrNoRows if no record has the id.
func (s *Store) SetDefault(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("set default: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"UPDATE events SET is_default = 0 WHERE is_default = 1",
	); err != nil {
		return fmt.Errorf("set default: clear: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		"UPDATE events SET is_default = 1 WHERE id = ?", id,
	)
	if err != nil {
		return fmt.Errorf("set default: set: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set default: rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Rollback restores the previous default
		return sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("set default: commit: %w", err)
	}

	return nil
}

// DeleteRecord removes a record from the index. The child resource is
// untouched - archiving is an index operation only.
// Returns sql.ErrNoRows if no record has the id.
func (s *Store) DeleteRecord(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM events WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete record: rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// SetResource persists the child resource reference for a record.
// Returns sql.ErrNoRows if no record has the id.
func (s *Store) SetResource(ctx context.Context, id string, ref record.ResourceRef) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE events SET resource_id = ?, resource_addr = ? WHERE id = ?",
		ref.ID, ref.Addr, id,
	)
	if err != nil {
		return fmt.Errorf("set resource: %w", err)
	}
	return requireRow(result, "set resource")
}

// SetLinks persists the derived links for a record.
// Returns sql.ErrNoRows if no record has the id.
func (s *Store) SetLinks(ctx context.Context, id string, links record.Links) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE events SET admin_url = ?, public_url = ?, display_url = ? WHERE id = ?",
		links.Admin, links.Public, links.Display, id,
	)
	if err != nil {
		return fmt.Errorf("set links: %w", err)
	}
	return requireRow(result, "set links")
}

// SetStatus updates the provisioning status and detail for a record.
// detail is overwritten unconditionally so a recovery to a non-error
// state clears the stale message.
// Returns sql.ErrNoRows if no record has the id.
func (s *Store) SetStatus(ctx context.Context, id string, status record.Status, detail string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE events SET status = ?, status_detail = ? WHERE id = ?",
		string(status), detail, id,
	)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	return requireRow(result, "set status")
}

// WriteMeta upserts a key in the meta table. Used by the reconciler to
// stamp ownership (provisioned_by) on stores this process creates.
func (s *Store) WriteMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("write meta: %w", err)
	}
	return nil
}

// requireRow converts a zero-row UPDATE into sql.ErrNoRows.
func requireRow(result sql.Result, op string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if rowsAffected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
