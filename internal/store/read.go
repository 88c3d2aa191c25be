package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/eventbook/internal/record"
)

// recordColumns is the canonical column list for event queries. Order
// must match scanRecord.
const recordColumns = `id, name, slug, start_date, tag, status, status_detail, is_default,
	seed_mode, elim_type, resource_id, resource_addr,
	admin_url, public_url, display_url,
	latitude, longitude, geohash, venue, city, state, country, created_seq`

// ListRecords returns every record in the index in its deterministic
// order: start_date ASC, slug ASC, id ASC. The ETag is computed over this
// order, so it must be stable across processes and replays.
//
// Returns an empty slice (not nil) if the index is empty.
func (s *Store) ListRecords(ctx context.Context) ([]record.EventRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM events
		ORDER BY start_date ASC, slug ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []record.EventRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	// Return empty slice instead of nil
	if records == nil {
		records = []record.EventRecord{}
	}

	return records, nil
}

// ReadRecord retrieves a single record by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRecord(ctx context.Context, id string) (record.EventRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM events
		WHERE id = ?
	`, id)

	return scanRecord(row)
}

// ReadRecordBySlug retrieves a single record by slug. Slugs repeat across
// dates, so when several records share one the latest start_date wins
// (ties broken by id ASC) - slug lookup is a human convenience, the id is
// the real handle.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRecordBySlug(ctx context.Context, slug string) (record.EventRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM events
		WHERE slug = ?
		ORDER BY start_date DESC, id ASC
		LIMIT 1
	`, slug)

	return scanRecord(row)
}

// ReadRecordByKey retrieves a record by id or, failing that, by slug.
// This is the resolution used by every keyed service operation.
// Returns sql.ErrNoRows if the key matches neither.
func (s *Store) ReadRecordByKey(ctx context.Context, key string) (record.EventRecord, error) {
	rec, err := s.ReadRecord(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return s.ReadRecordBySlug(ctx, key)
	}
	return rec, err
}

// FindByNaturalKey looks up a record by its (slug, startDate) identity.
// This is the idempotency probe: ok=false with a nil error means the pair
// is unclaimed.
func (s *Store) FindByNaturalKey(ctx context.Context, slug, startDate string) (record.EventRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM events
		WHERE slug = ? AND start_date = ?
	`, slug, startDate)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return record.EventRecord{}, false, nil
	}
	if err != nil {
		return record.EventRecord{}, false, err
	}
	return rec, true, nil
}

// ReadMeta returns the value for a meta key.
// Returns sql.ErrNoRows if the key is absent.
func (s *Store) ReadMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM meta WHERE key = ?", key,
	).Scan(&value)
	if err != nil {
		return "", err
	}
	return value, nil
}

// ReadSetting returns the value for a settings key. Settings carry
// operator defaults for new events (seed mode, elimination type).
// Returns sql.ErrNoRows if the key is absent.
func (s *Store) ReadSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM settings WHERE key = ?", key,
	).Scan(&value)
	if err != nil {
		return "", err
	}
	return value, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRecord scans one event row into an EventRecord.
func scanRecord(row rowScanner) (record.EventRecord, error) {
	var rec record.EventRecord
	var status, seedMode, elimType string

	if err := row.Scan(
		&rec.ID, &rec.Name, &rec.Slug, &rec.StartDate, &rec.Tag,
		&status, &rec.StatusDetail, &rec.IsDefault,
		&seedMode, &elimType, &rec.Resource.ID, &rec.Resource.Addr,
		&rec.Links.Admin, &rec.Links.Public, &rec.Links.Display,
		&rec.Geo.Latitude, &rec.Geo.Longitude, &rec.Geo.Geohash,
		&rec.Geo.Venue, &rec.Geo.City, &rec.Geo.State, &rec.Geo.Country,
		&rec.CreatedSeq,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return record.EventRecord{}, err
		}
		return record.EventRecord{}, fmt.Errorf("scan record: %w", err)
	}

	rec.Status = record.Status(status)
	rec.SeedMode = record.SeedMode(seedMode)
	rec.ElimType = record.ElimType(elimType)

	return rec, nil
}
