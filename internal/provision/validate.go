package provision

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/roach88/eventbook/internal/fault"
	"github.com/roach88/eventbook/internal/record"
)

// MaxNameLen bounds event names after whitespace trimming.
const MaxNameLen = 200

// StartDateWindowYears bounds how far from today a start date may lie.
const StartDateWindowYears = 10

// Settings keys for operator-tunable defaults.
const (
	SettingDefaultSeedMode = "default_seed_mode"
	SettingDefaultElimType = "default_elim_type"
)

// markupFragments are rejected anywhere in a name, case-insensitively.
// Names end up in generated HTML and workbook titles; this is the
// cheap first line, not an HTML sanitizer.
var markupFragments = []string{
	"<script",
	"javascript:",
	"<iframe",
	"onerror=",
	"onload=",
}

// Params are the raw provisioning inputs. SeedMode and ElimType are
// free-form strings here; empty means "use the configured default".
type Params struct {
	Name      string
	StartDate string
	SeedMode  string
	ElimType  string
	Geo       *record.Geo
}

// request is a fully validated, normalized provisioning request.
type request struct {
	name      string
	slug      string
	startDate string
	seedMode  record.SeedMode
	elimType  record.ElimType
	geo       record.Geo
	warnings  []string
}

// validate normalizes params, rejecting bad input before any lock or
// side effect. Geo is the exception to fail-fast: invalid geo degrades
// to no geo with a warning, never an error.
func (p *Provisioner) validate(ctx context.Context, params Params) (request, error) {
	name, err := validateName(params.Name)
	if err != nil {
		return request{}, err
	}
	if err := validateStartDate(params.StartDate, p.now()); err != nil {
		return request{}, err
	}

	seedMode, err := p.resolveSeedMode(ctx, params.SeedMode)
	if err != nil {
		return request{}, err
	}
	elimType, err := p.resolveElimType(ctx, params.ElimType)
	if err != nil {
		return request{}, err
	}

	geo, warnings := sanitizeGeo(params.Geo)

	slug := record.Slugify(name)
	if slug == "" {
		slug = record.SlugPlaceholder(p.now())
	}

	return request{
		name:      name,
		slug:      slug,
		startDate: params.StartDate,
		seedMode:  seedMode,
		elimType:  elimType,
		geo:       geo,
		warnings:  warnings,
	}, nil
}

// validateName trims and bounds the event name.
func validateName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", fault.Validation("name is required")
	}
	if utf8.RuneCountInString(trimmed) > MaxNameLen {
		return "", fault.Validation("name exceeds %d characters", MaxNameLen)
	}

	lower := strings.ToLower(trimmed)
	for _, frag := range markupFragments {
		if strings.Contains(lower, frag) {
			return "", fault.Validation("name contains disallowed markup %q", frag)
		}
	}
	return trimmed, nil
}

// validateStartDate enforces strict YYYY-MM-DD within the configured
// window around now.
func validateStartDate(s string, now time.Time) error {
	if len(s) != len("2006-01-02") {
		return fault.Validation("start date must be YYYY-MM-DD, got %q", s)
	}
	parsed, err := time.Parse("2006-01-02", s)
	if err != nil {
		return fault.Validation("start date %q is not a valid date", s)
	}

	if parsed.Before(now.AddDate(-StartDateWindowYears, 0, 0)) ||
		parsed.After(now.AddDate(StartDateWindowYears, 0, 0)) {
		return fault.Validation("start date %s is outside the +/-%d year window", s, StartDateWindowYears)
	}
	return nil
}

// sanitizeGeo returns the usable geo and any degradation warnings.
// Coordinates must come as a pair within range; anything else drops the
// whole geo block.
func sanitizeGeo(geo *record.Geo) (record.Geo, []string) {
	if geo == nil {
		return record.Geo{}, nil
	}
	if !geo.HasCoords() {
		if geo.Venue != "" || geo.City != "" || geo.State != "" || geo.Country != "" {
			return record.Geo{}, []string{"geo ignored: coordinates are required"}
		}
		return record.Geo{}, nil
	}
	if geo.Latitude < -90 || geo.Latitude > 90 || geo.Longitude < -180 || geo.Longitude > 180 {
		return record.Geo{}, []string{fmt.Sprintf(
			"geo ignored: coordinates (%v, %v) out of range", geo.Latitude, geo.Longitude)}
	}
	return *geo, nil
}

// resolveSeedMode applies the settings-table default for an empty input
// and validates an explicit one.
func (p *Provisioner) resolveSeedMode(ctx context.Context, raw string) (record.SeedMode, error) {
	if raw == "" {
		if v, err := p.index.ReadSetting(ctx, SettingDefaultSeedMode); err == nil {
			if mode := record.SeedMode(v); record.ValidSeedModes[mode] {
				return mode, nil
			}
			slog.Warn("configured default seed mode invalid, using built-in", "value", v)
		}
		return record.SeedRandom, nil
	}

	mode := record.SeedMode(raw)
	if !record.ValidSeedModes[mode] {
		return "", fault.Validation("seed mode %q is not one of random, seeded", raw)
	}
	return mode, nil
}

// resolveElimType applies the settings-table default for an empty input
// and validates an explicit one.
func (p *Provisioner) resolveElimType(ctx context.Context, raw string) (record.ElimType, error) {
	if raw == "" {
		if v, err := p.index.ReadSetting(ctx, SettingDefaultElimType); err == nil {
			if elim := record.ElimType(v); record.ValidElimTypes[elim] {
				return elim, nil
			}
			slog.Warn("configured default elim type invalid, using built-in", "value", v)
		}
		return record.ElimSingle, nil
	}

	elim := record.ElimType(raw)
	if !record.ValidElimTypes[elim] {
		return "", fault.Validation("elim type %q is not one of single, double, none", raw)
	}
	return elim, nil
}
