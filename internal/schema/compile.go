package schema

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/eventbook/internal/record"
)

//go:embed spec.cue
var defaultSpecCUE string

// DefaultSpec compiles the embedded store spec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
func DefaultSpec() (record.StoreSpec, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(defaultSpecCUE, cue.Filename("spec.cue"))
	if err := v.Err(); err != nil {
		return record.StoreSpec{}, formatCUEError(err)
	}
	return CompileSpec(v.LookupPath(cue.ParsePath("store")))
}

// LoadSpecFile compiles an external CUE spec file. The file must define a
// "store" struct of the same shape as the embedded default.
func LoadSpecFile(path string) (record.StoreSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return record.StoreSpec{}, fmt.Errorf("read spec file: %w", err)
	}

	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return record.StoreSpec{}, formatCUEError(err)
	}

	storeVal := v.LookupPath(cue.ParsePath("store"))
	if !storeVal.Exists() {
		return record.StoreSpec{}, &CompileError{
			Field:   "store",
			Message: "store definition is required",
			Pos:     v.Pos(),
		}
	}
	return CompileSpec(storeVal)
}

// CompileSpec parses a CUE value into a StoreSpec.
//
// The CUE value should be the store struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`store: tables: [ ... ]`)
//	spec, err := CompileSpec(v.LookupPath(cue.ParsePath("store")))
func CompileSpec(v cue.Value) (record.StoreSpec, error) {
	if err := v.Err(); err != nil {
		return record.StoreSpec{}, formatCUEError(err)
	}

	tablesVal := v.LookupPath(cue.ParsePath("tables"))
	if !tablesVal.Exists() {
		return record.StoreSpec{}, &CompileError{
			Field:   "tables",
			Message: "tables are required",
			Pos:     v.Pos(),
		}
	}

	iter, err := tablesVal.List()
	if err != nil {
		return record.StoreSpec{}, formatCUEError(err)
	}

	var spec record.StoreSpec
	seen := make(map[string]bool)
	for iter.Next() {
		table, err := compileTable(iter.Value())
		if err != nil {
			return record.StoreSpec{}, err
		}
		if seen[table.Name] {
			return record.StoreSpec{}, &CompileError{
				Field:   "tables",
				Message: fmt.Sprintf("duplicate table %q", table.Name),
				Pos:     iter.Value().Pos(),
			}
		}
		seen[table.Name] = true
		spec.Tables = append(spec.Tables, table)
	}

	if len(spec.Tables) == 0 {
		return record.StoreSpec{}, &CompileError{
			Field:   "tables",
			Message: "at least one table is required",
			Pos:     v.Pos(),
		}
	}

	return spec, nil
}

// compileTable parses a single table definition.
func compileTable(v cue.Value) (record.TableSpec, error) {
	var table record.TableSpec

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return table, &CompileError{
			Field:   "table.name",
			Message: "table name is required",
			Pos:     v.Pos(),
		}
	}
	name, err := nameVal.String()
	if err != nil {
		return table, formatCUEError(err)
	}
	if name == "" {
		return table, &CompileError{
			Field:   "table.name",
			Message: "table name must not be empty",
			Pos:     nameVal.Pos(),
		}
	}
	table.Name = name

	// Parse columns (required, at least one)
	colsVal := v.LookupPath(cue.ParsePath("columns"))
	if !colsVal.Exists() {
		return table, &CompileError{
			Field:   fmt.Sprintf("table.%s.columns", name),
			Message: "columns are required",
			Pos:     v.Pos(),
		}
	}
	colIter, err := colsVal.List()
	if err != nil {
		return table, formatCUEError(err)
	}
	seenCols := make(map[string]bool)
	for colIter.Next() {
		col, err := compileColumn(colIter.Value(), name)
		if err != nil {
			return table, err
		}
		if seenCols[col.Name] {
			return table, &CompileError{
				Field:   fmt.Sprintf("table.%s.columns", name),
				Message: fmt.Sprintf("duplicate column %q", col.Name),
				Pos:     colIter.Value().Pos(),
			}
		}
		seenCols[col.Name] = true
		table.Columns = append(table.Columns, col)
	}
	if len(table.Columns) == 0 {
		return table, &CompileError{
			Field:   fmt.Sprintf("table.%s.columns", name),
			Message: "at least one column is required",
			Pos:     colsVal.Pos(),
		}
	}

	// Parse unique (optional) - must name declared columns
	uniqueVal := v.LookupPath(cue.ParsePath("unique"))
	if uniqueVal.Exists() {
		uniqueIter, err := uniqueVal.List()
		if err != nil {
			return table, formatCUEError(err)
		}
		for uniqueIter.Next() {
			col, err := uniqueIter.Value().String()
			if err != nil {
				return table, formatCUEError(err)
			}
			if !seenCols[col] {
				return table, &CompileError{
					Field:   fmt.Sprintf("table.%s.unique", name),
					Message: fmt.Sprintf("unknown column %q", col),
					Pos:     uniqueIter.Value().Pos(),
				}
			}
			table.Unique = append(table.Unique, col)
		}
	}

	// Parse seeds (optional) - each row must match the column count
	seedsVal := v.LookupPath(cue.ParsePath("seeds"))
	if seedsVal.Exists() {
		seedIter, err := seedsVal.List()
		if err != nil {
			return table, formatCUEError(err)
		}
		for seedIter.Next() {
			rowIter, err := seedIter.Value().List()
			if err != nil {
				return table, formatCUEError(err)
			}
			var row []string
			for rowIter.Next() {
				val, err := rowIter.Value().String()
				if err != nil {
					return table, formatCUEError(err)
				}
				row = append(row, val)
			}
			if len(row) != len(table.Columns) {
				return table, &CompileError{
					Field:   fmt.Sprintf("table.%s.seeds", name),
					Message: fmt.Sprintf("seed row has %d values, want %d", len(row), len(table.Columns)),
					Pos:     seedIter.Value().Pos(),
				}
			}
			table.Seeds = append(table.Seeds, row)
		}
	}

	return table, nil
}

// compileColumn parses a single column definition. Type defaults to text;
// only the three SQLite affinities the store generates are accepted.
func compileColumn(v cue.Value, table string) (record.Column, error) {
	var col record.Column

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return col, &CompileError{
			Field:   fmt.Sprintf("table.%s.columns", table),
			Message: "column name is required",
			Pos:     v.Pos(),
		}
	}
	name, err := nameVal.String()
	if err != nil {
		return col, formatCUEError(err)
	}
	if name == "" {
		return col, &CompileError{
			Field:   fmt.Sprintf("table.%s.columns", table),
			Message: "column name must not be empty",
			Pos:     nameVal.Pos(),
		}
	}
	col.Name = name

	typeVal := v.LookupPath(cue.ParsePath("type"))
	if !typeVal.Exists() {
		col.Type = "text"
		return col, nil
	}
	typ, err := typeVal.String()
	if err != nil {
		return col, formatCUEError(err)
	}
	switch typ {
	case "text", "integer", "real":
		col.Type = typ
	default:
		return col, &CompileError{
			Field:   fmt.Sprintf("table.%s.columns.%s.type", table, name),
			Message: fmt.Sprintf("unsupported column type %q - use text, integer or real", typ),
			Pos:     typeVal.Pos(),
		}
	}

	return col, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
