package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/eventbook/internal/fault"
	"github.com/roach88/eventbook/internal/record"
	"github.com/roach88/eventbook/internal/store"
)

// Outcome.Status values.
const (
	StatusOpened  = "opened"  // last-known reference was valid
	StatusCreated = "created" // nothing existed, fresh store built
	StatusAdopted = "adopted" // found a valid store by scanning
	StatusRebuilt = "rebuilt" // replaced an invalid store
)

// refFileName is the last-known store reference, a JSON file in the data
// directory holding the store filename and this installation's token.
const refFileName = "store.ref"

// metaProvisionedBy marks stores this installation created. A store
// without our token is never trashed, only set aside.
const metaProvisionedBy = "provisioned_by"

// DefaultAliases are the well-known store filenames, in preference
// order. The first is the canonical name for new stores.
var DefaultAliases = []string{"eventbook.db", "eventbooks.db", "control.db"}

// Outcome reports what EnsureStore had to do.
type Outcome struct {
	Status     string   `json:"status"`
	Path       string   `json:"path"`
	Duplicates []string `json:"duplicates,omitempty"` // files renamed aside during the scan
	Lost       []string `json:"lost,omitempty"`       // tables whose rows a rebuild abandoned
}

// Reconciler locates, validates and (re)builds the control store.
type Reconciler struct {
	dataDir string
	aliases []string
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithAliases overrides the well-known store filenames.
func WithAliases(aliases []string) Option {
	return func(r *Reconciler) {
		if len(aliases) > 0 {
			r.aliases = aliases
		}
	}
}

// NewReconciler creates a reconciler for the given data directory.
func NewReconciler(dataDir string, opts ...Option) *Reconciler {
	r := &Reconciler{
		dataDir: dataDir,
		aliases: DefaultAliases,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EnsureStore returns an open, validated control store, healing its way
// through three tiers:
//
//  1. The last-known reference (store.ref). If the referenced file opens
//     and validates against spec, use it.
//  2. Scan the data directory for well-known filenames. The most recently
//     modified candidate wins (ties broken by alias order); the rest are
//     renamed aside, never deleted. A valid winner is adopted and the
//     reference swapped atomically.
//  3. Build a brand-new store from spec. An invalid store in the way is
//     trashed if this installation owns it, otherwise renamed aside. Rows
//     it held are not migrated; their tables are reported in Outcome.Lost.
//
// Open failures are non-fatal and fall through to the next tier. A store
// that fails validation immediately after being built is fatal.
func (r *Reconciler) EnsureStore(ctx context.Context, spec record.StoreSpec) (*store.Store, Outcome, error) {
	if err := os.MkdirAll(r.dataDir, 0o755); err != nil {
		return nil, Outcome{}, fmt.Errorf("ensure data dir: %w", err)
	}

	ref, refOK := r.readRef()
	token := ref.Instance
	if token == "" {
		token = uuid.NewString()
	}

	// Tier 1: last-known reference
	if refOK && ref.File != "" {
		path := filepath.Join(r.dataDir, ref.File)
		s, err := r.openValid(ctx, path, spec)
		if err == nil {
			return s, Outcome{Status: StatusOpened, Path: path}, nil
		}
		slog.Info("referenced store unusable, scanning for candidates",
			"file", ref.File,
			"error", err,
		)
	}

	// Tier 2: scan well-known filenames
	candidates := r.scanCandidates()
	var duplicates []string
	var lost []string
	sawInvalid := false

	if len(candidates) > 0 {
		primary := candidates[0]
		for _, dup := range candidates[1:] {
			renamed := fmt.Sprintf("%s.duplicate-%d", dup.name, time.Now().Unix())
			if err := os.Rename(dup.path, filepath.Join(r.dataDir, renamed)); err != nil {
				slog.Warn("could not set aside duplicate store", "file", dup.name, "error", err)
				continue
			}
			slog.Info("renamed duplicate store", "from", dup.name, "to", renamed)
			duplicates = append(duplicates, renamed)
		}

		s, err := r.openValid(ctx, primary.path, spec)
		if err == nil {
			if werr := r.writeRef(storeRef{File: primary.name, Instance: token}); werr != nil {
				s.Close()
				return nil, Outcome{}, fmt.Errorf("write store ref: %w", werr)
			}
			slog.Info("adopted existing store", "file", primary.name)
			return s, Outcome{
				Status:     StatusAdopted,
				Path:       primary.path,
				Duplicates: duplicates,
			}, nil
		}

		// The primary is invalid. Inventory what it held, then move it
		// out of the canonical spot so the rebuild starts clean.
		sawInvalid = true
		slog.Warn("candidate store failed validation", "file", primary.name, "error", err)
		lost = r.inventoryTables(ctx, primary.path)
		if err := r.setAsideInvalid(ctx, primary.name, primary.path, token); err != nil {
			return nil, Outcome{}, fault.SchemaCorrupt(
				fmt.Sprintf("cannot displace invalid store %s", primary.name), err)
		}
	}

	// Tier 3: build fresh
	name := r.aliases[0]
	path := filepath.Join(r.dataDir, name)

	s, err := store.Open(path)
	if err != nil {
		return nil, Outcome{}, fault.Internal("create store", err)
	}
	if err := s.Initialize(ctx, spec); err != nil {
		s.Close()
		return nil, Outcome{}, fault.SchemaCorrupt("initialize store", err)
	}
	if err := s.WriteMeta(ctx, metaProvisionedBy, token); err != nil {
		s.Close()
		return nil, Outcome{}, fault.Internal("stamp ownership", err)
	}
	if err := Validate(ctx, s, spec); err != nil {
		s.Close()
		return nil, Outcome{}, fault.SchemaCorrupt("rebuilt store failed validation", err)
	}
	if err := r.writeRef(storeRef{File: name, Instance: token}); err != nil {
		s.Close()
		return nil, Outcome{}, fmt.Errorf("write store ref: %w", err)
	}

	status := StatusCreated
	if sawInvalid {
		status = StatusRebuilt
	}
	slog.Info("built store", "file", name, "status", status)
	return s, Outcome{
		Status:     status,
		Path:       path,
		Duplicates: duplicates,
		Lost:       lost,
	}, nil
}

// Validate checks an open store against the spec: same tables in order,
// same columns per table in order, seeded keys present. Seed VALUES are
// not compared - operators may change them and re-validation must not
// condemn the store for it. Any error means "not this store".
func Validate(ctx context.Context, s *store.Store, spec record.StoreSpec) error {
	names, err := s.TableNames(ctx)
	if err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	want := spec.TableNames()
	if len(names) != len(want) {
		return fmt.Errorf("validate: store has tables %v, spec wants %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			return fmt.Errorf("validate: table %d is %q, spec wants %q", i, names[i], want[i])
		}
	}

	for _, table := range spec.Tables {
		cols, err := s.TableColumns(ctx, table.Name)
		if err != nil {
			return fmt.Errorf("validate: %w", err)
		}
		wantCols := table.ColumnNames()
		if len(cols) != len(wantCols) {
			return fmt.Errorf("validate: table %s has columns %v, spec wants %v",
				table.Name, cols, wantCols)
		}
		for i := range wantCols {
			if cols[i] != wantCols[i] {
				return fmt.Errorf("validate: table %s column %d is %q, spec wants %q",
					table.Name, i, cols[i], wantCols[i])
			}
		}

		// Key presence only: the first column is the primary key
		for _, seed := range table.Seeds {
			ok, err := s.HasRow(ctx, table.Name, wantCols[:1], seed[:1])
			if err != nil {
				return fmt.Errorf("validate: %w", err)
			}
			if !ok {
				return fmt.Errorf("validate: table %s is missing seeded key %q", table.Name, seed[0])
			}
		}
	}

	return nil
}

// openValid opens the store at path and validates it against spec. On
// success the store comes back open and migrated; on failure it is closed
// and the error says why.
func (r *Reconciler) openValid(ctx context.Context, path string, spec record.StoreSpec) (*store.Store, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat store: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("stat store: %s is a directory", path)
	}

	s, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	if err := Validate(ctx, s, spec); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// candidate is a well-known store file found during the scan.
type candidate struct {
	name  string
	path  string
	mtime time.Time
	order int
}

// scanCandidates returns existing well-known store files, primary first.
// Most recently modified wins - a heuristic, but the least surprising
// one - with ties broken by alias declaration order.
func (r *Reconciler) scanCandidates() []candidate {
	var found []candidate
	for i, name := range r.aliases {
		path := filepath.Join(r.dataDir, name)
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		found = append(found, candidate{name: name, path: path, mtime: info.ModTime(), order: i})
	}
	sort.Slice(found, func(i, j int) bool {
		if !found[i].mtime.Equal(found[j].mtime) {
			return found[i].mtime.After(found[j].mtime)
		}
		return found[i].order < found[j].order
	})
	return found
}

// inventoryTables reports which tables of a store being replaced still
// held rows. Unreadable stores report nothing - there is nothing
// enumerable to lose.
func (r *Reconciler) inventoryTables(ctx context.Context, path string) []string {
	s, err := store.Open(path)
	if err != nil {
		return nil
	}
	defer s.Close()

	names, err := s.TableNames(ctx)
	if err != nil {
		return nil
	}

	var lost []string
	for _, name := range names {
		count, err := s.RowCount(ctx, name)
		if err != nil {
			continue
		}
		if count > 0 {
			lost = append(lost, name)
		}
	}
	return lost
}

// setAsideInvalid moves an invalid store out of the canonical spot.
// Stores carrying this installation's ownership token go to trash/;
// anything else is renamed in place - never discard a store another
// installation may still want.
func (r *Reconciler) setAsideInvalid(ctx context.Context, name, path, token string) error {
	if r.isOwned(ctx, path, token) {
		trashDir := filepath.Join(r.dataDir, "trash")
		if err := os.MkdirAll(trashDir, 0o755); err == nil {
			dest := filepath.Join(trashDir, fmt.Sprintf("%s.%d", name, time.Now().Unix()))
			if err := os.Rename(path, dest); err == nil {
				slog.Info("trashed invalid store", "file", name)
				return nil
			}
			slog.Warn("could not trash invalid store, renaming instead", "file", name)
		}
	}

	renamed := fmt.Sprintf("%s.invalid-%d", name, time.Now().Unix())
	if err := os.Rename(path, filepath.Join(r.dataDir, renamed)); err != nil {
		return err
	}
	slog.Info("renamed invalid store", "from", name, "to", renamed)
	return nil
}

// isOwned reports whether the store at path carries our ownership token.
func (r *Reconciler) isOwned(ctx context.Context, path, token string) bool {
	s, err := store.Open(path)
	if err != nil {
		return false
	}
	defer s.Close()

	value, err := s.ReadMeta(ctx, metaProvisionedBy)
	return err == nil && value == token
}

// storeRef is the persisted last-known store reference.
type storeRef struct {
	File     string `json:"file"`
	Instance string `json:"instance"`
}

// readRef loads the reference file. Missing or unreadable refs are not
// errors, just a cold start.
func (r *Reconciler) readRef() (storeRef, bool) {
	data, err := os.ReadFile(filepath.Join(r.dataDir, refFileName))
	if err != nil {
		return storeRef{}, false
	}

	var ref storeRef
	if err := json.Unmarshal(data, &ref); err != nil {
		slog.Warn("store ref unreadable, ignoring", "error", err)
		return storeRef{}, false
	}
	// A tampered ref must not escape the data dir
	if ref.File != "" && ref.File != filepath.Base(ref.File) {
		slog.Warn("store ref names a path outside the data dir, ignoring", "file", ref.File)
		return storeRef{}, false
	}
	return ref, true
}

// writeRef swaps the reference file atomically (temp file + rename) so a
// crash mid-write never leaves a torn ref.
func (r *Reconciler) writeRef(ref storeRef) error {
	data, err := json.MarshalIndent(ref, "", "  ")
	if err != nil {
		return err
	}

	tmp := filepath.Join(r.dataDir, refFileName+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(r.dataDir, refFileName))
}
