package record

// Status tracks a record's provisioning progress.
//
// The state machine is strictly forward: CREATED -> WORKBOOK_READY ->
// LINKS_READY, with ERROR reachable from any state and sticky until
// externally cleared.
type Status string

const (
	// StatusCreated is a bare registration: the index row exists but no
	// child resource has been materialized yet.
	StatusCreated Status = "created"

	// StatusWorkbookReady means the child workbook exists and carries its
	// seeded sub-structures and metadata.
	StatusWorkbookReady Status = "workbook_ready"

	// StatusLinksReady means the derived admin and public links are
	// persisted. Terminal success state.
	StatusLinksReady Status = "links_ready"

	// StatusError is the terminal error state. StatusDetail carries the
	// captured message.
	StatusError Status = "error"
)

// ValidStatuses defines the allowed status values.
var ValidStatuses = map[Status]bool{
	StatusCreated:       true,
	StatusWorkbookReady: true,
	StatusLinksReady:    true,
	StatusError:         true,
}

// SeedMode selects how bracket seeding is performed for the event.
// The computation itself is outside this system; the mode is carried on
// the record for the consumers that do it.
type SeedMode string

const (
	SeedRandom SeedMode = "random"
	SeedSeeded SeedMode = "seeded"
)

// ValidSeedModes defines the allowed seed modes.
var ValidSeedModes = map[SeedMode]bool{
	SeedRandom: true,
	SeedSeeded: true,
}

// ElimType selects the elimination format for the event.
type ElimType string

const (
	ElimSingle ElimType = "single"
	ElimDouble ElimType = "double"
	ElimNone   ElimType = "none"
)

// ValidElimTypes defines the allowed elimination types.
var ValidElimTypes = map[ElimType]bool{
	ElimSingle: true,
	ElimDouble: true,
	ElimNone:   true,
}

// ResourceRef identifies a provisioned child resource (the per-event
// workbook). Zero value means "not provisioned yet".
type ResourceRef struct {
	// ID is the opaque resource identifier.
	ID string `json:"id"`
	// Addr is the resource address (for the default filesystem factory,
	// an absolute file path).
	Addr string `json:"addr"`
}

// IsZero reports whether the ref points at nothing.
func (r ResourceRef) IsZero() bool {
	return r.ID == "" && r.Addr == ""
}

// Links are the derived URLs for an event. Admin and Public are required
// for LINKS_READY; Display is optional.
type Links struct {
	Admin   string `json:"admin"`
	Public  string `json:"public"`
	Display string `json:"display"`
}

// Complete reports whether the required links are both present.
func (l Links) Complete() bool {
	return l.Admin != "" && l.Public != ""
}

// Geo carries the optional location fields. Latitude/Longitude are only
// meaningful together; Geohash is derived from them.
type Geo struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Geohash   string  `json:"geohash"`
	Venue     string  `json:"venue"`
	City      string  `json:"city"`
	State     string  `json:"state"`
	Country   string  `json:"country"`
}

// HasCoords reports whether both coordinates are set. The zero point
// (0,0) is treated as unset; it is in the middle of the Atlantic.
func (g Geo) HasCoords() bool {
	return g.Latitude != 0 || g.Longitude != 0
}

// EventRecord is one row of the shared index.
//
// ID is assigned at creation and never changes or repeats. The pair
// (Slug, StartDate) is the natural idempotency key: a creation request
// whose pair already exists returns the existing record.
type EventRecord struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Slug         string      `json:"slug"`
	StartDate    string      `json:"start_date"` // calendar date, YYYY-MM-DD
	Tag          string      `json:"tag"`        // human composite: slug+date+short-id
	Status       Status      `json:"status"`
	StatusDetail string      `json:"status_detail,omitempty"`
	IsDefault    bool        `json:"is_default"`
	SeedMode     SeedMode    `json:"seed_mode"`
	ElimType     ElimType    `json:"elim_type"`
	Resource     ResourceRef `json:"resource"`
	Links        Links       `json:"links"`
	Geo          Geo         `json:"geo"`

	// CreatedSeq is the storage-internal insert counter. It orders
	// nothing user-visible and never enters the ETag projection.
	CreatedSeq int64 `json:"created_seq"`
}

// NaturalKey returns the (slug, startDate) identity as a single
// comparable string. Used for duplicate detection in tests and logs; the
// store compares the columns directly.
func (r EventRecord) NaturalKey() string {
	return r.Slug + "@" + r.StartDate
}

// Column declares one column of a control-store table. Type is the
// SQLite affinity ("text", "integer" or "real"); empty means text.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// TableSpec declares one table of the control store: a fixed header and
// optional seed rows. Column order is significant; the first column is
// the primary key. Unique, if set, names the columns of a composite
// unique index.
type TableSpec struct {
	Name    string     `json:"name"`
	Columns []Column   `json:"columns"`
	Unique  []string   `json:"unique,omitempty"`
	Seeds   [][]string `json:"seeds,omitempty"`
}

// ColumnNames returns the column names in declaration order.
func (t TableSpec) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// StoreSpec is the declarative shape of the control store: an ordered
// list of tables. It is used both to create a fresh store and to
// validate an existing one.
type StoreSpec struct {
	Tables []TableSpec `json:"tables"`
}

// Table returns the spec for the named table.
func (s StoreSpec) Table(name string) (TableSpec, bool) {
	for _, t := range s.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return TableSpec{}, false
}

// TableNames returns the table names in declaration order.
func (s StoreSpec) TableNames() []string {
	names := make([]string, len(s.Tables))
	for i, t := range s.Tables {
		names[i] = t.Name
	}
	return names
}
