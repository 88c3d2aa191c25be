// Package links derives the per-event URL set from configured base URLs.
// Derivation is pure: base + "/" + id, no lookups, no state.
package links

import (
	"strings"

	"github.com/roach88/eventbook/internal/record"
)

// Bases holds the URL roots for each link class. An empty base yields
// an empty link, which keeps the record short of LINKS_READY until the
// deployment is configured.
type Bases struct {
	Admin   string
	Public  string
	Display string
}

// Generator implements provision.LinkGenerator.
type Generator struct {
	bases Bases
}

// New returns a Generator deriving links from the given bases.
func New(b Bases) *Generator {
	return &Generator{bases: b}
}

// LinksFor derives the link set for a record ID.
func (g *Generator) LinksFor(id string) record.Links {
	if id == "" {
		return record.Links{}
	}
	return record.Links{
		Admin:   join(g.bases.Admin, id),
		Public:  join(g.bases.Public, id),
		Display: join(g.bases.Display, id),
	}
}

func join(base, id string) string {
	if base == "" {
		return ""
	}
	return strings.TrimSuffix(base, "/") + "/" + id
}
