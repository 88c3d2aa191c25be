package provision

import (
	"context"
	"log/slog"

	"github.com/roach88/eventbook/internal/fault"
	"github.com/roach88/eventbook/internal/guard"
	"github.com/roach88/eventbook/internal/record"
)

// StateInfo is the read-only view of a record's provisioning progress.
type StateInfo struct {
	Status      record.Status
	HasResource bool
	HasLinks    bool
}

// Step advances the record one transition and returns the resulting
// status. Idempotent: at LINKS_READY or ERROR it is a no-op, and
// re-running any transition never regresses state or re-creates a
// child resource that already exists.
//
// Transitions serialize on the guard, so concurrent Step calls for the
// same record each observe a committed state.
func (p *Provisioner) Step(ctx context.Context, key string) (record.Status, error) {
	var status record.Status
	err := p.guard.WithLock(ctx, guard.DefaultScope, func() error {
		rec, err := p.readRecord(ctx, key)
		if err != nil {
			return err
		}
		status, err = p.step(ctx, rec)
		return err
	})
	return status, err
}

// step runs one transition. Must be called with the lock held.
func (p *Provisioner) step(ctx context.Context, rec record.EventRecord) (record.Status, error) {
	switch rec.Status {
	case record.StatusCreated:
		return p.stepFromCreated(ctx, rec)

	case record.StatusWorkbookReady:
		return p.stepFromWorkbookReady(ctx, rec)

	case record.StatusLinksReady, record.StatusError:
		// Terminal. ERROR stays sticky until externally cleared.
		return rec.Status, nil

	default:
		return rec.Status, fault.Internal("unknown record status "+string(rec.Status), nil)
	}
}

// stepFromCreated ensures the child resource exists and advances to
// WORKBOOK_READY. Records imported with a ref are verified instead of
// re-created; a dangling ref is healed by materializing a fresh child.
func (p *Provisioner) stepFromCreated(ctx context.Context, rec record.EventRecord) (record.Status, error) {
	ref := rec.Resource

	if !ref.IsZero() {
		exists, err := p.factory.Exists(ctx, ref)
		if err != nil {
			// Probe failure is transient infrastructure trouble, not a
			// provisioning failure. Leave the state alone.
			return rec.Status, fault.Internal("verify child resource", err)
		}
		if !exists {
			slog.Warn("child resource missing, rematerializing",
				"id", rec.ID,
				"resource_id", ref.ID,
			)
			ref = record.ResourceRef{}
		}
	}

	if ref.IsZero() {
		created, err := p.materializeChild(ctx, rec.ID, rec.Name, rec.Slug, rec.StartDate, rec.Tag)
		if err != nil {
			return record.StatusError, p.markError(ctx, rec.ID, err)
		}
		if serr := p.index.SetResource(ctx, rec.ID, created); serr != nil {
			cause := fault.Provisioning(fault.PhaseRecord, rec.ID, serr)
			p.trash(ctx, created)
			return record.StatusError, p.markError(ctx, rec.ID, cause)
		}
		ref = created
	}

	if err := p.index.SetStatus(ctx, rec.ID, record.StatusWorkbookReady, ""); err != nil {
		return rec.Status, fault.Internal("persist status", err)
	}
	p.cache.Invalidate()
	slog.Info("record advanced",
		"id", rec.ID,
		"status", record.StatusWorkbookReady,
		"resource_id", ref.ID,
	)
	return record.StatusWorkbookReady, nil
}

// stepFromWorkbookReady persists derived links and advances to
// LINKS_READY once both required links are present.
func (p *Provisioner) stepFromWorkbookReady(ctx context.Context, rec record.EventRecord) (record.Status, error) {
	links := p.links.LinksFor(rec.ID)
	if err := p.index.SetLinks(ctx, rec.ID, links); err != nil {
		return rec.Status, fault.Internal("persist links", err)
	}

	if !links.Complete() {
		// Base URLs not configured yet; stay and try again next time.
		return record.StatusWorkbookReady, nil
	}

	if err := p.index.SetStatus(ctx, rec.ID, record.StatusLinksReady, ""); err != nil {
		return record.StatusWorkbookReady, fault.Internal("persist status", err)
	}
	p.cache.Invalidate()
	slog.Info("record advanced", "id", rec.ID, "status", record.StatusLinksReady)
	return record.StatusLinksReady, nil
}

// markError persists the sticky ERROR state with the cause's message.
// The cause passes through unchanged so callers return it directly;
// a failure to persist the state is logged, never substituted.
func (p *Provisioner) markError(ctx context.Context, id string, cause error) error {
	if err := p.index.SetStatus(ctx, id, record.StatusError, cause.Error()); err != nil {
		slog.Error("could not persist error state", "id", id, "error", err)
	} else {
		p.cache.Invalidate()
	}
	return cause
}

// State reports a record's progress. Read-only and lock-free.
func (p *Provisioner) State(ctx context.Context, key string) (StateInfo, error) {
	rec, err := p.readRecord(ctx, key)
	if err != nil {
		return StateInfo{}, err
	}
	return StateInfo{
		Status:      rec.Status,
		HasResource: !rec.Resource.IsZero(),
		HasLinks:    rec.Links.Complete(),
	}, nil
}
