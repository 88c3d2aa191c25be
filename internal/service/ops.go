package service

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/roach88/eventbook/internal/fault"
	"github.com/roach88/eventbook/internal/guard"
	"github.com/roach88/eventbook/internal/index"
	"github.com/roach88/eventbook/internal/provision"
	"github.com/roach88/eventbook/internal/record"
)

// ProvisionResponse reports the result of a provision request.
type ProvisionResponse struct {
	OK         bool
	ID         string
	Slug       string
	Tag        string
	Resource   record.ResourceRef
	Idempotent bool
	Phase      fault.Phase
	Warnings   []string
	Err        error
}

// IndexResponse reports a conditional index read. Status follows the
// HTTP convention: 200 fresh, 304 not modified, 500 failure.
type IndexResponse struct {
	OK     bool
	Status int
	Etag   string
	Items  []record.IndexEntry
	Err    error
}

// BasicResponse reports an operation with no payload.
type BasicResponse struct {
	OK  bool
	Err error
}

// StepResponse reports a state machine advance.
type StepResponse struct {
	OK    bool
	State record.Status
	Err   error
}

// StateResponse reports a record's provisioning progress.
type StateResponse struct {
	OK          bool
	State       record.Status
	HasResource bool
	HasLinks    bool
	Err         error
}

// Provision creates the event for a natural key, or returns the
// existing one idempotently.
func (s *Service) Provision(ctx context.Context, params provision.Params) ProvisionResponse {
	if err := s.guard.Allow(guard.ClassCreate, s.scope); err != nil {
		return ProvisionResponse{Phase: phaseOf(err), Err: err}
	}

	res, err := s.prov.Provision(ctx, params)
	if err != nil {
		return ProvisionResponse{Phase: phaseOf(err), Err: err}
	}
	return ProvisionResponse{
		OK:         true,
		ID:         res.ID,
		Slug:       res.Slug,
		Tag:        res.Tag,
		Resource:   res.Resource,
		Idempotent: res.Idempotent,
		Phase:      res.Phase,
		Warnings:   res.Warnings,
	}
}

// GetIndex returns the index projection, or 304 when the client's ETag
// still matches.
func (s *Service) GetIndex(ctx context.Context, etag string) IndexResponse {
	if err := s.guard.Allow(guard.ClassRead, s.scope); err != nil {
		return IndexResponse{Status: http.StatusInternalServerError, Err: err}
	}

	result, err := s.cache.Read(ctx, etag)
	if err != nil {
		return IndexResponse{Status: http.StatusInternalServerError, Err: err}
	}

	status := http.StatusOK
	if result.Status == index.StatusNotModified {
		status = http.StatusNotModified
	}
	return IndexResponse{
		OK:     true,
		Status: status,
		Etag:   result.Etag,
		Items:  result.Items,
	}
}

// SetDefault marks one record as the default. The single-default
// invariant holds atomically: the previous default is cleared in the
// same transaction.
func (s *Service) SetDefault(ctx context.Context, key string) BasicResponse {
	if err := s.guard.Allow(guard.ClassCreate, s.scope); err != nil {
		return BasicResponse{Err: err}
	}

	err := s.guard.WithLock(ctx, guard.DefaultScope, func() error {
		rec, err := s.readRecord(ctx, key)
		if err != nil {
			return err
		}
		if err := s.store.SetDefault(ctx, rec.ID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fault.NotFound(key)
			}
			return fault.Internal("set default", err)
		}
		s.cache.Invalidate()
		return nil
	})
	if err != nil {
		return BasicResponse{Err: err}
	}
	return BasicResponse{OK: true}
}

// Archive removes a record from the index. The child resource is never
// touched.
func (s *Service) Archive(ctx context.Context, key string) BasicResponse {
	if err := s.guard.Allow(guard.ClassCreate, s.scope); err != nil {
		return BasicResponse{Err: err}
	}

	err := s.guard.WithLock(ctx, guard.DefaultScope, func() error {
		rec, err := s.readRecord(ctx, key)
		if err != nil {
			return err
		}
		if err := s.store.DeleteRecord(ctx, rec.ID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fault.NotFound(key)
			}
			return fault.Internal("archive record", err)
		}
		s.cache.Invalidate()
		return nil
	})
	if err != nil {
		return BasicResponse{Err: err}
	}
	return BasicResponse{OK: true}
}

// Step advances a record one provisioning transition.
func (s *Service) Step(ctx context.Context, key string) StepResponse {
	if err := s.guard.Allow(guard.ClassCreate, s.scope); err != nil {
		return StepResponse{Err: err}
	}

	state, err := s.prov.Step(ctx, key)
	if err != nil {
		return StepResponse{State: state, Err: err}
	}
	return StepResponse{OK: true, State: state}
}

// GetState reports a record's provisioning progress.
func (s *Service) GetState(ctx context.Context, key string) StateResponse {
	if err := s.guard.Allow(guard.ClassRead, s.scope); err != nil {
		return StateResponse{Err: err}
	}

	info, err := s.prov.State(ctx, key)
	if err != nil {
		return StateResponse{Err: err}
	}
	return StateResponse{
		OK:          true,
		State:       info.Status,
		HasResource: info.HasResource,
		HasLinks:    info.HasLinks,
	}
}

func (s *Service) readRecord(ctx context.Context, key string) (record.EventRecord, error) {
	rec, err := s.store.ReadRecordByKey(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return record.EventRecord{}, fault.NotFound(key)
	}
	if err != nil {
		return record.EventRecord{}, fault.Internal("read record", err)
	}
	return rec, nil
}

func phaseOf(err error) fault.Phase {
	if f, ok := fault.As(err); ok {
		return f.Phase
	}
	return ""
}
