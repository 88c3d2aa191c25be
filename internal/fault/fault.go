// Package fault defines the tagged error taxonomy shared by the control
// plane. Every failure the service surfaces maps to exactly one Code, and
// mutating operations additionally carry the Phase at which they failed.
//
// The package imports nothing internal so that any layer may produce or
// inspect faults without creating dependency cycles.
package fault

import (
	"errors"
	"fmt"
	"time"
)

// Code categorizes a fault.
type Code string

const (
	// CodeValidation indicates rejected input. No side effects occurred.
	CodeValidation Code = "VALIDATION"

	// CodeConflict indicates a duplicate natural key. Callers surface this
	// as an idempotent success, never as an error response.
	CodeConflict Code = "CONFLICT"

	// CodeLockTimeout indicates the guard lock could not be acquired in
	// time. Retryable.
	CodeLockTimeout Code = "LOCK_TIMEOUT"

	// CodeRateLimit indicates the caller exceeded its window. Retryable;
	// RetryAfter carries the wait hint.
	CodeRateLimit Code = "RATE_LIMIT"

	// CodeSchemaCorrupt indicates the control store failed validation.
	// Triggers an automatic rebuild; fatal only if the rebuild itself
	// fails validation.
	CodeSchemaCorrupt Code = "SCHEMA_CORRUPT"

	// CodeProvisioning indicates a partial failure mid-creation. Rollback
	// of the orphaned child resource is attempted before this surfaces.
	CodeProvisioning Code = "PROVISIONING"

	// CodeNotFound indicates an unknown record key.
	CodeNotFound Code = "NOT_FOUND"

	// CodeInternal covers store and infrastructure failures that fit no
	// other category.
	CodeInternal Code = "INTERNAL"
)

// Phase names the step of a mutating operation at which a fault occurred.
// It is the discriminant callers use to tell "nothing happened" from
// "rollback ran".
type Phase string

const (
	PhaseValidate    Phase = "validate"
	PhaseLimit       Phase = "limit"
	PhaseLock        Phase = "lock"
	PhaseExists      Phase = "exists"
	PhaseMaterialize Phase = "materialize"
	PhaseSeed        Phase = "seed"
	PhaseMetadata    Phase = "metadata"
	PhaseRecord      Phase = "record"
	PhaseCache       Phase = "cache"
	PhaseDone        Phase = "done"
)

// Fault is the tagged error type for the taxonomy above.
type Fault struct {
	// Code identifies the category.
	Code Code

	// Phase is the mutation step at which the fault occurred. Empty for
	// faults raised outside a mutation sequence (reads, lookups).
	Phase Phase

	// Message is a human-readable description.
	Message string

	// Key identifies the affected record (id or slug), when known.
	Key string

	// RetryAfter is the wait hint for retryable faults. Zero otherwise.
	RetryAfter time.Duration

	// Err is the wrapped cause, if any.
	Err error
}

// Error implements the error interface.
func (f *Fault) Error() string {
	msg := f.Message
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	switch {
	case f.Key != "" && f.Phase != "":
		return fmt.Sprintf("%s: %s (key=%s, phase=%s)", f.Code, msg, f.Key, f.Phase)
	case f.Phase != "":
		return fmt.Sprintf("%s: %s (phase=%s)", f.Code, msg, f.Phase)
	case f.Key != "":
		return fmt.Sprintf("%s: %s (key=%s)", f.Code, msg, f.Key)
	default:
		return fmt.Sprintf("%s: %s", f.Code, msg)
	}
}

// Unwrap returns the wrapped cause.
func (f *Fault) Unwrap() error {
	return f.Err
}

// Retryable reports whether the caller may retry the operation unchanged.
func (f *Fault) Retryable() bool {
	return f.Code == CodeLockTimeout || f.Code == CodeRateLimit
}

// Validation builds a VALIDATION fault. Validation always happens before
// any side effect, so the phase is fixed.
func Validation(format string, args ...any) *Fault {
	return &Fault{
		Code:    CodeValidation,
		Phase:   PhaseValidate,
		Message: fmt.Sprintf(format, args...),
	}
}

// LockTimeout builds a retryable LOCK_TIMEOUT fault for the given scope.
func LockTimeout(scope string, waited time.Duration) *Fault {
	return &Fault{
		Code:       CodeLockTimeout,
		Phase:      PhaseLock,
		Message:    fmt.Sprintf("lock %q not acquired within %s", scope, waited),
		RetryAfter: waited,
	}
}

// RateLimit builds a retryable RATE_LIMIT fault with an explicit wait hint.
func RateLimit(class string, retryAfter time.Duration) *Fault {
	return &Fault{
		Code:       CodeRateLimit,
		Phase:      PhaseLimit,
		Message:    fmt.Sprintf("rate limit exceeded for %s, retry after %s", class, retryAfter),
		RetryAfter: retryAfter,
	}
}

// SchemaCorrupt builds a SCHEMA_CORRUPT fault wrapping the validation cause.
func SchemaCorrupt(msg string, err error) *Fault {
	return &Fault{
		Code:    CodeSchemaCorrupt,
		Message: msg,
		Err:     err,
	}
}

// Provisioning builds a PROVISIONING fault for a mid-creation failure.
func Provisioning(phase Phase, key string, err error) *Fault {
	return &Fault{
		Code:    CodeProvisioning,
		Phase:   phase,
		Message: fmt.Sprintf("provisioning failed during %s", phase),
		Key:     key,
		Err:     err,
	}
}

// NotFound builds a NOT_FOUND fault for an unknown record key.
func NotFound(key string) *Fault {
	return &Fault{
		Code:    CodeNotFound,
		Message: "no record matches key",
		Key:     key,
	}
}

// Internal builds an INTERNAL fault wrapping an infrastructure error.
func Internal(msg string, err error) *Fault {
	return &Fault{
		Code:    CodeInternal,
		Message: msg,
		Err:     err,
	}
}

// As extracts a *Fault from err, handling wrapped errors.
func As(err error) (*Fault, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// CodeOf returns the fault code of err, or CodeInternal when err carries
// no fault tag.
func CodeOf(err error) Code {
	if f, ok := As(err); ok {
		return f.Code
	}
	return CodeInternal
}

// IsValidation reports whether err is a VALIDATION fault.
func IsValidation(err error) bool { return is(err, CodeValidation) }

// IsLockTimeout reports whether err is a LOCK_TIMEOUT fault.
func IsLockTimeout(err error) bool { return is(err, CodeLockTimeout) }

// IsRateLimit reports whether err is a RATE_LIMIT fault.
func IsRateLimit(err error) bool { return is(err, CodeRateLimit) }

// IsSchemaCorrupt reports whether err is a SCHEMA_CORRUPT fault.
func IsSchemaCorrupt(err error) bool { return is(err, CodeSchemaCorrupt) }

// IsProvisioning reports whether err is a PROVISIONING fault.
func IsProvisioning(err error) bool { return is(err, CodeProvisioning) }

// IsNotFound reports whether err is a NOT_FOUND fault.
func IsNotFound(err error) bool { return is(err, CodeNotFound) }

func is(err error, code Code) bool {
	f, ok := As(err)
	return ok && f.Code == code
}
