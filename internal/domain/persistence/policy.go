// internal/domain/persistence/policy.go
package persistence

import (
	"context"
	"errors"

	"github.com/your-org/commerce-session/internal/domain/outcome"
	"github.com/your-org/commerce-session/internal/domain/session"
)

// Saver is the write half of the adapter
type Saver interface {
	Save(ctx context.Context, scope session.Scope, name string, state any) error
}

// WriteReport describes where a durable write landed
type WriteReport struct {
	// Durable is true when the scope's own tier accepted the write
	Durable bool
	// LocalOnly is true when the remote tier failed but the device fallback succeeded
	LocalOnly bool
	Err       error
}

// Failed reports whether nothing was persisted
func (r WriteReport) Failed() bool {
	return !r.Durable && !r.LocalOnly
}

// WriteWithFallback is the stores' write policy: write the scope's tier and, when a
// remote write fails, keep a copy on the device so the user's action survives.
func WriteWithFallback(ctx context.Context, s Saver, scope session.Scope, name string, state any) WriteReport {
	err := s.Save(ctx, scope, name, state)
	if err == nil {
		return WriteReport{Durable: true}
	}
	if !scope.IsRemote() {
		return WriteReport{Err: err}
	}

	if lerr := s.Save(ctx, scope.Local(), name, state); lerr != nil {
		return WriteReport{Err: errors.Join(err, lerr)}
	}
	return WriteReport{LocalOnly: true, Err: err}
}

// Result classifies the report for a mutator: Applied, AppliedLocallyOnly or RolledBack
func (r WriteReport) Result() outcome.Result {
	switch {
	case r.Durable:
		return outcome.Ok()
	case r.LocalOnly:
		return outcome.LocallyOnly("saved on this device only, your account could not be updated")
	default:
		return outcome.RollBack(outcome.ReasonPersistenceFailure, "could not save your changes, please try again")
	}
}

// BlobStore is what the session stores need from the adapter
type BlobStore interface {
	Saver
	Load(ctx context.Context, scope session.Scope, name string, dst any) (bool, error)
}
