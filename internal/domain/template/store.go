package template

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned for unknown template IDs or supplier keys.
	ErrNotFound = errors.New("not found")
	// ErrTemplateConflict signals a revision CAS failure: the template
	// changed between read and write. Callers re-read and retry.
	ErrTemplateConflict = errors.New("template revision conflict")
)

// TemplateStore persists templates. Update is compare-and-swap on Revision:
// it succeeds only against the revision the caller read, bumping it by one.
type TemplateStore interface {
	Get(ctx context.Context, id string) (*Template, error)
	Create(ctx context.Context, t *Template) error
	Update(ctx context.Context, t *Template) error
	// ListCandidates returns templates for the supplier plus generic ones.
	ListCandidates(ctx context.Context, supplierKey string) ([]*Template, error)
	// Prune removes templates unused since the cutoff whose success rate is
	// below the threshold, returning how many were removed.
	Prune(ctx context.Context, unusedSince time.Time, maxSuccessRate float64) (int, error)
}

// ProfileStore persists supplier profiles keyed by supplier.
type ProfileStore interface {
	GetProfile(ctx context.Context, supplierKey string) (*SupplierProfile, error)
	UpsertProfile(ctx context.Context, p *SupplierProfile) error
}
