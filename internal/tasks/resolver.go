package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/services"
	"github.com/desertthunder/plsync/internal/shared"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ResolveError reports the descriptor whose search failed for a reason other than a missing match.
type ResolveError struct {
	Index int
	Name  string
	Err   error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("%v: track %d %q: %v", shared.ErrResolve, e.Index+1, e.Name, e.Err)
}

func (e *ResolveError) Unwrap() []error {
	return []error{shared.ErrResolve, e.Err}
}

// Resolver maps track descriptors to catalog IDs with one search per descriptor.
type Resolver struct {
	catalog     services.Catalog
	market      string
	concurrency int
	limiter     *rate.Limiter
}

// ResolverOption configures a [Resolver].
type ResolverOption func(*Resolver)

// WithConcurrency allows up to n searches in flight. Values below 2 keep resolution sequential.
func WithConcurrency(n int) ResolverOption {
	return func(r *Resolver) {
		if n > 1 {
			r.concurrency = n
		}
	}
}

// WithRateLimit caps searches per second. Zero or less disables throttling.
func WithRateLimit(perSecond float64) ResolverOption {
	return func(r *Resolver) {
		if perSecond > 0 {
			r.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// NewResolver creates a [Resolver] that searches catalog within market.
func NewResolver(catalog services.Catalog, market string, opts ...ResolverOption) *Resolver {
	r := &Resolver{catalog: catalog, market: market, concurrency: 1}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns one result per descriptor, in input order.
//
// A descriptor with no catalog candidates is recorded as unresolved and resolution continues.
// Any other search failure stops resolution and is returned as a [*ResolveError].
func (r *Resolver) Resolve(ctx context.Context, descriptors []models.TrackDescriptor) ([]models.ResolutionResult, error) {
	return r.resolve(ctx, descriptors, nil)
}

func (r *Resolver) resolve(ctx context.Context, descriptors []models.TrackDescriptor, onResult func(i int, res models.ResolutionResult)) ([]models.ResolutionResult, error) {
	if r.catalog == nil {
		return nil, fmt.Errorf("%w: catalog not initialized", shared.ErrServiceUnavailable)
	}

	results := make([]models.ResolutionResult, len(descriptors))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, d := range descriptors {
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			// an earlier search already failed
			if gctx.Err() != nil {
				return nil
			}
			res, err := r.resolveOne(gctx, d)
			if err != nil {
				return &ResolveError{Index: i, Name: d.Name, Err: err}
			}
			results[i] = res
			if onResult != nil {
				onResult(i, res)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Resolver) resolveOne(ctx context.Context, d models.TrackDescriptor) (models.ResolutionResult, error) {
	res := models.ResolutionResult{Descriptor: d}

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return res, err
		}
	}

	id, err := r.catalog.SearchTrack(ctx, d.Name, r.market)
	switch {
	case errors.Is(err, services.ErrNoMatch):
		res.Reason = models.ReasonNoMatch
	case err != nil:
		return res, err
	case id == "":
		res.Reason = models.ReasonNoMatch
	default:
		res.TrackID = models.TrackID(id)
	}
	return res, nil
}

// ResolvedIDs returns the IDs of resolved results in order. Unresolved results are dropped.
func ResolvedIDs(results []models.ResolutionResult) []models.TrackID {
	ids := make([]models.TrackID, 0, len(results))
	for _, res := range results {
		if res.Resolved() {
			ids = append(ids, res.TrackID)
		}
	}
	return ids
}

// Unresolved returns the results that have no track ID.
func Unresolved(results []models.ResolutionResult) []models.ResolutionResult {
	var out []models.ResolutionResult
	for _, res := range results {
		if !res.Resolved() {
			out = append(out, res)
		}
	}
	return out
}
