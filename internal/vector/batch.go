package vector

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/cardest/internal/predicate"
	"github.com/roach88/cardest/internal/schema"
)

// Job is one query to vectorize.
type Job struct {
	Query       *predicate.Query
	QuerySet    *schema.QuerySet
	Cardinality *Cardinality
}

// Result is the outcome of one job. Exactly one of Vector and Err is set.
type Result struct {
	Vector Vector
	Err    error
}

// BatchOptions controls VectorizeAll.
type BatchOptions struct {
	// Workers bounds the number of concurrent vectorizations. Values below
	// 1 mean one worker.
	Workers int
	// ContinueOnError records per-job errors in the results instead of
	// aborting the batch.
	ContinueOnError bool
}

// VectorizeAll vectorizes jobs concurrently. Results are in job order.
// Without ContinueOnError the first failing job cancels the rest and its
// error, wrapped in a JobError, is returned.
func (v *Vectorizer) VectorizeAll(ctx context.Context, jobs []Job, opts BatchOptions) ([]Result, error) {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	results := make([]Result, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, job := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			vec, err := v.Vectorize(job.Query, job.QuerySet, job.Cardinality)
			if err != nil {
				err = &JobError{Index: i, Err: err}
				if !opts.ContinueOnError {
					return err
				}
				results[i].Err = err
				return nil
			}
			results[i].Vector = vec
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
