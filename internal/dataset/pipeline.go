package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/cardest/internal/predicate"
	"github.com/roach88/cardest/internal/schema"
	"github.com/roach88/cardest/internal/vector"
)

// Options configures a Pipeline.
type Options struct {
	Parser     *predicate.Parser
	Vectorizer *vector.Vectorizer
	Catalog    schema.Catalog
	// Strict aborts on the first per-query error. Otherwise such queries are
	// skipped and logged. Lookup and drift errors always abort.
	Strict  bool
	Workers int
	RunIDs  RunIDGenerator
}

// Skip records a query left out of the matrix.
type Skip struct {
	Line     int
	QuerySet int
	Err      error
}

// Report summarizes a run.
type Report struct {
	RunID   string
	Total   int
	Written int
	Skipped []Skip
}

// Pipeline vectorizes query batches against a catalog.
type Pipeline struct {
	opts Options
}

// NewPipeline validates opts and creates a Pipeline.
func NewPipeline(opts Options) (*Pipeline, error) {
	if opts.Parser == nil {
		return nil, fmt.Errorf("pipeline needs a parser")
	}
	if opts.Vectorizer == nil {
		return nil, fmt.Errorf("pipeline needs a vectorizer")
	}
	if len(opts.Catalog) == 0 {
		return nil, fmt.Errorf("pipeline needs a non-empty catalog")
	}
	if opts.RunIDs == nil {
		opts.RunIDs = UUIDv7Generator{}
	}
	return &Pipeline{opts: opts}, nil
}

// Run vectorizes records in order. Rows of the returned matrix follow the
// order of the records that were not skipped. In strict mode the error of
// the earliest failing record is returned.
func (p *Pipeline) Run(ctx context.Context, records []Record) (*Matrix, *Report, error) {
	vz := p.opts.Vectorizer
	report := &Report{RunID: p.opts.RunIDs.Generate(), Total: len(records)}
	matrix := &Matrix{
		RunID:         report.RunID,
		Width:         vz.Width(),
		MaxPredicates: vz.Options().MaxPredicates,
		Fingerprints:  make(map[int]string),
	}

	// parseErrs[i] is set when record i did not parse or reads tables its
	// query-set does not join; jobOf[i] is its job index otherwise.
	parseErrs := make([]error, len(records))
	jobOf := make([]int, len(records))
	jobs := make([]vector.Job, 0, len(records))
	for i, rec := range records {
		qs, err := p.opts.Catalog.Lookup(rec.QuerySetID)
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", rec.Line, err)
		}
		if err := CheckDrift(rec, qs); err != nil {
			return nil, nil, err
		}

		q, err := p.opts.Parser.Parse(rec.Query)
		if err == nil {
			err = qs.CheckTables(q.Tables)
		}
		if err != nil {
			parseErrs[i] = err
			jobOf[i] = -1
			continue
		}
		job := vector.Job{Query: q, QuerySet: qs}
		if vz.Options().IncludeCardinalities {
			job.Cardinality = &vector.Cardinality{Estimated: rec.Estimated, True: rec.True}
		}
		jobOf[i] = len(jobs)
		jobs = append(jobs, job)
	}

	results, err := vz.VectorizeAll(ctx, jobs, vector.BatchOptions{
		Workers:         p.opts.Workers,
		ContinueOnError: true,
	})
	if err != nil {
		return nil, nil, err
	}

	for i, rec := range records {
		cause := parseErrs[i]
		var res vector.Result
		if cause == nil {
			res = results[jobOf[i]]
			cause = res.Err
			var je *vector.JobError
			if errors.As(cause, &je) {
				cause = je.Err
			}
		}
		if cause != nil {
			if err := p.skip(report, rec, cause); err != nil {
				return nil, nil, err
			}
			continue
		}
		if err := matrix.Append(res.Vector.QuerySetID, res.Vector.Values); err != nil {
			return nil, nil, err
		}
		if _, ok := matrix.Fingerprints[rec.QuerySetID]; !ok {
			fp, err := jobs[jobOf[i]].QuerySet.Fingerprint()
			if err != nil {
				return nil, nil, fmt.Errorf("fingerprint query-set %d: %w", rec.QuerySetID, err)
			}
			matrix.Fingerprints[rec.QuerySetID] = fp
		}
		report.Written++
	}

	slog.Info("vectorized batch", "run_id", report.RunID, "rows", report.Written, "skipped", len(report.Skipped))
	return matrix, report, nil
}

func (p *Pipeline) skip(report *Report, rec Record, err error) error {
	if p.opts.Strict {
		return fmt.Errorf("line %d: %w", rec.Line, err)
	}
	slog.Warn("skipping query", "line", rec.Line, "query_set", rec.QuerySetID, "error", err)
	report.Skipped = append(report.Skipped, Skip{Line: rec.Line, QuerySet: rec.QuerySetID, Err: err})
	return nil
}
