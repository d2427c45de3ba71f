// loader.go — batch loading of script records into one interpreter.
//
// A loader run evaluates every record in order against the shared globals
// and isolates failures: one broken script is reported and skipped, the
// rest still run. Hosts that keep scripts in a registry convert their
// records to LoadRecord (see registry.Store.Records).
package lunar

import (
	"context"
	"errors"
	"log/slog"
)

// LoadRecord names one unit of source for a loader run.
type LoadRecord struct {
	Name   string
	Source string
}

// LoadResult reports the outcome of one record.
type LoadResult struct {
	Name string
	Vals []Value // chunk return values on success
	Err  error   // rendered with a caret snippet on failure
}

// LoadScripts evaluates records in order. Each record runs as a fresh
// chunk (ephemeral top-level locals, shared globals). Per-record failures
// land in the result slice; cancellation stops the run and returns the
// context error alongside the results gathered so far.
func (in *Interpreter) LoadScripts(ctx context.Context, records []LoadRecord) ([]LoadResult, error) {
	results := make([]LoadResult, 0, len(records))
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		in.logger.Debug("loading script", slog.String("name", rec.Name))

		vals, err := in.EvalSource(ctx, rec.Name, rec.Source)
		if err != nil {
			// a canceled script cancels the whole run
			var ce *CancelError
			if errors.As(err, &ce) {
				return results, err
			}
			in.logger.Error("script failed",
				slog.String("name", rec.Name),
				slog.String("error", err.Error()))
			results = append(results, LoadResult{Name: rec.Name, Err: err})
			continue
		}
		in.logger.Debug("script loaded",
			slog.String("name", rec.Name),
			slog.Int("returned", len(vals)))
		results = append(results, LoadResult{Name: rec.Name, Vals: vals})
	}
	return results, nil
}
