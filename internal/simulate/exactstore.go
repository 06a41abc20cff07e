package simulate

import (
	"context"
	"errors"
	"fmt"

	"github.com/cascadegraph/cascade/internal/errs"
	"github.com/cascadegraph/cascade/internal/store"
)

// ComputeAndStore runs or reuses e's exact computation for sourceID
// against snapshotID in st. e's configuration is canonicalized and
// upserted as an exact-computation marker keyed by (snapshot, cfg). A
// marker can already hold values for other sources without holding any
// for sourceID, so HasExactValues alone isn't sufficient: the per-source
// row set is read directly and a NotFound there (not any other error)
// is what actually means "not computed yet for this source".
// Recomputation is idempotent: once values exist for a (marker, source)
// pair, ComputeAndStore never recomputes them.
func (e *ExactSolver) ComputeAndStore(ctx context.Context, st store.Store, snapshotID, sourceID int64) (map[int64]float64, error) {
	cfgJSON, err := e.cfg.Canonicalize()
	if err != nil {
		return nil, fmt.Errorf("canonicalize exact config: %w", err)
	}

	exactID, err := st.UpsertExactComputation(ctx, snapshotID, cfgJSON)
	if err != nil {
		return nil, fmt.Errorf("upsert exact computation: %w", err)
	}

	has, err := st.HasExactValues(ctx, exactID)
	if err != nil {
		return nil, fmt.Errorf("check exact values: %w", err)
	}
	if has {
		values, err := st.GetExactValues(ctx, exactID, sourceID)
		switch {
		case err == nil:
			return values, nil
		case !errors.Is(err, errs.NotFound("", "")):
			return nil, fmt.Errorf("load exact values: %w", err)
		}
	}

	values, err := e.Compute(sourceID)
	if err != nil {
		return nil, err
	}
	if err := st.InsertExactValues(ctx, exactID, sourceID, values); err != nil {
		return nil, fmt.Errorf("store exact values: %w", err)
	}
	return values, nil
}
