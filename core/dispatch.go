package core

import (
	"gonum.org/v1/gonum/floats"
)

// DispatchOptions tunes DistributeGeneratorsP. The zero value means every
// in-service generator participates, shares are not jittered, and clipping
// is disabled; passing nil selects the defaults (clipping enabled).
type DispatchOptions struct {
	// IDs restricts participation to these identifiers (intersected with
	// the in-service set). Empty means no restriction.
	IDs []string

	// Sigma is the standard deviation of the N(1, sigma^2) multiplier
	// applied to each participant's headroom share. Zero disables jitter.
	Sigma float64

	// Clip clamps the whole table's p0 into [pmin, pmax] after
	// redistribution, as a safety net against rounding.
	Clip bool
}

// DistributeGeneratorsP spreads a total active-power change across the
// in-service generators of the table, proportional to each unit's available
// headroom, and returns the portion of delta that could not be absorbed.
//
// A positive delta is shared among generators with spare upward headroom
// (pmax > p0); a negative delta among generators with downward headroom
// (p0 > pmin). If total headroom cannot cover the request, every candidate
// is saturated at its limit and the signed remainder is returned as an
// insufficient-capacity signal for the caller, not an error. A zero return
// means the delta was fully absorbed.
func DistributeGeneratorsP(generators *Table, delta float64, opts *DispatchOptions) (float64, error) {
	if opts == nil {
		opts = &DispatchOptions{Clip: true}
	}
	if err := generators.requireColumns(ColMark, ColP0, ColPMin, ColPMax); err != nil {
		return 0, err
	}
	if delta == 0 {
		return 0, nil
	}

	ids := generators.filterIDs(func(r *tableRow) bool { return r.num[ColMark] == 1 })
	if len(opts.IDs) > 0 {
		ids = intersectIDs(opts.IDs, ids)
	}

	var limitCol string
	headroomOf := func(r *tableRow) float64 { return 0 }
	if delta > 0 {
		limitCol = ColPMax
		headroomOf = func(r *tableRow) float64 { return r.num[ColPMax] - r.num[ColP0] }
	} else {
		limitCol = ColPMin
		headroomOf = func(r *tableRow) float64 { return r.num[ColP0] - r.num[ColPMin] }
	}

	participants := make([]string, 0, len(ids))
	headroom := make([]float64, 0, len(ids))
	for _, id := range ids {
		h := headroomOf(generators.rows[id])
		if h <= 0 {
			continue
		}
		participants = append(participants, id)
		headroom = append(headroom, h)
	}
	total := floats.Sum(headroom)

	need := delta
	if need < 0 {
		need = -need
	}
	if total <= need {
		// Not enough capacity: saturate every candidate and report the
		// unmet remainder with the sign of the original request.
		for _, id := range participants {
			r := generators.rows[id]
			r.num[ColP0] = r.num[limitCol]
		}
		if delta > 0 {
			return delta - total, nil
		}
		return delta + total, nil
	}

	if opts.Sigma > 0 {
		for i := range headroom {
			headroom[i] *= normalFactor(opts.Sigma)
		}
		total = floats.Sum(headroom)
	}
	for i, id := range participants {
		generators.rows[id].num[ColP0] += headroom[i] / total * delta
	}
	if opts.Clip {
		if err := generators.ClampColumn(ColP0, ColPMin, ColPMax); err != nil {
			return 0, err
		}
	}
	return 0, nil
}

// intersectIDs keeps the requested identifiers that are present in the
// candidate set, preserving request order.
func intersectIDs(requested, candidates []string) []string {
	in := make(map[string]struct{}, len(candidates))
	for _, id := range candidates {
		in[id] = struct{}{}
	}
	var out []string
	for _, id := range requested {
		if _, ok := in[id]; ok {
			out = append(out, id)
		}
	}
	return out
}
