package core

import (
	"gonum.org/v1/gonum/floats"
)

// LoadDispatchOptions tunes DistributeLoadsP. Passing nil selects the
// defaults: every in-service load participates, no jitter, power factors
// are not preserved, clipping enabled.
type LoadDispatchOptions struct {
	// IDs restricts participation to these identifiers (intersected with
	// the in-service, positive-consumption set). Empty means no
	// restriction.
	IDs []string

	// PSigma jitters each participant's allocation weight by an
	// independent N(1, PSigma^2) multiplier. Zero disables jitter.
	PSigma float64

	// KeepFactor captures each participant's q0/p0 ratio before the
	// active-power change and restores q0 = p0 * ratio afterwards.
	KeepFactor bool

	// FactorSigma jitters the captured power factor by N(1,
	// FactorSigma^2). Only meaningful with KeepFactor. Zero disables.
	FactorSigma float64

	// Clip clamps p0 (and q0 when KeepFactor is set) to the table limits
	// after redistribution.
	Clip bool
}

// DistributeLoadsP spreads a total active-power change across the
// in-service loads with strictly positive consumption, proportional to each
// load's current p0.
//
// Unlike DistributeGeneratorsP there is no headroom-shortfall path: the full
// delta is always applied before clipping, so clipping may silently shrink
// the realized change when individual loads pin at their limits.
func DistributeLoadsP(loads *Table, delta float64, opts *LoadDispatchOptions) error {
	if opts == nil {
		opts = &LoadDispatchOptions{Clip: true}
	}
	if err := loads.requireColumns(ColMark, ColP0, ColPMin, ColPMax); err != nil {
		return err
	}
	if opts.KeepFactor {
		if err := loads.requireColumns(ColQ0, ColQMin, ColQMax); err != nil {
			return err
		}
	}

	ids := loads.filterIDs(func(r *tableRow) bool {
		return r.num[ColMark] == 1 && r.num[ColP0] > 0
	})
	if len(opts.IDs) > 0 {
		ids = intersectIDs(opts.IDs, ids)
	}

	// Capture power factors before p0 moves; participants have p0 > 0 so
	// the ratio is well defined.
	var factor map[string]float64
	if opts.KeepFactor {
		factor = make(map[string]float64, len(ids))
		for _, id := range ids {
			r := loads.rows[id]
			f := r.num[ColQ0] / r.num[ColP0]
			if opts.FactorSigma > 0 {
				f *= normalFactor(opts.FactorSigma)
			}
			factor[id] = f
		}
	}

	weights := make([]float64, len(ids))
	for i, id := range ids {
		weights[i] = loads.rows[id].num[ColP0]
	}
	if opts.PSigma > 0 {
		for i := range weights {
			weights[i] *= normalFactor(opts.PSigma)
		}
	}
	if total := floats.Sum(weights); total != 0 {
		for i, id := range ids {
			loads.rows[id].num[ColP0] += weights[i] / total * delta
		}
	}
	if opts.Clip {
		if err := loads.ClampColumn(ColP0, ColPMin, ColPMax); err != nil {
			return err
		}
	}
	if opts.KeepFactor {
		for _, id := range ids {
			r := loads.rows[id]
			r.num[ColQ0] = r.num[ColP0] * factor[id]
		}
		if opts.Clip {
			if err := loads.ClampColumn(ColQ0, ColQMin, ColQMax); err != nil {
				return err
			}
		}
	}
	return nil
}

// RandomLoadQ0 re-randomizes the reactive power of every load row. With a
// sigma, each q0 is scaled by an independent N(1, sigma^2) multiplier;
// without one, q0 is resampled uniformly inside [qmin, qmax]. Clipping only
// matters in the multiplicative branch; the uniform branch already lands
// inside the limits.
func RandomLoadQ0(loads *Table, sigma *float64, clip bool) error {
	if err := loads.requireColumns(ColQ0, ColQMin, ColQMax); err != nil {
		return err
	}
	for _, id := range loads.ids {
		r := loads.rows[id]
		if sigma != nil {
			r.num[ColQ0] *= normalFactor(*sigma)
		} else {
			r.num[ColQ0] = uniformBetween(r.num[ColQMin], r.num[ColQMax])
		}
	}
	if clip {
		return loads.ClampColumn(ColQ0, ColQMin, ColQMax)
	}
	return nil
}
