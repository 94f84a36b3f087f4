package core

// epsFactor guards the power-factor capture in SetUnitsP0 against rows
// whose current active power is exactly zero.
const epsFactor = 1e-8

// SetUnitsP0 overwrites the active power of an entire generator or load
// table from values aligned to row order. With keepFactor, each row's
// current q0/p0 ratio is captured first and q0 is recomputed from the new
// p0 afterwards; with clip, both setpoints are clamped into their limit
// pairs.
func SetUnitsP0(t *Table, values []float64, keepFactor, clip bool) error {
	if err := t.requireColumns(ColP0); err != nil {
		return err
	}
	if keepFactor {
		if err := t.requireColumns(ColQ0); err != nil {
			return err
		}
	}
	if clip {
		if err := t.requireColumns(ColPMin, ColPMax, ColQ0, ColQMin, ColQMax); err != nil {
			return err
		}
	}

	var factor map[string]float64
	if keepFactor {
		factor = make(map[string]float64, len(t.ids))
		for _, id := range t.ids {
			r := t.rows[id]
			factor[id] = r.num[ColQ0] / (r.num[ColP0] + epsFactor)
		}
	}
	if err := t.SetColumn(ColP0, values); err != nil {
		return err
	}
	if keepFactor {
		for _, id := range t.ids {
			r := t.rows[id]
			r.num[ColQ0] = r.num[ColP0] * factor[id]
		}
	}
	if clip {
		if err := t.ClampColumn(ColP0, ColPMin, ColPMax); err != nil {
			return err
		}
		if err := t.ClampColumn(ColQ0, ColQMin, ColQMax); err != nil {
			return err
		}
	}
	return nil
}
