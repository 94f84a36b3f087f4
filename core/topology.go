package core

import (
	"fmt"
)

// FullOpenGenerators commits the named units: each is switched in service
// with its output pinned at pmax. A non-nil v0 additionally overwrites the
// voltage setpoint, which "on" format cases carry for dispatchable units.
func FullOpenGenerators(generators *Table, ids []string, v0 *float64) error {
	cols := []string{ColMark, ColP0, ColPMax}
	if v0 != nil {
		cols = append(cols, ColV0)
	}
	if err := generators.requireColumns(cols...); err != nil {
		return err
	}
	for _, id := range ids {
		r, ok := generators.rows[id]
		if !ok {
			return fmt.Errorf("%w: %s %q", ErrRowNotFound, generators.name, id)
		}
		r.num[ColMark] = 1
		r.num[ColP0] = r.num[ColPMax]
		if v0 != nil {
			r.num[ColV0] = *v0
		}
	}
	return nil
}

// CloseAllBranches puts every acline and transformer row in service,
// regardless of its current state. Running it twice is a no-op.
func CloseAllBranches(ds *Dataset) error {
	for _, etype := range []string{TypeACLine, TypeTransformer} {
		t, ok := ds.Table(etype)
		if !ok {
			return fmt.Errorf("%w: [%s, %s]", ErrDataIncomplete, etype, ColMark)
		}
		if err := t.FillColumn(ColMark, 1); err != nil {
			return err
		}
	}
	return nil
}

// RandomOpenAclines opens count randomly chosen in-service aclines.
// Self-loop rows (ibus == jbus) are never candidates. With keepLink, a
// candidate whose removal would disconnect its two buses (considering every
// other branch still in service) is discarded and redrawn without counting
// against count.
//
// The draw is all-or-nothing: if the candidate pool runs out before count
// branches are chosen, ErrInsufficientCandidates is returned and the
// dataset is left untouched. On success the chosen branches are marked out
// of service and their identifiers returned in draw order.
func RandomOpenAclines(ds *Dataset, count int, keepLink bool) ([]string, error) {
	aclines, ok := ds.Table(TypeACLine)
	if !ok {
		return nil, fmt.Errorf("%w: [%s, %s]", ErrDataIncomplete, TypeACLine, ColMark)
	}
	if err := aclines.requireColumns(ColMark, ColIBus, ColJBus); err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, nil
	}

	pool := aclines.filterIDs(func(r *tableRow) bool {
		return r.num[ColMark] == 1 && r.num[ColIBus] != r.num[ColJBus]
	})

	var pg *PowerGraph
	if keepLink {
		var err error
		pg, err = NewPowerGraph(ds, true)
		if err != nil {
			return nil, err
		}
	}

	chosen := make([]string, 0, count)
	for len(chosen) < count {
		if len(pool) < count-len(chosen) {
			return nil, fmt.Errorf("%w: %d requested, pool exhausted after %d",
				ErrInsufficientCandidates, count, len(chosen))
		}
		k := randIntN(len(pool))
		id := pool[k]
		pool = append(pool[:k], pool[k+1:]...)

		if keepLink {
			branch := BranchID{Type: TypeACLine, Name: id}
			i, j, ok := pg.Endpoints(branch)
			if !ok {
				continue
			}
			// Opening this branch must not island its endpoints given
			// everything else still closed.
			if !pg.IsConnected(i, j, branch) {
				continue
			}
			pg.RemoveBranch(branch)
		}
		chosen = append(chosen, id)
	}

	for _, id := range chosen {
		aclines.rows[id].num[ColMark] = 0
	}
	return chosen, nil
}
