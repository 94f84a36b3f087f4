package core

import (
	"fmt"
	"sort"
)

// FieldValues selects the rows of a table that a SetValues call updates and
// carries the values to apply. Three shapes exist, mirroring the ways
// scenario scripts address equipment:
//
//   - ByID: update only the named rows,
//   - ByPosition: one value per row, aligned to row order,
//   - Keyed: identifier/value pairs, applied to whichever identifiers the
//     table actually contains.
type FieldValues interface {
	apply(t *Table, column string, delta bool) error
}

type byID map[string]float64

type byPosition []float64

type keyed struct {
	ids  []string
	vals []float64
}

// ByID addresses the named rows only. Unknown identifiers are an error.
func ByID(values map[string]float64) FieldValues { return byID(values) }

// ByPosition addresses all rows in row order. The slice length must match
// the table's row count.
func ByPosition(values []float64) FieldValues { return byPosition(values) }

// Keyed addresses rows by identifier, skipping identifiers the table does
// not contain. ids and values must have equal length.
func Keyed(ids []string, values []float64) FieldValues {
	return keyed{ids: ids, vals: values}
}

// SetValues writes values into one numeric column of one equipment table,
// either overwriting cells or, when delta is set, adding to them. The
// dataset must contain the equipment type and the table must carry the
// column, otherwise ErrDataIncomplete is returned and nothing is modified.
func SetValues(ds *Dataset, etype, column string, values FieldValues, delta bool) error {
	t, ok := ds.Table(etype)
	if !ok || !t.HasColumn(column) {
		return fmt.Errorf("%w: [%s, %s]", ErrDataIncomplete, etype, column)
	}
	if values == nil {
		return nil
	}
	return values.apply(t, column, delta)
}

func (v byID) apply(t *Table, column string, delta bool) error {
	// Deterministic application order keeps the first error stable.
	ids := make([]string, 0, len(v))
	for id := range v {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		var err error
		if delta {
			err = t.AddValue(id, column, v[id])
		} else {
			err = t.SetValue(id, column, v[id])
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (v byPosition) apply(t *Table, column string, delta bool) error {
	if len(v) != t.Len() {
		return fmt.Errorf("%w: %s.%s has %d rows, got %d values",
			ErrColumnMismatch, t.name, column, t.Len(), len(v))
	}
	for i, id := range t.ids {
		if delta {
			t.rows[id].num[column] += v[i]
		} else {
			t.rows[id].num[column] = v[i]
		}
	}
	return nil
}

func (v keyed) apply(t *Table, column string, delta bool) error {
	if len(v.ids) != len(v.vals) {
		return fmt.Errorf("%w: %d identifiers, %d values",
			ErrColumnMismatch, len(v.ids), len(v.vals))
	}
	for i, id := range v.ids {
		r, ok := t.rows[id]
		if !ok {
			continue
		}
		if delta {
			r.num[column] += v.vals[i]
		} else {
			r.num[column] = v.vals[i]
		}
	}
	return nil
}
