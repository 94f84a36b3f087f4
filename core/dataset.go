package core

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrDataIncomplete         = errors.New("data incomplete")
	ErrInsufficientCandidates = errors.New("not enough open-able branches")
	ErrRowNotFound            = errors.New("row not found")
	ErrDuplicateRow           = errors.New("duplicate row")
	ErrColumnMismatch         = errors.New("value count does not match row count")
	ErrTableExists            = errors.New("table already exists")
)

// Equipment type names used throughout the engine. They double as the
// per-type file names understood by the case store.
const (
	TypeGenerator   = "generator"
	TypeLoad        = "load"
	TypeACLine      = "acline"
	TypeTransformer = "transformer"
	TypeBus         = "bus"
	TypeLoadProfile = "lp"
)

// Column names shared by the perturbation operations.
const (
	ColMark = "mark"
	ColP0   = "p0"
	ColQ0   = "q0"
	ColPMin = "pmin"
	ColPMax = "pmax"
	ColQMin = "qmin"
	ColQMax = "qmax"
	ColV0   = "v0"
	ColIBus = "ibus"
	ColJBus = "jbus"
	ColName = "name"
)

// Table is an ordered collection of equipment rows keyed by a stable string
// identifier. Cells are split into numeric columns (setpoints, limits,
// flags) and label columns (names and other free-text metadata); all
// perturbation operations address numeric columns only.
//
// A Table is not safe for concurrent use. Callers that share a table across
// goroutines must serialize access themselves.
type Table struct {
	name string

	numCols []string
	numSet  map[string]struct{}
	lblCols []string
	lblSet  map[string]struct{}

	ids  []string
	rows map[string]*tableRow
}

type tableRow struct {
	num map[string]float64
	lbl map[string]string
}

// NewTable creates an empty table for one equipment type with the given
// numeric and label columns.
func NewTable(name string, numeric, label []string) *Table {
	t := &Table{
		name:   name,
		numSet: make(map[string]struct{}, len(numeric)),
		lblSet: make(map[string]struct{}, len(label)),
		rows:   make(map[string]*tableRow),
	}
	for _, c := range numeric {
		if _, ok := t.numSet[c]; ok {
			continue
		}
		t.numCols = append(t.numCols, c)
		t.numSet[c] = struct{}{}
	}
	for _, c := range label {
		if _, ok := t.lblSet[c]; ok {
			continue
		}
		t.lblCols = append(t.lblCols, c)
		t.lblSet[c] = struct{}{}
	}
	return t
}

func (t *Table) Name() string { return t.name }

func (t *Table) Len() int { return len(t.ids) }

// IDs returns the row identifiers in row order.
func (t *Table) IDs() []string {
	out := make([]string, len(t.ids))
	copy(out, t.ids)
	return out
}

func (t *Table) HasRow(id string) bool {
	_, ok := t.rows[id]
	return ok
}

// HasColumn reports whether the table carries the named numeric column.
func (t *Table) HasColumn(column string) bool {
	_, ok := t.numSet[column]
	return ok
}

// HasLabelColumn reports whether the table carries the named label column.
func (t *Table) HasLabelColumn(column string) bool {
	_, ok := t.lblSet[column]
	return ok
}

// NumericColumns returns the numeric column names in declaration order.
func (t *Table) NumericColumns() []string {
	out := make([]string, len(t.numCols))
	copy(out, t.numCols)
	return out
}

// LabelColumns returns the label column names in declaration order.
func (t *Table) LabelColumns() []string {
	out := make([]string, len(t.lblCols))
	copy(out, t.lblCols)
	return out
}

// AppendRow adds a row at the end of the table. Columns missing from the
// provided maps default to zero / empty.
func (t *Table) AppendRow(id string, numeric map[string]float64, label map[string]string) error {
	if id == "" {
		return fmt.Errorf("%s: empty row identifier", t.name)
	}
	if _, exists := t.rows[id]; exists {
		return fmt.Errorf("%w: %s %q", ErrDuplicateRow, t.name, id)
	}
	r := &tableRow{
		num: make(map[string]float64, len(t.numCols)),
		lbl: make(map[string]string, len(t.lblCols)),
	}
	for _, c := range t.numCols {
		r.num[c] = numeric[c]
	}
	for _, c := range t.lblCols {
		r.lbl[c] = label[c]
	}
	t.ids = append(t.ids, id)
	t.rows[id] = r
	return nil
}

// Value returns the numeric cell at (id, column).
func (t *Table) Value(id, column string) (float64, error) {
	if _, ok := t.numSet[column]; !ok {
		return 0, fmt.Errorf("%w: [%s, %s]", ErrDataIncomplete, t.name, column)
	}
	r, ok := t.rows[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s %q", ErrRowNotFound, t.name, id)
	}
	return r.num[column], nil
}

// SetValue overwrites the numeric cell at (id, column).
func (t *Table) SetValue(id, column string, v float64) error {
	if _, ok := t.numSet[column]; !ok {
		return fmt.Errorf("%w: [%s, %s]", ErrDataIncomplete, t.name, column)
	}
	r, ok := t.rows[id]
	if !ok {
		return fmt.Errorf("%w: %s %q", ErrRowNotFound, t.name, id)
	}
	r.num[column] = v
	return nil
}

// AddValue adds dv to the numeric cell at (id, column).
func (t *Table) AddValue(id, column string, dv float64) error {
	v, err := t.Value(id, column)
	if err != nil {
		return err
	}
	return t.SetValue(id, column, v+dv)
}

// Label returns the label cell at (id, column).
func (t *Table) Label(id, column string) (string, error) {
	if _, ok := t.lblSet[column]; !ok {
		return "", fmt.Errorf("%w: [%s, %s]", ErrDataIncomplete, t.name, column)
	}
	r, ok := t.rows[id]
	if !ok {
		return "", fmt.Errorf("%w: %s %q", ErrRowNotFound, t.name, id)
	}
	return r.lbl[column], nil
}

// Column returns the numeric column in row order.
func (t *Table) Column(column string) ([]float64, error) {
	if _, ok := t.numSet[column]; !ok {
		return nil, fmt.Errorf("%w: [%s, %s]", ErrDataIncomplete, t.name, column)
	}
	out := make([]float64, len(t.ids))
	for i, id := range t.ids {
		out[i] = t.rows[id].num[column]
	}
	return out, nil
}

// SetColumn overwrites the numeric column from values aligned to row order.
func (t *Table) SetColumn(column string, values []float64) error {
	if _, ok := t.numSet[column]; !ok {
		return fmt.Errorf("%w: [%s, %s]", ErrDataIncomplete, t.name, column)
	}
	if len(values) != len(t.ids) {
		return fmt.Errorf("%w: %s.%s has %d rows, got %d values",
			ErrColumnMismatch, t.name, column, len(t.ids), len(values))
	}
	for i, id := range t.ids {
		t.rows[id].num[column] = values[i]
	}
	return nil
}

// FillColumn sets every cell of the numeric column to v.
func (t *Table) FillColumn(column string, v float64) error {
	if _, ok := t.numSet[column]; !ok {
		return fmt.Errorf("%w: [%s, %s]", ErrDataIncomplete, t.name, column)
	}
	for _, id := range t.ids {
		t.rows[id].num[column] = v
	}
	return nil
}

// ClampColumn clamps every cell of column into the per-row interval given by
// the companion limit columns. Out-of-service rows are clamped too; their
// setpoints are not interpreted by the solver, so this is harmless.
func (t *Table) ClampColumn(column, minColumn, maxColumn string) error {
	if err := t.requireColumns(column, minColumn, maxColumn); err != nil {
		return err
	}
	for _, id := range t.ids {
		r := t.rows[id]
		r.num[column] = clamp(r.num[column], r.num[minColumn], r.num[maxColumn])
	}
	return nil
}

// filterIDs returns, in row order, the identifiers whose row satisfies pred.
func (t *Table) filterIDs(pred func(r *tableRow) bool) []string {
	var out []string
	for _, id := range t.ids {
		if pred(t.rows[id]) {
			out = append(out, id)
		}
	}
	return out
}

func (t *Table) requireColumns(columns ...string) error {
	for _, c := range columns {
		if _, ok := t.numSet[c]; !ok {
			return fmt.Errorf("%w: [%s, %s]", ErrDataIncomplete, t.name, c)
		}
	}
	return nil
}

// Reindex re-keys the table by the given label column. Every row must carry
// a non-empty, unique value in that column.
func (t *Table) Reindex(labelColumn string) error {
	if _, ok := t.lblSet[labelColumn]; !ok {
		return fmt.Errorf("%w: [%s, %s]", ErrDataIncomplete, t.name, labelColumn)
	}
	newIDs := make([]string, 0, len(t.ids))
	newRows := make(map[string]*tableRow, len(t.ids))
	for _, id := range t.ids {
		r := t.rows[id]
		key := r.lbl[labelColumn]
		if key == "" {
			return fmt.Errorf("%s: row %q has empty %s", t.name, id, labelColumn)
		}
		if _, exists := newRows[key]; exists {
			return fmt.Errorf("%w: %s %q", ErrDuplicateRow, t.name, key)
		}
		newIDs = append(newIDs, key)
		newRows[key] = r
	}
	t.ids = newIDs
	t.rows = newRows
	return nil
}

// Dataset is an in-memory power-system case: one table per equipment type,
// mutated in place by the perturbation operations and persisted through a
// store collaborator. Like Table, it is not safe for concurrent use.
type Dataset struct {
	// Format is the case format tag the dataset was loaded with ("on" for
	// operating-point cases, "off" for planning cases).
	Format string

	tables map[string]*Table
	order  []string
}

func NewDataset(format string) *Dataset {
	return &Dataset{
		Format: format,
		tables: make(map[string]*Table),
	}
}

// AddTable registers a table under its equipment type name.
func (d *Dataset) AddTable(t *Table) error {
	if t == nil || t.name == "" {
		return fmt.Errorf("nil or unnamed table")
	}
	if _, exists := d.tables[t.name]; exists {
		return fmt.Errorf("%w: %q", ErrTableExists, t.name)
	}
	d.tables[t.name] = t
	d.order = append(d.order, t.name)
	return nil
}

// Table returns the table for an equipment type.
func (d *Dataset) Table(etype string) (*Table, bool) {
	t, ok := d.tables[etype]
	return t, ok
}

// Types returns the equipment type names in insertion order.
func (d *Dataset) Types() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// Reindex re-keys every table that carries the given label column. Tables
// without it (branch tables usually identify rows positionally) are left
// untouched.
func (d *Dataset) Reindex(labelColumn string) error {
	for _, name := range d.order {
		t := d.tables[name]
		if !t.HasLabelColumn(labelColumn) {
			continue
		}
		if err := t.Reindex(labelColumn); err != nil {
			return err
		}
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
