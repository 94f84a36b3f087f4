package core

import (
	"errors"
	"testing"
)

// genRow builds the numeric cells of one generator fixture row.
func genRow(mark, p0, pmin, pmax float64) map[string]float64 {
	return map[string]float64{
		ColMark: mark,
		ColP0:   p0,
		ColPMin: pmin,
		ColPMax: pmax,
	}
}

func mustAppend(t *testing.T, tbl *Table, id string, num map[string]float64) {
	t.Helper()
	if err := tbl.AppendRow(id, num, map[string]string{ColName: id}); err != nil {
		t.Fatalf("AppendRow(%q) returned error: %v", id, err)
	}
}

func mustValue(t *testing.T, tbl *Table, id, col string) float64 {
	t.Helper()
	v, err := tbl.Value(id, col)
	if err != nil {
		t.Fatalf("Value(%q, %q) returned error: %v", id, col, err)
	}
	return v
}

func newGeneratorTable(t *testing.T) *Table {
	t.Helper()
	return NewTable(TypeGenerator,
		[]string{ColMark, ColP0, ColQ0, ColPMin, ColPMax, ColQMin, ColQMax, ColV0},
		[]string{ColName})
}

func TestTableAppendAndValue(t *testing.T) {
	tbl := newGeneratorTable(t)
	mustAppend(t, tbl, "g1", genRow(1, 80, 0, 100))
	mustAppend(t, tbl, "g2", genRow(1, 30, 0, 50))

	if tbl.Len() != 2 {
		t.Fatalf("Len = %d, want 2", tbl.Len())
	}
	if got := mustValue(t, tbl, "g1", ColP0); got != 80 {
		t.Errorf("g1 p0 = %v, want 80", got)
	}
	ids := tbl.IDs()
	if len(ids) != 2 || ids[0] != "g1" || ids[1] != "g2" {
		t.Errorf("IDs = %v, want [g1 g2]", ids)
	}
}

func TestTableRejectsDuplicateRow(t *testing.T) {
	tbl := newGeneratorTable(t)
	mustAppend(t, tbl, "g1", genRow(1, 80, 0, 100))

	err := tbl.AppendRow("g1", genRow(1, 30, 0, 50), nil)
	if !errors.Is(err, ErrDuplicateRow) {
		t.Fatalf("AppendRow duplicate error = %v, want ErrDuplicateRow", err)
	}
}

func TestTableUnknownColumnAndRow(t *testing.T) {
	tbl := newGeneratorTable(t)
	mustAppend(t, tbl, "g1", genRow(1, 80, 0, 100))

	if _, err := tbl.Value("g1", "nope"); !errors.Is(err, ErrDataIncomplete) {
		t.Errorf("Value unknown column error = %v, want ErrDataIncomplete", err)
	}
	if _, err := tbl.Value("ghost", ColP0); !errors.Is(err, ErrRowNotFound) {
		t.Errorf("Value unknown row error = %v, want ErrRowNotFound", err)
	}
	if err := tbl.SetValue("ghost", ColP0, 1); !errors.Is(err, ErrRowNotFound) {
		t.Errorf("SetValue unknown row error = %v, want ErrRowNotFound", err)
	}
}

func TestTableSetColumnLengthMismatch(t *testing.T) {
	tbl := newGeneratorTable(t)
	mustAppend(t, tbl, "g1", genRow(1, 80, 0, 100))
	mustAppend(t, tbl, "g2", genRow(1, 30, 0, 50))

	if err := tbl.SetColumn(ColP0, []float64{1}); !errors.Is(err, ErrColumnMismatch) {
		t.Fatalf("SetColumn mismatch error = %v, want ErrColumnMismatch", err)
	}
	if err := tbl.SetColumn(ColP0, []float64{10, 20}); err != nil {
		t.Fatalf("SetColumn returned error: %v", err)
	}
	if got := mustValue(t, tbl, "g2", ColP0); got != 20 {
		t.Errorf("g2 p0 after SetColumn = %v, want 20", got)
	}
}

func TestTableClampColumn(t *testing.T) {
	tbl := newGeneratorTable(t)
	mustAppend(t, tbl, "g1", genRow(1, 120, 0, 100))
	mustAppend(t, tbl, "g2", genRow(1, -5, 0, 50))
	mustAppend(t, tbl, "g3", genRow(0, 25, 0, 50))

	if err := tbl.ClampColumn(ColP0, ColPMin, ColPMax); err != nil {
		t.Fatalf("ClampColumn returned error: %v", err)
	}
	if got := mustValue(t, tbl, "g1", ColP0); got != 100 {
		t.Errorf("g1 p0 clamped to %v, want 100", got)
	}
	if got := mustValue(t, tbl, "g2", ColP0); got != 0 {
		t.Errorf("g2 p0 clamped to %v, want 0", got)
	}
	if got := mustValue(t, tbl, "g3", ColP0); got != 25 {
		t.Errorf("g3 p0 = %v, want untouched 25", got)
	}
}

func TestTableReindexByName(t *testing.T) {
	tbl := NewTable(TypeLoad, []string{ColP0}, []string{ColName})
	if err := tbl.AppendRow("0", map[string]float64{ColP0: 10}, map[string]string{ColName: "LD-A"}); err != nil {
		t.Fatalf("AppendRow returned error: %v", err)
	}
	if err := tbl.AppendRow("1", map[string]float64{ColP0: 20}, map[string]string{ColName: "LD-B"}); err != nil {
		t.Fatalf("AppendRow returned error: %v", err)
	}

	if err := tbl.Reindex(ColName); err != nil {
		t.Fatalf("Reindex returned error: %v", err)
	}
	if got := mustValue(t, tbl, "LD-B", ColP0); got != 20 {
		t.Errorf("LD-B p0 = %v, want 20", got)
	}
	if tbl.HasRow("0") {
		t.Errorf("positional key 0 survived Reindex")
	}
}

func TestTableReindexRejectsDuplicateNames(t *testing.T) {
	tbl := NewTable(TypeLoad, []string{ColP0}, []string{ColName})
	_ = tbl.AppendRow("0", nil, map[string]string{ColName: "LD-A"})
	_ = tbl.AppendRow("1", nil, map[string]string{ColName: "LD-A"})

	if err := tbl.Reindex(ColName); !errors.Is(err, ErrDuplicateRow) {
		t.Fatalf("Reindex duplicate-name error = %v, want ErrDuplicateRow", err)
	}
}

func TestDatasetTablesAndReindex(t *testing.T) {
	ds := NewDataset("on")
	gens := newGeneratorTable(t)
	mustAppend(t, gens, "0", genRow(1, 80, 0, 100))
	if err := ds.AddTable(gens); err != nil {
		t.Fatalf("AddTable returned error: %v", err)
	}
	if err := ds.AddTable(newGeneratorTable(t)); !errors.Is(err, ErrTableExists) {
		t.Fatalf("second AddTable error = %v, want ErrTableExists", err)
	}

	// Branch tables without a name column survive a dataset-wide reindex.
	lines := NewTable(TypeACLine, []string{ColMark, ColIBus, ColJBus}, nil)
	if err := lines.AppendRow("0", map[string]float64{ColMark: 1, ColIBus: 1, ColJBus: 2}, nil); err != nil {
		t.Fatalf("AppendRow returned error: %v", err)
	}
	if err := ds.AddTable(lines); err != nil {
		t.Fatalf("AddTable returned error: %v", err)
	}

	if err := ds.Reindex(ColName); err != nil {
		t.Fatalf("Reindex returned error: %v", err)
	}
	if !gens.HasRow("0") {
		// The generator fixture names its rows after their ids.
		t.Fatalf("generator row lost its key after Reindex")
	}
	if !lines.HasRow("0") {
		t.Errorf("acline positional key lost after Reindex")
	}

	types := ds.Types()
	if len(types) != 2 || types[0] != TypeGenerator || types[1] != TypeACLine {
		t.Errorf("Types = %v, want [generator acline]", types)
	}
}
