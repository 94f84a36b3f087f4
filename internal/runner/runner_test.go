package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/signalsfoundry/grid-scenario-engine/core"
	"github.com/signalsfoundry/grid-scenario-engine/internal/store"
)

// fakeSolver records its invocations and reports a scripted convergence flag
// per scenario directory.
type fakeSolver struct {
	ranDirs   []string
	converged map[string]bool
	runErr    error
}

func (f *fakeSolver) Run(ctx context.Context, dir string) error {
	f.ranDirs = append(f.ranDirs, dir)
	return f.runErr
}

func (f *fakeSolver) Converged(dir string) (bool, error) {
	ok, found := f.converged[filepath.Base(dir)]
	if !found {
		return true, nil
	}
	return ok, nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

// newBatchFixture lays out a base case directory with solver companion
// files and an output directory holding the given action files.
func newBatchFixture(t *testing.T, actionFiles map[string]string) (base, out string) {
	t.Helper()
	base = t.TempDir()
	writeFile(t, filepath.Join(base, "generator.csv"),
		"name,mark,p0,q0,pmin,pmax,qmin,qmax,v0\nG1,1,80,10,0,100,-50,50,1.05\n")
	writeFile(t, filepath.Join(base, "load.csv"),
		"name,mark,p0,q0,pmin,pmax,qmin,qmax\nL1,1,100,40,0,1000,-500,500\n")
	writeFile(t, filepath.Join(base, "acline.csv"), "mark,ibus,jbus\n1,1,2\n")
	writeFile(t, filepath.Join(base, auxLoadFlow), "loadflow-settings\n")
	writeFile(t, filepath.Join(base, auxStability), "stability-settings\n")

	out = t.TempDir()
	for name, content := range actionFiles {
		writeFile(t, filepath.Join(out, name), content)
	}
	return base, out
}

func TestLoadActionsEndToEnd(t *testing.T) {
	base, out := newBatchFixture(t, map[string]string{
		"case1.csv": "etype,name,field,value\ngenerator,G1,p0,95\n",
		"case2.csv": "etype,name,field,value\nload,L1,q0,-20\n",
	})

	sv := &fakeSolver{converged: map[string]bool{"case2": false}}
	r := New(store.NewCaseStore(nil), sv, nil)

	results, err := r.LoadActions(context.Background(), nil, base, out,
		[]string{"case1.csv", "case2.csv"},
		RunOptions{Format: store.FormatOn, InvokeSolver: true})
	if err != nil {
		t.Fatalf("LoadActions returned error: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("results = %v, want 2 entries", results)
	}
	if !results["case1"] {
		t.Errorf("case1 = false, want converged")
	}
	if results["case2"] {
		t.Errorf("case2 = true, want diverged")
	}
	if len(sv.ranDirs) != 2 {
		t.Errorf("solver ran %d times, want 2", len(sv.ranDirs))
	}

	// Each scenario directory holds the saved case and the copied
	// load-flow companion file.
	saved, err := os.ReadFile(filepath.Join(out, "case1", "generator.csv"))
	if err != nil {
		t.Fatalf("reading saved generator table: %v", err)
	}
	if string(saved) == "" {
		t.Errorf("saved generator table is empty")
	}
	aux, err := os.ReadFile(filepath.Join(out, "case1", auxLoadFlow))
	if err != nil {
		t.Fatalf("reading copied companion file: %v", err)
	}
	if string(aux) != "loadflow-settings\n" {
		t.Errorf("companion file content = %q, want byte-identical copy", aux)
	}
}

func TestLoadActionsAppliesEditsToSharedModel(t *testing.T) {
	base, out := newBatchFixture(t, map[string]string{
		"a.csv": "etype,name,field,value\ngenerator,G1,p0,95\n",
		"b.csv": "etype,name,field,value\ngenerator,G1,q0,-5\n",
	})

	st := store.NewCaseStore(nil)
	r := New(st, &fakeSolver{}, nil)

	_, err := r.LoadActions(context.Background(), nil, base, out,
		[]string{"a.csv", "b.csv"}, RunOptions{Format: store.FormatOn})
	if err != nil {
		t.Fatalf("LoadActions returned error: %v", err)
	}

	// The second scenario starts from the first one's edits: its saved
	// case carries both the new p0 and the new q0.
	ds, err := st.Load(filepath.Join(out, "b"), store.FormatOn, false, false)
	if err != nil {
		t.Fatalf("loading scenario b: %v", err)
	}
	gens, _ := ds.Table(core.TypeGenerator)
	p0, err := gens.Value("0", core.ColP0)
	if err != nil {
		t.Fatalf("Value returned error: %v", err)
	}
	if p0 != 95 {
		t.Errorf("scenario b p0 = %v, want 95 carried over from scenario a", p0)
	}
	q0, err := gens.Value("0", core.ColQ0)
	if err != nil {
		t.Fatalf("Value returned error: %v", err)
	}
	if q0 != -5 {
		t.Errorf("scenario b q0 = %v, want -5", q0)
	}
}

func TestLoadActionsSkipsSolverWhenDisabled(t *testing.T) {
	base, out := newBatchFixture(t, map[string]string{
		"only.csv": "etype,name,field,value\ngenerator,G1,p0,90\n",
	})

	sv := &fakeSolver{converged: map[string]bool{"only": false}}
	r := New(store.NewCaseStore(nil), sv, nil)

	results, err := r.LoadActions(context.Background(), nil, base, out,
		[]string{"only.csv"}, RunOptions{Format: store.FormatOn})
	if err != nil {
		t.Fatalf("LoadActions returned error: %v", err)
	}
	if !results["only"] {
		t.Errorf("only = false, want recorded successful without solving")
	}
	if len(sv.ranDirs) != 0 {
		t.Errorf("solver ran %d times, want 0", len(sv.ranDirs))
	}
}

func TestLoadActionsCopiesStabilityFile(t *testing.T) {
	base, out := newBatchFixture(t, map[string]string{
		"s.csv": "etype,name,field,value\ngenerator,G1,p0,90\n",
	})

	r := New(store.NewCaseStore(nil), &fakeSolver{}, nil)
	_, err := r.LoadActions(context.Background(), nil, base, out,
		[]string{"s.csv"}, RunOptions{Format: store.FormatOn, SaveAux: true})
	if err != nil {
		t.Fatalf("LoadActions returned error: %v", err)
	}

	aux, err := os.ReadFile(filepath.Join(out, "s", auxStability))
	if err != nil {
		t.Fatalf("reading stability companion: %v", err)
	}
	if string(aux) != "stability-settings\n" {
		t.Errorf("stability companion = %q, want byte-identical copy", aux)
	}
}

func TestLoadActionsUnknownEquipmentAborts(t *testing.T) {
	base, out := newBatchFixture(t, map[string]string{
		"good.csv": "etype,name,field,value\ngenerator,G1,p0,90\n",
		"bad.csv":  "etype,name,field,value\ngenerator,GHOST,p0,90\n",
	})

	r := New(store.NewCaseStore(nil), &fakeSolver{}, nil)
	results, err := r.LoadActions(context.Background(), nil, base, out,
		[]string{"good.csv", "bad.csv"}, RunOptions{Format: store.FormatOn})
	if !errors.Is(err, core.ErrRowNotFound) {
		t.Fatalf("unknown equipment error = %v, want ErrRowNotFound", err)
	}
	// The completed scenario's result survives the abort.
	if !results["good"] {
		t.Errorf("good scenario missing from partial results")
	}
	if _, ok := results["bad"]; ok {
		t.Errorf("failed scenario present in results")
	}
}

func TestLoadActionsSolverErrorAborts(t *testing.T) {
	base, out := newBatchFixture(t, map[string]string{
		"x.csv": "etype,name,field,value\ngenerator,G1,p0,90\n",
	})

	sv := &fakeSolver{runErr: errors.New("binary not found")}
	r := New(store.NewCaseStore(nil), sv, nil)
	_, err := r.LoadActions(context.Background(), nil, base, out,
		[]string{"x.csv"}, RunOptions{Format: store.FormatOn, InvokeSolver: true})
	if err == nil {
		t.Fatalf("expected solver error to abort the batch")
	}
}

func TestScenarioName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"case1.csv", "case1"},
		{"case1.edits.csv", "case1"},
		{"noext", "noext"},
	}
	for _, tc := range cases {
		if got := scenarioName(tc.in); got != tc.want {
			t.Errorf("scenarioName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
