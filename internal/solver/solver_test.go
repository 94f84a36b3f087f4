package solver

import (
	"os"
	"path/filepath"
	"testing"
)

func writeResult(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, resultFile), []byte(content), 0o644); err != nil {
		t.Fatalf("writing result fixture: %v", err)
	}
}

func TestReadConvergence(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    bool
	}{
		{"converged", "1\n", true},
		{"converged with trailing fields", "1 12 0.00042\n", true},
		{"leading whitespace", "   1  \n", true},
		{"diverged", "0\n", false},
		{"other flag", "2\n", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			writeResult(t, dir, tc.content)

			got, err := ReadConvergence(dir)
			if err != nil {
				t.Fatalf("ReadConvergence returned error: %v", err)
			}
			if got != tc.want {
				t.Errorf("ReadConvergence = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestReadConvergenceMissingFile(t *testing.T) {
	if _, err := ReadConvergence(t.TempDir()); err == nil {
		t.Fatalf("expected error for a missing result file")
	}
}

func TestReadConvergenceEmptyFile(t *testing.T) {
	dir := t.TempDir()
	writeResult(t, dir, "")
	if _, err := ReadConvergence(dir); err == nil {
		t.Fatalf("expected error for an empty result file")
	}
}

func TestNewExecSolverDefaults(t *testing.T) {
	s := NewExecSolver("", nil)
	if s.Binary != DefaultBinary {
		t.Errorf("Binary = %q, want %q", s.Binary, DefaultBinary)
	}
	if s.Log == nil {
		t.Errorf("Log is nil, want noop logger")
	}
}
