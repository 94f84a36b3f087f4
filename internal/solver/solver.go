// Package solver invokes the external load-flow program against a saved
// case directory and reads back its convergence flag. The solver binary is
// an external collaborator: this package never computes power flow itself.
package solver

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/signalsfoundry/grid-scenario-engine/internal/logging"
)

// resultFile is written by the load-flow program into the case directory;
// its first field is "1" when the iteration converged.
const resultFile = "LF.CAL"

// DefaultBinary is the conventional name of the load-flow program.
const DefaultBinary = "wmlf"

// Solver runs the external load-flow program and reports convergence.
// Run blocks for as long as the external process takes; callers bound it
// through the context.
type Solver interface {
	Run(ctx context.Context, dir string) error
	Converged(dir string) (bool, error)
}

// ExecSolver shells out to the load-flow binary with the case directory as
// its single argument.
type ExecSolver struct {
	Binary string
	Log    logging.Logger
}

func NewExecSolver(binary string, log logging.Logger) *ExecSolver {
	if binary == "" {
		binary = DefaultBinary
	}
	if log == nil {
		log = logging.Noop()
	}
	return &ExecSolver{Binary: binary, Log: log}
}

func (s *ExecSolver) Run(ctx context.Context, dir string) error {
	cmd := exec.CommandContext(ctx, s.Binary, dir)
	out, err := cmd.CombinedOutput()
	if len(out) > 0 {
		s.Log.Debug(ctx, "solver output",
			logging.String("dir", dir),
			logging.String("output", strings.TrimSpace(string(out))),
		)
	}
	if err != nil {
		return fmt.Errorf("run %s %s: %w", s.Binary, dir, err)
	}
	return nil
}

// Converged parses the solver result file in the case directory. A missing
// or malformed file is an error; a clean "did not converge" flag is not.
func (s *ExecSolver) Converged(dir string) (bool, error) {
	return ReadConvergence(dir)
}

// ReadConvergence reads the convergence flag from a case directory without
// needing a Solver instance.
func ReadConvergence(dir string) (bool, error) {
	name := filepath.Join(dir, resultFile)
	f, err := os.Open(name)
	if err != nil {
		return false, fmt.Errorf("open solver result: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return false, fmt.Errorf("read solver result: %w", err)
		}
		return false, fmt.Errorf("read solver result: %s is empty", name)
	}
	fields := strings.Fields(sc.Text())
	if len(fields) == 0 {
		return false, fmt.Errorf("read solver result: %s has a blank first line", name)
	}
	return fields[0] == "1", nil
}
