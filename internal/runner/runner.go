// Package runner executes batches of scenario action files: each file is a
// short script of field edits that is applied to a shared in-memory case,
// persisted as its own output directory, and handed to the external
// load-flow solver. The per-scenario convergence flags are collected into
// one result map.
package runner

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/signalsfoundry/grid-scenario-engine/core"
	"github.com/signalsfoundry/grid-scenario-engine/internal/logging"
	"github.com/signalsfoundry/grid-scenario-engine/internal/observability"
	"github.com/signalsfoundry/grid-scenario-engine/internal/solver"
	"github.com/signalsfoundry/grid-scenario-engine/internal/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Auxiliary files the solver expects next to the saved case. They are
// opaque here and copied byte-for-byte from the base directory.
const (
	auxLoadFlow  = "LF.L0"
	auxStability = "ST.S0"
)

const tracerName = "github.com/signalsfoundry/grid-scenario-engine/internal/runner"

// action is one parsed row of an action file.
type action struct {
	Etype string
	Name  string
	Field string
	Value float64
}

// RunOptions tunes one LoadActions batch.
type RunOptions struct {
	// Format is the case format tag used for loading and saving.
	Format string

	// SaveAux also copies the stability companion file into each
	// scenario directory.
	SaveAux bool

	// InvokeSolver runs the external solver per scenario and records its
	// convergence flag; when false every scenario is recorded as
	// successful without solving.
	InvokeSolver bool
}

// Runner wires the store and solver collaborators to the perturbation core.
// Metrics and Tracer are optional.
type Runner struct {
	Store   store.Store
	Solver  solver.Solver
	Log     logging.Logger
	Metrics *observability.ScenarioCollector
	Tracer  trace.Tracer
}

func New(st store.Store, sv solver.Solver, log logging.Logger) *Runner {
	if log == nil {
		log = logging.Noop()
	}
	return &Runner{Store: st, Solver: sv, Log: log}
}

func (r *Runner) tracer() trace.Tracer {
	if r.Tracer != nil {
		return r.Tracer
	}
	return otel.Tracer(tracerName)
}

// LoadActions processes the action files sequentially against a shared
// model. A nil model is loaded lazily from basePath and re-keyed by
// equipment name. Edits accumulate across files within one batch: each
// scenario starts from the model as the previous one left it.
//
// The result map is keyed by scenario name (the file name up to its first
// dot) with the solver convergence flag as value. Structural failures
// (unreadable file, unknown equipment or field, save/copy errors) abort the
// batch and return the results collected so far alongside the error;
// non-convergence is an ordinary false entry.
func (r *Runner) LoadActions(ctx context.Context, model *core.Dataset, basePath, outPath string, files []string, opts RunOptions) (map[string]bool, error) {
	if opts.Format == "" {
		opts.Format = store.FormatOn
	}

	results := make(map[string]bool, len(files))
	if model == nil {
		var err error
		model, err = r.Store.Load(basePath, opts.Format, false, opts.SaveAux)
		if err != nil {
			return results, fmt.Errorf("load base case: %w", err)
		}
		if err := r.Store.SetIndex(model, core.ColName); err != nil {
			return results, fmt.Errorf("index base case: %w", err)
		}
		r.Log.Info(ctx, "base case loaded",
			logging.String("path", basePath),
			logging.String("format", opts.Format),
		)
	}
	r.Metrics.SetEquipmentRows(rowCounts(model))

	for _, file := range files {
		name := scenarioName(file)
		sctx, log := logging.WithScenarioLogger(ctx, r.Log, name)
		sctx, span := r.tracer().Start(sctx, "scenario.run",
			trace.WithAttributes(
				attribute.String("scenario.name", name),
				attribute.String("scenario.file", file),
			),
		)

		ok, err := r.runOne(sctx, log, model, basePath, outPath, file, name, opts)
		if err != nil {
			span.RecordError(err)
			span.End()
			return results, fmt.Errorf("scenario %s: %w", name, err)
		}
		results[name] = ok
		span.SetAttributes(attribute.Bool("scenario.converged", ok))
		span.End()
	}
	return results, nil
}

func (r *Runner) runOne(ctx context.Context, log logging.Logger, model *core.Dataset, basePath, outPath, file, name string, opts RunOptions) (bool, error) {
	actions, err := readActionFile(filepath.Join(outPath, file))
	if err != nil {
		return false, err
	}
	for _, a := range actions {
		err := core.SetValues(model, a.Etype, a.Field, core.ByID(map[string]float64{a.Name: a.Value}), false)
		if err != nil {
			return false, fmt.Errorf("apply %s.%s[%s]: %w", a.Etype, a.Field, a.Name, err)
		}
	}
	r.Metrics.AddActions(len(actions))
	log.Debug(ctx, "actions applied", logging.Int("count", len(actions)))

	dir := filepath.Join(outPath, name)
	if err := r.Store.Save(model, dir, opts.Format, false, opts.SaveAux); err != nil {
		return false, fmt.Errorf("save case: %w", err)
	}
	if err := copyFile(filepath.Join(basePath, auxLoadFlow), filepath.Join(dir, auxLoadFlow)); err != nil {
		return false, err
	}
	if opts.SaveAux {
		if err := copyFile(filepath.Join(basePath, auxStability), filepath.Join(dir, auxStability)); err != nil {
			return false, err
		}
	}

	if !opts.InvokeSolver {
		r.Metrics.ObserveScenario(observability.ResultSkipped)
		log.Info(ctx, "scenario saved without solving", logging.String("dir", dir))
		return true, nil
	}

	start := time.Now()
	if err := r.Solver.Run(ctx, dir); err != nil {
		return false, err
	}
	r.Metrics.ObserveSolver(time.Since(start))

	converged, err := r.Solver.Converged(dir)
	if err != nil {
		return false, err
	}
	if converged {
		r.Metrics.ObserveScenario(observability.ResultConverged)
	} else {
		r.Metrics.ObserveScenario(observability.ResultDiverged)
	}
	log.Info(ctx, "scenario solved",
		logging.String("dir", dir),
		logging.Bool("converged", converged),
	)
	return converged, nil
}

// scenarioName derives the output directory name from an action file name:
// everything before the first dot, or the whole name when there is none.
func scenarioName(file string) string {
	if i := strings.Index(file, "."); i >= 0 {
		return file[:i]
	}
	return file
}

// readActionFile parses one delimited action file. Rows carry
// (equipmentType, identifier, field, value); a leading header row is
// tolerated and skipped.
func readActionFile(path string) ([]action, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open action file: %w", err)
	}
	defer f.Close()

	rd := csv.NewReader(f)
	rd.FieldsPerRecord = 4
	rd.TrimLeadingSpace = true
	records, err := rd.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read action file %s: %w", path, err)
	}

	actions := make([]action, 0, len(records))
	for i, rec := range records {
		v, err := strconv.ParseFloat(rec[3], 64)
		if err != nil {
			if i == 0 {
				continue // header row
			}
			return nil, fmt.Errorf("action file %s row %d: bad value %q", path, i+1, rec[3])
		}
		actions = append(actions, action{
			Etype: rec[0],
			Name:  rec[1],
			Field: rec[2],
			Value: v,
		})
	}
	return actions, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("copy %s: %w", filepath.Base(src), err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("copy %s: %w", filepath.Base(src), err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %s: %w", filepath.Base(src), err)
	}
	return out.Close()
}

func rowCounts(ds *core.Dataset) map[string]int {
	counts := make(map[string]int)
	for _, etype := range ds.Types() {
		t, _ := ds.Table(etype)
		counts[etype] = t.Len()
	}
	return counts
}
