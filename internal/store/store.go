// Package store loads and saves power-system cases as directories of
// per-type delimited files. It is the model-store collaborator of the
// perturbation engine: the engine mutates a Dataset in memory and relies on
// this package for persistence either side of a solver run.
package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/signalsfoundry/grid-scenario-engine/core"
	"github.com/signalsfoundry/grid-scenario-engine/internal/logging"
)

var (
	ErrUnknownFormat = errors.New("unknown case format")
	ErrMissingTable  = errors.New("case directory is missing a required table")
)

// Case format tags. "on" cases describe an operating point and carry
// voltage setpoints on dispatchable units; "off" cases are planning data
// without them.
const (
	FormatOn  = "on"
	FormatOff = "off"
)

// Store is the persistence interface consumed by the scenario runner.
type Store interface {
	// Load reads a case directory into a Dataset. loadProfile also reads
	// the optional load-profile table; withStability is accepted for
	// interface symmetry with Save.
	Load(path, format string, loadProfile, withStability bool) (*core.Dataset, error)

	// Save writes the Dataset back out as a case directory.
	Save(ds *core.Dataset, path, format string, loadProfile, withStability bool) error

	// SetIndex re-keys every table of the Dataset by a label column.
	SetIndex(ds *core.Dataset, keyField string) error
}

// CaseStore persists cases as one CSV file per equipment table
// (generator.csv, load.csv, …). Rows are keyed positionally on load; call
// SetIndex to re-key by equipment name. The stability companion files
// (ST.S0 and friends) are opaque at this layer and handled as byte copies
// by the runner, so withStability only gates bookkeeping, not content.
type CaseStore struct {
	Log logging.Logger
}

func NewCaseStore(log logging.Logger) *CaseStore {
	if log == nil {
		log = logging.Noop()
	}
	return &CaseStore{Log: log}
}

// requiredTables must be present in every case; optionalTables are read
// when their files exist.
var (
	requiredTables = []string{core.TypeGenerator, core.TypeLoad, core.TypeACLine}
	optionalTables = []string{core.TypeTransformer, core.TypeBus}
)

func (s *CaseStore) Load(path, format string, loadProfile, withStability bool) (*core.Dataset, error) {
	if format != FormatOn && format != FormatOff {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	ds := core.NewDataset(format)
	for _, etype := range requiredTables {
		t, err := s.readTable(path, etype)
		if err != nil {
			return nil, err
		}
		if err := ds.AddTable(t); err != nil {
			return nil, err
		}
	}
	extra := optionalTables
	if loadProfile {
		extra = append(append([]string{}, extra...), core.TypeLoadProfile)
	}
	for _, etype := range extra {
		t, err := s.readTable(path, etype)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		if err := ds.AddTable(t); err != nil {
			return nil, err
		}
	}

	// Operating-point cases must carry voltage setpoints on generators.
	if format == FormatOn {
		gens, _ := ds.Table(core.TypeGenerator)
		if !gens.HasColumn(core.ColV0) {
			return nil, fmt.Errorf("%w: [%s, %s]", core.ErrDataIncomplete, core.TypeGenerator, core.ColV0)
		}
	}
	s.Log.Debug(context.Background(), "case loaded",
		logging.String("path", path),
		logging.String("format", format),
		logging.Int("tables", len(ds.Types())),
	)
	return ds, nil
}

func (s *CaseStore) Save(ds *core.Dataset, path, format string, loadProfile, withStability bool) error {
	if format != FormatOn && format != FormatOff {
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create case directory: %w", err)
	}
	for _, etype := range ds.Types() {
		if etype == core.TypeLoadProfile && !loadProfile {
			continue
		}
		t, _ := ds.Table(etype)
		if err := s.writeTable(path, t); err != nil {
			return err
		}
	}
	return nil
}

func (s *CaseStore) SetIndex(ds *core.Dataset, keyField string) error {
	return ds.Reindex(keyField)
}

func (s *CaseStore) readTable(dir, etype string) (*core.Table, error) {
	name := filepath.Join(dir, etype+".csv")
	f, err := os.Open(name)
	if err != nil {
		if os.IsNotExist(err) {
			for _, req := range requiredTables {
				if etype == req {
					return nil, fmt.Errorf("%w: %s", ErrMissingTable, etype)
				}
			}
		}
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("read %s: empty file", name)
	}

	header := records[0]
	var numeric, label []string
	for _, col := range header {
		if col == core.ColName {
			label = append(label, col)
		} else {
			numeric = append(numeric, col)
		}
	}
	t := core.NewTable(etype, numeric, label)
	for i, rec := range records[1:] {
		if len(rec) != len(header) {
			return nil, fmt.Errorf("read %s: row %d has %d fields, want %d", name, i+1, len(rec), len(header))
		}
		num := make(map[string]float64, len(numeric))
		lbl := make(map[string]string, len(label))
		for j, col := range header {
			if col == core.ColName {
				lbl[col] = rec[j]
				continue
			}
			v, err := strconv.ParseFloat(rec[j], 64)
			if err != nil {
				return nil, fmt.Errorf("read %s: row %d column %s: %w", name, i+1, col, err)
			}
			num[col] = v
		}
		// Positional key until SetIndex re-keys by name.
		if err := t.AppendRow(strconv.Itoa(i), num, lbl); err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
	}
	return t, nil
}

func (s *CaseStore) writeTable(dir string, t *core.Table) error {
	name := filepath.Join(dir, t.Name()+".csv")
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	labels := t.LabelColumns()
	numerics := t.NumericColumns()
	header := append(append([]string{}, labels...), numerics...)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	for _, id := range t.IDs() {
		rec := make([]string, 0, len(header))
		for _, col := range labels {
			v, err := t.Label(id, col)
			if err != nil {
				return err
			}
			rec = append(rec, v)
		}
		for _, col := range numerics {
			v, err := t.Value(id, col)
			if err != nil {
				return err
			}
			rec = append(rec, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	w.Flush()
	return w.Error()
}
