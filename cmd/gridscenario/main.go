package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/signalsfoundry/grid-scenario-engine/core"
	"github.com/signalsfoundry/grid-scenario-engine/internal/logging"
	"github.com/signalsfoundry/grid-scenario-engine/internal/observability"
	"github.com/signalsfoundry/grid-scenario-engine/internal/runner"
	"github.com/signalsfoundry/grid-scenario-engine/internal/solver"
	"github.com/signalsfoundry/grid-scenario-engine/internal/store"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML batch configuration (overrides the flags below)")
	basePath := flag.String("base", "", "Directory of the base case and solver companion files")
	outPath := flag.String("out", "", "Directory holding action files; receives one scenario directory per file")
	fileList := flag.String("files", "", "Comma-separated action file names under the output directory")
	format := flag.String("format", store.FormatOn, "Case format: on or off")
	saveAux := flag.Bool("st", true, "Also copy the stability companion file into each scenario directory")
	invokeSolver := flag.Bool("solve", true, "Run the load-flow solver per scenario")
	solverBinary := flag.String("solver", solver.DefaultBinary, "Load-flow program name or path")
	seed := flag.Uint64("seed", 0, "Fix the random source for reproducible runs (0 leaves it unseeded)")
	metricsAddr := flag.String("metrics-addr", "", "HTTP address for Prometheus /metrics (empty disables the server)")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	cfg, err := resolveConfig(*configPath, *basePath, *outPath, *fileList, *format, *saveAux, *invokeSolver, *solverBinary, *seed)
	if err != nil {
		log.Error(ctx, "invalid configuration", logging.String("error", err.Error()))
		os.Exit(2)
	}
	if cfg.Seed != nil {
		core.SeedRandom(*cfg.Seed)
	}

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.String("error", err.Error()))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	collector, err := observability.NewScenarioCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.String("error", err.Error()))
		os.Exit(1)
	}
	metricsSrv := serveMetrics(*metricsAddr, collector, log)

	r := runner.New(store.NewCaseStore(log), solver.NewExecSolver(cfg.SolverBinary, log), log)
	r.Metrics = collector

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	results, runErr := r.LoadActions(runCtx, nil, cfg.BasePath, cfg.OutPath, cfg.Files, cfg.Options())
	printResults(results)
	if runErr != nil {
		log.Error(ctx, "batch aborted", logging.String("error", runErr.Error()))
	}

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	if runErr != nil {
		os.Exit(1)
	}
}

// resolveConfig merges the YAML config file with the command-line flags; the
// file wins when both are given.
func resolveConfig(configPath, basePath, outPath, fileList, format string, saveAux, invokeSolver bool, solverBinary string, seed uint64) (*runner.Config, error) {
	if configPath != "" {
		return runner.LoadConfig(configPath)
	}

	cfg := &runner.Config{
		BasePath:     basePath,
		OutPath:      outPath,
		Format:       format,
		SaveAux:      &saveAux,
		InvokeSolver: &invokeSolver,
		SolverBinary: solverBinary,
	}
	for _, f := range strings.Split(fileList, ",") {
		if f = strings.TrimSpace(f); f != "" {
			cfg.Files = append(cfg.Files, f)
		}
	}
	if seed != 0 {
		cfg.Seed = &seed
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func printResults(results map[string]bool) {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	converged := 0
	for _, name := range names {
		status := "DIVERGED"
		if results[name] {
			status = "ok"
			converged++
		}
		fmt.Printf("%-32s %s\n", name, status)
	}
	fmt.Printf("%d/%d scenarios converged\n", converged, len(results))
}

func serveMetrics(addr string, collector *observability.ScenarioCollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.String("error", err.Error()))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
