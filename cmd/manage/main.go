// manage es la CLI de operaciones: cambios de modelo, anulación de trades
// y reconstrucción del estado de aprendizaje. Se ejecuta con el bot parado
// o en marcha; todas las operaciones son transaccionales en el store.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/alejandrodnm/predictor/config"
	"github.com/alejandrodnm/predictor/internal/adapters/storage"
	"github.com/alejandrodnm/predictor/internal/domain"
	"github.com/alejandrodnm/predictor/internal/learning"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	if err := run(os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: manage <command> [flags]

commands:
  model_swap            end the active run and start a new one under another model
  void_trade            void a trade record and rebuild learning state
  start_experiment      open a new experiment run (fails if one is active)
  end_experiment        close the active experiment run
  recalculate_learning  rebuild the learning snapshot from persisted records`)
}

func run(command string, args []string) error {
	switch command {
	case "model_swap":
		return cmdModelSwap(args)
	case "void_trade":
		return cmdVoidTrade(args)
	case "start_experiment":
		return cmdStartExperiment(args)
	case "end_experiment":
		return cmdEndExperiment(args)
	case "recalculate_learning":
		return cmdRecalculate(args)
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

// setup abre el store y carga el estado de aprendizaje; lo comparten todos
// los subcomandos.
func setup(configPath string) (*config.Config, *storage.SQLiteStorage, *learning.State, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := store.ApplySchema(context.Background()); err != nil {
		store.Close()
		return nil, nil, nil, err
	}

	state := learning.NewState(store, log)
	if err := state.Load(context.Background()); err != nil {
		store.Close()
		return nil, nil, nil, err
	}
	return cfg, store, state, nil
}

func cmdModelSwap(args []string) error {
	fs := flag.NewFlagSet("model_swap", flag.ExitOnError)
	configPath := fs.String("config", "config/config.yaml", "path to config file")
	oldFlag := fs.String("old", "", "old model identifier (defaults to the active run's model)")
	newModel := fs.String("new", "", "new model identifier (required)")
	reason := fs.String("reason", "", "why the model is being swapped (required)")
	fs.Parse(args)

	if *newModel == "" || *reason == "" {
		return fmt.Errorf("model_swap: -new and -reason are required")
	}

	cfg, store, state, err := setup(*configPath)
	if err != nil {
		return err
	}
	defer store.Close()
	ctx := context.Background()

	active, ok, err := store.ActiveExperiment(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	oldRunID, oldModel := "", *oldFlag
	if ok {
		oldRunID = active.RunID
		if oldModel == "" {
			oldModel = active.ModelUsed
		}
	}

	snap := cfg.SafeSnapshot()
	snap["model"] = *newModel

	newRun := domain.ExperimentRun{
		RunID:             fmt.Sprintf("run_%s", now.Format("20060102_150405")),
		StartedAt:         now,
		ConfigSnapshot:    snap,
		Description:       fmt.Sprintf("model swap: %s", *reason),
		ModelUsed:         *newModel,
		IncludeInLearning: true,
	}
	ev := domain.ModelSwapEvent{
		Timestamp:            now,
		OldModel:             oldModel,
		NewModel:             *newModel,
		Reason:               *reason,
		ExperimentRunStarted: newRun.RunID,
	}
	if err := state.Swap(ctx, oldRunID, newRun, ev); err != nil {
		return err
	}

	fmt.Printf("swapped %s -> %s, new run %s\n", oldModel, *newModel, newRun.RunID)
	return nil
}

func cmdVoidTrade(args []string) error {
	fs := flag.NewFlagSet("void_trade", flag.ExitOnError)
	configPath := fs.String("config", "config/config.yaml", "path to config file")
	recordID := fs.String("record", "", "trade record id (required)")
	reason := fs.String("reason", "", "why the trade is voided (required)")
	fs.Parse(args)

	if *recordID == "" || *reason == "" {
		return fmt.Errorf("void_trade: -record and -reason are required")
	}

	_, store, state, err := setup(*configPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := state.Void(context.Background(), *recordID, *reason, time.Now().UTC()); err != nil {
		return err
	}
	fmt.Printf("voided %s and rebuilt learning state\n", *recordID)
	return nil
}

func cmdStartExperiment(args []string) error {
	fs := flag.NewFlagSet("start_experiment", flag.ExitOnError)
	configPath := fs.String("config", "config/config.yaml", "path to config file")
	description := fs.String("description", "", "what this run tests (required)")
	model := fs.String("model", "", "model for the run (defaults to the configured model)")
	include := fs.Bool("include-in-learning", true, "feed this run's resolutions into learning")
	fs.Parse(args)

	if *description == "" {
		return fmt.Errorf("start_experiment: -description is required")
	}

	cfg, store, _, err := setup(*configPath)
	if err != nil {
		return err
	}
	defer store.Close()
	ctx := context.Background()

	if active, ok, err := store.ActiveExperiment(ctx); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("start_experiment: run %s is still active, end it first", active.RunID)
	}

	if *model == "" {
		*model = cfg.Model
	}
	now := time.Now().UTC()
	run := domain.ExperimentRun{
		RunID:             fmt.Sprintf("run_%s", now.Format("20060102_150405")),
		StartedAt:         now,
		ConfigSnapshot:    cfg.SafeSnapshot(),
		Description:       *description,
		ModelUsed:         *model,
		IncludeInLearning: *include,
	}
	if err := store.StartExperiment(ctx, run); err != nil {
		return err
	}
	fmt.Printf("started %s (model %s)\n", run.RunID, run.ModelUsed)
	return nil
}

func cmdEndExperiment(args []string) error {
	fs := flag.NewFlagSet("end_experiment", flag.ExitOnError)
	configPath := fs.String("config", "config/config.yaml", "path to config file")
	runID := fs.String("run", "", "run id to close (defaults to the active run)")
	fs.Parse(args)

	_, store, _, err := setup(*configPath)
	if err != nil {
		return err
	}
	defer store.Close()
	ctx := context.Background()

	if *runID == "" {
		active, ok, err := store.ActiveExperiment(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("end_experiment: no active run")
		}
		*runID = active.RunID
	}

	if err := store.EndExperiment(ctx, *runID, time.Now().UTC()); err != nil {
		return err
	}
	fmt.Printf("ended %s\n", *runID)
	return nil
}

func cmdRecalculate(args []string) error {
	fs := flag.NewFlagSet("recalculate_learning", flag.ExitOnError)
	configPath := fs.String("config", "config/config.yaml", "path to config file")
	fs.Parse(args)

	_, store, state, err := setup(*configPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := state.Rebuild(context.Background(), time.Now().UTC()); err != nil {
		return err
	}
	fmt.Println("learning state rebuilt from persisted records")
	return nil
}
