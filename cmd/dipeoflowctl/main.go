// dipeoflowctl is the command-line driver for the engine: validate a
// diagram file, run it to completion, or replay a stored execution's
// events back into a state snapshot.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/dipeoflow/engine/internal/config"
	"github.com/dipeoflow/engine/internal/logger"
	"github.com/dipeoflow/engine/pkg/diagram"
	"github.com/dipeoflow/engine/pkg/eventstore"
	"github.com/dipeoflow/engine/pkg/handlers"
	"github.com/dipeoflow/engine/pkg/scheduler"
)

// Exit codes, per the engine's error-handling design: 0 success, 2
// validation failure, 3 runtime failure, 4 aborted, 5 timeout.
const (
	exitSuccess    = 0
	exitValidation = 2
	exitRuntime    = 3
	exitAborted    = 4
	exitTimeout    = 5
)

const usage = `dipeoflowctl - diagram execution engine CLI

USAGE:
    dipeoflowctl <command> [options]

COMMANDS:
    validate <file>   Compile a diagram file and report validation issues
    run <file>        Compile and run a diagram file to completion
    replay <id>       Rebuild an execution's state from its stored events
    version           Show version information
    help              Show this help message

RUN OPTIONS:
    -input <json>       JSON value to seed the start node(s) with
    -timeout <duration> Execution-wide timeout (default: from config)

REPLAY OPTIONS:
    -diagram <file>     Diagram file the execution ran against (required)

ENVIRONMENT VARIABLES:
    DIPEOFLOW_EVENTSTORE_DRIVER   "memory" or "postgres" (default: memory)
    DIPEOFLOW_DATABASE_URL        Postgres DSN, required when driver=postgres
`

const version = "0.1.0"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		fmt.Fprint(os.Stderr, usage)
		return exitValidation
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load configuration: %v\n", err)
		return exitValidation
	}
	log := logger.New(cfg.Logging)

	switch args[0] {
	case "validate":
		return cmdValidate(args[1:])
	case "run":
		return cmdRun(args[1:], cfg, log)
	case "replay":
		return cmdReplay(args[1:], cfg)
	case "version":
		fmt.Printf("dipeoflowctl v%s\n", version)
		return exitSuccess
	case "help", "-h", "--help":
		fmt.Print(usage)
		return exitSuccess
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n", args[0])
		fmt.Fprint(os.Stderr, usage)
		return exitValidation
	}
}

func loadDiagram(path string) (*diagram.ExecutableDiagram, []diagram.ValidationIssue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	raw, err := diagram.DecodeLightYAML(data)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	d, issues := diagram.Compile(raw)
	return d, issues, nil
}

func cmdValidate(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Error: validate requires a diagram file")
		return exitValidation
	}

	d, issues, err := loadDiagram(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitValidation
	}

	hadError := false
	for _, i := range issues {
		fmt.Println(i.String())
		if i.Severity == diagram.SeverityError {
			hadError = true
		}
	}
	if hadError || d == nil {
		return exitValidation
	}

	registry := handlers.RegisterAll(handlers.Dependencies{})
	for _, i := range registry.ValidateDiagram(d) {
		fmt.Println(i.String())
		if i.Severity == diagram.SeverityError {
			hadError = true
		}
	}
	if hadError {
		return exitValidation
	}

	fmt.Printf("OK: %d nodes, %d edges, %d layers\n", len(d.Nodes), len(d.Edges), len(d.Layers))
	return exitSuccess
}

func cmdRun(args []string, cfg *config.Config, log *logger.Logger) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	inputJSON := fs.String("input", "", "JSON value to seed the start node(s) with")
	timeout := fs.Duration("timeout", 0, "Execution-wide timeout override")
	if err := fs.Parse(args); err != nil {
		return exitValidation
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: run requires a diagram file")
		return exitValidation
	}

	d, issues, err := loadDiagram(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitValidation
	}
	for _, i := range issues {
		if i.Severity == diagram.SeverityError {
			fmt.Fprintln(os.Stderr, i.String())
			return exitValidation
		}
	}

	var input any
	if *inputJSON != "" {
		if err := json.Unmarshal([]byte(*inputJSON), &input); err != nil {
			fmt.Fprintf(os.Stderr, "Error: -input is not valid JSON: %v\n", err)
			return exitValidation
		}
	}

	registry := handlers.RegisterAll(handlers.Dependencies{Store: handlers.NewMemoryStore()})
	if issues := registry.ValidateDiagram(d); len(issues) > 0 {
		hadError := false
		for _, i := range issues {
			fmt.Fprintln(os.Stderr, i.String())
			hadError = hadError || i.Severity == diagram.SeverityError
		}
		if hadError {
			return exitValidation
		}
	}

	opts := scheduler.DefaultOptions()
	opts.MaxParallelNodes = cfg.Scheduler.MaxParallelNodes
	opts.PollInterval = cfg.Scheduler.PollInterval
	opts.MaxPollRetries = cfg.Scheduler.MaxPollRetries
	opts.NodeTimeout = cfg.Scheduler.NodeTimeout
	opts.ExecutionTimeout = cfg.Scheduler.ExecutionTimeout
	opts.ContinueOnError = cfg.Scheduler.ContinueOnError
	if *timeout > 0 {
		opts.ExecutionTimeout = *timeout
	}

	sink := scheduler.SinkFunc(func(e scheduler.Event) {
		log.Info("event", "type", e.Type, "node_id", e.NodeID, "status", e.Status)
	})
	sched := scheduler.New(registry, sink, nil, opts)

	ctx := context.Background()
	_, resultCh := sched.Run(ctx, d, input)
	result := <-resultCh

	b, _ := json.MarshalIndent(result.Output, "", "  ")
	fmt.Println(string(b))

	switch {
	case result.Err == nil:
		return exitSuccess
	case isDeadlineExceeded(result.Err):
		fmt.Fprintf(os.Stderr, "Error: %v\n", result.Err)
		return exitTimeout
	case isAborted(result.Err):
		fmt.Fprintf(os.Stderr, "Error: %v\n", result.Err)
		return exitAborted
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", result.Err)
		return exitRuntime
	}
}

func isDeadlineExceeded(err error) bool {
	return err == context.DeadlineExceeded || errorsIs(err, context.DeadlineExceeded)
}

func isAborted(err error) bool {
	return errorsIs(err, scheduler.ErrAborted)
}

func errorsIs(err, target error) bool {
	for err != nil {
		if err == target {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func cmdReplay(args []string, cfg *config.Config) int {
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	diagramPath := fs.String("diagram", "", "Diagram file the execution ran against (required)")
	if err := fs.Parse(args); err != nil {
		return exitValidation
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: replay requires an execution ID")
		return exitValidation
	}
	if *diagramPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -diagram is required")
		return exitValidation
	}

	d, issues, err := loadDiagram(*diagramPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitValidation
	}
	for _, i := range issues {
		if i.Severity == diagram.SeverityError {
			fmt.Fprintln(os.Stderr, i.String())
			return exitValidation
		}
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitRuntime
	}
	defer closeStore()

	ctx := context.Background()
	es, err := eventstore.Replay(ctx, store, d, fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: replay failed: %v\n", err)
		return exitRuntime
	}

	snapshot := es.Snapshot()
	b, _ := json.MarshalIndent(snapshot, "", "  ")
	fmt.Println(string(b))
	return exitSuccess
}

func openStore(cfg *config.Config) (eventstore.Store, func(), error) {
	if cfg.EventStore.Driver == "postgres" {
		sqldb := sql.OpenDB(pgdriver.NewConnector(
			pgdriver.WithDSN(cfg.EventStore.DatabaseURL),
			pgdriver.WithTimeout(5*time.Second),
		))
		db := bun.NewDB(sqldb, pgdialect.New())
		store := eventstore.NewPostgresStore(db)
		if err := store.EnsureSchema(context.Background()); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ensuring event store schema: %w", err)
		}
		return store, func() { db.Close() }, nil
	}
	return eventstore.NewMemoryStore(), func() {}, nil
}
