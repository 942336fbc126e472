// Taskdrive is a task-driving agent around a streaming Ollama chat
// endpoint.
//
// Given a natural-language instruction, it iteratively consults a model,
// executes the [tool]|||...||| tool calls the model embeds in its output,
// feeds the results back into the dialogue alongside a feedback critic's
// continuation prompts, and stops when the model signals completion or the
// iteration cap is reached.
//
// Usage:
//
//	taskdrive run [flags] [task ...]   Drive a task to completion
//	taskdrive init [dir]               Write a starter config file
//	taskdrive version                  Print version and build information
//
// Flags for run:
//
//	-config path          Explicit config file (otherwise searched)
//	-model name           Override the configured model
//	-max-iterations n     Override the iteration cap
//
// When no task is given, a built-in example task is used.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/taskdrive/taskdrive/internal/agent"
	"github.com/taskdrive/taskdrive/internal/buildinfo"
	"github.com/taskdrive/taskdrive/internal/config"
	"github.com/taskdrive/taskdrive/internal/llm"
	"github.com/taskdrive/taskdrive/internal/prompts"
	"github.com/taskdrive/taskdrive/internal/tools"
	"github.com/taskdrive/taskdrive/internal/transcript"
)

// main constructs the OS-level environment and delegates to run, keeping
// os.Exit and os.Args out of the application logic so the lifecycle can
// be driven from tests.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point. Arguments are parsed manually to keep
// global flag state out of tests.
func run(ctx context.Context, stdout, stderr io.Writer, args []string) error {
	if len(args) == 0 {
		return usageError()
	}

	switch args[0] {
	case "run":
		return runTask(ctx, stdout, args[1:])
	case "init":
		return runInit(stdout, args[1:])
	case "version":
		fmt.Fprintln(stdout, buildinfo.String())
		return nil
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usageText)
		return nil
	default:
		return usageError()
	}
}

const usageText = `usage:
  taskdrive run [-config path] [-model name] [-max-iterations n] [task ...]
  taskdrive init [dir]
  taskdrive version
`

func usageError() error {
	return fmt.Errorf("%s", strings.TrimSpace(usageText))
}

// runFlags holds the parsed run-subcommand options.
type runFlags struct {
	configPath    string
	model         string
	maxIterations int
	task          string
}

func parseRunFlags(args []string) (runFlags, error) {
	var f runFlags
	var taskWords []string

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "-config", "--config":
			i++
			if i >= len(args) {
				return f, fmt.Errorf("%s requires a value", arg)
			}
			f.configPath = args[i]
		case "-model", "--model":
			i++
			if i >= len(args) {
				return f, fmt.Errorf("%s requires a value", arg)
			}
			f.model = args[i]
		case "-max-iterations", "--max-iterations":
			i++
			if i >= len(args) {
				return f, fmt.Errorf("%s requires a value", arg)
			}
			n, err := strconv.Atoi(args[i])
			if err != nil || n <= 0 {
				return f, fmt.Errorf("invalid -max-iterations value %q", args[i])
			}
			f.maxIterations = n
		default:
			if strings.HasPrefix(arg, "-") {
				return f, fmt.Errorf("unknown flag %s", arg)
			}
			taskWords = append(taskWords, arg)
		}
	}

	f.task = strings.Join(taskWords, " ")
	return f, nil
}

func runTask(ctx context.Context, stdout io.Writer, args []string) error {
	flags, err := parseRunFlags(args)
	if err != nil {
		return err
	}

	cfgPath, err := config.FindConfig(flags.configPath)
	if err != nil {
		return err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if flags.model != "" {
		cfg.Model = flags.model
	}
	if flags.maxIterations > 0 {
		cfg.Agent.MaxIterations = flags.maxIterations
	}

	logSink := config.NewRotatingLogWriter(cfg.Log)
	defer logSink.Close()
	logger, err := config.NewLogger(logSink, cfg.Log)
	if err != nil {
		return err
	}
	logger.Info("starting", "build", buildinfo.String(), "model", cfg.Model)

	var store *transcript.Store
	if cfg.Transcript.Enabled {
		store, err = transcript.NewStore(cfg.Transcript.Path)
		if err != nil {
			return fmt.Errorf("open transcript: %w", err)
		}
		defer store.Close()
	}

	client := llm.NewOllamaClient(cfg.Ollama.BaseURL)
	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("ollama not reachable at %s: %w", cfg.Ollama.BaseURL, err)
	}

	shell := tools.NewShellExec(time.Duration(cfg.Shell.DefaultTimeoutSec)*time.Second, logger)
	python := tools.NewPythonExec(cfg.Python.Interpreter, logger)
	registry := tools.NewRegistry(shell, python, logger)

	task := flags.task
	if task == "" {
		task = prompts.ExampleTask
	}

	a := agent.New(agent.Config{
		Client:        client,
		Model:         cfg.Model,
		MaxIterations: cfg.Agent.MaxIterations,
		Registry:      registry,
		Logger:        logger,
		Transcript:    store,
		Output:        stdout,
	})

	result := a.Run(ctx, task)
	fmt.Fprintf(stdout, "\nResult: %s\n", result)
	return nil
}

// starterConfig is written by taskdrive init. Values match the built-in
// defaults so the file documents what can be changed.
const starterConfig = `model: llama3.2:3b

ollama:
  base_url: http://localhost:11434

agent:
  max_iterations: 10

shell:
  default_timeout_sec: 10

python:
  interpreter: python3

log:
  path: agent_context.log
  level: debug
  max_size_mb: 10
  max_backups: 5

transcript:
  enabled: false
  path: taskdrive.db
`

func runInit(stdout io.Writer, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	path := filepath.Join(dir, "taskdrive.yaml")
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	if err := os.WriteFile(path, []byte(starterConfig), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	fmt.Fprintf(stdout, "wrote %s\n", path)
	return nil
}
