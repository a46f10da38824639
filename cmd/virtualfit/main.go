package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"virtualfit/internal/domain"
	"virtualfit/internal/infra/config"
	"virtualfit/internal/infra/logger"
	"virtualfit/internal/infra/tracer"
)

func main() {
	inv, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n\nRun 'virtualfit help' for usage information.\n", err)
		os.Exit(2)
	}

	if inv.Command == "help" {
		showUsage(os.Stdout)
		return
	}

	if err := run(inv); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", inv.Command, describe(err))
		os.Exit(1)
	}
}

// invocation is the parsed command line.
type invocation struct {
	Command    string
	Args       []string
	ConfigPath string
}

var commands = map[string]bool{
	"chat": true, "serve": true, "ask": true, "analyze": true, "profile": true, "help": true,
}

// parseArgs extracts --config and the subcommand. With no subcommand the
// chat client runs.
func parseArgs(args []string) (invocation, error) {
	inv := invocation{Command: "chat"}
	var rest []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--config" || arg == "-c":
			if i+1 >= len(args) {
				return inv, fmt.Errorf("%s requires a path", arg)
			}
			inv.ConfigPath = args[i+1]
			i++
		case strings.HasPrefix(arg, "--config="):
			inv.ConfigPath = strings.TrimPrefix(arg, "--config=")
		case arg == "--help" || arg == "-h":
			inv.Command = "help"
			return inv, nil
		default:
			rest = append(rest, arg)
		}
	}

	if len(rest) > 0 {
		if !commands[rest[0]] {
			return inv, fmt.Errorf("unknown command: %s", rest[0])
		}
		inv.Command = rest[0]
		inv.Args = rest[1:]
	}
	if inv.ConfigPath == "" {
		inv.ConfigPath = os.Getenv("VIRTUALFIT_CONFIG")
	}
	if inv.ConfigPath == "" {
		inv.ConfigPath = config.DefaultPath()
	}
	return inv, nil
}

func showUsage(w io.Writer) {
	fmt.Fprintln(w, `virtualfit - fitness and nutrition assistant

USAGE:
    virtualfit [COMMAND] [FLAGS]

COMMANDS:
    chat                 Open the chat client (default)
    serve                Run the assistant gateway (/chat, /analyze-food)
    ask <text>           Send one message and print the streamed reply
    analyze <image>      Analyze a food photo and print its nutrition
    profile set <file>   Import a YAML or JSON profile
    profile show         Print the stored profile
    profile clear        Delete the stored profile
    help                 Show this help message

FLAGS:
    -c, --config PATH    Config file (default: ~/.virtualfit/config.yaml)
    -h, --help           Show this help message

ENVIRONMENT:
    VIRTUALFIT_* variables override config values.
    VIRTUALFIT_CONFIG_KEY decrypts "enc:" secrets.`)
}

func run(inv invocation) error {
	cfg, err := config.Load(inv.ConfigPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// The chat client owns the terminal, so its logs go to a file.
	if inv.Command == "chat" {
		cfg.Logger = fileLogger(cfg.Logger)
	}

	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(context.Background())

	log.Debug("virtualfit starting", "command", inv.Command, "config", inv.ConfigPath)

	switch inv.Command {
	case "chat":
		return runChat(ctx, cfg, log)
	case "serve":
		return runServe(ctx, cfg, log)
	case "ask":
		return runAsk(ctx, cfg, log, strings.Join(inv.Args, " "), os.Stdout)
	case "analyze":
		if len(inv.Args) != 1 {
			return fmt.Errorf("usage: virtualfit analyze <image>")
		}
		return runAnalyze(ctx, cfg, log, inv.Args[0], os.Stdout)
	case "profile":
		return runProfile(ctx, cfg, log, inv.Args, os.Stdout)
	default:
		return fmt.Errorf("unknown command: %s", inv.Command)
	}
}

// fileLogger redirects terminal log outputs to a rotated file under the
// virtualfit home directory.
func fileLogger(cfg config.LoggerConfig) config.LoggerConfig {
	switch strings.ToLower(cfg.Output) {
	case "", "stdout", "stderr":
		cfg.Output = filepath.Join(config.HomeDir(), "logs", "virtualfit.log")
	}
	return cfg
}

// describe prefers the DomainError detail over the wrapped chain.
func describe(err error) string {
	var de *domain.DomainError
	if errors.As(err, &de) && de.Detail != "" {
		return fmt.Sprintf("%s (%s)", de.Err, de.Detail)
	}
	return err.Error()
}
