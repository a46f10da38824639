package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"virtualfit/internal/adapter/analyzer"
	"virtualfit/internal/adapter/gateway"
	"virtualfit/internal/adapter/llm"
	"virtualfit/internal/adapter/profile"
	"virtualfit/internal/adapter/tui/chat"
	"virtualfit/internal/adapter/wsclient"
	"virtualfit/internal/domain"
	"virtualfit/internal/infra/config"
)

// openProfiles opens the local profile store. The caller closes the KVStore.
func openProfiles(cfg *config.Config) (*profile.KVStore, *profile.Store, error) {
	kv, err := profile.OpenKVStore(cfg.Storage.Path)
	if err != nil {
		return nil, nil, err
	}
	return kv, profile.NewStore(kv), nil
}

func newAnalyzer(cfg *config.Config, log *slog.Logger) (*analyzer.Client, error) {
	return analyzer.New(analyzer.Options{
		BaseURL:  cfg.Client.APIURL,
		Timeout:  cfg.Client.RequestTimeout,
		Analyzer: cfg.Analyzer,
		Logger:   log,
	})
}

func dialer(cfg *config.Config, log *slog.Logger) chat.DialFunc {
	return func(ctx context.Context) (domain.Conn, error) {
		conn, err := wsclient.Dial(ctx, wsclient.Options{
			URL:         cfg.Client.ChatURL,
			Token:       cfg.Client.Token,
			DialTimeout: cfg.Client.DialTimeout,
			Logger:      log,
		})
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

func runChat(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	kv, store, err := openProfiles(cfg)
	if err != nil {
		return err
	}
	defer kv.Close()

	az, err := newAnalyzer(cfg, log)
	if err != nil {
		return err
	}

	tui := chat.NewTUIChannel(chat.Options{
		Dial:        dialer(cfg, log),
		Profiles:    store,
		Analyzer:    az,
		UserID:      cfg.Client.UserID,
		SendTimeout: cfg.Client.RequestTimeout,
		Logger:      log,
	})
	return tui.Start(ctx)
}

func runServe(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	responder, err := llm.NewResponder(cfg.Assistant, log)
	if err != nil {
		return fmt.Errorf("assistant: %w", err)
	}

	deps := gateway.Deps{
		Responder: responder,
		Auth:      gateway.NewAuthenticator(cfg.Gateway.Auth),
		Logger:    log,
	}
	if cfg.Gateway.AnalyzerUpstream != "" {
		// The gateway rate limits uploads itself, so the upstream client does not.
		upstream := cfg.Analyzer
		upstream.RequestsPerMinute = 0
		upstream.MaxUploadBytes = cfg.Gateway.MaxUploadBytes
		az, err := analyzer.New(analyzer.Options{
			BaseURL:  cfg.Gateway.AnalyzerUpstream,
			Timeout:  cfg.Client.RequestTimeout,
			Analyzer: upstream,
			Logger:   log,
		})
		if err != nil {
			return fmt.Errorf("analyzer upstream: %w", err)
		}
		deps.Analyzer = az
	}

	srv := gateway.NewServer(cfg.Gateway, deps)
	log.Info("virtualfit gateway starting",
		"addr", cfg.Gateway.Addr,
		"assistant", responder.Name(),
		"analysis", cfg.Gateway.AnalyzerUpstream != "",
		"auth", len(cfg.Gateway.Auth.Tokens) > 0,
	)
	return srv.Start(ctx)
}

func runAnalyze(ctx context.Context, cfg *config.Config, log *slog.Logger, path string, out io.Writer) error {
	az, err := newAnalyzer(cfg, log)
	if err != nil {
		return err
	}
	result, err := az.Analyze(ctx, path)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, domain.FormatAnalysis(result))
	return err
}

func runProfile(ctx context.Context, cfg *config.Config, _ *slog.Logger, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: virtualfit profile set <file>|show|clear")
	}
	kv, store, err := openProfiles(cfg)
	if err != nil {
		return err
	}
	defer kv.Close()
	return profileCommand(ctx, store, args, out)
}

// profileCommand runs a profile subcommand against store.
func profileCommand(ctx context.Context, store domain.ProfileStore, args []string, out io.Writer) error {
	switch args[0] {
	case "set":
		if len(args) != 2 {
			return fmt.Errorf("usage: virtualfit profile set <file>")
		}
		p, err := profile.ReadFile(args[1])
		if err != nil {
			return err
		}
		if err := store.SaveProfile(ctx, p); err != nil {
			return err
		}
		fmt.Fprintf(out, "Profile saved for %s.\n", p.Name)
		return nil

	case "show":
		p, err := store.LoadProfile(ctx)
		if err != nil {
			return err
		}
		data, err := profile.Marshal(p)
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err

	case "clear":
		if err := store.DeleteProfile(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "Profile deleted.")
		return nil

	default:
		return fmt.Errorf("unknown profile command: %s", args[0])
	}
}
