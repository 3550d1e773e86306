// ABOUTME: Entry point for the hubd construction hub server
// ABOUTME: Serves the admin, escalation, and project APIs over HTTP

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/constructhub/hub/internal/api"
	"github.com/constructhub/hub/internal/authz"
	"github.com/constructhub/hub/internal/config"
	"github.com/constructhub/hub/internal/escalation"
	"github.com/constructhub/hub/internal/identity"
	"github.com/constructhub/hub/internal/mailer"
	"github.com/constructhub/hub/internal/session"
	"github.com/constructhub/hub/internal/store"
	"github.com/constructhub/hub/internal/verification"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                           _                   _   _           _
   ___ ___  _ __  ___  ___| |_ _ __ _   _  ___| |_| |__  _   _| |__
  / __/ _ \| '_ \/ __|/ __| __| '__| | | |/ __| __| '_ \| | | | '_ \
 | (_| (_) | | | \__ \ (__| |_| |  | |_| | (__| |_| | | | |_| | |_) |
  \___\___/|_| |_|___/\___|\__|_|   \__,_|\___|\__|_| |_|\__,_|_.__/
`

// getConfigPath returns the path to the hub config file.
// Priority: HUB_CONFIG env var > XDG_CONFIG_HOME/constructhub/hub.yaml > ~/.config/constructhub/hub.yaml
func getConfigPath() string {
	if envPath := os.Getenv("HUB_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "hub.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "constructhub", "hub.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: hubd <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve     Start the hub server")
		fmt.Println("  health    Check hub health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:     %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database: %s\n", cfg.Database.Path)
	green.Print("    ▶ ")
	fmt.Printf("Identity: %s\n", cfg.Identity.Provider)
	fmt.Println()

	logger.Info("starting hubd",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
	)

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() { _ = st.Close() }()

	// All persisted admin sessions are invalidated before the listener
	// starts, so no request ever sees a pre-restart session.
	sweeper := session.NewSweeper(st)
	cleared, err := sweeper.Run(ctx)
	if err != nil {
		return fmt.Errorf("startup session sweep: %w", err)
	}
	logger.Info("session sweep", "cleared", cleared)

	provider, err := identity.NewProvider(cfg.Identity)
	if err != nil {
		return fmt.Errorf("creating identity provider: %w", err)
	}

	sender, err := mailer.NewSender(cfg.Mail)
	if err != nil {
		return fmt.Errorf("creating mail sender: %w", err)
	}

	var verifier *identity.WebhookVerifier
	if cfg.Identity.WebhookSecret != "" {
		verifier, err = identity.NewWebhookVerifier(cfg.Identity.WebhookSecret)
		if err != nil {
			return fmt.Errorf("creating webhook verifier: %w", err)
		}
	}

	sessions := session.NewManager(st, cfg.Admin)
	workflow := escalation.NewWorkflow(st, sender, cfg.Server.BaseURL, cfg.Admin.NotifyAddress)
	verifications := verification.NewService(st, sender)
	resolver := authz.NewResolver(sessions, provider, st)

	server := api.NewServer(st, sessions, workflow, verifications, resolver, verifier, "admin:"+cfg.Admin.Email)

	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}

	return nil
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/api/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	buf.WriteString(r.Message)

	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}
