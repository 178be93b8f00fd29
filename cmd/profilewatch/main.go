// Command profilewatch scrapes web profiles and reconciles them into a
// local SQLite database.
//
// Usage:
//
//	profilewatch -config profilewatch.yaml            # settings from YAML
//	profilewatch -mode online -limit 20               # one online-feed cycle
//	profilewatch -mode tasks -repeat -every 10        # work the task queue forever
//	profilewatch -queue alice,bob                     # seed tasks and exit
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"profilewatch/config"
	"profilewatch/profile"
	"profilewatch/runner"
	"profilewatch/site"
	"profilewatch/status"
	"profilewatch/store"
)

func main() {
	configPath := flag.String("config", "", "path to profilewatch.yaml config file")
	dbPath := flag.String("db", "", "path to the SQLite database")
	mode := flag.String("mode", "", "item source: online or tasks")
	limit := flag.Int("limit", 0, "max items per cycle (0 = batch size only)")
	repeat := flag.Bool("repeat", false, "keep running cycles on a timer")
	every := flag.Int("every", 0, "minutes between repeated cycles")
	maxRuntime := flag.Duration("max-runtime", 0, "stop after this long (0 = no deadline)")
	cookieFile := flag.String("cookies", "", "path to the Netscape-format cookie file")
	queue := flag.String("queue", "", "comma-separated nicks to queue as tasks, then exit")
	statusAddr := flag.String("status-addr", "", "listen address for the status endpoint (empty = disabled)")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Flags win over env and file, but only when actually set.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "db":
			cfg.DBPath = *dbPath
		case "mode":
			cfg.Mode = *mode
		case "limit":
			cfg.Limit = *limit
		case "repeat":
			cfg.Repeat = *repeat
		case "every":
			cfg.Every = config.Duration(time.Duration(*every) * time.Minute)
		case "max-runtime":
			cfg.MaxRuntime = config.Duration(*maxRuntime)
		case "cookies":
			cfg.Site.CookieFile = *cookieFile
		case "status-addr":
			cfg.StatusAddr = *statusAddr
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})
	cfg.Defaults()

	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MaxRuntime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.MaxRuntime.Std())
		defer cancel()
	}

	if err := run(ctx, logger, cfg, *queue); err != nil {
		logger.Error("profilewatch: fatal", "error", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = os.Getenv("PROFILEWATCH_CONFIG")
	}
	cfg := &config.Config{}
	if path != "" {
		loaded, err := config.LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, logger *slog.Logger, cfg *config.Config, queue string) error {
	mode, err := parseMode(cfg.Mode)
	if err != nil {
		return err
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	if queue != "" {
		return queueTasks(ctx, logger, db, queue)
	}

	sc := site.New(cfg.Site.Config(), logger)
	if err := sc.Start(ctx); err != nil {
		return fmt.Errorf("start site: %w", err)
	}
	defer sc.Stop()

	opts := []runner.Option{}
	var srv *status.Server
	if cfg.StatusAddr != "" {
		srv = status.New(logger)
		srv.Start(cfg.StatusAddr)
		defer func() {
			shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shCtx)
		}()
		opts = append(opts, runner.WithObserver(srv))
	}

	norm := profile.NewNormalizer(profile.DefaultSymbols(), logger)
	r := runner.New(runner.Config{
		Mode:          mode,
		Limit:         cfg.Limit,
		Pace:          cfg.Pace.Config(),
		RetryAttempts: cfg.Retry.Attempts,
		RetryBackoff:  cfg.Retry.Backoff.Std(),
	}, db, sc, norm, logger, opts...)

	if cfg.Repeat {
		sched := runner.NewScheduler(r, cfg.Every.Std(), logger)
		return sched.Run(ctx)
	}

	_, err = r.RunCycle(ctx, store.TriggerManual)
	return err
}

func parseMode(s string) (runner.Mode, error) {
	switch s {
	case "online", "":
		return runner.ModeOnline, nil
	case "tasks":
		return runner.ModeTasks, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want online or tasks)", s)
	}
}

func queueTasks(ctx context.Context, logger *slog.Logger, db *store.DB, queue string) error {
	var nicks []string
	for _, nick := range strings.Split(queue, ",") {
		if nick = strings.TrimSpace(nick); nick != "" {
			nicks = append(nicks, nick)
		}
	}
	// One transaction for the whole batch: a partial seed would leave the
	// operator guessing which nicks made it in.
	if err := db.QueueTasks(ctx, nicks, "manual"); err != nil {
		return fmt.Errorf("queue tasks: %w", err)
	}
	logger.Info("profilewatch: tasks queued", "count", len(nicks))
	return nil
}
