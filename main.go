// Command cappuccino is a chat bot that answers s/find/replace/ corrections.
// It:
//   - Loads configuration and initializes structured logging.
//   - Optionally connects to Postgres, runs migrations and enables the
//     database-backed plugins (chanlog, seen, triggers).
//   - Connects to IRC, Twitch chat or both and feeds their events to the router.
//   - Exposes a minimal HTTP server with /healthz, /readyz, /status and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/onnwee/cappuccino/bot"
	"github.com/onnwee/cappuccino/chanlog"
	"github.com/onnwee/cappuccino/chat"
	"github.com/onnwee/cappuccino/config"
	"github.com/onnwee/cappuccino/db"
	"github.com/onnwee/cappuccino/sed"
	"github.com/onnwee/cappuccino/seen"
	"github.com/onnwee/cappuccino/server"
	"github.com/onnwee/cappuccino/telemetry"
	"github.com/onnwee/cappuccino/triggers"
	"github.com/onnwee/cappuccino/urlinfo"
)

const version = "1.0.0"

func main() {
	// Local dev convenience only; production relies on real env.
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		format = "text"
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", format))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("err", err))
		os.Exit(1)
	}

	telemetry.Init()

	shutdown, err := telemetry.InitTracing("cappuccino", version)
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	corrector := sed.NewCorrector(sed.Config{
		HistorySize:   cfg.Sed.HistorySize,
		MaxExtraChars: cfg.Sed.MaxExtraChars,
		MaxLength:     cfg.Sed.MaxLength,
		CommandPrefix: cfg.CommandPrefix,
	}, sed.SedEditor{Path: cfg.Sed.Binary, Timeout: cfg.Sed.Timeout})
	plugins := []bot.Plugin{corrector}
	if cfg.URLInfo.Enabled {
		plugins = append(plugins, urlinfo.New(urlinfo.Config{
			Timeout:       cfg.URLInfo.Timeout,
			UserAgent:     cfg.URLInfo.UserAgent,
			IgnoreNicks:   cfg.URLInfo.IgnoreNicks,
			IgnoreHosts:   cfg.URLInfo.IgnoreHosts,
			CommandPrefix: cfg.CommandPrefix,
		}))
	}

	var database *sql.DB
	if cfg.DBDsn != "" {
		database, err = db.Connect(ctx, cfg.DBDsn)
		if err != nil {
			slog.Error("failed to open db", slog.Any("err", err))
			os.Exit(1)
		}
		defer func() {
			if err := database.Close(); err != nil {
				slog.Error("failed to close database", slog.Any("err", err))
			}
		}()

		slog.Info("running database migrations", slog.String("component", "db_migrate"))
		if err := db.Migrate(ctx, database); err != nil {
			slog.Error("failed to migrate db", slog.Any("err", err))
			os.Exit(1)
		}
		plugins = append(plugins,
			chanlog.New(&db.ChanlogStore{DB: database}),
			seen.New(&db.SeenStore{DB: database}, cfg.CommandPrefix),
			triggers.New(&db.TriggerStore{DB: database}, cfg.CommandPrefix),
		)
	} else {
		slog.Info("DB_DSN not set; chanlog, seen and triggers disabled")
	}

	router := bot.NewRouter(plugins...)

	type runner interface {
		server.Transport
		Run(ctx context.Context) error
	}
	var transports []runner
	if cfg.UseIRC() {
		transports = append(transports, chat.NewIRC(cfg.IRC, router))
	}
	if cfg.UseTwitch() {
		transports = append(transports, chat.NewTwitch(cfg.Twitch, router))
	}

	if os.Getenv("ENABLE_PPROF") == "1" {
		startPprof()
	}

	opts := server.Options{
		DB:      database,
		History: corrector.History(),
		Plugins: router.Plugins(),
	}
	for _, t := range transports {
		opts.Transports = append(opts.Transports, t)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return router.Run(gctx) })
	for _, t := range transports {
		g.Go(func() error { return t.Run(gctx) })
	}
	g.Go(func() error { return server.Start(gctx, opts, cfg.HTTPAddr) })

	slog.Info("cappuccino started", slog.String("transport", cfg.Transport), slog.Any("plugins", router.Plugins()))
	if err := g.Wait(); err != nil {
		slog.Error("exited with error", slog.Any("err", err))
		os.Exit(1)
	}
	slog.Info("shutting down")
}

func startPprof() {
	addr := os.Getenv("PPROF_ADDR")
	if addr == "" {
		addr = "localhost:6060"
	}
	go func() {
		slog.Info("pprof profiling enabled", slog.String("addr", addr))
		srv := &http.Server{
			Addr:              addr,
			Handler:           nil, // default mux exposes /debug/pprof
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		if err := srv.ListenAndServe(); err != nil {
			slog.Error("pprof server error", slog.Any("err", err))
		}
	}()
}
