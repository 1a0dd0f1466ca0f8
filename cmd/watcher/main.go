package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"reddit_watcher/internal/config"
	"reddit_watcher/internal/control"
	"reddit_watcher/internal/matcher"
	"reddit_watcher/internal/model"
	"reddit_watcher/internal/reddit"
	"reddit_watcher/internal/relay"
	"reddit_watcher/internal/storage"
	"reddit_watcher/internal/watcher"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if err := cfg.RequireRedditCredentials(); err != nil {
		log.Error("missing credentials", "error", err)
		os.Exit(1)
	}

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := reddit.NewClient(cfg.RedditClientID, cfg.RedditClientSecret, cfg.RedditUserAgent)
	if err := client.Authenticate(ctx); err != nil {
		// Bad credentials are fatal; transient token endpoint errors are
		// retried by the workers.
		if errors.Is(err, reddit.ErrUnauthorized) {
			log.Error("reddit authentication failed", "error", err)
			os.Exit(1)
		}
		log.Warn("initial authentication failed, workers will retry", "error", err)
	}

	registry := matcher.NewRegistry()
	registry.Set(cfg.Keywords)

	refresher := watcher.NewRefresher(registry, store, cfg.Keywords, cfg.RefreshInterval, log)
	if err := refresher.Refresh(ctx); err != nil {
		log.Warn("initial keyword refresh failed, using baseline", "error", err)
	}

	sink, runSink := selectSink(cfg, store, log)

	target := cfg.SubredditTarget()
	policy := watcher.NewPolicy(cfg.ExcludeSubs, cfg.AllowNSFW)
	log.Info("starting watcher",
		"target", target,
		"exclude", strings.Join(cfg.ExcludeSubs, ","),
		"nsfw", cfg.AllowNSFW,
		"keywords", strings.Join(registry.Keywords(), ","),
	)

	controlSrv := control.NewServer(cfg.ControlAddr, refresher.Refresh, log)
	go func() {
		log.Info("control endpoint listening", "addr", cfg.ControlAddr)
		if err := controlSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("control server error", "error", err)
		}
	}()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		stream := reddit.NewStream(client, model.KindPost, target, cfg.PollInterval)
		w := watcher.NewWorker(model.KindPost, stream, registry, store, sink, policy, log)
		return w.Run(ctx)
	})
	g.Go(func() error {
		stream := reddit.NewStream(client, model.KindComment, target, cfg.PollInterval)
		w := watcher.NewWorker(model.KindComment, stream, registry, store, sink, policy, log)
		return w.Run(ctx)
	})
	g.Go(func() error {
		refresher.Run(ctx)
		return nil
	})
	if runSink != nil {
		g.Go(func() error {
			runSink(ctx)
			return nil
		})
	}

	err = g.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = controlSrv.Shutdown(shutdownCtx)

	if err != nil {
		log.Error("watcher stopped", "error", err)
		os.Exit(1)
	}
	log.Info("watcher stopped")
}

// selectSink picks the relay sink at composition time: the Telegram bot
// when configured, otherwise the webhook, otherwise plain logging. The
// second return value is a background loop the sink needs, if any.
func selectSink(cfg *config.Config, store storage.Storage, log *slog.Logger) (relay.Sink, func(context.Context)) {
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != 0 {
		sink, err := relay.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID, store, log)
		if err != nil {
			log.Error("create telegram sink", "error", err)
			os.Exit(1)
		}
		log.Info("relaying matches to telegram", "chat_id", cfg.TelegramChatID)
		return sink, sink.Run
	}
	if cfg.DiscordWebhook != "" {
		log.Info("relaying matches to webhook")
		return relay.NewWebhook(cfg.DiscordWebhook, log), nil
	}
	log.Info("no relay target configured, logging matches")
	return relay.LogSink{Log: log}, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
