package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Kerhoff/wishpool/internal/api"
	"github.com/Kerhoff/wishpool/internal/config"
	"github.com/Kerhoff/wishpool/internal/handlers"
	"github.com/Kerhoff/wishpool/internal/identity"
	"github.com/Kerhoff/wishpool/internal/notify"
	"github.com/Kerhoff/wishpool/internal/repository"
	"github.com/Kerhoff/wishpool/internal/repository/memory"
	"github.com/Kerhoff/wishpool/internal/repository/sqlstore"
	"github.com/Kerhoff/wishpool/internal/service"
	"github.com/Kerhoff/wishpool/internal/telegram"
	"github.com/Kerhoff/wishpool/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

const usage = `usage: wishpool [command]

commands:
  serve          run the HTTP API, Telegram bot and notification dispatcher (default)
  seed           create demo users, a wishlist and gifts, then print login tokens
  token <userId> print a login token for an existing user`

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	l := logger.New(cfg.LogLevel, cfg.LogFormat)

	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "serve":
		err = serve(cfg, l)
	case "seed":
		err = seedCommand(cfg, l)
	case "token":
		err = tokenCommand(cfg, os.Args[2:])
	case "-h", "--help", "help":
		fmt.Println(usage)
		return
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		l.Fatalf("%s: %v", cmd, err)
	}
}

// openStore connects the configured storage engine, running migrations for
// SQL drivers.
func openStore(cfg *config.Config, l *logrus.Logger) (repository.Store, error) {
	if cfg.StoreDriver == config.DriverMemory {
		l.Warn("Using in-memory store, data is lost on restart")
		return memory.New(), nil
	}

	if cfg.StoreDriver == config.DriverSQLite {
		l.Warn("Using sqlite store, commitments on different gifts share one write lock")
	}

	db, err := config.NewDatabase(cfg.StoreDriver, cfg.DatabaseURL, l)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	dialect, err := sqlstore.DialectFor(db.Driver)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return sqlstore.New(db.DB, dialect), nil
}

func serve(cfg *config.Config, l *logrus.Logger) error {
	l.Info("Starting wishpool...")

	store, err := openStore(cfg, l)
	if err != nil {
		return err
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := service.NewMetrics(reg)

	svc := service.New(store, l, metrics, service.WithMaxAttempts(cfg.CommitMaxAttempts))

	provider, err := identity.NewProvider(cfg.JWTSecret, cfg.JWTTTL, nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.StoreDriver == config.DriverMemory {
		if err := printSeed(ctx, store, provider); err != nil {
			return err
		}
	}

	var channels []notify.Channel
	var bot *telegram.Bot
	if cfg.TelegramToken != "" {
		bot, err = telegram.NewBot(cfg.TelegramToken, l)
		if err != nil {
			return fmt.Errorf("failed to create Telegram bot: %w", err)
		}
		bot.RegisterCommand("start", handlers.NewStartHandler(l))
		bot.RegisterCommand("help", handlers.NewHelpHandler(l))
		bot.RegisterCommand("link", handlers.NewLinkHandler(svc, provider, l))
		bot.RegisterCommand("claim", handlers.NewClaimHandler(svc, l))
		bot.RegisterCommand("unclaim", handlers.NewUnclaimHandler(svc, l))
		bot.RegisterCommand("chip", handlers.NewChipHandler(svc, l))
		bot.RegisterCommand("gift", handlers.NewGiftHandler(svc, l))
		bot.RegisterCommand("inbox", handlers.NewInboxHandler(svc, l))
		channels = append(channels, telegram.NewNotifier(bot, l))
	} else {
		l.Info("TELEGRAM_TOKEN not set, Telegram bot disabled")
	}

	if cfg.RedisAddr != "" {
		rc, err := notify.NewRedisChannel(ctx, cfg.RedisAddr, cfg.RedisChannel, l)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer rc.Close()
		channels = append(channels, rc)
	}

	apiServer := api.NewServer(svc, provider, l)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	metricsServer := &http.Server{
		Addr:              ":" + cfg.PrometheusPort,
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		l.Infof("HTTP server listening on :%s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		l.Infof("Metrics server listening on :%s", cfg.PrometheusPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	if bot != nil {
		g.Go(func() error {
			return bot.Start(gctx)
		})
	}

	fanout := notify.NewFanout(channels...)
	if fanout.Len() > 0 {
		g.Go(func() error {
			svc.StartNotificationDispatcher(gctx, fanout, service.DispatchConfig{
				Interval:    cfg.DispatchInterval,
				BatchSize:   cfg.DispatchBatch,
				MaxAttempts: cfg.DispatchMaxAttempts,
			})
			return nil
		})
	} else {
		l.Info("No delivery channels configured, notifications stay in the in-app inbox")
	}

	g.Go(func() error {
		<-gctx.Done()
		l.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Join(httpServer.Shutdown(shutdownCtx), metricsServer.Shutdown(shutdownCtx))
	})

	l.Info("wishpool started successfully")
	err = g.Wait()
	l.Info("wishpool stopped")
	return err
}

func tokenCommand(cfg *config.Config, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: wishpool token <userId>")
	}
	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || userID <= 0 {
		return fmt.Errorf("invalid user id %q", args[0])
	}
	provider, err := identity.NewProvider(cfg.JWTSecret, cfg.JWTTTL, nil)
	if err != nil {
		return err
	}
	token, err := provider.Issue(userID)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
