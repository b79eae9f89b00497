package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/yourneighborhoodchef/servermon/internal/client"
	"github.com/yourneighborhoodchef/servermon/internal/config"
	"github.com/yourneighborhoodchef/servermon/internal/headers"
	"github.com/yourneighborhoodchef/servermon/internal/logging"
	"github.com/yourneighborhoodchef/servermon/internal/monitor"
	"github.com/yourneighborhoodchef/servermon/internal/notify"
	"github.com/yourneighborhoodchef/servermon/internal/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "servermon:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		configPath = ""
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, closeLog := logging.New(cfg.App.LogLevel, cfg.App.LogFormat)
	defer closeLog()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	headers.InitProfilePool(50)
	fetcher, err := client.NewFetcher(client.Options{
		BaseURL:           cfg.Source.BaseURL,
		Subsidiary:        cfg.Source.Subsidiary,
		Timeout:           cfg.Source.Timeout,
		RequestsPerSecond: cfg.Source.RequestsPerSecond,
		Burst:             cfg.Source.Burst,
		Proxies:           cfg.Source.Proxies,
	}, logger)
	if err != nil {
		return err
	}
	defer fetcher.Close()

	m := monitor.New(fetcher, buildNotifier(cfg, logger), logger, monitor.Options{
		CheckInterval: cfg.Monitor.CheckInterval,
		Throttle:      cfg.Monitor.Throttle,
		StopTimeout:   cfg.Monitor.StopTimeout,
	})

	var st *store.StateStore
	if cfg.Redis.Addr != "" {
		st, err = store.New(ctx, store.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Key:      cfg.Redis.Key,
		})
		if err != nil {
			return err
		}
		defer st.Close()

		saved, err := st.Load(ctx)
		if err != nil {
			logger.Warn("cannot restore state", slog.String("error", err.Error()))
		} else if n := store.Restore(m, saved); n > 0 {
			logger.Info("state restored", slog.Int("subscriptions", n))
		}
	}

	for _, s := range cfg.Subscriptions {
		m.AddSubscription(monitor.SubscriptionRequest{
			ProductCode: s.PlanCode,
			Locations:   s.Datacenters,
			Preferences: monitor.Preferences{
				NotifyAvailable:   s.WantsAvailable(),
				NotifyUnavailable: s.NotifyUnavailable,
			},
			DisplayName: s.Name,
		})
	}

	m.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return serveMetrics(gctx, cfg.App.MetricsAddr, m, logger) })
	g.Go(func() error { return pollOfferings(gctx, fetcher, m, cfg.Monitor.OfferingInterval, logger) })
	if st != nil {
		g.Go(func() error { return saveLoop(gctx, st, m, cfg.Monitor.SaveInterval, logger) })
	}

	err = g.Wait()
	m.Stop()

	if st != nil {
		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if serr := st.Save(saveCtx, m.Status()); serr != nil {
			logger.Error("final state save failed", slog.String("error", serr.Error()))
		}
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

func buildNotifier(cfg *config.Config, logger *slog.Logger) notify.Notifier {
	var sinks notify.Multi

	if cfg.Telegram.Token != "" {
		tg, err := notify.NewTelegram(notify.TelegramConfig{
			Token:  cfg.Telegram.Token,
			ChatID: cfg.Telegram.ChatID,
		})
		if err != nil {
			logger.Warn("telegram disabled", slog.String("error", err.Error()))
		} else {
			sinks = append(sinks, tg)
		}
	}

	if cfg.Email.SMTPHost != "" {
		em, err := notify.NewEmail(notify.EmailConfig{
			SMTPHost:  cfg.Email.SMTPHost,
			SMTPPort:  cfg.Email.SMTPPort,
			SMTPUser:  cfg.Email.SMTPUser,
			SMTPPass:  cfg.Email.SMTPPass,
			FromEmail: cfg.Email.FromEmail,
			ToEmail:   cfg.Email.ToEmail,
		})
		if err != nil {
			logger.Warn("email disabled", slog.String("error", err.Error()))
		} else {
			sinks = append(sinks, em)
		}
	}

	if len(sinks) == 0 {
		logger.Warn("no notification channel configured, logging messages only")
		return notify.Log{Logger: logger}
	}
	return sinks
}

func serveMetrics(ctx context.Context, addr string, m *monitor.Monitor, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !m.IsRunning() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("stopped\n"))
			return
		}
		_, _ = w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics server listening", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

func pollOfferings(ctx context.Context, fetcher *client.Fetcher, m *monitor.Monitor, every time.Duration, logger *slog.Logger) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		offerings, err := fetcher.FetchOfferings(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("catalog fetch failed", slog.String("error", err.Error()))
		} else {
			m.CheckNewOfferings(ctx, offerings)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func saveLoop(ctx context.Context, st *store.StateStore, m *monitor.Monitor, every time.Duration, logger *slog.Logger) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := st.Save(ctx, m.Status()); err != nil {
				logger.Warn("state save failed", slog.String("error", err.Error()))
			}
		}
	}
}
