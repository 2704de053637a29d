package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"fare-alerts/internal/alerting"
	"fare-alerts/internal/config"
	"fare-alerts/internal/fetcher"
	"fare-alerts/internal/handshake"
	"fare-alerts/internal/scheduler"
	"fare-alerts/internal/service"
	"fare-alerts/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newFetcher() fetcher.LegFetcher {
	return fetcher.NewAward(fetcher.AwardOptions{
		BaseURL:   a.Config.Awards.BaseURL,
		TokenPath: a.Config.Awards.TokenPath,
		Source:    a.Config.Awards.Source,
		OrderBy:   a.Config.Awards.OrderBy,
		Timeout:   a.Config.Awards.RequestTimeout,
		UserAgent: a.Config.Awards.UserAgent,
	}, a.Logger)
}

func (a *App) newCoordinator() *handshake.Coordinator {
	return handshake.New(handshake.Options{
		RequestPath: a.Config.Handshake.RequestPath,
		ResultPath:  a.Config.Handshake.ResultPath,
	}, a.Logger)
}

func (a *App) newQueue() *alerting.Queue {
	return alerting.NewQueue(a.Config.Alerting.QueuePath, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore() (*storage.Store, func(), error) {
	store, err := storage.Open(a.Config.Database.Path)
	if err != nil {
		return nil, nil, err
	}
	closer := func() {
		if err := store.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("failed to close store")
		}
	}
	return store, closer, nil
}

// newService wires a service over the given store for one-shot commands.
func (a *App) newService(store *storage.Store) *service.Service {
	return service.New(service.Options{
		Legs:        a.newFetcher(),
		Monitors:    store,
		History:     store,
		Coordinator: a.newCoordinator(),
		Queue:       a.newQueue(),
	}, a.Logger)
}

// Run executes the long-running monitoring service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	refreshLoop := scheduler.New(scheduler.Options{
		Name:         "refresh",
		Interval:     a.Config.Scheduler.RefreshInterval,
		StartupDelay: a.Config.Scheduler.StartupDelay,
		RunOnStart:   true,
	}, a.Logger)
	pollLoop := scheduler.New(scheduler.Options{
		Name:     "cash_poll",
		Interval: a.Config.Scheduler.PollInterval,
	}, a.Logger)

	opts := service.Options{
		RefreshLoop: refreshLoop,
		PollLoop:    pollLoop,
		Legs:        a.newFetcher(),
		Monitors:    store,
		History:     store,
		Coordinator: a.newCoordinator(),
		Queue:       a.newQueue(),
	}
	if notifier := a.newNotifier(); notifier != nil {
		opts.Notifier = notifier
		opts.DrainLoop = scheduler.New(scheduler.Options{
			Name:     "alert_drain",
			Interval: a.Config.Alerting.DrainInterval,
		}, a.Logger)
	}

	svc := service.New(opts, a.Logger)

	a.Logger.Info().Msg("starting monitoring service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("monitoring service stopped")
	return nil
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Alerts bool
}

// ExportOptions hold parameters for exporting fare history.
type ExportOptions struct {
	MonitorID string
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}
