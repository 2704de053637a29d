package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"fare-alerts/internal/alerting"
	"fare-alerts/internal/fetcher"
	"fare-alerts/internal/handshake"
	"fare-alerts/internal/model"
	"fare-alerts/internal/scheduler"
	"fare-alerts/internal/storage"
	"fare-alerts/internal/tracker"
)

// Service orchestrates monitor refresh, the cash handshake, persistence, and
// alert emission.
type Service struct {
	refreshLoop *scheduler.Scheduler
	pollLoop    *scheduler.Scheduler
	drainLoop   *scheduler.Scheduler
	legs        fetcher.LegFetcher
	monitors    storage.MonitorStore
	history     storage.FareHistoryStore
	coord       *handshake.Coordinator
	queue       *alerting.Queue
	notifier    alerting.Notifier
	logger      zerolog.Logger
}

// Options wire the service's collaborators. The loops and the notifier are
// optional for one-shot use; the rest are required.
type Options struct {
	RefreshLoop *scheduler.Scheduler
	PollLoop    *scheduler.Scheduler
	DrainLoop   *scheduler.Scheduler
	Legs        fetcher.LegFetcher
	Monitors    storage.MonitorStore
	History     storage.FareHistoryStore
	Coordinator *handshake.Coordinator
	Queue       *alerting.Queue
	Notifier    alerting.Notifier
}

// New constructs the monitoring service.
func New(opts Options, logger zerolog.Logger) *Service {
	return &Service{
		refreshLoop: opts.RefreshLoop,
		pollLoop:    opts.PollLoop,
		drainLoop:   opts.DrainLoop,
		legs:        opts.Legs,
		monitors:    opts.Monitors,
		history:     opts.History,
		coord:       opts.Coordinator,
		queue:       opts.Queue,
		notifier:    opts.Notifier,
		logger:      logger.With().Str("component", "service").Logger(),
	}
}

// Run starts the refresh cycle, the result poll, and (when a notifier is
// configured) the alert drain, blocking until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.refreshLoop == nil || s.pollLoop == nil {
		return fmt.Errorf("schedulers not configured")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.refreshLoop.Run(ctx, s.RefreshAll) })
	g.Go(func() error { return s.pollLoop.Run(ctx, s.PollResults) })
	if s.notifier != nil && s.drainLoop != nil {
		g.Go(func() error { return s.drainLoop.Run(ctx, s.DrainAlerts) })
	}
	return g.Wait()
}

// RefreshAll runs one full cycle over every monitor, one at a time. A
// failure on one monitor is logged and does not abort the cycle for the
// others.
func (s *Service) RefreshAll(ctx context.Context, now time.Time) error {
	monitors, err := s.monitors.ListMonitors(ctx)
	if err != nil {
		return fmt.Errorf("list monitors: %w", err)
	}

	for i := range monitors {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := s.refreshMonitor(ctx, &monitors[i], now); err != nil {
			s.logger.Error().Err(err).
				Str("monitor_id", monitors[i].ID).
				Str("label", monitors[i].Label).
				Msg("monitor refresh failed")
		}
	}
	return nil
}

// RefreshOne applies the same per-monitor logic to exactly one monitor,
// outside the timer.
func (s *Service) RefreshOne(ctx context.Context, id string) error {
	m, err := s.monitors.GetMonitor(ctx, id)
	if err != nil {
		return err
	}
	return s.refreshMonitor(ctx, &m, time.Now().UTC())
}

func (s *Service) refreshMonitor(ctx context.Context, m *model.Monitor, now time.Time) error {
	if m.Channel == model.ChannelCash {
		return s.requestCashCheck(ctx, m, now)
	}
	return s.refreshAwards(ctx, m, now)
}

// refreshAwards fetches both legs in parallel, tracks the result, persists,
// and queues any alerts. A failed leg abandons the whole refresh with no
// partial update.
func (s *Service) refreshAwards(ctx context.Context, m *model.Monitor, now time.Time) error {
	var outbound, returning []model.Flight

	g, fetchCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		flights, err := s.legs.FetchLeg(fetchCtx, m.Outbound, m.Cabins, m.Mode)
		if err != nil {
			return fmt.Errorf("outbound leg: %w", err)
		}
		outbound = flights
		return nil
	})
	g.Go(func() error {
		flights, err := s.legs.FetchLeg(fetchCtx, m.Return, m.Cabins, m.Mode)
		if err != nil {
			return fmt.Errorf("return leg: %w", err)
		}
		returning = flights
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	alerts := tracker.Update(m, outbound, returning, now)

	if err := s.monitors.UpdateTracking(ctx, m.ID, m.CheckedAt, m.Tracking); err != nil {
		return err
	}
	s.recordAwardSamples(ctx, m, now)

	s.logger.Info().
		Str("monitor_id", m.ID).
		Str("label", m.Label).
		Int("outbound_flights", len(outbound)).
		Int("return_flights", len(returning)).
		Int("alerts", len(alerts)).
		Msg("monitor refreshed")

	return s.queueAlerts(m, alerts, now)
}

// requestCashCheck hands the monitor to the external checker unless a
// request is already outstanding.
func (s *Service) requestCashCheck(ctx context.Context, m *model.Monitor, now time.Time) error {
	if m.Tracking.CashPending {
		s.logger.Debug().
			Str("monitor_id", m.ID).
			Msg("cash request still pending, skipping")
		return nil
	}

	requestID, err := s.coord.EnqueueRequest(*m, now)
	if err != nil {
		return fmt.Errorf("enqueue cash request: %w", err)
	}

	m.Tracking.CashPending = true
	m.Tracking.CashRequestID = requestID
	requestedAt := now
	m.Tracking.CashRequestedAt = &requestedAt

	return s.monitors.UpdateTracking(ctx, m.ID, m.CheckedAt, m.Tracking)
}

// PollResults consumes the cash-result document and applies each entry to
// its monitor.
func (s *Service) PollResults(ctx context.Context, now time.Time) error {
	results, err := s.coord.ConsumeResults()
	if err != nil {
		return fmt.Errorf("consume cash results: %w", err)
	}

	for _, result := range results {
		if err := s.applyCashResult(ctx, result, now); err != nil {
			s.logger.Error().Err(err).
				Str("monitor_id", result.MonitorID).
				Msg("failed to apply cash result")
		}
	}
	return nil
}

func (s *Service) applyCashResult(ctx context.Context, result handshake.Result, now time.Time) error {
	m, err := s.monitors.GetMonitor(ctx, result.MonitorID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn().Str("monitor_id", result.MonitorID).Msg("cash result for unknown monitor, dropped")
			return nil
		}
		return err
	}
	if m.Channel != model.ChannelCash {
		s.logger.Warn().Str("monitor_id", m.ID).Msg("cash result for non-cash monitor, dropped")
		return nil
	}
	// A result for a superseded request (edited or reset since it was
	// issued) must not be applied. Zero ids are accepted for checkers that
	// do not echo the id.
	if result.RequestID != 0 && result.RequestID != m.Tracking.CashRequestID {
		s.logger.Warn().
			Str("monitor_id", m.ID).
			Int64("result_request_id", result.RequestID).
			Int64("outstanding_request_id", m.Tracking.CashRequestID).
			Msg("stale cash result, dropped")
		return nil
	}

	checkedAt := result.CheckedAt
	if checkedAt.IsZero() {
		checkedAt = now
	}

	prices := make(map[string]model.CashFare, len(result.Prices))
	for label, price := range result.Prices {
		prices[label] = model.CashFare{
			Amount:       price.AUD,
			OutboundDate: price.OutboundDate,
			ReturnDate:   price.ReturnDate,
			Direct:       price.IsDirect,
			SeenAt:       price.SeenAt,
		}
	}

	alerts := tracker.ApplyCashResult(&m, prices, checkedAt)

	if err := s.monitors.UpdateTracking(ctx, m.ID, m.CheckedAt, m.Tracking); err != nil {
		return err
	}
	s.recordCashSamples(ctx, &m, checkedAt)

	s.logger.Info().
		Str("monitor_id", m.ID).
		Str("label", m.Label).
		Int("cabins", len(prices)).
		Int("alerts", len(alerts)).
		Msg("cash result applied")

	return s.queueAlerts(&m, alerts, checkedAt)
}

// DrainAlerts delivers every queued batch through the notifier, clearing
// the queue only once the whole pass succeeds.
func (s *Service) DrainAlerts(ctx context.Context, now time.Time) error {
	batches := s.queue.List()
	if len(batches) == 0 {
		return nil
	}

	for _, batch := range batches {
		if err := s.notifier.Notify(ctx, batch); err != nil {
			return fmt.Errorf("deliver alert batch: %w", err)
		}
	}
	return s.queue.Clear()
}

func (s *Service) queueAlerts(m *model.Monitor, alerts []string, now time.Time) error {
	if len(alerts) == 0 {
		return nil
	}
	return s.queue.Append(model.AlertBatch{
		MonitorID:    m.ID,
		MonitorLabel: m.Label,
		Messages:     alerts,
		CreatedAt:    now,
	})
}

func (s *Service) recordAwardSamples(ctx context.Context, m *model.Monitor, now time.Time) {
	if s.history == nil {
		return
	}
	for _, cabin := range m.Cabins {
		fare, ok := m.Tracking.Current[cabin]
		if !ok {
			continue
		}
		points := fare.Points
		sample := storage.FareSample{
			MonitorID:    m.ID,
			Cabin:        cabin,
			Channel:      model.ChannelAwards,
			Points:       &points,
			TotalTaxes:   fare.TotalTaxes,
			Currency:     fare.TaxCurrency,
			OutboundDate: fare.OutboundDate,
			ReturnDate:   fare.ReturnDate,
			Direct:       fare.Direct,
			ObservedAt:   now,
		}
		if err := s.history.InsertFareSample(ctx, sample); err != nil {
			s.logger.Error().Err(err).Str("monitor_id", m.ID).Msg("failed to record fare sample")
		}
	}
}

func (s *Service) recordCashSamples(ctx context.Context, m *model.Monitor, now time.Time) {
	if s.history == nil {
		return
	}
	for cabin, fare := range m.Tracking.CashCurrent {
		amount := fare.Amount
		sample := storage.FareSample{
			MonitorID:    m.ID,
			Cabin:        cabin,
			Channel:      model.ChannelCash,
			CashAmount:   &amount,
			Currency:     model.ReferenceCurrency,
			OutboundDate: fare.OutboundDate,
			ReturnDate:   fare.ReturnDate,
			Direct:       fare.Direct,
			ObservedAt:   now,
		}
		if err := s.history.InsertFareSample(ctx, sample); err != nil {
			s.logger.Error().Err(err).Str("monitor_id", m.ID).Msg("failed to record fare sample")
		}
	}
}
