package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fare-alerts/internal/model"
)

// MonitorInput carries the user-supplied monitor definition.
type MonitorInput struct {
	Label    string
	Cabins   []string
	Channel  string
	Mode     string
	Outbound model.Leg
	Return   model.Leg
}

// MonitorEdit carries partial updates; nil fields are left unchanged.
type MonitorEdit struct {
	Label    *string
	Cabins   []string
	Mode     *string
	Outbound *model.Leg
	Return   *model.Leg
}

// AddMonitor validates and persists a new monitor.
func (a *App) AddMonitor(ctx context.Context, in MonitorInput) (model.Monitor, error) {
	m := model.Monitor{
		ID:        uuid.NewString(),
		Label:     in.Label,
		Cabins:    model.CanonicalCabins(in.Cabins),
		Channel:   model.Channel(in.Channel),
		Mode:      model.AvailabilityMode(in.Mode),
		Outbound:  in.Outbound,
		Return:    in.Return,
		CreatedAt: time.Now().UTC(),
	}
	if m.Channel == model.ChannelAwards && m.Mode == "" {
		m.Mode = model.ModeRewards
	}
	if err := m.Validate(); err != nil {
		return model.Monitor{}, err
	}

	store, closeStore, err := a.openStore()
	if err != nil {
		return model.Monitor{}, err
	}
	defer closeStore()

	if err := store.InsertMonitor(ctx, m); err != nil {
		return model.Monitor{}, err
	}

	a.Logger.Info().Str("monitor_id", m.ID).Str("label", m.Label).Msg("monitor created")
	return m, nil
}

// EditMonitor applies a partial update. A change to route, date windows,
// cabin set, or availability mode invalidates all tracking state: the
// monitor re-enters a fresh tracking epoch. Returns whether a reset
// happened.
func (a *App) EditMonitor(ctx context.Context, id string, edit MonitorEdit) (model.Monitor, bool, error) {
	store, closeStore, err := a.openStore()
	if err != nil {
		return model.Monitor{}, false, err
	}
	defer closeStore()

	m, err := store.GetMonitor(ctx, id)
	if err != nil {
		return model.Monitor{}, false, err
	}

	updated := m
	if edit.Label != nil {
		updated.Label = *edit.Label
	}
	if edit.Cabins != nil {
		updated.Cabins = model.CanonicalCabins(edit.Cabins)
	}
	if edit.Mode != nil {
		updated.Mode = model.AvailabilityMode(*edit.Mode)
	}
	if edit.Outbound != nil {
		updated.Outbound = *edit.Outbound
	}
	if edit.Return != nil {
		updated.Return = *edit.Return
	}

	if err := updated.Validate(); err != nil {
		return model.Monitor{}, false, err
	}

	reset := !updated.SameTrackingScope(m)
	if reset {
		updated.ResetTracking()
		// An outstanding cash request no longer matches the new scope.
		if m.Channel == model.ChannelCash && m.Tracking.CashPending {
			if err := a.newCoordinator().RemoveRequest(id); err != nil {
				a.Logger.Error().Err(err).Str("monitor_id", id).Msg("failed to withdraw cash request")
			}
		}
	}

	if err := store.UpdateMonitor(ctx, updated); err != nil {
		return model.Monitor{}, false, err
	}

	a.Logger.Info().
		Str("monitor_id", id).
		Bool("tracking_reset", reset).
		Msg("monitor updated")
	return updated, reset, nil
}

// DeleteMonitor removes a monitor, its history, and any outstanding cash
// request.
func (a *App) DeleteMonitor(ctx context.Context, id string) error {
	store, closeStore, err := a.openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.DeleteMonitor(ctx, id); err != nil {
		return err
	}
	if err := a.newCoordinator().RemoveRequest(id); err != nil {
		a.Logger.Error().Err(err).Str("monitor_id", id).Msg("failed to withdraw cash request")
	}

	a.Logger.Info().Str("monitor_id", id).Msg("monitor deleted")
	return nil
}

// ListMonitors returns every stored monitor.
func (a *App) ListMonitors(ctx context.Context) ([]model.Monitor, error) {
	store, closeStore, err := a.openStore()
	if err != nil {
		return nil, err
	}
	defer closeStore()

	return store.ListMonitors(ctx)
}

// Refresh triggers an on-demand refresh for one monitor, or a full cycle
// when id is empty.
func (a *App) Refresh(ctx context.Context, id string) error {
	store, closeStore, err := a.openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	svc := a.newService(store)
	if id == "" {
		return svc.RefreshAll(ctx, time.Now().UTC())
	}
	if err := svc.RefreshOne(ctx, id); err != nil {
		return fmt.Errorf("refresh monitor %s: %w", id, err)
	}
	return nil
}
