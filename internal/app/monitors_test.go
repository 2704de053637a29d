package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"fare-alerts/internal/config"
	"fare-alerts/internal/docfile"
	"fare-alerts/internal/handshake"
	"fare-alerts/internal/model"
	"fare-alerts/internal/storage"
)

func testApp(t *testing.T) *App {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Database.Path = filepath.Join(dir, "farewatch.db")
	cfg.Handshake.RequestPath = filepath.Join(dir, "cash-requests.json")
	cfg.Handshake.ResultPath = filepath.Join(dir, "cash-results.json")
	cfg.Alerting.QueuePath = filepath.Join(dir, "alerts.json")
	cfg.Export.MaxDataPoints = 1000
	return NewApp(cfg, zerolog.Nop())
}

func testInput() MonitorInput {
	return MonitorInput{
		Label:    "SYD-BOS return J",
		Cabins:   []string{"business", "economy"},
		Channel:  "awards",
		Outbound: model.Leg{Origin: "SYD", Destination: "BOS", DateFrom: "2026-09-01", DateTo: "2026-09-05"},
		Return:   model.Leg{Origin: "BOS", Destination: "SYD", DateFrom: "2026-09-10", DateTo: "2026-09-14"},
	}
}

func TestAddMonitorDefaultsMode(t *testing.T) {
	a := testApp(t)
	ctx := context.Background()

	m, err := a.AddMonitor(ctx, testInput())
	if err != nil {
		t.Fatalf("创建失败: %v", err)
	}
	if m.ID == "" {
		t.Fatal("应分配 id")
	}
	if m.Mode != model.ModeRewards {
		t.Fatalf("awards 渠道应默认 rewards 模式: %s", m.Mode)
	}
	if len(m.Cabins) != 2 || m.Cabins[0] != model.CabinBusiness {
		t.Fatalf("舱位应归一: %v", m.Cabins)
	}

	monitors, err := a.ListMonitors(ctx)
	if err != nil || len(monitors) != 1 {
		t.Fatalf("列举不符: %v %v", monitors, err)
	}
}

func TestAddMonitorValidates(t *testing.T) {
	a := testApp(t)

	bad := testInput()
	bad.Outbound.DateTo = "2026-09-08" // 8 天窗口
	if _, err := a.AddMonitor(context.Background(), bad); err == nil {
		t.Fatal("超窗 leg 应报错")
	}

	noLabel := testInput()
	noLabel.Label = " "
	if _, err := a.AddMonitor(context.Background(), noLabel); err == nil {
		t.Fatal("缺少 label 应报错")
	}
}

func TestEditMonitorLabelOnlyKeepsTracking(t *testing.T) {
	a := testApp(t)
	ctx := context.Background()

	m, err := a.AddMonitor(ctx, testInput())
	if err != nil {
		t.Fatal(err)
	}

	// 预置追踪状态
	store, closeStore, err := a.openStore()
	if err != nil {
		t.Fatal(err)
	}
	tracking := model.TrackingState{KnownSlots: map[string]bool{"2026-09-01|J|outbound": true}}
	if err := store.UpdateTracking(ctx, m.ID, nil, tracking); err != nil {
		t.Fatal(err)
	}
	closeStore()

	label := "renamed"
	updated, reset, err := a.EditMonitor(ctx, m.ID, MonitorEdit{Label: &label})
	if err != nil {
		t.Fatalf("编辑失败: %v", err)
	}
	if reset {
		t.Fatal("仅改 label 不应重置追踪状态")
	}
	if updated.Label != "renamed" || !updated.Tracking.KnownSlots["2026-09-01|J|outbound"] {
		t.Fatalf("追踪状态应保留: %+v", updated)
	}
}

func TestEditMonitorScopeChangeResets(t *testing.T) {
	a := testApp(t)
	ctx := context.Background()

	m, err := a.AddMonitor(ctx, testInput())
	if err != nil {
		t.Fatal(err)
	}

	store, closeStore, err := a.openStore()
	if err != nil {
		t.Fatal(err)
	}
	tracking := model.TrackingState{
		Lowest:     map[model.Cabin]model.CombinedFare{model.CabinBusiness: {Points: 586000}},
		KnownSlots: map[string]bool{"2026-09-01|J|outbound": true},
	}
	if err := store.UpdateTracking(ctx, m.ID, nil, tracking); err != nil {
		t.Fatal(err)
	}
	closeStore()

	leg := model.Leg{Origin: "SYD", Destination: "BOS", DateFrom: "2026-10-01", DateTo: "2026-10-05"}
	updated, reset, err := a.EditMonitor(ctx, m.ID, MonitorEdit{Outbound: &leg})
	if err != nil {
		t.Fatalf("编辑失败: %v", err)
	}
	if !reset {
		t.Fatal("日期窗口变化应重置追踪状态")
	}
	if len(updated.Tracking.Lowest) != 0 || len(updated.Tracking.KnownSlots) != 0 {
		t.Fatalf("重置后追踪状态应为空: %+v", updated.Tracking)
	}
	if updated.CheckedAt != nil {
		t.Fatal("重置后 CheckedAt 应为空")
	}
}

func TestEditMonitorScopeChangeWithdrawsCashRequest(t *testing.T) {
	a := testApp(t)
	ctx := context.Background()

	input := testInput()
	input.Channel = "cash"
	input.Cabins = []string{"business"}
	m, err := a.AddMonitor(ctx, input)
	if err != nil {
		t.Fatal(err)
	}

	// 模拟一次已发出的 cash 请求
	if err := a.Refresh(ctx, m.ID); err != nil {
		t.Fatal(err)
	}
	if reqs := docfile.Load[handshake.Request](a.Config.Handshake.RequestPath); len(reqs) != 1 {
		t.Fatalf("应有 1 条待处理请求: %+v", reqs)
	}

	leg := model.Leg{Origin: "SYD", Destination: "BOS", DateFrom: "2026-10-01", DateTo: "2026-10-05"}
	if _, reset, err := a.EditMonitor(ctx, m.ID, MonitorEdit{Outbound: &leg}); err != nil || !reset {
		t.Fatalf("编辑应触发重置: %v", err)
	}

	if reqs := docfile.Load[handshake.Request](a.Config.Handshake.RequestPath); len(reqs) != 0 {
		t.Fatalf("范围变化应撤回 cash 请求: %+v", reqs)
	}
}

func TestDeleteMonitor(t *testing.T) {
	a := testApp(t)
	ctx := context.Background()

	m, err := a.AddMonitor(ctx, testInput())
	if err != nil {
		t.Fatal(err)
	}

	if err := a.DeleteMonitor(ctx, m.ID); err != nil {
		t.Fatalf("删除失败: %v", err)
	}

	store, closeStore, err := a.openStore()
	if err != nil {
		t.Fatal(err)
	}
	defer closeStore()
	if _, err := store.GetMonitor(ctx, m.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("期望 ErrNotFound, 实际 %v", err)
	}
}

func TestRefreshUnknownMonitor(t *testing.T) {
	a := testApp(t)
	if err := a.Refresh(context.Background(), "ghost"); err == nil {
		t.Fatal("刷新不存在的 monitor 应报错")
	}
}
