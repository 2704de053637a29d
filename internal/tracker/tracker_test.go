package tracker

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fare-alerts/internal/model"
)

func awardMonitor(cabins ...model.Cabin) model.Monitor {
	if len(cabins) == 0 {
		cabins = []model.Cabin{model.CabinBusiness}
	}
	return model.Monitor{
		ID:       "m1",
		Label:    "SYD-BOS",
		Cabins:   cabins,
		Channel:  model.ChannelAwards,
		Mode:     model.ModeRewards,
		Outbound: model.Leg{Origin: "SYD", Destination: "BOS", DateFrom: "2026-09-01", DateTo: "2026-09-05"},
		Return:   model.Leg{Origin: "BOS", Destination: "SYD", DateFrom: "2026-09-10", DateTo: "2026-09-14"},
	}
}

func flight(date string, cabin model.Cabin, cost int64) model.Flight {
	return model.Flight{Date: date, Cabin: cabin, MileageCost: cost}
}

func hasAlert(alerts []string, substr string) bool {
	for _, a := range alerts {
		if strings.Contains(a, substr) {
			return true
		}
	}
	return false
}

func TestUpdateFirstRefreshRecordsLowest(t *testing.T) {
	m := awardMonitor()
	now := time.Now().UTC()

	out := []model.Flight{flight("2026-09-01", model.CabinBusiness, 293000)}
	ret := []model.Flight{flight("2026-09-10", model.CabinBusiness, 293000)}

	alerts := Update(&m, out, ret, now)

	lowest, ok := m.Tracking.Lowest[model.CabinBusiness]
	if !ok || lowest.Points != 586000 {
		t.Fatalf("首次刷新应记录 586000, 实际 %+v", lowest)
	}
	if !hasAlert(alerts, "New lowest business: 586,000 pts") {
		t.Fatalf("缺少首个低价告警: %v", alerts)
	}
	if hasAlert(alerts, "(was") {
		t.Fatalf("首次低价不应带 (was): %v", alerts)
	}
	if m.CheckedAt == nil || !m.CheckedAt.Equal(now) {
		t.Fatal("CheckedAt 应更新")
	}
}

func TestUpdateStrictlyLowerReplaces(t *testing.T) {
	m := awardMonitor()
	now := time.Now().UTC()

	Update(&m, []model.Flight{flight("2026-09-01", model.CabinBusiness, 293000)},
		[]model.Flight{flight("2026-09-10", model.CabinBusiness, 293000)}, now)

	// 返程降到 280000: 合计 573000, 严格更低, 替换记录
	alerts := Update(&m, []model.Flight{flight("2026-09-01", model.CabinBusiness, 293000)},
		[]model.Flight{flight("2026-09-12", model.CabinBusiness, 280000)}, now.Add(time.Hour))

	lowest := m.Tracking.Lowest[model.CabinBusiness]
	if lowest.Points != 573000 || lowest.ReturnDate != "2026-09-12" {
		t.Fatalf("低价记录应替换为 573000: %+v", lowest)
	}
	if !hasAlert(alerts, "New lowest business: 573,000 pts") || !hasAlert(alerts, "(was 586,000)") {
		t.Fatalf("低价告警不符: %v", alerts)
	}

	// 相同价格再次出现: 不产生告警, 记录不变
	alerts = Update(&m, []model.Flight{flight("2026-09-01", model.CabinBusiness, 293000)},
		[]model.Flight{flight("2026-09-12", model.CabinBusiness, 280000)}, now.Add(2*time.Hour))
	if hasAlert(alerts, "New lowest") {
		t.Fatalf("非严格更低不应告警: %v", alerts)
	}
}

func TestUpdateOneSidedAvailability(t *testing.T) {
	m := awardMonitor()
	now := time.Now().UTC()

	Update(&m, []model.Flight{flight("2026-09-01", model.CabinBusiness, 293000)},
		[]model.Flight{flight("2026-09-10", model.CabinBusiness, 293000)}, now)

	// 返程全部消失: 当前记录为空, 历史低价保留
	Update(&m, []model.Flight{flight("2026-09-01", model.CabinBusiness, 293000)}, nil, now.Add(time.Hour))

	if _, ok := m.Tracking.Current[model.CabinBusiness]; ok {
		t.Fatal("单边可用时不应有当前记录")
	}
	if lowest := m.Tracking.Lowest[model.CabinBusiness]; lowest.Points != 586000 {
		t.Fatalf("历史低价应保留: %+v", lowest)
	}
}

func TestUpdateCheapestPerCabin(t *testing.T) {
	m := awardMonitor()
	now := time.Now().UTC()

	out := []model.Flight{
		flight("2026-09-01", model.CabinBusiness, 300000),
		flight("2026-09-02", model.CabinBusiness, 293000),
		flight("2026-09-03", model.CabinBusiness, 293000),
	}
	ret := []model.Flight{flight("2026-09-10", model.CabinBusiness, 280000)}

	Update(&m, out, ret, now)

	fare := m.Tracking.Current[model.CabinBusiness]
	if fare.Points != 573000 {
		t.Fatalf("应取每方向最低价: %+v", fare)
	}
	// 同价时取日期靠前的
	if fare.OutboundDate != "2026-09-02" {
		t.Fatalf("同价应取首个最低日期: %s", fare.OutboundDate)
	}
}

func TestUpdateSlotAlerts(t *testing.T) {
	m := awardMonitor()
	now := time.Now().UTC()

	alerts := Update(&m, []model.Flight{flight("2026-09-01", model.CabinBusiness, 293000)},
		[]model.Flight{flight("2026-09-10", model.CabinBusiness, 293000)}, now)

	if !hasAlert(alerts, "New outbound business available: 2026-09-01") {
		t.Fatalf("缺少 outbound slot 告警: %v", alerts)
	}
	if !hasAlert(alerts, "New return business available: 2026-09-10") {
		t.Fatalf("缺少 return slot 告警: %v", alerts)
	}

	// 同一组合再次出现: 不重复告警
	alerts = Update(&m, []model.Flight{flight("2026-09-01", model.CabinBusiness, 293000)},
		[]model.Flight{flight("2026-09-10", model.CabinBusiness, 293000)}, now.Add(time.Hour))
	if hasAlert(alerts, "available") {
		t.Fatalf("已知 slot 不应重复告警: %v", alerts)
	}

	// 同日期不同方向是不同 slot
	alerts = Update(&m, []model.Flight{flight("2026-09-10", model.CabinBusiness, 293000)},
		[]model.Flight{flight("2026-09-10", model.CabinBusiness, 293000)}, now.Add(2*time.Hour))
	if !hasAlert(alerts, "New outbound business available: 2026-09-10") {
		t.Fatalf("方向不同应视为新 slot: %v", alerts)
	}
}

func TestUpdateTaxesAndCurrency(t *testing.T) {
	m := awardMonitor()
	now := time.Now().UTC()

	out := []model.Flight{{Date: "2026-09-01", Cabin: model.CabinBusiness, MileageCost: 293000,
		TotalTaxes: decimal.NewFromFloat(215.5), TaxCurrency: "AUD", Direct: true}}
	ret := []model.Flight{{Date: "2026-09-10", Cabin: model.CabinBusiness, MileageCost: 293000,
		TotalTaxes: decimal.NewFromFloat(184.3), Direct: true}}

	Update(&m, out, ret, now)

	fare := m.Tracking.Current[model.CabinBusiness]
	if !fare.TotalTaxes.Equal(decimal.NewFromFloat(399.8)) {
		t.Fatalf("税费应累加: %s", fare.TotalTaxes)
	}
	if fare.TaxCurrency != "AUD" {
		t.Fatalf("币种应取 outbound 优先: %s", fare.TaxCurrency)
	}
	if !fare.Direct {
		t.Fatal("两段皆直飞时组合为直飞")
	}
}

func cashMonitor() model.Monitor {
	m := awardMonitor()
	m.Channel = model.ChannelCash
	m.Mode = ""
	return m
}

func TestApplyCashResultClearsPending(t *testing.T) {
	m := cashMonitor()
	m.Tracking.CashPending = true
	m.Tracking.CashRequestID = 42
	requested := time.Now().UTC()
	m.Tracking.CashRequestedAt = &requested

	checked := requested.Add(time.Minute)
	ApplyCashResult(&m, map[string]model.CashFare{}, checked)

	if m.Tracking.CashPending || m.Tracking.CashRequestID != 0 || m.Tracking.CashRequestedAt != nil {
		t.Fatalf("结果应清除 pending 状态: %+v", m.Tracking)
	}
	if m.CheckedAt == nil || !m.CheckedAt.Equal(checked) {
		t.Fatal("CheckedAt 应更新")
	}
}

func TestApplyCashResultLowestTracking(t *testing.T) {
	m := cashMonitor()
	checked := time.Now().UTC()

	alerts := ApplyCashResult(&m, map[string]model.CashFare{
		"business": {Amount: decimal.NewFromFloat(4280.5), OutboundDate: "2026-09-01", ReturnDate: "2026-09-10"},
	}, checked)
	if !hasAlert(alerts, "New lowest business cash fare: A$4,280.50") {
		t.Fatalf("缺少首个低价告警: %v", alerts)
	}

	// 更低价: 替换并带 (was)
	alerts = ApplyCashResult(&m, map[string]model.CashFare{
		"business": {Amount: decimal.NewFromFloat(3999), OutboundDate: "2026-09-02", ReturnDate: "2026-09-11"},
	}, checked.Add(time.Hour))
	if !hasAlert(alerts, "New lowest business cash fare: A$3,999.00") || !hasAlert(alerts, "(was A$4,280.50)") {
		t.Fatalf("低价告警不符: %v", alerts)
	}

	// 相同价: 无告警
	alerts = ApplyCashResult(&m, map[string]model.CashFare{
		"business": {Amount: decimal.NewFromFloat(3999), OutboundDate: "2026-09-02", ReturnDate: "2026-09-11"},
	}, checked.Add(2*time.Hour))
	if hasAlert(alerts, "New lowest") {
		t.Fatalf("非严格更低不应告警: %v", alerts)
	}
}

func TestApplyCashResultCanonicalisesCabins(t *testing.T) {
	m := cashMonitor()
	checked := time.Now().UTC()

	ApplyCashResult(&m, map[string]model.CashFare{
		"J": {Amount: decimal.NewFromInt(5000)},
	}, checked)

	if _, ok := m.Tracking.CashLowest[model.CabinBusiness]; !ok {
		t.Fatalf("字母代码应归一: %+v", m.Tracking.CashLowest)
	}
}

func TestApplyCashResultFillsSeenAt(t *testing.T) {
	m := cashMonitor()
	checked := time.Now().UTC()

	ApplyCashResult(&m, map[string]model.CashFare{
		"business": {Amount: decimal.NewFromInt(5000)},
	}, checked)

	fare := m.Tracking.CashCurrent[model.CabinBusiness]
	if !fare.SeenAt.Equal(checked) {
		t.Fatalf("缺省 SeenAt 应回落到 checkedAt: %v", fare.SeenAt)
	}
}
