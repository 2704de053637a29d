package fetcher

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"

	"fare-alerts/internal/model"
)

func TestNormalizeFiltersUnavailable(t *testing.T) {
	days := []rawTripDay{
		{Date: "2026-09-01", JAvailable: true, JMileageCost: 93000},
		{Date: "2026-09-02", JAvailable: false, JMileageCost: 90000},
		// available 但成本为 0, 视为无效记录
		{Date: "2026-09-03", JAvailable: true, JMileageCost: 0},
	}

	flights := normalize(days, []model.Cabin{model.CabinBusiness}, model.ModeRewards)
	if len(flights) != 1 {
		t.Fatalf("期望 1 条记录, 实际 %d", len(flights))
	}
	if flights[0].Date != "2026-09-01" || flights[0].MileageCost != 93000 {
		t.Fatalf("记录不符: %+v", flights[0])
	}
}

func TestNormalizeViewSelection(t *testing.T) {
	days := []rawTripDay{{
		Date:            "2026-09-01",
		JAvailable:      false,
		JMileageCost:    0,
		JAvailableRaw:   true,
		JMileageCostRaw: 120000,
	}}

	rewards := normalize(days, []model.Cabin{model.CabinBusiness}, model.ModeRewards)
	if len(rewards) != 0 {
		t.Fatalf("rewards 视图下不应有记录, 实际 %d", len(rewards))
	}

	any := normalize(days, []model.Cabin{model.CabinBusiness}, model.ModeAny)
	if len(any) != 1 || any[0].MileageCost != 120000 {
		t.Fatalf("any 视图应取 Raw 字段: %+v", any)
	}
}

func TestNormalizeDirectFlag(t *testing.T) {
	days := []rawTripDay{
		// 最低价与直飞最低价一致: 直飞
		{Date: "2026-09-01", JAvailable: true, JMileageCost: 93000, JDirectMileageCost: 93000},
		// 直飞更贵: 最低价不是直飞
		{Date: "2026-09-02", JAvailable: true, JMileageCost: 93000, JDirectMileageCost: 110000},
		// 无直飞报价
		{Date: "2026-09-03", JAvailable: true, JMileageCost: 93000, JDirectMileageCost: 0},
	}

	flights := normalize(days, []model.Cabin{model.CabinBusiness}, model.ModeRewards)
	if len(flights) != 3 {
		t.Fatalf("期望 3 条记录, 实际 %d", len(flights))
	}
	if !flights[0].Direct || flights[1].Direct || flights[2].Direct {
		t.Fatalf("直飞标记不符: %v %v %v", flights[0].Direct, flights[1].Direct, flights[2].Direct)
	}
}

func TestNormalizeTaxesMinorUnits(t *testing.T) {
	days := []rawTripDay{{
		Date:           "2026-09-01",
		YAvailable:     true,
		YMileageCost:   41900,
		YTotalTaxes:    21550,
		YTaxesCurrency: "AUD",
	}}

	flights := normalize(days, []model.Cabin{model.CabinEconomy}, model.ModeRewards)
	if len(flights) != 1 {
		t.Fatalf("期望 1 条记录, 实际 %d", len(flights))
	}
	if !flights[0].TotalTaxes.Equal(decimal.NewFromFloat(215.5)) {
		t.Fatalf("税费应除以 100: %s", flights[0].TotalTaxes)
	}
	if flights[0].TaxCurrency != "AUD" {
		t.Fatalf("币种不符: %s", flights[0].TaxCurrency)
	}
}

func TestNormalizeSortedByDate(t *testing.T) {
	days := []rawTripDay{
		{Date: "2026-09-03", JAvailable: true, JMileageCost: 90000},
		{Date: "2026-09-01", JAvailable: true, JMileageCost: 93000},
		{Date: "2026-09-02", JAvailable: true, JMileageCost: 95000},
	}

	flights := normalize(days, []model.Cabin{model.CabinBusiness}, model.ModeRewards)
	for i := 1; i < len(flights); i++ {
		if flights[i-1].Date > flights[i].Date {
			t.Fatalf("输出应按日期升序: %s > %s", flights[i-1].Date, flights[i].Date)
		}
	}
}

func TestRawTripDayMalformedFields(t *testing.T) {
	payload := []byte(`{
		"Date": "2026-09-01",
		"JAvailable": "true",
		"JMileageCost": "93000",
		"JRemainingSeats": null,
		"JTotalTaxes": "garbage",
		"YAvailable": 1,
		"YMileageCost": 41900.0
	}`)

	var day rawTripDay
	if err := json.Unmarshal(payload, &day); err != nil {
		t.Fatalf("异常编码不应导致解析失败: %v", err)
	}
	if !day.JAvailable || int64(day.JMileageCost) != 93000 {
		t.Fatalf("字符串编码的数值应被接受: %+v", day)
	}
	if int64(day.JRemainingSeats) != 0 || int64(day.JTotalTaxes) != 0 {
		t.Fatalf("null 与垃圾值应归零: %+v", day)
	}
	if !day.YAvailable || int64(day.YMileageCost) != 41900 {
		t.Fatalf("宽松布尔与浮点应被接受: %+v", day)
	}
}
