package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"fare-alerts/internal/model"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func writeToken(t *testing.T, token string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
		t.Fatalf("写入 token 文件失败: %v", err)
	}
	return path
}

func testLeg() model.Leg {
	return model.Leg{Origin: "SYD", Destination: "BOS", DateFrom: "2026-09-01", DateTo: "2026-09-05"}
}

func TestAwardFetchMissingToken(t *testing.T) {
	a := NewAward(AwardOptions{}, noopLogger())
	if _, err := a.FetchLeg(context.Background(), testLeg(), []model.Cabin{model.CabinBusiness}, model.ModeRewards); err == nil {
		t.Fatal("未配置 token 路径时应报错")
	}

	empty := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(empty, []byte("  \n"), 0o600); err != nil {
		t.Fatal(err)
	}
	a = NewAward(AwardOptions{TokenPath: empty}, noopLogger())
	if _, err := a.FetchLeg(context.Background(), testLeg(), []model.Cabin{model.CabinBusiness}, model.ModeRewards); err == nil {
		t.Fatal("空 token 文件应报错")
	}
}

func TestAwardFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Fatalf("路径不符: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret-token" {
			t.Fatalf("Authorization 头不符: %s", got)
		}
		q := r.URL.Query()
		if q.Get("origin_airport") != "SYD" || q.Get("destination_airport") != "BOS" {
			t.Fatalf("机场参数不符: %v", q)
		}
		if q.Get("start_date") != "2026-09-01" || q.Get("end_date") != "2026-09-05" {
			t.Fatalf("日期参数不符: %v", q)
		}
		if q.Get("cabin") != "J,Y" {
			t.Fatalf("cabin 参数不符: %s", q.Get("cabin"))
		}
		if q.Get("order_by") != "lowest_mileage" {
			t.Fatalf("order_by 参数不符: %s", q.Get("order_by"))
		}
		if q.Get("source") != "qantas" {
			t.Fatalf("source 参数不符: %s", q.Get("source"))
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"Date": "2026-09-02", "JAvailable": true, "JMileageCost": 93000, "JRemainingSeats": 2},
				{"Date": "2026-09-01", "YAvailable": true, "YMileageCost": 41900},
			},
			"count": 2,
		})
	}))
	defer srv.Close()

	a := NewAward(AwardOptions{
		BaseURL:   srv.URL,
		TokenPath: writeToken(t, "secret-token"),
		Source:    "qantas",
		Timeout:   time.Second,
	}, noopLogger())

	flights, err := a.FetchLeg(context.Background(), testLeg(), []model.Cabin{model.CabinBusiness, model.CabinEconomy}, model.ModeRewards)
	if err != nil {
		t.Fatalf("成功响应不应报错: %v", err)
	}
	if len(flights) != 2 {
		t.Fatalf("期望 2 条记录, 实际 %d", len(flights))
	}
	if flights[0].Date != "2026-09-01" || flights[0].Cabin != model.CabinEconomy {
		t.Fatalf("输出应按日期排序: %+v", flights[0])
	}
	if flights[1].MileageCost != 93000 || flights[1].RemainingSeats != 2 {
		t.Fatalf("记录不符: %+v", flights[1])
	}
}

func TestAwardFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "rate limited"})
	}))
	defer srv.Close()

	a := NewAward(AwardOptions{BaseURL: srv.URL, TokenPath: writeToken(t, "tok"), Timeout: time.Second}, noopLogger())
	if _, err := a.FetchLeg(context.Background(), testLeg(), []model.Cabin{model.CabinBusiness}, model.ModeRewards); err == nil {
		t.Fatal("HTTP 429 应返回错误")
	}
}

func TestAwardFetchNoCabins(t *testing.T) {
	a := NewAward(AwardOptions{TokenPath: writeToken(t, "tok")}, noopLogger())
	if _, err := a.FetchLeg(context.Background(), testLeg(), nil, model.ModeRewards); err == nil {
		t.Fatal("空舱位列表应报错")
	}
}
