package trader

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"broker-bridge/internal/artifact"
	"broker-bridge/internal/input"
	"broker-bridge/internal/ritual"
	"broker-bridge/internal/terminal"
)

const testTitle = "网上股票交易系统5.0"

func newTestAPI(t *testing.T) (*API, *input.Recorder, string) {
	t.Helper()
	drv := input.NewRecorder()
	drv.Windows = []input.Window{{Handle: 1, Title: testTitle}}
	ctrl := terminal.NewController(drv, []string{testTitle}, nil)
	eng := ritual.NewEngine(drv, ctrl, nil)
	workDir := t.TempDir()
	harvester := artifact.NewHarvester(workDir, nil, 15, nil)
	api := New(drv, ctrl, eng, harvester, testTitle, nil)
	return api, drv, workDir
}

func TestBuy_RecordsHistory(t *testing.T) {
	api, _, _ := newTestAPI(t)

	outcome, err := api.Buy("600519", 100, "market")
	if err != nil {
		t.Fatalf("Buy returned error: %v", err)
	}
	if !outcome.Success {
		t.Fatalf("expected ritual success, message=%q", outcome.Message)
	}

	history := api.History(10)
	if len(history) != 1 {
		t.Fatalf("unexpected history length: %d", len(history))
	}
	if history[0].TradeID != outcome.TradeID {
		t.Errorf("history entry mismatch: %q vs %q", history[0].TradeID, outcome.TradeID)
	}
}

func TestPlaceOrder_FailuresAlsoRecorded(t *testing.T) {
	api, _, _ := newTestAPI(t)

	if _, err := api.Buy("bad-code", 100, ""); !errors.Is(err, ritual.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}

	history := api.History(10)
	if len(history) != 1 {
		t.Fatalf("failed order missing from history: %d entries", len(history))
	}
	if history[0].Success {
		t.Errorf("failed order recorded as success")
	}
}

// 并发下单必须在终端锁后排队：任意两笔订单的按键窗口不得交叠。
func TestPlaceOrder_SerializedAcrossGoroutines(t *testing.T) {
	api, drv, _ := newTestAPI(t)
	drv.EnsureCapsOn()
	drv.Reset()

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := api.Buy("600519", 100, ""); err != nil {
				t.Errorf("Buy returned error: %v", err)
			}
		}()
	}
	wg.Wait()

	perOrder := []string{
		"F2", "F1",
		"Ctrl+A", "6", "0", "0", "5", "1", "9",
		"Tab", "Tab",
		"Ctrl+A", "1", "0", "0",
		"Tab",
		"Shift+B",
	}
	trace := drv.Trace()
	if len(trace) != workers*len(perOrder) {
		t.Fatalf("unexpected trace length: got %d want %d", len(trace), workers*len(perOrder))
	}
	for i, label := range trace {
		if label != perOrder[i%len(perOrder)] {
			t.Fatalf("interleaved keystrokes at index %d: got %q want %q", i, label, perOrder[i%len(perOrder)])
		}
	}

	if api.History(0) == nil || len(api.History(0)) != workers {
		t.Errorf("unexpected history count: %d", len(api.History(0)))
	}
}

func TestHistory_BoundedRing(t *testing.T) {
	h := NewHistory(5)
	for i := 0; i < 12; i++ {
		h.Add(ritual.OrderOutcome{TradeID: string(rune('a' + i))})
	}
	if h.Len() != 5 {
		t.Fatalf("ring exceeded capacity: %d", h.Len())
	}
	list := h.List(0)
	if list[0].TradeID != "l" || list[4].TradeID != "h" {
		t.Errorf("unexpected ring contents: %v", list)
	}
}

func TestGetStatus_NoKeystrokesAndIdempotent(t *testing.T) {
	api, drv, _ := newTestAPI(t)
	drv.Activate(1)

	first := api.GetStatus()
	second := api.GetStatus()

	if n := len(drv.Events()); n != 0 {
		t.Fatalf("GetStatus emitted %d input events", n)
	}
	if !first.Running || !first.TraderAPIAvailable {
		t.Errorf("unexpected status: %+v", first)
	}
	if !first.TradingSoftwareActive {
		t.Errorf("expected trading software active with terminal focused")
	}
	if first.TradeHistoryCount != second.TradeHistoryCount ||
		first.TradingSoftwareActive != second.TradingSoftwareActive {
		t.Errorf("GetStatus not idempotent: %+v vs %+v", first, second)
	}
}

func TestGetStatus_InactiveWhenOtherWindowFocused(t *testing.T) {
	api, drv, _ := newTestAPI(t)
	drv.Windows = append(drv.Windows, input.Window{Handle: 2, Title: "浏览器"})
	drv.Activate(2)

	if api.GetStatus().TradingSoftwareActive {
		t.Errorf("expected inactive when another window holds focus")
	}
}

func TestExport_HarvestsArtifact(t *testing.T) {
	api, _, workDir := newTestAPI(t)

	// 预置一个 mtime 在未来的文件，模拟终端在仪式期间落盘。
	path := filepath.Join(workDir, "持仓数据_20240315_100000.csv")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	report, err := api.Export("holdings")
	if err != nil {
		t.Fatalf("Export returned error: %v", err)
	}
	if !report.Results[artifact.KindHoldings] {
		t.Errorf("expected holdings ritual success")
	}
	if report.Artifacts[artifact.KindHoldings] != path {
		t.Errorf("unexpected artifact path: %q", report.Artifacts[artifact.KindHoldings])
	}
	if len(report.Missing) != 0 {
		t.Errorf("unexpected missing kinds: %v", report.Missing)
	}
}

func TestExport_UnknownKind(t *testing.T) {
	api, drv, _ := newTestAPI(t)

	if _, err := api.Export("funds"); !errors.Is(err, ritual.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if n := len(drv.Events()); n != 0 {
		t.Errorf("rejected export emitted %d events", n)
	}
}

func TestResolveKinds_All(t *testing.T) {
	kinds, err := resolveKinds("all")
	if err != nil {
		t.Fatalf("resolveKinds returned error: %v", err)
	}
	if len(kinds) != 3 {
		t.Fatalf("expected 3 kinds, got %v", kinds)
	}

	if _, err := resolveKinds(" Holdings "); err != nil {
		t.Errorf("resolveKinds should normalize case and spacing: %v", err)
	}
}

func TestPortfolio_ParsesHoldings(t *testing.T) {
	api, _, workDir := newTestAPI(t)

	table := &artifact.Table{
		Headers: []string{"证券代码", "证券名称", "股票余额"},
		Rows:    [][]string{{"600519", "贵州茅台", "100"}},
	}
	encoded, err := artifact.EncodeGBK(table)
	if err != nil {
		t.Fatalf("EncodeGBK returned error: %v", err)
	}
	path := filepath.Join(workDir, "持仓数据_20240315_100000.csv")
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	result, err := api.Portfolio()
	if err != nil {
		t.Fatalf("Portfolio returned error: %v", err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("unexpected row count: %d", len(result.Rows))
	}
	if result.Rows[0]["证券名称"] != "贵州茅台" {
		t.Errorf("unexpected row: %v", result.Rows[0])
	}
	if result.Warning != "" {
		t.Errorf("unexpected warning: %q", result.Warning)
	}
}

func TestMarkHeartbeat_ReflectedInStatus(t *testing.T) {
	api, _, _ := newTestAPI(t)

	ts := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	api.MarkHeartbeat(ts)

	if got := api.GetStatus().LastHeartbeat; !got.Equal(ts) {
		t.Errorf("unexpected heartbeat timestamp: %v", got)
	}
}

func TestRiskRecords_StoredVerbatim(t *testing.T) {
	api, _, _ := newTestAPI(t)

	api.SetRiskParams(RiskParams{MaxOrderQuantity: 1000, MaxDailyOrders: 20, Source: "cloud"})

	records := api.RiskRecords()
	if len(records) != 1 {
		t.Fatalf("unexpected record count: %d", len(records))
	}
	if records[0].MaxOrderQuantity != 1000 || records[0].Source != "cloud" {
		t.Errorf("unexpected record: %+v", records[0])
	}
	if records[0].UpdatedAt.IsZero() {
		t.Errorf("expected UpdatedAt to be stamped")
	}
}
