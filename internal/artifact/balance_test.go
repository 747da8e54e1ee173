package artifact

import (
	"testing"
	"time"
)

func TestParseBalanceTexts_PositionalLayout(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.Local)
	texts := []string{
		"资金余额", "120,000.50",
		"冻结金额", "500.00",
		"可用资金", "80,000.25",
		"可取资金", "79,000.00",
		"参考市值", "40,000.25",
	}

	snap := ParseBalanceTexts(texts, now)

	if snap.TotalAssets.String() != "120000.5" {
		t.Errorf("total assets: got %s", snap.TotalAssets)
	}
	if snap.FrozenAmount.String() != "500" {
		t.Errorf("frozen amount: got %s", snap.FrozenAmount)
	}
	if snap.AvailableCash.String() != "80000.25" {
		t.Errorf("available cash: got %s", snap.AvailableCash)
	}
	if snap.MarketValue.String() != "40000.25" {
		t.Errorf("market value: got %s", snap.MarketValue)
	}
	if !snap.UpdatedAt.Equal(now) {
		t.Errorf("update timestamp: got %v", snap.UpdatedAt)
	}
	if snap.Source != "funds_page" {
		t.Errorf("source: got %q", snap.Source)
	}
}

func TestParseBalanceTexts_SynthesizesTotalWhenZero(t *testing.T) {
	texts := []string{"0.00", "0.00", "80000.00", "40000.00"}

	snap := ParseBalanceTexts(texts, time.Now())

	if snap.TotalAssets.String() != "120000" {
		t.Errorf("expected synthesized total 120000, got %s", snap.TotalAssets)
	}
}

func TestParseBalanceTexts_AllZeroStaysZero(t *testing.T) {
	texts := []string{"0.00", "0.00", "0.00", "0.00"}

	snap := ParseBalanceTexts(texts, time.Now())

	if !snap.TotalAssets.IsZero() {
		t.Errorf("all-zero page must not synthesize a total, got %s", snap.TotalAssets)
	}
}

func TestParseBalanceTexts_SkipsNonNumericNoise(t *testing.T) {
	texts := []string{"人民币", "刷新", "120000.00", "银证转账", "0.00", "80000.00"}

	snap := ParseBalanceTexts(texts, time.Now())

	if snap.TotalAssets.String() != "120000" {
		t.Errorf("total assets: got %s", snap.TotalAssets)
	}
	if snap.AvailableCash.String() != "80000" {
		t.Errorf("available cash: got %s", snap.AvailableCash)
	}
}

func TestParseBalanceTexts_Empty(t *testing.T) {
	snap := ParseBalanceTexts(nil, time.Now())
	if !snap.TotalAssets.IsZero() || !snap.AvailableCash.IsZero() || !snap.MarketValue.IsZero() {
		t.Errorf("empty input must yield zero snapshot: %+v", snap)
	}
}
