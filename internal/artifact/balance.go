package artifact

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// numericToken 匹配资金页上的数值控件文本（允许千分位逗号）。
var numericToken = regexp.MustCompile(`^[0-9,]+(\.[0-9]+)?$`)

// BalanceSnapshot 为资金页刮取结果。
type BalanceSnapshot struct {
	TotalAssets   decimal.Decimal `json:"total_assets"`
	AvailableCash decimal.Decimal `json:"available_cash"`
	MarketValue   decimal.Decimal `json:"market_value"`
	FrozenAmount  decimal.Decimal `json:"frozen_amount"`
	UpdatedAt     time.Time       `json:"update_ts"`
	Source        string          `json:"source"`
}

// ParseBalanceTexts 从资金页的可见控件文本中按文档序提取数值。
// 期望的位置布局为 [总资产, 冻结金额, 可用资金, …, 市值]，缺失位置取 0。
// 当总资产解析为 0 而可用资金为正时，以 可用资金+市值 补全总资产。
func ParseBalanceTexts(texts []string, now time.Time) BalanceSnapshot {
	tokens := make([]decimal.Decimal, 0, 8)
	for _, raw := range texts {
		s := strings.TrimSpace(raw)
		if !numericToken.MatchString(s) {
			continue
		}
		v, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
		if err != nil {
			continue
		}
		tokens = append(tokens, v)
	}

	snap := BalanceSnapshot{
		UpdatedAt: now,
		Source:    "funds_page",
	}

	at := func(i int) decimal.Decimal {
		if i < len(tokens) {
			return tokens[i]
		}
		return decimal.Zero
	}

	snap.TotalAssets = at(0)
	snap.FrozenAmount = at(1)
	snap.AvailableCash = at(2)
	if len(tokens) >= 4 {
		snap.MarketValue = tokens[len(tokens)-1]
	}

	// 部分终端版本的总资产控件渲染为 0，用可用资金与市值补全。
	// 全零输入不补全。
	if snap.TotalAssets.IsZero() && snap.AvailableCash.IsPositive() {
		snap.TotalAssets = snap.AvailableCash.Add(snap.MarketValue)
	}

	return snap
}
