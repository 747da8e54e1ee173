package terminal

import "time"

// Page 标识终端当前所处的页面。终端不提供任何反馈，该值仅为推测。
type Page int

const (
	PageUnknown Page = iota
	PageTrading
	PageHoldings
	PageTrades
	PageOrders
	PageFunds
)

// String 返回页面名称。
func (p Page) String() string {
	switch p {
	case PageTrading:
		return "trading"
	case PageHoldings:
		return "holdings"
	case PageTrades:
		return "trades"
	case PageOrders:
		return "orders"
	case PageFunds:
		return "funds"
	}
	return "unknown"
}

// State 描述一次仪式入口处终端应满足的不变量。
// 仪式结束后立即失效，绝不跨仪式信任。
type State struct {
	Focused    bool
	CapsOn     bool
	Page       Page
	LastSettle time.Time
}
