package trader

import (
	"sync"
	"time"

	"broker-bridge/internal/ritual"
)

// defaultHistoryCap 为内存环形缓冲的上限。核心不落库，仅保留近期记录。
const defaultHistoryCap = 1000

// History 为有界环形缓冲，保存最近的订单仪式结果供上报。
type History struct {
	mu    sync.Mutex
	limit int
	items []ritual.OrderOutcome
}

// NewHistory 创建容量受限的历史缓冲。
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = defaultHistoryCap
	}
	return &History{limit: limit}
}

// Add 追加一条记录，超出容量时淘汰最旧的。
func (h *History) Add(o ritual.OrderOutcome) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = append(h.items, o)
	if len(h.items) > h.limit {
		h.items = h.items[len(h.items)-h.limit:]
	}
}

// List 返回最新在前的记录，最多 limit 条；limit<=0 返回全部。
func (h *History) List(limit int) []ritual.OrderOutcome {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.items)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]ritual.OrderOutcome, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, h.items[i])
	}
	return out
}

// Len 返回当前记录数。
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.items)
}

// RiskParams 为调用方下发的风控参数记录。核心不理解其语义，只做保存与上报。
type RiskParams struct {
	MaxOrderQuantity int       `json:"max_order_quantity"`
	MaxDailyOrders   int       `json:"max_daily_orders"`
	MaxPositionRatio float64   `json:"max_position_ratio"`
	UpdatedAt        time.Time `json:"updated_at"`
	Source           string    `json:"source"`
}

// riskLog 为风控参数的有界记录。
type riskLog struct {
	mu    sync.Mutex
	limit int
	items []RiskParams
}

func newRiskLog(limit int) *riskLog {
	if limit <= 0 {
		limit = defaultHistoryCap
	}
	return &riskLog{limit: limit}
}

func (l *riskLog) add(p RiskParams) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, p)
	if len(l.items) > l.limit {
		l.items = l.items[len(l.items)-l.limit:]
	}
}

func (l *riskLog) list() []RiskParams {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]RiskParams, len(l.items))
	copy(out, l.items)
	return out
}
