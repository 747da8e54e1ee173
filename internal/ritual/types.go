package ritual

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"broker-bridge/internal/artifact"
)

// Side 标识订单方向。
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// PriceMarket 表示市价委托。
const PriceMarket = "market"

var (
	// ErrInvalidRequest 表示输入校验失败，未注入任何按键。
	ErrInvalidRequest = errors.New("ritual: 请求参数非法")
	// ErrAborted 表示前置条件未就绪、仪式未开始，可以安全重试。
	ErrAborted = errors.New("ritual: 终端未就绪，仪式中止")
	// ErrIncomplete 表示仪式中途失败，此前的按键已经发出，
	// 终端可能处于部分生效状态，调用方必须通过导出对账。
	ErrIncomplete = errors.New("ritual: 仪式未完成")
)

// OrderRequest 描述一笔委托。创建后不可变。
type OrderRequest struct {
	Side     Side   `json:"side"`
	Code     string `json:"stock_code"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
}

// Validate 在任何按键注入之前校验请求。
func (r OrderRequest) Validate() error {
	if r.Side != SideBuy && r.Side != SideSell {
		return fmt.Errorf("%w: 未知方向 %q", ErrInvalidRequest, r.Side)
	}
	if r.Code == "" {
		return fmt.Errorf("%w: 证券代码为空", ErrInvalidRequest)
	}
	for _, c := range r.Code {
		if c < '0' || c > '9' {
			return fmt.Errorf("%w: 证券代码含非数字字符 %q", ErrInvalidRequest, c)
		}
	}
	if r.Quantity <= 0 {
		return fmt.Errorf("%w: 数量必须为正整数", ErrInvalidRequest)
	}
	if r.Price != "" && r.Price != PriceMarket {
		for _, c := range r.Price {
			if (c < '0' || c > '9') && c != '.' {
				return fmt.Errorf("%w: 价格含非法字符 %q", ErrInvalidRequest, c)
			}
		}
	}
	return nil
}

// OrderOutcome 为订单仪式的结果。
// Success 仅表示仪式脚本执行完毕，不代表券商已接受委托：
// 终端是不透明的，真实状态必须通过委托/成交导出对账。
type OrderOutcome struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	TradeID   string    `json:"trade_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ExportOutcome 为导出仪式的结果。文件是否真正落盘由收割器负责确认。
type ExportOutcome struct {
	Kind      artifact.Kind `json:"kind"`
	Filename  string        `json:"filename"`
	Success   bool          `json:"success"`
	Message   string        `json:"message"`
	Timestamp time.Time     `json:"timestamp"`
}

// tradeID 生成本地合成编号 side_code_epoch。
// 这不是券商委托号，调用方不得当作权威标识使用。
func tradeID(side Side, code string, t time.Time) string {
	return fmt.Sprintf("%s_%s_%d", side, code, t.Unix())
}

// ParseSide 解析命令中的方向字段。
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToLower(strings.TrimSpace(s))) {
	case SideBuy:
		return SideBuy, nil
	case SideSell:
		return SideSell, nil
	}
	return "", fmt.Errorf("%w: 未知方向 %q", ErrInvalidRequest, s)
}
