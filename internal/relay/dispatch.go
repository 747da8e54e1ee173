package relay

import (
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"broker-bridge/internal/ritual"
	"broker-bridge/internal/trader"
)

// Dispatcher 把命令信封翻译为交易门面调用。
// Handle 对每个命令恰好返回一个应答信封；仪式产生的状态变化
// 额外以 event 信封镜像给云端。
type Dispatcher struct {
	api    *trader.API
	source string
	logger *zap.Logger
}

// NewDispatcher 创建命令分发器。source 为本地代理的信封来源标识。
func NewDispatcher(api *trader.API, source string, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		api:    api,
		source: source,
		logger: logger,
	}
}

// Handle 同步处理一条命令。仪式执行期间调用方（读循环）被阻塞，
// 这正是终端串行化要求的行为。
func (d *Dispatcher) Handle(cmd Envelope) (Envelope, []Envelope) {
	switch cmd.Type {
	case TypeTrade:
		return d.handleTrade(cmd)
	case TypeExport:
		return d.handleExport(cmd)
	case TypePortfolio:
		return d.handlePortfolio(cmd)
	case TypeStatus:
		return Response(cmd, d.source, d.api.GetStatus()), nil
	case TypeBalance:
		return d.handleBalance(cmd)
	case TypeHeartbeat, TypePing:
		return Response(cmd, d.source, AlivePayload{Status: "alive", Timestamp: time.Now().UTC()}), nil
	default:
		return ErrorResponse(cmd, d.source, fmt.Sprintf("未知命令类型 %q", cmd.Type)), nil
	}
}

func (d *Dispatcher) handleTrade(cmd Envelope) (Envelope, []Envelope) {
	var tc TradeCommand
	if err := json.Unmarshal(cmd.Data, &tc); err != nil {
		return ErrorResponse(cmd, d.source, fmt.Sprintf("trade 载荷解析失败: %v", err)), nil
	}

	side, err := ritual.ParseSide(tc.Action)
	if err != nil {
		return ErrorResponse(cmd, d.source, err.Error()), nil
	}

	outcome, err := d.api.PlaceOrder(ritual.OrderRequest{
		Side:     side,
		Code:     tc.StockCode,
		Quantity: tc.Quantity,
		Price:    tc.Price,
	})
	if err != nil {
		d.logger.Warn("下单命令执行失败", zap.String("id", cmd.ID), zap.Error(err))
		return ErrorResponse(cmd, d.source, outcome.Message), nil
	}

	var events []Envelope
	if ev, evErr := Event("trade_complete", d.source, cmd.Source, outcome); evErr == nil {
		events = append(events, ev)
	}
	return Response(cmd, d.source, outcome), events
}

func (d *Dispatcher) handleExport(cmd Envelope) (Envelope, []Envelope) {
	var ec ExportCommand
	if err := json.Unmarshal(cmd.Data, &ec); err != nil {
		return ErrorResponse(cmd, d.source, fmt.Sprintf("export 载荷解析失败: %v", err)), nil
	}

	report, err := d.api.Export(ec.DataType)
	if err != nil {
		d.logger.Warn("导出命令执行失败", zap.String("id", cmd.ID), zap.Error(err))
		return ErrorResponse(cmd, d.source, err.Error()), nil
	}

	var events []Envelope
	if ev, evErr := Event("export_complete", d.source, cmd.Source, report); evErr == nil {
		events = append(events, ev)
	}
	return Response(cmd, d.source, report), events
}

func (d *Dispatcher) handleBalance(cmd Envelope) (Envelope, []Envelope) {
	snap, err := d.api.GetBalance()
	if err != nil {
		d.logger.Warn("余额命令执行失败", zap.String("id", cmd.ID), zap.Error(err))
		return ErrorResponse(cmd, d.source, err.Error()), nil
	}

	var events []Envelope
	if ev, evErr := Event("balance_update", d.source, cmd.Source, snap); evErr == nil {
		events = append(events, ev)
	}
	return Response(cmd, d.source, snap), events
}

func (d *Dispatcher) handlePortfolio(cmd Envelope) (Envelope, []Envelope) {
	result, err := d.api.Portfolio()
	if err != nil {
		d.logger.Warn("持仓命令执行失败", zap.String("id", cmd.ID), zap.Error(err))
		return ErrorResponse(cmd, d.source, err.Error()), nil
	}
	return Response(cmd, d.source, result), nil
}
