package ritual

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"broker-bridge/internal/input"
	"broker-bridge/internal/terminal"
)

// Buy 执行买入仪式。
func (e *Engine) Buy(req OrderRequest) (OrderOutcome, error) {
	req.Side = SideBuy
	return e.placeOrder(req)
}

// Sell 执行卖出仪式。
func (e *Engine) Sell(req OrderRequest) (OrderOutcome, error) {
	req.Side = SideSell
	return e.placeOrder(req)
}

// placeOrder 驱动下单表单：
// 买入先 F2 后 F1，卖出先 F1 后 F2；录入代码；两次 Tab 跳过价格字段
// （终端默认填充市价，price 参数仅为参考值，不会录入）；录入数量；
// Tab 提交；Shift+B / Shift+S 确认。
// 即使终端弹出错误对话框仪式也会返回成功——核心看不见对话框，
// 调用方必须通过委托导出对账。
func (e *Engine) placeOrder(req OrderRequest) (OrderOutcome, error) {
	now := e.now()
	outcome := OrderOutcome{Timestamp: now}

	if err := req.Validate(); err != nil {
		outcome.Message = err.Error()
		return outcome, err
	}

	if !e.ctrl.EnsureReady() {
		outcome.Message = ErrAborted.Error()
		return outcome, ErrAborted
	}
	defer e.ctrl.Invalidate()

	first, second, confirm := input.KeyF2, input.KeyF1, input.KeyB
	if req.Side == SideSell {
		first, second, confirm = input.KeyF1, input.KeyF2, input.KeyS
	}

	e.logger.Info("开始下单仪式",
		zap.String("side", string(req.Side)),
		zap.String("code", req.Code),
		zap.Int("quantity", req.Quantity),
		zap.String("price", req.Price),
	)

	if err := e.drv.TapKey(first); err != nil {
		return e.incomplete(outcome, "form_opened", err)
	}
	if err := e.drv.TapKey(second); err != nil {
		return e.incomplete(outcome, "form_opened", err)
	}
	e.drv.Sleep(input.SettleFocus)
	e.ctrl.MarkPage(terminal.PageTrading)

	if err := e.drv.ClearAndType(req.Code); err != nil {
		return e.incomplete(outcome, "code_entered", err)
	}
	e.drv.Sleep(input.SettleEntry)

	for i := 0; i < 2; i++ {
		if err := e.drv.TapKey(input.KeyTab); err != nil {
			return e.incomplete(outcome, "code_entered", err)
		}
		e.drv.Sleep(input.SettleNav)
	}

	if err := e.drv.ClearAndType(strconv.Itoa(req.Quantity)); err != nil {
		return e.incomplete(outcome, "qty_entered", err)
	}
	e.drv.Sleep(input.SettleEntry)

	if err := e.drv.TapKey(input.KeyTab); err != nil {
		return e.incomplete(outcome, "qty_entered", err)
	}
	e.drv.Sleep(input.SettleNav)

	if err := e.drv.TapChord(confirm, input.KeyShift); err != nil {
		return e.incomplete(outcome, "confirm_sent", err)
	}
	e.drv.Sleep(input.SettleEntry)

	outcome.Success = true
	outcome.TradeID = tradeID(req.Side, req.Code, now)
	outcome.Message = fmt.Sprintf("委托已提交（%s %s x%d），请通过委托导出确认", req.Side, req.Code, req.Quantity)

	e.logger.Info("下单仪式完成", zap.String("trade_id", outcome.TradeID))
	return outcome, nil
}

// incomplete 标记中途失败：此前的按键已生效，终端状态不可预期。
func (e *Engine) incomplete(outcome OrderOutcome, stage string, err error) (OrderOutcome, error) {
	wrapped := fmt.Errorf("%w: 阶段 %s: %v", ErrIncomplete, stage, err)
	outcome.Success = false
	outcome.Message = wrapped.Error()
	e.logger.Error("下单仪式中途失败", zap.String("stage", stage), zap.Error(err))
	return outcome, wrapped
}
