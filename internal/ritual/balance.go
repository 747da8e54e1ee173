package ritual

import (
	"fmt"

	"go.uber.org/zap"

	"broker-bridge/internal/artifact"
	"broker-bridge/internal/input"
	"broker-bridge/internal/terminal"
)

// Balance 读取资金页余额。
// F4 进入资金页，刮取可见控件文本，F1 返回交易页。
// 返回交易页这一步不可省略：资金页上 W/E/R 热键含义不同，
// 漏掉 F1 会悄悄破坏下一次导出仪式。
func (e *Engine) Balance() (artifact.BalanceSnapshot, error) {
	if !e.ctrl.EnsureReady() {
		return artifact.BalanceSnapshot{}, ErrAborted
	}
	defer e.ctrl.Invalidate()

	e.logger.Info("开始余额读取仪式")

	if err := e.drv.TapKey(input.KeyF4); err != nil {
		return artifact.BalanceSnapshot{}, fmt.Errorf("%w: 进入资金页失败: %v", ErrIncomplete, err)
	}
	e.drv.Sleep(input.SettleFundsPage)
	e.ctrl.MarkPage(terminal.PageFunds)

	texts, readErr := e.drv.ChildTexts(e.ctrl.Handle())

	// 无论读取是否成功都必须回到交易页。
	if err := e.drv.TapKey(input.KeyF1); err != nil {
		return artifact.BalanceSnapshot{}, fmt.Errorf("%w: 返回交易页失败: %v", ErrIncomplete, err)
	}
	e.drv.Sleep(input.SettleFundsPage)
	e.ctrl.MarkPage(terminal.PageTrading)

	if readErr != nil {
		return artifact.BalanceSnapshot{}, fmt.Errorf("%w: 读取资金页控件失败: %v", ErrIncomplete, readErr)
	}

	snap := artifact.ParseBalanceTexts(texts, e.now())
	e.logger.Info("余额读取完成",
		zap.String("total_assets", snap.TotalAssets.String()),
		zap.String("available_cash", snap.AvailableCash.String()),
	)
	return snap, nil
}
