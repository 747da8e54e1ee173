package ritual

import (
	"fmt"

	"go.uber.org/zap"

	"broker-bridge/internal/artifact"
	"broker-bridge/internal/input"
	"broker-bridge/internal/terminal"
)

// exportHotkeys 为各导出页面的单字母热键（要求 Caps Lock 锁定）。
var exportHotkeys = map[artifact.Kind]input.Key{
	artifact.KindHoldings: input.KeyW,
	artifact.KindTrades:   input.KeyE,
	artifact.KindOrders:   input.KeyR,
}

var exportPages = map[artifact.Kind]terminal.Page{
	artifact.KindHoldings: terminal.PageHoldings,
	artifact.KindTrades:   terminal.PageTrades,
	artifact.KindOrders:   terminal.PageOrders,
}

// Export 执行一次数据导出仪式：
// 硬复位（前一个仪式可能停在任意页面）、页面热键、聚焦数据表格、
// Ctrl+S 打开保存对话框、输入确定性文件名、回车、按 N 关闭确认框。
// 引擎不确认文件落盘，由收割器负责。
func (e *Engine) Export(kind artifact.Kind) (ExportOutcome, error) {
	now := e.now()
	outcome := ExportOutcome{Kind: kind, Timestamp: now}

	hotkey, ok := exportHotkeys[kind]
	if !ok {
		err := fmt.Errorf("%w: 未知导出种类 %q", ErrInvalidRequest, kind)
		outcome.Message = err.Error()
		return outcome, err
	}

	if !e.ctrl.HardReset() {
		outcome.Message = ErrAborted.Error()
		return outcome, ErrAborted
	}
	defer e.ctrl.Invalidate()

	filename := artifact.Filename(kind, now)
	outcome.Filename = filename

	e.logger.Info("开始导出仪式",
		zap.String("kind", string(kind)),
		zap.String("filename", filename),
	)

	if err := e.drv.TapKey(hotkey); err != nil {
		return e.exportIncomplete(outcome, "page_opened", err)
	}
	e.drv.Sleep(input.SettleExportPage)
	e.ctrl.MarkPage(exportPages[kind])

	if err := e.drv.ClickLowerMiddle(e.ctrl.Handle()); err != nil {
		return e.exportIncomplete(outcome, "grid_focused", err)
	}

	if err := e.drv.TapChord(input.KeyS, input.KeyControl); err != nil {
		return e.exportIncomplete(outcome, "dialog_opened", err)
	}
	e.drv.Sleep(input.SettleDialog)

	if err := e.drv.TapChord(input.KeyA, input.KeyControl); err != nil {
		return e.exportIncomplete(outcome, "filename_entered", err)
	}
	if err := e.drv.TypeText(filename); err != nil {
		return e.exportIncomplete(outcome, "filename_entered", err)
	}

	if err := e.drv.TapKey(input.KeyEnter); err != nil {
		return e.exportIncomplete(outcome, "save_confirmed", err)
	}
	e.drv.Sleep(input.SettleSave)

	if err := e.drv.TapKey(input.KeyN); err != nil {
		return e.exportIncomplete(outcome, "modal_dismissed", err)
	}

	outcome.Success = true
	outcome.Message = fmt.Sprintf("导出已触发: %s", filename)

	e.logger.Info("导出仪式完成", zap.String("filename", filename))
	return outcome, nil
}

func (e *Engine) exportIncomplete(outcome ExportOutcome, stage string, err error) (ExportOutcome, error) {
	wrapped := fmt.Errorf("%w: 阶段 %s: %v", ErrIncomplete, stage, err)
	outcome.Success = false
	outcome.Message = wrapped.Error()
	e.logger.Error("导出仪式中途失败", zap.String("stage", stage), zap.Error(err))
	return outcome, wrapped
}
