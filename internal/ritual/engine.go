package ritual

import (
	"time"

	"go.uber.org/zap"

	"broker-bridge/internal/input"
	"broker-bridge/internal/terminal"
)

// Engine 执行固定的确定性按键程序。每个仪式都是一段直线脚本：
// 就绪检查、按键序列、settle 等待、结果组装。
// Engine 本身不做串行化，终端锁由上层 trader.API 持有。
type Engine struct {
	drv    input.Driver
	ctrl   *terminal.Controller
	logger *zap.Logger
	now    func() time.Time
}

// NewEngine 创建仪式引擎。
func NewEngine(drv input.Driver, ctrl *terminal.Controller, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		drv:    drv,
		ctrl:   ctrl,
		logger: logger,
		now:    time.Now,
	}
}
