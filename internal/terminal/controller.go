package terminal

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"broker-bridge/internal/input"
)

// ErrNotFound 表示按标题未能定位到券商终端窗口。
var ErrNotFound = errors.New("terminal: 未找到交易终端窗口")

// Controller 负责在每个仪式入口强制终端满足前置条件：
// 窗口在前台、Caps Lock 锁定、主面板获得焦点、完成 settle 等待。
// 终端没有 API，这里交易的是不变量而非观测值。
type Controller struct {
	drv    input.Driver
	titles []string
	logger *zap.Logger

	handle uintptr
	title  string
	state  State
}

// NewController 创建终端状态控制器。titles 为窗口标题匹配子串列表。
func NewController(drv input.Driver, titles []string, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		drv:    drv,
		titles: titles,
		logger: logger,
	}
}

// Resolve 按标题子串重新定位终端窗口。每次仪式入口都重新解析，
// 句柄只在终端进程存活期间有效。
func (c *Controller) Resolve() (input.Window, error) {
	windows, err := c.drv.EnumerateWindows()
	if err != nil {
		return input.Window{}, fmt.Errorf("terminal: 枚举窗口失败: %w", err)
	}

	for _, needle := range c.titles {
		for _, w := range windows {
			if strings.Contains(w.Title, needle) {
				c.handle = w.Handle
				c.title = w.Title
				return w, nil
			}
		}
	}

	return input.Window{}, ErrNotFound
}

// EnsureReady 保证仪式前置条件成立，尽力而为：
// 激活失败不报错，由仪式引擎决定是否中止。
func (c *Controller) EnsureReady() bool {
	win, err := c.Resolve()
	if err != nil {
		c.logger.Warn("定位终端窗口失败", zap.Error(err))
		c.state = State{}
		return false
	}

	if !c.drv.Activate(win.Handle) {
		// 现代 Windows 下前台接管是尽力而为的，部分激活也继续。
		c.logger.Warn("终端窗口激活不完全", zap.String("title", win.Title))
	}

	if err := c.drv.ClickCenter(win.Handle); err != nil {
		c.logger.Warn("点击终端主面板失败", zap.Error(err))
		c.state = State{}
		return false
	}

	// 单字母热键 W/E/R/B/S 必须为大写。
	if err := c.drv.EnsureCapsOn(); err != nil {
		c.logger.Warn("锁定 Caps Lock 失败", zap.Error(err))
		c.state = State{}
		return false
	}

	c.drv.Sleep(input.SettleFocus)

	c.state = State{
		Focused:    true,
		CapsOn:     true,
		Page:       PageUnknown,
		LastSettle: time.Now(),
	}
	return true
}

// HardReset 无条件重新执行完整的就绪序列。
// 用于前一个仪式可能遗留任意页面状态的场合：例如资金页读取之后，
// W/E/R 热键在资金页上的含义不同，必须先强制回到交易页。
func (c *Controller) HardReset() bool {
	c.Invalidate()
	return c.EnsureReady()
}

// Invalidate 丢弃已知状态。仪式退出时必须调用。
func (c *Controller) Invalidate() {
	c.state = State{}
}

// Handle 返回最近一次 Resolve 得到的窗口句柄。
func (c *Controller) Handle() uintptr {
	return c.handle
}

// Title 返回最近一次 Resolve 得到的窗口标题。
func (c *Controller) Title() string {
	return c.title
}

// State 返回当前推测的终端状态。
func (c *Controller) State() State {
	return c.state
}

// MarkPage 更新推测页面。终端不提供反馈，该值仅供日志参考。
func (c *Controller) MarkPage(p Page) {
	c.state.Page = p
}
