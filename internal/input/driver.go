package input

import (
	"errors"
	"time"
)

// 时间预算为标定值，不向调用方开放调节。
const (
	// HoldDelay 为按下到抬起的保持时间。
	HoldDelay = 10 * time.Millisecond
	// InterKeyDelay 为相邻按键之间的间隔。
	InterKeyDelay = 20 * time.Millisecond
	// SettleFocus 为窗口激活后的等待时间。
	SettleFocus = 500 * time.Millisecond
	// SettleNav 为 Tab 等导航键之后的等待时间。
	SettleNav = 300 * time.Millisecond
	// SettleEntry 为一段数值录入完成后的等待时间。
	SettleEntry = 500 * time.Millisecond
	// SettleExportPage 为导出页面热键之后的等待时间。
	SettleExportPage = 100 * time.Millisecond
	// SettleDialog 为 Ctrl+S 弹出保存对话框后的等待时间。
	SettleDialog = 500 * time.Millisecond
	// SettleSave 为确认保存后等待文件落盘的时间。
	SettleSave = 1500 * time.Millisecond
	// SettleFundsPage 为进出资金页面的等待时间。
	SettleFundsPage = 2 * time.Second
)

var (
	// ErrInvalidText 表示数值输入中出现了数字与小数点之外的字符。
	ErrInvalidText = errors.New("input: 仅支持数字与小数点")
	// ErrUnsupported 表示当前平台不支持合成输入。
	ErrUnsupported = errors.New("input: 当前平台不支持合成输入")
)

// Window 描述一个顶层窗口。
type Window struct {
	Handle uintptr
	Title  string
}

// Driver 提供对合成键鼠输入的类型安全、带时间标定的访问。
// 不含任何策略与重试，由上层决定失败语义。
type Driver interface {
	// EnumerateWindows 返回可见的顶层窗口列表。
	EnumerateWindows() ([]Window, error)
	// Activate 尽力将窗口提到前台，返回是否成功。从不硬性失败。
	Activate(handle uintptr) bool
	// CurrentFocus 返回当前前台窗口。
	CurrentFocus() (Window, error)

	// TapKey 按下并释放单个按键。
	TapKey(k Key) error
	// TapChord 按下修饰键、点击主键、释放修饰键。
	TapChord(k Key, mods ...Key) error
	// TypeDigits 逐字符注入数字与小数点，其他字符报错且不注入任何按键。
	TypeDigits(text string) error
	// ClearAndType 先全选（Ctrl+A）再注入数值。
	ClearAndType(text string) error
	// TypeText 以 Unicode 逐字符注入任意文本。
	// 仅用于保存对话框的文件名输入，订单数值字段一律走 TypeDigits。
	TypeText(text string) error

	// CapsState 返回 Caps Lock 是否处于锁定状态。
	CapsState() bool
	// EnsureCapsOn 幂等地保证 Caps Lock 锁定。
	EnsureCapsOn() error

	// ClickAt 在屏幕坐标处单击。
	ClickAt(x, y int) error
	// ClickCenter 单击窗口中心以夺取主面板焦点。
	ClickCenter(handle uintptr) error
	// ClickLowerMiddle 单击窗口中下部以聚焦数据表格。
	ClickLowerMiddle(handle uintptr) error

	// ChildTexts 枚举可见子控件并读取其文本。
	ChildTexts(handle uintptr) ([]string, error)

	// Sleep 执行一次规定的 settle 等待。
	Sleep(d time.Duration)
}
