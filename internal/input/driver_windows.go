//go:build windows && (amd64 || arm64)

package input

import (
	"fmt"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32 = windows.NewLazySystemDLL("user32.dll")

	procEnumWindows          = user32.NewProc("EnumWindows")
	procEnumChildWindows     = user32.NewProc("EnumChildWindows")
	procGetWindowTextW       = user32.NewProc("GetWindowTextW")
	procGetWindowTextLengthW = user32.NewProc("GetWindowTextLengthW")
	procIsWindowVisible      = user32.NewProc("IsWindowVisible")
	procIsIconic             = user32.NewProc("IsIconic")
	procShowWindow           = user32.NewProc("ShowWindow")
	procSetForegroundWindow  = user32.NewProc("SetForegroundWindow")
	procBringWindowToTop     = user32.NewProc("BringWindowToTop")
	procSetWindowPos         = user32.NewProc("SetWindowPos")
	procGetForegroundWindow  = user32.NewProc("GetForegroundWindow")
	procGetKeyState          = user32.NewProc("GetKeyState")
	procSendInput            = user32.NewProc("SendInput")
	procSetCursorPos         = user32.NewProc("SetCursorPos")
	procGetWindowRect        = user32.NewProc("GetWindowRect")
	procSendMessageW         = user32.NewProc("SendMessageW")
)

const (
	swRestore       = 9
	swShow          = 5
	hwndTop         = 0
	swpNoSize       = 0x0001
	swpNoMove       = 0x0002
	wmGetText       = 0x000D
	inputKeyb       = 1
	inputMouse      = 0
	keyEventUp      = 0x0002
	keyEventUnicode = 0x0004
	mouseLDown      = 0x0002
	mouseLUp        = 0x0004
	vkToggleBit     = 0x0001
)

type rect struct {
	Left, Top, Right, Bottom int32
}

type keyboardInput struct {
	Vk        uint16
	Scan      uint16
	Flags     uint32
	Time      uint32
	ExtraInfo uintptr
}

type mouseInput struct {
	Dx        int32
	Dy        int32
	MouseData uint32
	Flags     uint32
	Time      uint32
	ExtraInfo uintptr
}

// winInput 对应 Win32 的 INPUT 结构，联合体按最大成员(MOUSEINPUT)对齐。
// Type 后的 4 字节填充只在 64 位目标上成立，32 位的 INPUT 没有这段填充，
// 构建约束据此限定为 amd64/arm64。
type winInput struct {
	Type uint32
	_    uint32
	Mi   mouseInput
}

// 64 位 INPUT 为 40 字节，布局不符时在编译期报错。
var _ [40]struct{} = [unsafe.Sizeof(winInput{})]struct{}{}

// windowsDriver 通过 user32 合成键鼠输入。
type windowsDriver struct{}

// NewSystemDriver 返回当前平台的真实输入驱动。
func NewSystemDriver() (Driver, error) {
	return &windowsDriver{}, nil
}

func (d *windowsDriver) EnumerateWindows() ([]Window, error) {
	var out []Window
	cb := windows.NewCallback(func(hwnd uintptr, _ uintptr) uintptr {
		visible, _, _ := procIsWindowVisible.Call(hwnd)
		if visible == 0 {
			return 1
		}
		title := windowText(hwnd)
		if title == "" {
			return 1
		}
		out = append(out, Window{Handle: hwnd, Title: title})
		return 1
	})
	ret, _, callErr := procEnumWindows.Call(cb, 0)
	if ret == 0 {
		return nil, fmt.Errorf("input: 枚举窗口失败: %v", callErr)
	}
	return out, nil
}

// Activate 逐级升级前台接管手段，任一步骤使窗口可见即视为成功。
func (d *windowsDriver) Activate(handle uintptr) bool {
	if iconic, _, _ := procIsIconic.Call(handle); iconic != 0 {
		procShowWindow.Call(handle, swRestore)
		time.Sleep(HoldDelay)
	}

	procBringWindowToTop.Call(handle)
	ok, _, _ := procSetForegroundWindow.Call(handle)
	if ok != 0 {
		return true
	}

	// 现代 Windows 会拒绝后台进程抢占前台，退化为置顶但不强求前台。
	procShowWindow.Call(handle, swShow)
	procSetWindowPos.Call(handle, hwndTop, 0, 0, 0, 0, swpNoSize|swpNoMove)
	visible, _, _ := procIsWindowVisible.Call(handle)
	return visible != 0
}

func (d *windowsDriver) CurrentFocus() (Window, error) {
	hwnd, _, _ := procGetForegroundWindow.Call()
	if hwnd == 0 {
		return Window{}, fmt.Errorf("input: 无前台窗口")
	}
	return Window{Handle: hwnd, Title: windowText(hwnd)}, nil
}

func (d *windowsDriver) TapKey(k Key) error {
	if err := sendKey(uint16(k), 0); err != nil {
		return err
	}
	time.Sleep(HoldDelay)
	if err := sendKey(uint16(k), keyEventUp); err != nil {
		return err
	}
	time.Sleep(InterKeyDelay)
	return nil
}

func (d *windowsDriver) TapChord(k Key, mods ...Key) error {
	for _, m := range mods {
		if err := sendKey(uint16(m), 0); err != nil {
			return err
		}
		time.Sleep(HoldDelay)
	}
	if err := d.TapKey(k); err != nil {
		return err
	}
	for i := len(mods) - 1; i >= 0; i-- {
		if err := sendKey(uint16(mods[i]), keyEventUp); err != nil {
			return err
		}
		time.Sleep(HoldDelay)
	}
	return nil
}

func (d *windowsDriver) TypeDigits(text string) error {
	keys, err := digitKeys(text)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := d.TapKey(k); err != nil {
			return err
		}
	}
	return nil
}

func (d *windowsDriver) ClearAndType(text string) error {
	if _, err := digitKeys(text); err != nil {
		return err
	}
	if err := d.TapChord(KeyA, KeyControl); err != nil {
		return err
	}
	return d.TypeDigits(text)
}

func (d *windowsDriver) TypeText(text string) error {
	for _, unit := range utf16Encode(text) {
		if err := sendUnicode(unit, 0); err != nil {
			return err
		}
		time.Sleep(HoldDelay)
		if err := sendUnicode(unit, keyEventUp); err != nil {
			return err
		}
		time.Sleep(InterKeyDelay)
	}
	return nil
}

func (d *windowsDriver) CapsState() bool {
	state, _, _ := procGetKeyState.Call(uintptr(KeyCapsLock))
	return state&vkToggleBit != 0
}

func (d *windowsDriver) EnsureCapsOn() error {
	if d.CapsState() {
		return nil
	}
	return d.TapKey(KeyCapsLock)
}

func (d *windowsDriver) ClickAt(x, y int) error {
	if ret, _, callErr := procSetCursorPos.Call(uintptr(x), uintptr(y)); ret == 0 {
		return fmt.Errorf("input: 移动光标失败: %v", callErr)
	}
	time.Sleep(HoldDelay)
	sendMouse(mouseLDown)
	time.Sleep(HoldDelay)
	sendMouse(mouseLUp)
	time.Sleep(InterKeyDelay)
	return nil
}

func (d *windowsDriver) ClickCenter(handle uintptr) error {
	r, err := windowRect(handle)
	if err != nil {
		return err
	}
	return d.ClickAt(int(r.Left+r.Right)/2, int(r.Top+r.Bottom)/2)
}

func (d *windowsDriver) ClickLowerMiddle(handle uintptr) error {
	r, err := windowRect(handle)
	if err != nil {
		return err
	}
	height := r.Bottom - r.Top
	return d.ClickAt(int(r.Left+r.Right)/2, int(r.Top+height*3/4))
}

func (d *windowsDriver) ChildTexts(handle uintptr) ([]string, error) {
	var texts []string
	buf := make([]uint16, 512)
	cb := windows.NewCallback(func(hwnd uintptr, _ uintptr) uintptr {
		visible, _, _ := procIsWindowVisible.Call(hwnd)
		if visible == 0 {
			return 1
		}
		n, _, _ := procSendMessageW.Call(hwnd, wmGetText, uintptr(len(buf)), uintptr(unsafe.Pointer(&buf[0])))
		if n > 0 {
			texts = append(texts, syscall.UTF16ToString(buf[:n]))
		}
		return 1
	})
	procEnumChildWindows.Call(handle, cb, 0)
	return texts, nil
}

func (d *windowsDriver) Sleep(dur time.Duration) {
	time.Sleep(dur)
}

func sendKey(vk uint16, flags uint32) error {
	in := winInput{Type: inputKeyb}
	ki := (*keyboardInput)(unsafe.Pointer(&in.Mi))
	ki.Vk = vk
	ki.Flags = flags
	sent, _, callErr := procSendInput.Call(1, uintptr(unsafe.Pointer(&in)), unsafe.Sizeof(in))
	if sent == 0 {
		return fmt.Errorf("input: 注入按键失败 vk=0x%02X: %v", vk, callErr)
	}
	return nil
}

func sendUnicode(unit uint16, flags uint32) error {
	in := winInput{Type: inputKeyb}
	ki := (*keyboardInput)(unsafe.Pointer(&in.Mi))
	ki.Scan = unit
	ki.Flags = flags | keyEventUnicode
	sent, _, callErr := procSendInput.Call(1, uintptr(unsafe.Pointer(&in)), unsafe.Sizeof(in))
	if sent == 0 {
		return fmt.Errorf("input: 注入字符失败 scan=0x%04X: %v", unit, callErr)
	}
	return nil
}

func utf16Encode(text string) []uint16 {
	units, err := windows.UTF16FromString(text)
	if err != nil {
		return nil
	}
	// 去掉结尾的 NUL。
	if n := len(units); n > 0 && units[n-1] == 0 {
		units = units[:n-1]
	}
	return units
}

func sendMouse(flags uint32) {
	in := winInput{Type: inputMouse}
	in.Mi.Flags = flags
	procSendInput.Call(1, uintptr(unsafe.Pointer(&in)), unsafe.Sizeof(in))
}

func windowText(hwnd uintptr) string {
	length, _, _ := procGetWindowTextLengthW.Call(hwnd)
	if length == 0 {
		return ""
	}
	buf := make([]uint16, length+1)
	n, _, _ := procGetWindowTextW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if n == 0 {
		return ""
	}
	return syscall.UTF16ToString(buf[:n])
}

func windowRect(handle uintptr) (rect, error) {
	var r rect
	ret, _, callErr := procGetWindowRect.Call(handle, uintptr(unsafe.Pointer(&r)))
	if ret == 0 {
		return r, fmt.Errorf("input: 读取窗口矩形失败: %v", callErr)
	}
	return r, nil
}
