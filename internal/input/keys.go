package input

import "fmt"

// Key 为 Windows 虚拟键码。
type Key uint16

// 终端操作涉及的虚拟键码子集。
const (
	KeyTab      Key = 0x09
	KeyEnter    Key = 0x0D
	KeyShift    Key = 0x10
	KeyControl  Key = 0x11
	KeyCapsLock Key = 0x14
	KeyF1       Key = 0x70
	KeyF2       Key = 0x71
	KeyF3       Key = 0x72
	KeyF4       Key = 0x73
	KeyPeriod   Key = 0xBE

	Key0 Key = 0x30
	Key9 Key = 0x39
	KeyA Key = 0x41
	KeyZ Key = 0x5A

	KeyB Key = 0x42
	KeyE Key = 0x45
	KeyN Key = 0x4E
	KeyR Key = 0x52
	KeyS Key = 0x53
	KeyW Key = 0x57
)

// String 返回便于日志与测试断言的键名。
func (k Key) String() string {
	switch {
	case k == KeyTab:
		return "Tab"
	case k == KeyEnter:
		return "Enter"
	case k == KeyShift:
		return "Shift"
	case k == KeyControl:
		return "Ctrl"
	case k == KeyCapsLock:
		return "CapsLock"
	case k == KeyPeriod:
		return "."
	case k >= KeyF1 && k <= KeyF4:
		return fmt.Sprintf("F%d", k-KeyF1+1)
	case k >= Key0 && k <= Key9:
		return string(rune('0' + (k - Key0)))
	case k >= KeyA && k <= KeyZ:
		return string(rune('A' + (k - KeyA)))
	}
	return fmt.Sprintf("VK(0x%02X)", uint16(k))
}

// digitKeys 将字符串转换为待注入的虚拟键序列。
// 仅接受数字与小数点，任何其他字符在注入任何按键之前报错。
func digitKeys(text string) ([]Key, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: 输入为空", ErrInvalidText)
	}
	keys := make([]Key, 0, len(text))
	for _, r := range text {
		switch {
		case r >= '0' && r <= '9':
			keys = append(keys, Key0+Key(r-'0'))
		case r == '.':
			keys = append(keys, KeyPeriod)
		default:
			return nil, fmt.Errorf("%w: 非法字符 %q", ErrInvalidText, r)
		}
	}
	return keys, nil
}
