//go:build !windows

package input

// NewSystemDriver 在非 Windows 平台上不可用：
// 券商终端只存在于 Windows 桌面，其他平台仅用于开发与测试（见 Recorder）。
func NewSystemDriver() (Driver, error) {
	return nil, ErrUnsupported
}
