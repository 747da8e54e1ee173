package input

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Recorder 是 Driver 的内存实现：不触碰操作系统，仅记录全部合成输入。
// 供各层测试复现按键轨迹，也可用于干跑排查仪式脚本。
type Recorder struct {
	mu sync.Mutex

	// Windows 为可枚举的顶层窗口集合。
	Windows []Window
	// Texts 为各窗口句柄对应的可见子控件文本。
	Texts map[uintptr][]string
	// FailActivate 令 Activate 始终返回失败。
	FailActivate bool

	focus  Window
	caps   bool
	now    time.Time
	events []Event
}

// Event 记录一次合成输入。
type Event struct {
	Kind   string // key / chord / text / click / sleep
	Key    Key
	Mods   []Key
	Text   string
	X, Y   int
	CapsOn bool
	At     time.Time
}

// NewRecorder 创建一个空白的记录驱动。
func NewRecorder() *Recorder {
	return &Recorder{
		Texts: make(map[uintptr][]string),
		now:   time.Date(2024, 1, 2, 9, 30, 0, 0, time.Local),
	}
}

func (r *Recorder) EnumerateWindows() ([]Window, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Window, len(r.Windows))
	copy(out, r.Windows)
	return out, nil
}

func (r *Recorder) Activate(handle uintptr) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailActivate {
		return false
	}
	for _, w := range r.Windows {
		if w.Handle == handle {
			r.focus = w
			return true
		}
	}
	return false
}

func (r *Recorder) CurrentFocus() (Window, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.focus, nil
}

func (r *Recorder) TapKey(k Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tap(k)
	return nil
}

func (r *Recorder) TapChord(k Key, mods ...Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Kind: "chord", Key: k, Mods: mods, CapsOn: r.caps, At: r.now})
	r.advance(HoldDelay + InterKeyDelay)
	return nil
}

func (r *Recorder) TypeDigits(text string) error {
	keys, err := digitKeys(text)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range keys {
		r.tap(k)
	}
	return nil
}

func (r *Recorder) ClearAndType(text string) error {
	// 先校验，保证非法输入不产生任何按键（包括 Ctrl+A）。
	if _, err := digitKeys(text); err != nil {
		return err
	}
	if err := r.TapChord(KeyA, KeyControl); err != nil {
		return err
	}
	return r.TypeDigits(text)
}

func (r *Recorder) TypeText(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Kind: "text", Text: text, CapsOn: r.caps, At: r.now})
	r.advance(time.Duration(len(text)) * InterKeyDelay)
	return nil
}

func (r *Recorder) CapsState() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.caps
}

func (r *Recorder) EnsureCapsOn() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.caps {
		r.tap(KeyCapsLock)
	}
	return nil
}

func (r *Recorder) ClickAt(x, y int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Kind: "click", X: x, Y: y, CapsOn: r.caps, At: r.now})
	r.advance(InterKeyDelay)
	return nil
}

func (r *Recorder) ClickCenter(handle uintptr) error {
	return r.ClickAt(int(handle), -1)
}

func (r *Recorder) ClickLowerMiddle(handle uintptr) error {
	return r.ClickAt(int(handle), -2)
}

func (r *Recorder) ChildTexts(handle uintptr) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	texts, ok := r.Texts[handle]
	if !ok {
		return nil, nil
	}
	out := make([]string, len(texts))
	copy(out, texts)
	return out, nil
}

func (r *Recorder) Sleep(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Kind: "sleep", CapsOn: r.caps, At: r.now})
	r.advance(d)
}

// tap 记录单键事件，调用方需已持有锁。
func (r *Recorder) tap(k Key) {
	if k == KeyCapsLock {
		r.caps = !r.caps
	}
	r.events = append(r.events, Event{Kind: "key", Key: k, CapsOn: r.caps, At: r.now})
	r.advance(HoldDelay + InterKeyDelay)
}

func (r *Recorder) advance(d time.Duration) {
	r.now = r.now.Add(d)
}

// Events 返回全部事件的副本。
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Keystrokes 返回按键与组合键事件，过滤点击与等待。
func (r *Recorder) Keystrokes() []Event {
	events := r.Events()
	out := make([]Event, 0, len(events))
	for _, e := range events {
		if e.Kind == "key" || e.Kind == "chord" {
			out = append(out, e)
		}
	}
	return out
}

// Trace 返回按键轨迹的字符串表示，例如 ["F2" "F1" "Ctrl+A" "6" "Shift+B"]。
func (r *Recorder) Trace() []string {
	keystrokes := r.Keystrokes()
	out := make([]string, 0, len(keystrokes))
	for _, e := range keystrokes {
		out = append(out, e.Label())
	}
	return out
}

// Reset 清空事件记录，保留窗口与焦点状态。
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Label 返回事件的轨迹标签。
func (e Event) Label() string {
	if e.Kind == "chord" {
		parts := make([]string, 0, len(e.Mods)+1)
		for _, m := range e.Mods {
			parts = append(parts, m.String())
		}
		parts = append(parts, e.Key.String())
		return strings.Join(parts, "+")
	}
	if e.Kind == "key" {
		return e.Key.String()
	}
	return fmt.Sprintf("<%s>", e.Kind)
}
