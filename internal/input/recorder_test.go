package input

import (
	"errors"
	"testing"
)

func TestRecorderTrace_LabelsChordsAndKeys(t *testing.T) {
	r := NewRecorder()

	if err := r.TapKey(KeyF2); err != nil {
		t.Fatalf("TapKey returned error: %v", err)
	}
	if err := r.TapChord(KeyB, KeyShift); err != nil {
		t.Fatalf("TapChord returned error: %v", err)
	}
	if err := r.TapChord(KeyA, KeyControl); err != nil {
		t.Fatalf("TapChord returned error: %v", err)
	}

	want := []string{"F2", "Shift+B", "Ctrl+A"}
	got := r.Trace()
	if len(got) != len(want) {
		t.Fatalf("unexpected trace length: got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("trace[%d]: got %q want %q", i, got[i], want[i])
		}
	}
}

func TestRecorderClearAndType_RejectsBeforeAnyKeystroke(t *testing.T) {
	r := NewRecorder()

	err := r.ClearAndType("60051a")
	if !errors.Is(err, ErrInvalidText) {
		t.Fatalf("expected ErrInvalidText, got %v", err)
	}
	if n := len(r.Events()); n != 0 {
		t.Fatalf("invalid text must not emit any event, got %d events", n)
	}
}

func TestRecorderClearAndType_SelectAllThenDigits(t *testing.T) {
	r := NewRecorder()

	if err := r.ClearAndType("100"); err != nil {
		t.Fatalf("ClearAndType returned error: %v", err)
	}

	want := []string{"Ctrl+A", "1", "0", "0"}
	got := r.Trace()
	if len(got) != len(want) {
		t.Fatalf("unexpected trace: got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("trace[%d]: got %q want %q", i, got[i], want[i])
		}
	}
}

func TestRecorderEnsureCapsOn_Idempotent(t *testing.T) {
	r := NewRecorder()

	if r.CapsState() {
		t.Fatalf("expected caps off initially")
	}
	if err := r.EnsureCapsOn(); err != nil {
		t.Fatalf("EnsureCapsOn returned error: %v", err)
	}
	if !r.CapsState() {
		t.Fatalf("expected caps on after EnsureCapsOn")
	}
	first := len(r.Events())

	// 第二次调用不得再注入 CapsLock。
	if err := r.EnsureCapsOn(); err != nil {
		t.Fatalf("EnsureCapsOn returned error: %v", err)
	}
	if len(r.Events()) != first {
		t.Errorf("second EnsureCapsOn emitted events: got %d want %d", len(r.Events()), first)
	}
}

func TestRecorderActivate_TracksFocus(t *testing.T) {
	r := NewRecorder()
	r.Windows = []Window{{Handle: 7, Title: "网上股票交易系统5.0"}}

	if !r.Activate(7) {
		t.Fatalf("Activate(7) returned false")
	}
	win, err := r.CurrentFocus()
	if err != nil {
		t.Fatalf("CurrentFocus returned error: %v", err)
	}
	if win.Handle != 7 {
		t.Errorf("unexpected focus handle: got %d want 7", win.Handle)
	}

	if r.Activate(8) {
		t.Errorf("Activate(8) for unknown handle should return false")
	}

	r.FailActivate = true
	if r.Activate(7) {
		t.Errorf("Activate should fail when FailActivate is set")
	}
}
