package util

import (
	"reflect"
	"testing"
)

func TestAuditLogUndoRedo(t *testing.T) {
	l := NewAuditLog[int](0)
	for _, v := range []int{1, 2, 3} {
		l.Push(v)
	}

	if cur, _ := l.Current(); cur != 3 {
		t.Fatalf("Expected current 3, got %d", cur)
	}

	// undo twice
	l.Back()
	l.Back()
	if cur, _ := l.Current(); cur != 1 {
		t.Errorf("Expected current 1 after two undos, got %d", cur)
	}

	// redo once
	if v, ok := l.Forward(); !ok || v != 2 {
		t.Errorf("Expected redo to return 2, got %d (%v)", v, ok)
	}
}

func TestAuditLogTruncateOnWrite(t *testing.T) {
	l := NewAuditLog[string](0)
	l.Push("a")
	l.Push("b")
	l.Push("c")

	l.Back() // cursor on b
	l.Back() // cursor on a
	l.Push("d")

	if got := l.Entries(); !reflect.DeepEqual(got, []string{"a", "d"}) {
		t.Errorf("Expected entries beyond the cursor to be discarded, got %v", got)
	}
	if _, ok := l.Forward(); ok {
		t.Errorf("Redo must not be possible after a fresh write")
	}
}

func TestAuditLogLimit(t *testing.T) {
	l := NewAuditLog[int](3)
	for i := 0; i < 10; i++ {
		l.Push(i)
	}

	if got := l.Entries(); !reflect.DeepEqual(got, []int{7, 8, 9}) {
		t.Errorf("Expected the newest 3 entries, got %v", got)
	}
	if l.Cursor() != 2 {
		t.Errorf("Expected cursor 2, got %d", l.Cursor())
	}

	// drain
	for i := 0; i < 3; i++ {
		if _, ok := l.Back(); !ok {
			t.Errorf("Back %d should succeed", i)
		}
	}
	if _, ok := l.Back(); ok {
		t.Errorf("Back should fail when the cursor is before the first entry")
	}
}
