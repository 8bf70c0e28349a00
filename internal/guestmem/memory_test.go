package guestmem

import "testing"

func TestMapInitRead(t *testing.T) {
	m := New()
	if err := m.Map(0x1000, 0x10, PermInit|PermRead|PermWrite); err != nil {
		t.Fatalf("Map: %v", err)
	}
	if err := m.Init(0x1000, []byte("hello\x00")); err != nil {
		t.Fatalf("Init: %v", err)
	}
	s, err := m.ReadString(0x1000)
	if err != nil {
		t.Fatalf("ReadString: %v", err)
	}
	if s != "hello" {
		t.Errorf("ReadString = %q, want %q", s, "hello")
	}
}

func TestWriteRequiresPermission(t *testing.T) {
	m := New()
	if err := m.Map(0x2000, 0x10, PermInit|PermRead); err != nil {
		t.Fatalf("Map: %v", err)
	}
	if err := m.Write(0x2000, []byte("x")); err == nil {
		t.Error("expected Write to fail on a read-only page")
	}
	if err := m.Init(0x2000, []byte("x")); err != nil {
		t.Errorf("Init should not require PermWrite: %v", err)
	}
}

func TestMapIsIdempotentAndCumulative(t *testing.T) {
	m := New()
	if err := m.Map(0x3000, PageSize, PermInit|PermRead); err != nil {
		t.Fatalf("Map: %v", err)
	}
	if err := m.Init(0x3000, []byte("x")); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := m.Map(0x3000, PageSize, PermWrite); err != nil {
		t.Fatalf("re-Map of an overlapping page should succeed: %v", err)
	}
	if err := m.Write(0x3000, []byte("y")); err != nil {
		t.Errorf("page should now carry PermWrite cumulatively: %v", err)
	}
	s, err := m.ReadString(0x3000)
	if err != nil {
		t.Fatalf("ReadString: %v", err)
	}
	if s != "y" {
		t.Errorf("re-Map must not clear existing backing bytes, got %q", s)
	}
}

func TestGrowHeapBreak(t *testing.T) {
	m := New()
	m.SetHeapBreak(0x4000)
	newBreak, err := m.GrowHeapBreak(0x2000)
	if err != nil {
		t.Fatalf("GrowHeapBreak: %v", err)
	}
	if newBreak != 0x6000 {
		t.Errorf("HeapBreak = 0x%x, want 0x6000", newBreak)
	}
	if err := m.Write(0x4000, []byte{1, 2, 3}); err != nil {
		t.Errorf("expected newly grown heap to be writable: %v", err)
	}
}
