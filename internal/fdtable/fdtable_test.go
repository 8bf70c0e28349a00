package fdtable

import "testing"

func TestDefaultSeedsStandardStreams(t *testing.T) {
	tbl := New(nil)
	for fd := 0; fd <= 2; fd++ {
		if tbl.HostFD(fd) != fd {
			t.Errorf("HostFD(%d) = %d, want %d", fd, tbl.HostFD(fd), fd)
		}
	}
}

func TestNewDescriptorAndFree(t *testing.T) {
	closed := -1
	tbl := New(func(hostFD int) error {
		closed = hostFD
		return nil
	})

	if err := tbl.FreeDescriptor(1); err != nil {
		t.Fatalf("FreeDescriptor: %v", err)
	}
	tbl.NewDescriptor(1, 99, File)

	if got := tbl.HostFD(1); got != 99 {
		t.Errorf("HostFD(1) = %d, want 99", got)
	}

	if err := tbl.FreeDescriptor(1); err != nil {
		t.Fatalf("FreeDescriptor: %v", err)
	}
	if closed != 99 {
		t.Errorf("closer called with %d, want 99", closed)
	}
	if tbl.HostFD(1) != -1 {
		t.Errorf("HostFD(1) after free = %d, want -1", tbl.HostFD(1))
	}
}
