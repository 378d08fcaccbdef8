package routing

import (
	"testing"

	"github.com/pinenet/basp/wire"
)

func node(b byte, pid uint32) wire.NodeID {
	var n wire.NodeID
	n.Fingerprint[0] = b
	n.ProcessID = pid
	return n
}

func TestAddDirectIdempotentForSameHandle(t *testing.T) {
	tbl := New()
	n := node(1, 1)
	if err := tbl.AddDirect(n, 10); err != nil {
		t.Fatal(err)
	}
	if err := tbl.AddDirect(n, 10); err != nil {
		t.Fatalf("re-adding the same handle should be idempotent: %v", err)
	}
	if err := tbl.AddDirect(n, 11); err == nil {
		t.Fatal("expected error adding a second handle for the same node")
	}
}

func TestAddDirectEraseDirectRoundTrip(t *testing.T) {
	tbl := New()
	n := node(2, 2)
	if err := tbl.AddDirect(n, 5); err != nil {
		t.Fatal(err)
	}
	got, ok := tbl.EraseDirect(5)
	if !ok || got != n {
		t.Fatalf("expected erase to return %v, got %v, ok=%v", n, got, ok)
	}
	if _, ok := tbl.Lookup(n); ok {
		t.Fatal("table should be empty after erase")
	}
}

func TestAddIndirectRequiresDirectVia(t *testing.T) {
	tbl := New()
	via := node(3, 3)
	target := node(4, 4)
	if tbl.AddIndirect(via, target) {
		t.Fatal("expected false: via has no direct route yet")
	}
	if err := tbl.AddDirect(via, 1); err != nil {
		t.Fatal(err)
	}
	if !tbl.AddIndirect(via, target) {
		t.Fatal("expected true: via is now directly routable")
	}
	path, ok := tbl.Lookup(target)
	if !ok || path.NextHop != via {
		t.Fatalf("expected indirect route via %v, got %+v, ok=%v", via, path, ok)
	}
}

func TestEraseDirectCascadesIndirectRoutes(t *testing.T) {
	tbl := New()
	via := node(5, 5)
	target := node(6, 6)
	if err := tbl.AddDirect(via, 1); err != nil {
		t.Fatal(err)
	}
	tbl.AddIndirect(via, target)
	tbl.EraseDirect(1)
	if _, ok := tbl.Lookup(target); ok {
		t.Fatal("indirect route should be removed once its next hop is erased")
	}
}

func TestLookupPrefersDirect(t *testing.T) {
	tbl := New()
	via := node(7, 7)
	target := node(8, 8)
	if err := tbl.AddDirect(via, 1); err != nil {
		t.Fatal(err)
	}
	tbl.AddIndirect(via, target)
	if err := tbl.AddDirect(target, 2); err != nil {
		t.Fatal(err)
	}
	path, ok := tbl.Lookup(target)
	if !ok || path.NextHop != target || path.Handle != 2 {
		t.Fatalf("expected direct route to win, got %+v", path)
	}
}
