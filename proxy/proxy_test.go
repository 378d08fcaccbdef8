package proxy

import (
	"testing"

	"github.com/pinenet/basp/wire"
)

type fakeBackend struct {
	demonitored []Key
	forwarded   int
}

func (f *fakeBackend) SendDemonitor(node wire.NodeID, id wire.ActorID) {
	f.demonitored = append(f.demonitored, Key{Node: node, ID: id})
}

func (f *fakeBackend) Forward(p *Proxy, opID uint64, payload interface{}) error {
	f.forwarded++
	return nil
}

func testNode(b byte) wire.NodeID {
	var n wire.NodeID
	n.Fingerprint[0] = b
	return n
}

func TestGetOrPutIsIdempotentAndFiresOnCreateOnce(t *testing.T) {
	reg := NewRegistry(&fakeBackend{})
	node := testNode(1)
	creates := 0
	p1 := reg.GetOrPut(node, 5, func(*Proxy) { creates++ })
	p2 := reg.GetOrPut(node, 5, func(*Proxy) { creates++ })
	if p1 != p2 {
		t.Fatal("expected the same proxy instance")
	}
	if creates != 1 {
		t.Fatalf("expected exactly one onCreate call, got %d", creates)
	}
}

func TestEraseOneNotifiesObserversWithReason(t *testing.T) {
	reg := NewRegistry(&fakeBackend{})
	node := testNode(2)
	p := reg.GetOrPut(node, 7, nil)
	var gotReason string
	p.AddObserver(func(reason string) { gotReason = reason })
	reg.EraseOne(node, 7, "custom_reason")
	if gotReason != "custom_reason" {
		t.Fatalf("got %q, want custom_reason", gotReason)
	}
	if !reg.Empty() {
		t.Fatal("registry should be empty after erase")
	}
}

func TestEraseNodeNotifiesAllProxiesUnreachable(t *testing.T) {
	reg := NewRegistry(&fakeBackend{})
	node := testNode(3)
	p1 := reg.GetOrPut(node, 1, nil)
	p2 := reg.GetOrPut(node, 2, nil)
	var reasons []string
	p1.AddObserver(func(r string) { reasons = append(reasons, r) })
	p2.AddObserver(func(r string) { reasons = append(reasons, r) })
	reg.Erase(node)
	if len(reasons) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(reasons))
	}
	for _, r := range reasons {
		if r != "remote_link_unreachable" {
			t.Fatalf("got %q, want remote_link_unreachable", r)
		}
	}
	if !reg.Empty() {
		t.Fatal("registry should be empty after erase(node)")
	}
}

func TestReleaseDemonitorsAndErases(t *testing.T) {
	backend := &fakeBackend{}
	reg := NewRegistry(backend)
	node := testNode(4)
	p := reg.GetOrPut(node, 9, nil)
	p.Release(reg)
	if len(backend.demonitored) != 1 || backend.demonitored[0].ID != 9 {
		t.Fatalf("expected a demonitor call for id 9, got %v", backend.demonitored)
	}
	if !reg.Empty() {
		t.Fatal("registry should be empty after release")
	}
}
