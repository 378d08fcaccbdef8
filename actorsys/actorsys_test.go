package actorsys

import "testing"

func TestMailboxEnqueueAndRecv(t *testing.T) {
	mb := NewMailbox(Address{ID: 1}, 2)
	mb.Enqueue(Envelope{OpID: 1, Payload: "a"})
	mb.Enqueue(Envelope{OpID: 2, Payload: "b"})
	e1, ok := mb.Recv()
	if !ok || e1.Payload != "a" {
		t.Fatalf("got %+v, want payload a", e1)
	}
	e2, ok := mb.Recv()
	if !ok || e2.Payload != "b" {
		t.Fatalf("got %+v, want payload b", e2)
	}
}

func TestMailboxDropsWhenFull(t *testing.T) {
	mb := NewMailbox(Address{ID: 1}, 1)
	mb.Enqueue(Envelope{Payload: "first"})
	mb.Enqueue(Envelope{Payload: "second"}) // dropped, inbox has capacity 1
	e, ok := mb.Recv()
	if !ok || e.Payload != "first" {
		t.Fatalf("got %+v, want first", e)
	}
}

func TestMailboxMonitorFiresOnceOnTerminate(t *testing.T) {
	mb := NewMailbox(Address{ID: 1}, 1)
	var reasons []string
	mb.Monitor(func(r string) { reasons = append(reasons, r) })
	mb.Monitor(func(r string) { reasons = append(reasons, r) })
	mb.Terminate("done")
	mb.Terminate("done again") // no-op, already terminated
	if len(reasons) != 2 {
		t.Fatalf("expected 2 watcher calls, got %d: %v", len(reasons), reasons)
	}
	for _, r := range reasons {
		if r != "done" {
			t.Fatalf("got reason %q, want done", r)
		}
	}
}

func TestMailboxMonitorAfterTerminateFiresImmediately(t *testing.T) {
	mb := NewMailbox(Address{ID: 1}, 1)
	mb.Terminate("already_gone")
	var got string
	mb.Monitor(func(r string) { got = r })
	if got != "already_gone" {
		t.Fatalf("got %q, want already_gone", got)
	}
}

func TestRegistryPutGetRemove(t *testing.T) {
	reg := NewRegistry()
	mb := NewMailbox(Address{ID: 5}, 1)
	reg.Put(mb)
	got, ok := reg.Get(5)
	if !ok || got != mb {
		t.Fatal("expected to resolve the mailbox by id")
	}
	reg.Remove(5)
	if _, ok := reg.Get(5); ok {
		t.Fatal("expected the mailbox to be gone after Remove")
	}
}

func TestRegistryPutNamedResolvesBothWays(t *testing.T) {
	reg := NewRegistry()
	mb := NewMailbox(Address{ID: 9}, 1)
	reg.PutNamed("ConfigServ", mb)
	if got, ok := reg.Get(9); !ok || got != mb {
		t.Fatal("expected to resolve by id too")
	}
	if got, ok := reg.GetNamed("ConfigServ"); !ok || got != mb {
		t.Fatal("expected to resolve by name")
	}
	if _, ok := reg.GetNamed("SpawnServ"); ok {
		t.Fatal("expected an unregistered name to miss")
	}
}
