package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestNewCollectorsStartAtZero(t *testing.T) {
	b := New()
	for name, c := range map[string]prometheus.Counter{
		"ConnectionsOpened": b.ConnectionsOpened,
		"DispatchDirect":    b.DispatchDirect,
		"ProtocolErrors":    b.ProtocolErrors,
	} {
		if v := counterValue(t, c); v != 0 {
			t.Fatalf("%s started at %v, want 0", name, v)
		}
	}
}

func TestCountersIncrementIndependently(t *testing.T) {
	b := New()
	b.DispatchDirect.Inc()
	b.DispatchDirect.Inc()
	b.DispatchBounced.Inc()

	if v := counterValue(t, b.DispatchDirect); v != 2 {
		t.Fatalf("DispatchDirect = %v, want 2", v)
	}
	if v := counterValue(t, b.DispatchBounced); v != 1 {
		t.Fatalf("DispatchBounced = %v, want 1", v)
	}
	if v := counterValue(t, b.DispatchIndirect); v != 0 {
		t.Fatalf("DispatchIndirect = %v, want 0 (untouched)", v)
	}
}

func TestMustRegisterRegistersEveryCollector(t *testing.T) {
	b := New()
	reg := prometheus.NewRegistry()
	b.MustRegister(reg)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mfs) != 10 {
		t.Fatalf("got %d registered metric families, want 10", len(mfs))
	}
}

func TestMustRegisterPanicsOnDuplicate(t *testing.T) {
	b := New()
	reg := prometheus.NewRegistry()
	b.MustRegister(reg)

	defer func() {
		if recover() == nil {
			t.Fatal("expected registering the same collectors twice to panic")
		}
	}()
	b.MustRegister(reg)
}
