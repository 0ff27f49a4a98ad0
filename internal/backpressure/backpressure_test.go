package backpressure

import (
	"testing"
	"time"
)

func fixedSampler(v int64) Sampler {
	return func() int64 { return v }
}

func TestCheckDisabledWhenSoftLimitZero(t *testing.T) {
	g := New(0, 0.95).WithSampler(fixedSampler(1 << 30))
	res := g.Check()
	if res.OverSoft || res.CircuitBreak || res.UsageRatio != 0 {
		t.Fatalf("expected zero Result when disabled, got %+v", res)
	}
}

func TestCheckThresholds(t *testing.T) {
	const limit = int64(1000)
	cases := []struct {
		usage        int64
		wantOverSoft bool
		wantCircuit  bool
	}{
		{usage: 500, wantOverSoft: false, wantCircuit: false},
		{usage: 750, wantOverSoft: false, wantCircuit: false},
		{usage: 900, wantOverSoft: true, wantCircuit: false},
		{usage: 950, wantOverSoft: false, wantCircuit: true},
		{usage: 1100, wantOverSoft: false, wantCircuit: true},
	}
	for _, c := range cases {
		g := New(limit, 0.95).WithSampler(fixedSampler(c.usage))
		g.sleep = func(time.Duration) {}
		g.requestGC = func() {}
		res := g.Check()
		if res.OverSoft != c.wantOverSoft || res.CircuitBreak != c.wantCircuit {
			t.Errorf("usage=%d: got OverSoft=%v CircuitBreak=%v, want OverSoft=%v CircuitBreak=%v",
				c.usage, res.OverSoft, res.CircuitBreak, c.wantOverSoft, c.wantCircuit)
		}
	}
}

func TestCheckReportsSampledUsage(t *testing.T) {
	g := New(1000, 0.95).WithSampler(fixedSampler(600))
	g.sleep = func(time.Duration) {}
	g.requestGC = func() {}
	res := g.Check()
	if res.Usage != 600 {
		t.Fatalf("Usage = %d, want 600", res.Usage)
	}
}

func TestShrinkBatchLadder(t *testing.T) {
	cases := []struct {
		ratio float64
		base  int
		want  int
	}{
		{ratio: 0.5, base: 200, want: 200},
		{ratio: 0.75, base: 200, want: 150},
		{ratio: 0.9, base: 200, want: 100},
		{ratio: 1.2, base: 200, want: 50},
		{ratio: 1.2, base: 20, want: MinBatchSize},
	}
	for _, c := range cases {
		got := ShrinkBatch(c.base, Result{UsageRatio: c.ratio})
		if got != c.want {
			t.Errorf("ShrinkBatch(%d, ratio=%v) = %d, want %d", c.base, c.ratio, got, c.want)
		}
	}
}

func TestShrinkBatchNeverBelowMinimum(t *testing.T) {
	got := ShrinkBatch(30, Result{UsageRatio: 1.5})
	if got < MinBatchSize {
		t.Fatalf("ShrinkBatch returned %d, below MinBatchSize %d", got, MinBatchSize)
	}
}
