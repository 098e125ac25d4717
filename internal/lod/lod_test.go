package lod

import (
	"math"
	"math/rand"
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	p := NewPolicy(Config{NearDistance: 100, FarDistance: 300}, rand.New(rand.NewSource(1)))
	for _, tc := range []struct {
		d    float64
		want Tier
	}{
		{0, Near},
		{99.9, Near},
		{100, Mid},
		{299, Mid},
		{300, Far},
		{1e6, Far},
	} {
		if got := p.Classify(tc.d); got != tc.want {
			t.Errorf("Classify(%v) = %v, want %v", tc.d, got, tc.want)
		}
	}
}

func TestNearNeverSkipped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MidSkipRatio, cfg.FarSkipRatio = 1, 1
	p := NewPolicy(cfg, rand.New(rand.NewSource(1)))
	for i := 0; i < 1000; i++ {
		if p.ShouldSkip(Near, 1000) {
			t.Fatal("near entity skipped")
		}
	}
	if !p.ShouldSkip(Far, 1000) || !p.ShouldSkip(Mid, 1000) {
		t.Fatal("ratio 1 over the ceiling should always skip")
	}
}

func TestNoSkipUnderCeiling(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FarSkipRatio = 1
	p := NewPolicy(cfg, rand.New(rand.NewSource(1)))
	for i := 0; i < 1000; i++ {
		if p.ShouldSkip(Far, cfg.FarCeilingMs) {
			t.Fatal("skipped at (not above) the ceiling")
		}
	}
}

func TestSkipRatioStatistical(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FarSkipRatio = 0.7
	p := NewPolicy(cfg, rand.New(rand.NewSource(42)))

	const frames, perFrame = 1000, 20
	skipped := 0
	for f := 0; f < frames; f++ {
		for e := 0; e < perFrame; e++ {
			if p.ShouldSkip(Far, cfg.FarCeilingMs+5) {
				skipped++
			}
		}
	}
	ratio := float64(skipped) / float64(frames*perFrame)
	if math.Abs(ratio-0.7) > 0.05 {
		t.Fatalf("observed skip ratio %.3f, want 0.7 ± 0.05", ratio)
	}
}

func TestSkipPatternVariesAcrossFrames(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FarSkipRatio = 0.5
	p := NewPolicy(cfg, rand.New(rand.NewSource(9)))
	frame := func() []bool {
		out := make([]bool, 64)
		for i := range out {
			out[i] = p.ShouldSkip(Far, 100)
		}
		return out
	}
	a, b := frame(), frame()
	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
		}
	}
	if same {
		t.Fatal("identical skip pattern on consecutive frames")
	}
}

func TestDegrade(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FarSizeScale = 0.5
	p := NewPolicy(cfg, rand.New(rand.NewSource(1)))
	if imp, s := p.Degrade(Far); !imp || s != 0.5 {
		t.Fatalf("Degrade(Far) = %v, %v", imp, s)
	}
	if imp, s := p.Degrade(Mid); imp || s != 1 {
		t.Fatalf("Degrade(Mid) = %v, %v", imp, s)
	}
	p.SetImposters(false)
	if imp, s := p.Degrade(Far); imp || s != 1 {
		t.Fatalf("Degrade(Far) without imposters = %v, %v", imp, s)
	}
}

func TestValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatal(err)
	}
	bad := DefaultConfig()
	bad.FarDistance = bad.NearDistance - 1
	if bad.Validate() == nil {
		t.Fatal("expected error for far < near")
	}
	bad = DefaultConfig()
	bad.FarSkipRatio = 1.2
	if bad.Validate() == nil {
		t.Fatal("expected error for ratio > 1")
	}
}

func TestFrameTimer(t *testing.T) {
	ft := NewFrameTimer(4)
	if ft.AverageMs() != 0 {
		t.Fatal("empty timer should average 0")
	}
	ft.Observe(10 * time.Millisecond)
	ft.Observe(20 * time.Millisecond)
	if got := ft.AverageMs(); got != 15 {
		t.Fatalf("average = %v, want 15", got)
	}
	for i := 0; i < 4; i++ {
		ft.Observe(40 * time.Millisecond)
	}
	if got := ft.AverageMs(); math.Abs(got-40) > 1e-9 {
		t.Fatalf("average after window rollover = %v, want 40", got)
	}
	ft.Reset()
	if ft.AverageMs() != 0 {
		t.Fatal("reset timer should average 0")
	}
}
