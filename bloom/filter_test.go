package bloom

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFilterNoFalseNegatives(t *testing.T) {
	f := New(DefaultSize, DefaultHashCount)
	for i := 0; i < 10_000; i++ {
		f.Add(fmt.Sprintf("news:2024:10:kw%d", i))
	}
	for i := 0; i < 10_000; i++ {
		key := fmt.Sprintf("news:2024:10:kw%d", i)
		if !f.Check(key) {
			t.Fatalf("expected %q to be present", key)
		}
	}
}

func TestFilterFalsePositiveRate(t *testing.T) {
	f := New(DefaultSize, DefaultHashCount)
	for i := 0; i < 10_000; i++ {
		f.Add(fmt.Sprintf("news:2024:10:in%d", i))
	}
	var fp int
	const samples = 100_000
	for i := 0; i < samples; i++ {
		if f.Check(fmt.Sprintf("news:2024:10:out%d", i)) {
			fp++
		}
	}
	if rate := float64(fp) / samples; rate > 0.01 {
		t.Fatalf("false positive rate %.4f exceeds 0.01", rate)
	}
	if est := f.EstimatedFalsePositive(10_000); est > 0.01 {
		t.Fatalf("estimated false positive rate %.6f exceeds 0.01", est)
	}
}

func TestFilterEmptyAndNil(t *testing.T) {
	var nilFilter *Filter
	nilFilter.Add("a")
	if nilFilter.Check("a") {
		t.Fatalf("nil filter must report absent")
	}
	zero := New(0, 3)
	zero.Add("a")
	if zero.Check("a") {
		t.Fatalf("zero-size filter must report absent")
	}
	if New(64, 0).HashCount() != DefaultHashCount {
		t.Fatalf("expected default hash count")
	}
	if New(DefaultSize, 5).Check("never-added") {
		t.Fatalf("fresh filter must report absent")
	}
}

func TestFilterConcurrentAdd(t *testing.T) {
	f := New(1<<16, 4)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := fmt.Sprintf("w%d:%d", w, i)
				f.Add(key)
				_ = f.Check(key)
			}
		}(w)
	}
	wg.Wait()
	for w := 0; w < 8; w++ {
		for i := 0; i < 500; i++ {
			if !f.Check(fmt.Sprintf("w%d:%d", w, i)) {
				t.Fatalf("lost insertion w%d:%d", w, i)
			}
		}
	}
}

func TestOptimalParams(t *testing.T) {
	m, k := OptimalParams(10_000, 0.01)
	if m < 90_000 || m > 100_000 {
		t.Fatalf("unexpected bit count %d", m)
	}
	if k != 7 {
		t.Fatalf("unexpected hash count %d", k)
	}
	f := NewWithEstimate(10_000, 0.01)
	if f.Size() != m || f.HashCount() != k {
		t.Fatalf("estimate constructor mismatch: %d/%d", f.Size(), f.HashCount())
	}
}

type sliceSource struct {
	keys []string
	err  error
}

func (s sliceSource) EachFilterKey(_ context.Context, fn func(string) error) error {
	for _, k := range s.keys {
		if err := fn(k); err != nil {
			return err
		}
	}
	return s.err
}

func TestLoadCountsKeys(t *testing.T) {
	f := New(1024, 3)
	n, err := Load(context.Background(), sliceSource{keys: []string{"a", "b", "a"}}, f)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 keys visited, got %d", n)
	}
	if !f.Check("a") || !f.Check("b") {
		t.Fatalf("expected loaded keys present")
	}
}

func TestBuildNeverFails(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	src := sliceSource{keys: []string{"news:2024:10:发展"}, err: errors.New("db down")}
	f := Build(context.Background(), Config{}, src, logger)
	if f == nil {
		t.Fatalf("expected filter even when load fails")
	}
	if f.Size() != DefaultSize || f.HashCount() != DefaultHashCount {
		t.Fatalf("expected default sizing, got %d/%d", f.Size(), f.HashCount())
	}
	if !f.Check("news:2024:10:发展") {
		t.Fatalf("expected keys loaded before the failure to be kept")
	}
	if logs.FilterMessage("membership filter load incomplete").Len() != 1 {
		t.Fatalf("expected load failure to be logged, got %v", logs.All())
	}

	if f := Build(context.Background(), Config{Size: 128}, nil, nil); f.Size() != 128 {
		t.Fatalf("expected configured size")
	}
}
