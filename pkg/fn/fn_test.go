package fn

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestResult(t *testing.T) {
	v, err := Ok(42).Unwrap()
	if v != 42 || err != nil {
		t.Fatalf("unexpected: %v %v", v, err)
	}

	boom := errors.New("boom")
	r := FromPair(0, boom)
	if r.IsOk() {
		t.Fatal("FromPair with error should not be ok")
	}
	if _, err := r.Unwrap(); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if !FromPair("x", nil).IsOk() {
		t.Fatal("FromPair without error should be ok")
	}
}

func TestMap(t *testing.T) {
	got := Map([]int{1, 2, 3}, func(v int) int { return v * 2 })
	want := []int{2, 4, 6}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Map: got %v", got)
		}
	}
}

func TestFilterMap(t *testing.T) {
	got := FilterMap([]int{1, 2, 3, 4}, func(v int) (int, bool) { return v * 10, v%2 == 0 })
	if len(got) != 2 || got[0] != 20 || got[1] != 40 {
		t.Fatalf("FilterMap: got %v", got)
	}
}

func TestChunk(t *testing.T) {
	items := make([]int, 250)
	batches := Chunk(items, 100)
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	sizes := []int{100, 100, 50}
	for i, b := range batches {
		if len(b) != sizes[i] {
			t.Fatalf("batch %d: expected %d, got %d", i, sizes[i], len(b))
		}
	}
	if Chunk(items, 0) != nil {
		t.Fatal("Chunk with n=0 should be nil")
	}
	if Chunk([]int{}, 10) != nil {
		t.Fatal("Chunk of empty should be nil")
	}
}

func TestIndexBy(t *testing.T) {
	type row struct {
		id  string
		val int
	}
	idx := IndexBy([]row{{"a", 1}, {"b", 2}}, func(r row) string { return r.id })
	if len(idx) != 2 || idx["b"].val != 2 {
		t.Fatalf("IndexBy: got %v", idx)
	}
}

func TestRetrySuccess(t *testing.T) {
	attempts := 0
	r := Retry(context.Background(), RetryOpts{MaxAttempts: 3, InitialWait: time.Millisecond}, func(_ context.Context) Result[int] {
		attempts++
		if attempts < 3 {
			return Err[int](errors.New("not yet"))
		}
		return Ok(42)
	})
	if v, _ := r.Unwrap(); v != 42 || attempts != 3 {
		t.Fatal("Retry should succeed on 3rd attempt")
	}
}

func TestRetryExhausted(t *testing.T) {
	attempts := 0
	r := Retry(context.Background(), RetryOpts{MaxAttempts: 2, InitialWait: time.Millisecond}, func(_ context.Context) Result[int] {
		attempts++
		return Err[int](errors.New("fail"))
	})
	if r.IsOk() {
		t.Fatal("Retry should fail after exhausting attempts")
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestRetryZeroAttemptsRunsOnce(t *testing.T) {
	attempts := 0
	r := Retry(context.Background(), RetryOpts{}, func(_ context.Context) Result[int] {
		attempts++
		return Err[int](errors.New("fail"))
	})
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
	if _, err := r.Unwrap(); err == nil {
		t.Fatal("expected the attempt's error")
	}
}

func TestRetryNotRetryable(t *testing.T) {
	permanent := errors.New("bad request")
	attempts := 0
	opts := RetryOpts{
		MaxAttempts: 5,
		InitialWait: time.Millisecond,
		Retryable:   func(err error) bool { return !errors.Is(err, permanent) },
	}
	_, err := RetryCall(context.Background(), opts, func(_ context.Context) (int, error) {
		attempts++
		return 0, permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestRetryContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	r := Retry(ctx, RetryOpts{MaxAttempts: 100, InitialWait: 10 * time.Millisecond}, func(ctx context.Context) Result[int] {
		return Err[int](errors.New("fail"))
	})
	if r.IsOk() {
		t.Fatal("Retry should fail on context cancel")
	}
}

func TestRetryMaxWaitCap(t *testing.T) {
	start := time.Now()
	attempts := 0
	Retry(context.Background(), RetryOpts{MaxAttempts: 3, InitialWait: time.Second, MaxWait: 5 * time.Millisecond}, func(_ context.Context) Result[int] {
		attempts++
		return Err[int](errors.New("fail"))
	})
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("MaxWait not applied, took %v", elapsed)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}
