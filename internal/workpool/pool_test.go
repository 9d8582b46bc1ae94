package workpool

import (
	"errors"
	"sync/atomic"
	"testing"
)

func TestPoolRunsEverySubmittedJob(t *testing.T) {
	p := New(4)
	var count int64
	for i := 0; i < 20; i++ {
		p.Go(func() error {
			atomic.AddInt64(&count, 1)
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if count != 20 {
		t.Errorf("expected 20 jobs to run, got %d", count)
	}
}

func TestPoolReturnsFirstError(t *testing.T) {
	p := New(2)
	want := errors.New("boom")
	p.Go(func() error { return want })
	p.Go(func() error { return nil })
	if err := p.Wait(); err == nil {
		t.Fatalf("expected an error from Wait")
	}
}

func TestPoolRecoversFromPanic(t *testing.T) {
	p := New(1)
	p.Go(func() error { panic("kaboom") })
	if err := p.Wait(); err == nil {
		t.Fatalf("expected a panic to surface as an error")
	}
}

func TestNewDefaultsWorkersWhenNonPositive(t *testing.T) {
	p := New(0)
	done := false
	p.Go(func() error { done = true; return nil })
	if err := p.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !done {
		t.Errorf("expected the job to have run")
	}
}
