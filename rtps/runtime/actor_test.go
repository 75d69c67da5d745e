package runtime

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestActorAskRunsExclusivelyAndOrdered(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a := NewActor(ctx, "test")

	var counter int64
	var order []int64
	const n = 50
	for i := 0; i < n; i++ {
		i := i
		if err := a.Ask(ctx, func(context.Context) {
			counter++
			order = append(order, counter)
			_ = i
		}); err != nil {
			t.Fatalf("Ask(%d): %v", i, err)
		}
	}
	if counter != n {
		t.Fatalf("counter = %d, want %d", counter, n)
	}
	for i, v := range order {
		if v != int64(i+1) {
			t.Fatalf("order[%d] = %d, want %d: mails did not run strictly in sequence", i, v, i+1)
		}
	}
}

func TestActorTellIsAsync(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a := NewActor(ctx, "test")

	var ran int32
	done := make(chan struct{})
	a.Tell(func(context.Context) {
		atomic.StoreInt32(&ran, 1)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Tell's function never ran")
	}
	if atomic.LoadInt32(&ran) != 1 {
		t.Fatal("Tell's function did not run")
	}
}

func TestActorAskRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a := NewActor(ctx, "test")
	cancel()
	a.Wait()

	callCtx, callCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer callCancel()
	if err := a.Ask(callCtx, func(context.Context) {}); err == nil {
		t.Fatal("Ask should fail once the actor's loop has exited")
	}
}
